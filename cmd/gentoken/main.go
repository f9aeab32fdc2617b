// cmd/gentoken/main.go: issues a terminal access token for local testing.
// Uso: go run ./cmd/gentoken -cashier 1 -role cashier
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"cashledger/internal/config"
	"cashledger/internal/middleware"
)

func main() {
	cashier := flag.Int("cashier", 1, "cash register id bound to the token")
	user := flag.String("user", "demo", "user id / employee id")
	role := flag.String("role", "cashier", "cashier | supervisor | admin")
	ttl := flag.Duration("ttl", 8*time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if cfg.JWTSecret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET must be set")
		os.Exit(1)
	}

	token, err := middleware.SignToken(cfg.JWTSecret, middleware.JWTClaims{
		UserID:    *user,
		Username:  *user,
		Role:      *role,
		CashierID: cashier,
	}, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
