// cmd/seedcatalog/main.go: loads a small demo catalog.
// Uso: go run ./cmd/seedcatalog
package main

import (
	"context"
	"fmt"
	"log"

	"cashledger/internal/config"
	"cashledger/internal/infra"
	"cashledger/internal/model"
	"cashledger/internal/repository"

	"github.com/shopspring/decimal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect error: %v", err)
	}
	repo := repository.NewProductRepository(db)

	products := []model.Product{
		{Name: "Agua mineral 500ml", Brand: "Cielo", Unit: "unit", Price: decimal.RequireFromString("1.50"), Cost: decimal.RequireFromString("0.90"), Stock: 120},
		{Name: "Arroz 1kg", Brand: "Costeño", Unit: "unit", Price: decimal.RequireFromString("4.20"), Cost: decimal.RequireFromString("3.10"), Stock: 60},
		{Name: "Aceite 1L", Brand: "Primor", Unit: "unit", Price: decimal.RequireFromString("9.80"), Cost: decimal.RequireFromString("7.50"), Stock: 40},
		{Name: "Azúcar rubia", Brand: "Cartavio", Unit: "kg", Price: decimal.RequireFromString("3.60"), Cost: decimal.RequireFromString("2.70"), Stock: 80},
	}

	ctx := context.Background()
	for i := range products {
		if err := repo.Create(ctx, &products[i]); err != nil {
			log.Fatalf("insert %q: %v", products[i].Name, err)
		}
		fmt.Printf("✅ %s  %s\n", products[i].ID, products[i].Name)
	}
}
