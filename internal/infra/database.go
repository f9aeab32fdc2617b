package infra

import (
	"fmt"

	"cashledger/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx, runs AutoMigrate for
// the ledger tables, then applies the idempotent SQL patches GORM cannot
// express (partial indexes, sequences).
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := db.AutoMigrate(
		&model.Product{},
		&model.CashSession{},
		&model.CashMovement{},
		&model.Order{},
		&model.LineItem{},
	); err != nil {
		return nil, fmt.Errorf("AutoMigrate: %w", err)
	}

	if err := applySchemaPatches(db); err != nil {
		return nil, fmt.Errorf("schema patches: %w", err)
	}

	return db, nil
}

// applySchemaPatches is fully idempotent: every statement is guarded with
// IF NOT EXISTS so re-running on an already-patched schema is a no-op.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		// At most one OPEN session per cashier. The ledger relies on the
		// backend rejecting a second open, this index is what rejects it.
		{"one open session per cashier", `
CREATE UNIQUE INDEX IF NOT EXISTS idx_cash_sessions_one_open
  ON cash_sessions (cashier_id) WHERE status = 'OPEN'`},

		// Document numbers are unique only when present. Purchases may be
		// submitted without a number, and '' is a value to Postgres.
		{"drop full document number index",
			`DROP INDEX IF EXISTS idx_order_number`},
		{"unique numbered documents", `
CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_numbered
  ON orders (kind, doc_type, series, number) WHERE number <> ''`},

		// Server-assigned ticket numbers for SALE tickets submitted without one.
		{"ticket number sequence",
			`CREATE SEQUENCE IF NOT EXISTS order_ticket_number_seq START 1`},

		{"non-negative stock",
			`DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_products_stock_non_negative') THEN
    ALTER TABLE products ADD CONSTRAINT chk_products_stock_non_negative CHECK (stock >= 0);
  END IF;
END $$`},
	}

	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("%s: %w", p.descr, err)
		}
	}
	return nil
}
