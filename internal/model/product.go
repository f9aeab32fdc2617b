package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is the catalog entry an order line is built from.
// Price is used for sales, Cost for purchases.
type Product struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Name      string          `gorm:"index;not null" json:"name"`
	Brand     string          `json:"brand"`
	Unit      string          `gorm:"not null;default:'unit'" json:"unit"`
	Price     decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	Cost      decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"cost"`
	Stock     int             `gorm:"not null;default:0" json:"stock"`
	Active    bool            `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
