package repository

import (
	"context"
	"errors"

	"cashledger/internal/ledger"
	"cashledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProductRepository is the GORM-backed product catalog.
type ProductRepository interface {
	ledger.ProductCatalog
	Create(ctx context.Context, p *model.Product) error
}

type productRepo struct{ db *gorm.DB }

func NewProductRepository(db *gorm.DB) ProductRepository { return &productRepo{db: db} }

func (r *productRepo) Create(ctx context.Context, p *model.Product) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// Lookup returns an active product. Stock is a snapshot at call time.
func (r *productRepo) Lookup(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).Where("id = ? AND active = ?", id, true).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
