package repository

import (
	"context"
	"errors"
	"fmt"

	"cashledger/internal/ledger"
	"cashledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderRepository persists orders and applies their stock effects in the
// same transaction: SALE decrements stock, PURCHASE increments it, annul and
// return revert it.
type OrderRepository interface {
	ledger.OrderPersistence
	FindByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
}

type orderRepo struct{ db *gorm.DB }

func NewOrderRepository(db *gorm.DB) OrderRepository { return &orderRepo{db: db} }

// ── Submit ────────────────────────────────────────────────────────────────────

func (r *orderRepo) Submit(ctx context.Context, order model.Order) (ledger.SubmitResult, error) {
	order.ID = uuid.New()
	order.Status = model.OrderCompleted

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if order.Kind == model.KindSale && order.DocType == model.DocTicket && order.Number == "" {
			var seq int64
			if err := tx.Raw("SELECT nextval('order_ticket_number_seq')").Scan(&seq).Error; err != nil {
				return err
			}
			order.Number = fmt.Sprintf("%06d", seq)
		}

		if order.Number != "" {
			var count int64
			err := tx.Model(&model.Order{}).
				Where("kind = ? AND doc_type = ? AND series = ? AND number = ?", order.Kind, order.DocType, order.Series, order.Number).
				Count(&count).Error
			if err != nil {
				return err
			}
			if count > 0 {
				return fmt.Errorf("%w: %s-%s", ErrDuplicateNumber, order.Series, order.Number)
			}
		}

		for _, line := range order.Lines {
			delta := line.Quantity
			if order.Kind == model.KindSale {
				delta = -line.Quantity
			}
			if err := adjustStock(tx, line.ProductID, line.Name, delta); err != nil {
				return err
			}
		}

		for i := range order.Lines {
			order.Lines[i].ID = uuid.New()
			order.Lines[i].OrderID = order.ID
		}
		if err := tx.Create(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: %s-%s", ErrDuplicateNumber, order.Series, order.Number)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return ledger.SubmitResult{}, err
	}
	return ledger.SubmitResult{ID: order.ID, AssignedNumber: order.Number}, nil
}

// ── Annul / Return ────────────────────────────────────────────────────────────

func (r *orderRepo) Annul(ctx context.Context, id uuid.UUID, reason string) error {
	return r.revert(ctx, id, model.OrderAnnulled, &reason)
}

func (r *orderRepo) Return(ctx context.Context, id uuid.UUID) error {
	return r.revert(ctx, id, model.OrderReturned, nil)
}

func (r *orderRepo) revert(ctx context.Context, id uuid.UUID, status model.OrderStatus, reason *string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order model.Order
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Lines").
			Where("id = ? AND status = ?", id, model.OrderCompleted).
			First(&order).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrderNotCompleted
		}
		if err != nil {
			return err
		}

		for _, line := range order.Lines {
			delta := -line.Quantity
			if order.Kind == model.KindSale {
				delta = line.Quantity
			}
			if err := adjustStock(tx, line.ProductID, line.Name, delta); err != nil {
				return err
			}
		}

		updates := map[string]interface{}{"status": status}
		if reason != nil {
			updates["annul_reason"] = *reason
		}
		return tx.Model(&model.Order{}).Where("id = ?", id).Updates(updates).Error
	})
}

func (r *orderRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).Preload("Lines").First(&o, "id = ?", id).Error
	return &o, err
}

// adjustStock applies delta to a product's stock and refuses to go negative.
func adjustStock(tx *gorm.DB, productID uuid.UUID, name string, delta int) error {
	q := tx.Model(&model.Product{}).Where("id = ?", productID)
	if delta < 0 {
		q = q.Where("stock >= ?", -delta)
	}
	res := q.UpdateColumn("stock", gorm.Expr("stock + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrInsufficientStock, name)
	}
	return nil
}
