package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cashledger/internal/ledger"
	"cashledger/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type cashSessionRepo struct{ db *gorm.DB }

// NewCashSessionRepository returns the gorm-backed CashSessionPersistence.
// The partial unique index on cash_sessions(cashier_id) WHERE status='OPEN'
// is the last line against two open sessions for the same cashier.
func NewCashSessionRepository(db *gorm.DB) ledger.CashSessionPersistence {
	return &cashSessionRepo{db: db}
}

func (r *cashSessionRepo) Open(ctx context.Context, req ledger.OpenSessionRequest) (*model.CashSession, error) {
	s := &model.CashSession{
		ID:          uuid.New(),
		CashierID:   req.CashierID,
		EmployeeID:  req.EmployeeID,
		InitBalance: ledger.Round2(req.InitBalance),
		Status:      model.SessionOpen,
		StartAt:     time.Now(),
		Movements:   []model.CashMovement{},
		Sales:       []model.OrderRef{},
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.CashSession{}).
			Where("cashier_id = ? AND status = ?", req.CashierID, model.SessionOpen).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ledger.ErrSessionAlreadyOpen
		}
		return tx.Create(s).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, ledger.ErrSessionAlreadyOpen
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *cashSessionRepo) RecordMovement(ctx context.Context, sessionID uuid.UUID, typ model.MovementType, amount decimal.Decimal, description string) (*model.CashMovement, error) {
	m := &model.CashMovement{
		ID:          uuid.New(),
		SessionID:   sessionID,
		Type:        typ,
		Amount:      ledger.Round2(amount),
		Description: description,
		CreatedAt:   time.Now(),
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var s model.CashSession
		err := tx.Clauses(clause.Locking{Strength: "SHARE"}).
			Where("id = ? AND status = ?", sessionID, model.SessionOpen).
			First(&s).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSessionNotOpen
		}
		if err != nil {
			return err
		}
		return tx.Create(m).Error
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *cashSessionRepo) FetchCurrent(ctx context.Context, cashierID int) (*model.CashSession, error) {
	var s model.CashSession
	err := r.db.WithContext(ctx).
		Preload("Movements", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where("cashier_id = ? AND status = ?", cashierID, model.SessionOpen).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if s.Sales, err = loadSales(r.db.WithContext(ctx), s.ID); err != nil {
		return nil, err
	}
	return &s, nil
}

// Close locks the session row, reconciles it against its stored movements and
// sales, and persists the theoretical balance as the closing balance.
func (r *cashSessionRepo) Close(ctx context.Context, sessionID uuid.UUID) (*model.CashSession, error) {
	var s model.CashSession
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND status = ?", sessionID, model.SessionOpen).
			First(&s).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSessionNotOpen
		}
		if err != nil {
			return err
		}

		if err := tx.Where("session_id = ?", sessionID).Order("created_at ASC").Find(&s.Movements).Error; err != nil {
			return err
		}
		if s.Sales, err = loadSales(tx, sessionID); err != nil {
			return err
		}

		closing := ledger.ReconcileSession(&s).TheoreticalBalance
		now := time.Now()
		s.ClosingBalance = &closing
		s.EndAt = &now
		s.Status = model.SessionClosed

		return tx.Model(&model.CashSession{}).Where("id = ?", sessionID).Updates(map[string]interface{}{
			"closing_balance": closing,
			"end_at":          now,
			"status":          model.SessionClosed,
		}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("close session %s: %w", sessionID, err)
	}
	return &s, nil
}

func loadSales(db *gorm.DB, sessionID uuid.UUID) ([]model.OrderRef, error) {
	refs := []model.OrderRef{}
	err := db.Model(&model.Order{}).
		Select("id, number, total, status").
		Where("session_id = ? AND kind = ?", sessionID, model.KindSale).
		Order("created_at ASC").
		Scan(&refs).Error
	return refs, err
}
