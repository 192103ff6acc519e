package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agritrace/agritrace-backend/internal/logger"
	"github.com/agritrace/agritrace-backend/internal/types"
)

type ClientRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Client, error)
	CreatePurchase(ctx context.Context, tx *gorm.DB, purchase *types.ClientPurchase) (*types.ClientPurchase, error)
	GetPurchaseByQRUnit(ctx context.Context, tx *gorm.DB, clientID, qrUnitID uuid.UUID) (*types.ClientPurchase, error)
	ListPurchasesByClient(ctx context.Context, tx *gorm.DB, clientID uuid.UUID) ([]*types.ClientPurchase, error)
}

type clientRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewClientRepo(db *gorm.DB, baseLog *logger.Logger) ClientRepo {
	repoLog := baseLog.With("repo", "ClientRepo")
	return &clientRepo{db: db, log: repoLog}
}

func (r *clientRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Client, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var client types.Client
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&client).Error
	if err != nil {
		return nil, err
	}
	if client.ID == uuid.Nil {
		return nil, nil
	}
	return &client, nil
}

func (r *clientRepo) CreatePurchase(ctx context.Context, tx *gorm.DB, purchase *types.ClientPurchase) (*types.ClientPurchase, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(purchase).Error; err != nil {
		return nil, err
	}
	return purchase, nil
}

func (r *clientRepo) GetPurchaseByQRUnit(ctx context.Context, tx *gorm.DB, clientID, qrUnitID uuid.UUID) (*types.ClientPurchase, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if clientID == uuid.Nil || qrUnitID == uuid.Nil {
		return nil, nil
	}
	var purchase types.ClientPurchase
	err := transaction.WithContext(ctx).
		Where("client_id = ? AND qr_unit_id = ?", clientID, qrUnitID).
		Limit(1).
		Find(&purchase).Error
	if err != nil {
		return nil, err
	}
	if purchase.ID == uuid.Nil {
		return nil, nil
	}
	return &purchase, nil
}

func (r *clientRepo) ListPurchasesByClient(ctx context.Context, tx *gorm.DB, clientID uuid.UUID) ([]*types.ClientPurchase, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.ClientPurchase
	if clientID == uuid.Nil {
		return results, nil
	}
	err := transaction.WithContext(ctx).
		Preload("QRUnit").
		Preload("QRUnit.Distributor").
		Where("client_id = ?", clientID).
		Order("time ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
