package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agritrace/agritrace-backend/internal/logger"
	"github.com/agritrace/agritrace-backend/internal/types"
)

type QRRepo interface {
	CreateBatch(ctx context.Context, tx *gorm.DB, units []*types.QRUnit) ([]*types.QRUnit, error)
	GetByProjectAndHash(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, hashedPrivateID string) (*types.QRUnit, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.QRUnit, error)
	ListByProject(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.QRUnit, error)
	ListByFarm(ctx context.Context, tx *gorm.DB, farmID uuid.UUID) ([]*types.QRUnit, error)

	// MarkSubmitted records that a ledger submission is in flight for the
	// unit, before the outcome is known.
	MarkSubmitted(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time) error

	// MarkScanned flips the unit to scanned only if it is still unscanned.
	// Returns false when another writer won the race; the unit row is left
	// exactly as that writer stored it.
	MarkScanned(ctx context.Context, tx *gorm.DB, id uuid.UUID, clientID uuid.UUID, scanTxRef, provenanceNote string, at time.Time) (bool, error)
}

type qrRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewQRRepo(db *gorm.DB, baseLog *logger.Logger) QRRepo {
	repoLog := baseLog.With("repo", "QRRepo")
	return &qrRepo{db: db, log: repoLog}
}

func (r *qrRepo) CreateBatch(ctx context.Context, tx *gorm.DB, units []*types.QRUnit) ([]*types.QRUnit, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(units) == 0 {
		return []*types.QRUnit{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&units).Error; err != nil {
		return nil, err
	}
	return units, nil
}

func (r *qrRepo) GetByProjectAndHash(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, hashedPrivateID string) (*types.QRUnit, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if projectID == uuid.Nil || hashedPrivateID == "" {
		return nil, nil
	}
	var unit types.QRUnit
	err := transaction.WithContext(ctx).
		Preload("Distributor").
		Where("project_id = ? AND hashed_private_id = ?", projectID, hashedPrivateID).
		Limit(1).
		Find(&unit).Error
	if err != nil {
		return nil, err
	}
	if unit.ID == uuid.Nil {
		return nil, nil
	}
	return &unit, nil
}

func (r *qrRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.QRUnit, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var unit types.QRUnit
	err := transaction.WithContext(ctx).
		Preload("Distributor").
		Where("id = ?", id).
		Limit(1).
		Find(&unit).Error
	if err != nil {
		return nil, err
	}
	if unit.ID == uuid.Nil {
		return nil, nil
	}
	return &unit, nil
}

func (r *qrRepo) ListByProject(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.QRUnit, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.QRUnit
	if projectID == uuid.Nil {
		return results, nil
	}
	err := transaction.WithContext(ctx).
		Preload("Distributor").
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (r *qrRepo) ListByFarm(ctx context.Context, tx *gorm.DB, farmID uuid.UUID) ([]*types.QRUnit, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.QRUnit
	if farmID == uuid.Nil {
		return results, nil
	}
	err := transaction.WithContext(ctx).
		Preload("Distributor").
		Joins(`JOIN "project" ON "project"."id" = "qr_unit"."project_id"`).
		Where(`"project"."farm_id" = ?`, farmID).
		Order(`"qr_unit"."created_at" ASC`).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (r *qrRepo) MarkSubmitted(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.QRUnit{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"ledger_submitted_at": at,
			"updated_at":          at,
		}).Error
}

func (r *qrRepo) MarkScanned(ctx context.Context, tx *gorm.DB, id uuid.UUID, clientID uuid.UUID, scanTxRef, provenanceNote string, at time.Time) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return false, nil
	}
	res := transaction.WithContext(ctx).
		Model(&types.QRUnit{}).
		Where("id = ? AND is_scanned = ?", id, false).
		Updates(map[string]interface{}{
			"is_scanned":      true,
			"scanned_at":      at,
			"client_id":       clientID,
			"scan_tx_ref":     scanTxRef,
			"provenance_note": provenanceNote,
			"updated_at":      at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
