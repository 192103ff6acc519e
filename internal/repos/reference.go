package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agritrace/agritrace-backend/internal/logger"
	"github.com/agritrace/agritrace-backend/internal/types"
)

// ReferenceRepo reads the externally owned entities the provenance flows
// reference: farms, plants, seeds, distributors, cameras, plans.
type ReferenceRepo interface {
	GetFarm(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Farm, error)
	GetPlant(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Plant, error)
	GetSeed(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Seed, error)
	GetDistributor(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Distributor, error)
	GetDistributors(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Distributor, error)
	GetCameras(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Camera, error)
	GetCultivationPlan(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.CultivationPlan, error)
	GetDefaultCultivationPlan(ctx context.Context, tx *gorm.DB, plantID, seedID uuid.UUID) (*types.CultivationPlan, error)
}

type referenceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReferenceRepo(db *gorm.DB, baseLog *logger.Logger) ReferenceRepo {
	repoLog := baseLog.With("repo", "ReferenceRepo")
	return &referenceRepo{db: db, log: repoLog}
}

func (r *referenceRepo) GetFarm(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Farm, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var farm types.Farm
	if err := transaction.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&farm).Error; err != nil {
		return nil, err
	}
	if farm.ID == uuid.Nil {
		return nil, nil
	}
	return &farm, nil
}

func (r *referenceRepo) GetPlant(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Plant, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var plant types.Plant
	if err := transaction.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&plant).Error; err != nil {
		return nil, err
	}
	if plant.ID == uuid.Nil {
		return nil, nil
	}
	return &plant, nil
}

func (r *referenceRepo) GetSeed(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Seed, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var seed types.Seed
	if err := transaction.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&seed).Error; err != nil {
		return nil, err
	}
	if seed.ID == uuid.Nil {
		return nil, nil
	}
	return &seed, nil
}

func (r *referenceRepo) GetDistributor(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Distributor, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var distributor types.Distributor
	if err := transaction.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&distributor).Error; err != nil {
		return nil, err
	}
	if distributor.ID == uuid.Nil {
		return nil, nil
	}
	return &distributor, nil
}

func (r *referenceRepo) GetDistributors(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Distributor, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Distributor
	if len(ids) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).Where("id IN ?", ids).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *referenceRepo) GetCameras(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Camera, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Camera
	if len(ids) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).Where("id IN ?", ids).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *referenceRepo) GetCultivationPlan(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.CultivationPlan, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var plan types.CultivationPlan
	if err := transaction.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&plan).Error; err != nil {
		return nil, err
	}
	if plan.ID == uuid.Nil {
		return nil, nil
	}
	return &plan, nil
}

func (r *referenceRepo) GetDefaultCultivationPlan(ctx context.Context, tx *gorm.DB, plantID, seedID uuid.UUID) (*types.CultivationPlan, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if plantID == uuid.Nil || seedID == uuid.Nil {
		return nil, nil
	}
	var plan types.CultivationPlan
	err := transaction.WithContext(ctx).
		Where("plant_id = ? AND seed_id = ? AND is_default = ?", plantID, seedID, true).
		Limit(1).
		Find(&plan).Error
	if err != nil {
		return nil, err
	}
	if plan.ID == uuid.Nil {
		return nil, nil
	}
	return &plan, nil
}
