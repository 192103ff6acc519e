package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/agritrace/agritrace-backend/internal/logger"
	"github.com/agritrace/agritrace-backend/internal/types"
)

type ProjectRepo interface {
	Create(ctx context.Context, tx *gorm.DB, project *types.Project) (*types.Project, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Project, error)

	// GetByIDForUpdate loads the row under a FOR UPDATE lock. Every
	// read-modify-write of the embedded jsonb collections goes through it,
	// inside a transaction, so concurrent writers serialize instead of
	// overwriting each other's arrays.
	GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Project, error)

	GetByProjectIndex(ctx context.Context, tx *gorm.DB, projectIndex int) (*types.Project, error)
	ListByFarm(ctx context.Context, tx *gorm.DB, farmID uuid.UUID, limit, offset int) ([]*types.Project, error)

	// SaveSubResources rewrites the given jsonb columns of one project row
	// in a single UPDATE. Callers pass only the collections they changed.
	SaveSubResources(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, columns map[string]interface{}) error

	UpdateInfo(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, updates map[string]interface{}) error
	SoftDelete(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) error
}

type projectRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProjectRepo(db *gorm.DB, baseLog *logger.Logger) ProjectRepo {
	repoLog := baseLog.With("repo", "ProjectRepo")
	return &projectRepo{db: db, log: repoLog}
}

func (r *projectRepo) Create(ctx context.Context, tx *gorm.DB, project *types.Project) (*types.Project, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(project).Error; err != nil {
		return nil, err
	}
	return project, nil
}

func (r *projectRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Project, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var project types.Project
	err := transaction.WithContext(ctx).
		Preload("Farm").
		Preload("Plant").
		Preload("Seed").
		Where("id = ?", id).
		Limit(1).
		Find(&project).Error
	if err != nil {
		return nil, err
	}
	if project.ID == uuid.Nil {
		return nil, nil
	}
	return &project, nil
}

func (r *projectRepo) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Project, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var project types.Project
	err := transaction.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Limit(1).
		Find(&project).Error
	if err != nil {
		return nil, err
	}
	if project.ID == uuid.Nil {
		return nil, nil
	}
	return &project, nil
}

func (r *projectRepo) GetByProjectIndex(ctx context.Context, tx *gorm.DB, projectIndex int) (*types.Project, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var project types.Project
	err := transaction.WithContext(ctx).
		Preload("Farm").
		Preload("Plant").
		Preload("Seed").
		Where("project_index = ?", projectIndex).
		Limit(1).
		Find(&project).Error
	if err != nil {
		return nil, err
	}
	if project.ID == uuid.Nil {
		return nil, nil
	}
	return &project, nil
}

func (r *projectRepo) ListByFarm(ctx context.Context, tx *gorm.DB, farmID uuid.UUID, limit, offset int) ([]*types.Project, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Project
	if farmID == uuid.Nil {
		return results, nil
	}
	q := transaction.WithContext(ctx).
		Where("farm_id = ?", farmID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *projectRepo) SaveSubResources(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, columns map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if projectID == uuid.Nil || len(columns) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.Project{}).
		Where("id = ?", projectID).
		Updates(withUpdatedAt(columns)).Error
}

func (r *projectRepo) UpdateInfo(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if projectID == uuid.Nil {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.Project{}).
		Where("id = ?", projectID).
		Updates(withUpdatedAt(updates)).Error
}

// withUpdatedAt returns a copy so the caller's map is never mutated.
func withUpdatedAt(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	if _, ok := out["updated_at"]; !ok {
		out["updated_at"] = time.Now()
	}
	return out
}

func (r *projectRepo) SoftDelete(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if projectID == uuid.Nil {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("id = ?", projectID).
		Delete(&types.Project{}).Error
}
