package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/evalprd/evalprd-api/internal/models"
)

// StagedEvaluationRepository holds evaluations awaiting payment settlement.
type StagedEvaluationRepository interface {
	Create(ctx context.Context, staged *models.StagedEvaluation) error
	GetByID(ctx context.Context, id uint) (models.StagedEvaluation, error)
	Delete(ctx context.Context, id uint) error
}

type stagedEvaluationRepository struct {
	db *gorm.DB
}

// NewStagedEvaluationRepository instantiates the repository.
func NewStagedEvaluationRepository(db *gorm.DB) StagedEvaluationRepository {
	return &stagedEvaluationRepository{db: db}
}

func (r *stagedEvaluationRepository) Create(ctx context.Context, staged *models.StagedEvaluation) error {
	return r.db.WithContext(ctx).Create(staged).Error
}

func (r *stagedEvaluationRepository) GetByID(ctx context.Context, id uint) (models.StagedEvaluation, error) {
	var staged models.StagedEvaluation
	if err := r.db.WithContext(ctx).First(&staged, id).Error; err != nil {
		return models.StagedEvaluation{}, err
	}
	return staged, nil
}

func (r *stagedEvaluationRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.StagedEvaluation{}, id).Error
}
