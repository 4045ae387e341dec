package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/evalprd/evalprd-api/internal/models"
)

// EvaluationRepository defines data operations for saved evaluations.
type EvaluationRepository interface {
	Create(ctx context.Context, evaluation *models.Evaluation) error
	FindByOwnerAndFingerprint(ctx context.Context, ownerID, fingerprint string) (models.Evaluation, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Evaluation, error)
	GetByID(ctx context.Context, id uint) (models.Evaluation, error)
	Delete(ctx context.Context, id uint) error
}

type evaluationRepository struct {
	db *gorm.DB
}

// NewEvaluationRepository instantiates the repository.
func NewEvaluationRepository(db *gorm.DB) EvaluationRepository {
	return &evaluationRepository{db: db}
}

// Create inserts the evaluation, or loads the existing row when another
// request already saved the same owner and fingerprint. The unique index on
// (owner_id, prd_fingerprint) makes the insert race-safe.
func (r *evaluationRepository) Create(ctx context.Context, evaluation *models.Evaluation) error {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner_id"}, {Name: "prd_fingerprint"}},
			DoNothing: true,
		}).
		Create(evaluation)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		existing, err := r.FindByOwnerAndFingerprint(ctx, evaluation.OwnerID, evaluation.PRDFingerprint)
		if err != nil {
			return err
		}
		*evaluation = existing
	}
	return nil
}

func (r *evaluationRepository) FindByOwnerAndFingerprint(ctx context.Context, ownerID, fingerprint string) (models.Evaluation, error) {
	var evaluation models.Evaluation
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND prd_fingerprint = ?", ownerID, fingerprint).
		First(&evaluation).Error
	if err != nil {
		return models.Evaluation{}, err
	}
	return evaluation, nil
}

func (r *evaluationRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Evaluation, error) {
	var evaluations []models.Evaluation
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&evaluations).Error
	return evaluations, err
}

func (r *evaluationRepository) GetByID(ctx context.Context, id uint) (models.Evaluation, error) {
	var evaluation models.Evaluation
	if err := r.db.WithContext(ctx).First(&evaluation, id).Error; err != nil {
		return models.Evaluation{}, err
	}
	return evaluation, nil
}

func (r *evaluationRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Evaluation{}, id).Error
}
