package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/evalprd/evalprd-api/internal/dto"
	"github.com/evalprd/evalprd-api/internal/models"
	"github.com/evalprd/evalprd-api/internal/repository"
	"github.com/evalprd/evalprd-api/pkg/events"
)

var (
	// ErrEvaluationNotFound signals a missing record.
	ErrEvaluationNotFound = errors.New("evaluation not found")
	// ErrOwnership signals an access attempt by a non-owner.
	ErrOwnership = errors.New("evaluation belongs to another user")
	// ErrPaymentRequired signals a save attempt without settled payment.
	ErrPaymentRequired = errors.New("payment required before saving")
)

// EvaluationService owns the saved-evaluation lifecycle. Raw PRD text never
// reaches storage; records carry only its SHA-256 fingerprint.
type EvaluationService interface {
	Save(ctx context.Context, ownerID string, req dto.SaveEvaluationRequest) (dto.EvaluationResponse, error)
	List(ctx context.Context, ownerID string) ([]dto.EvaluationSummary, error)
	Get(ctx context.Context, ownerID string, id uint) (dto.EvaluationResponse, error)
	Delete(ctx context.Context, ownerID string, id uint) error
}

type evaluationService struct {
	evaluations repository.EvaluationRepository
	publisher   *events.Publisher
	logger      zerolog.Logger
}

// NewEvaluationService constructs the evaluation service.
func NewEvaluationService(evaluations repository.EvaluationRepository, publisher *events.Publisher, logger zerolog.Logger) EvaluationService {
	return &evaluationService{
		evaluations: evaluations,
		publisher:   publisher,
		logger:      logger.With().Str("component", "evaluation_service").Logger(),
	}
}

// Fingerprint returns the hex SHA-256 of the normalized document text.
func Fingerprint(prdText string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(prdText)))
	return hex.EncodeToString(sum[:])
}

func (s *evaluationService) Save(ctx context.Context, ownerID string, req dto.SaveEvaluationRequest) (dto.EvaluationResponse, error) {
	if !req.IsPaid {
		return dto.EvaluationResponse{}, ErrPaymentRequired
	}

	fingerprint := Fingerprint(req.PRDText)

	existing, err := s.evaluations.FindByOwnerAndFingerprint(ctx, ownerID, fingerprint)
	if err == nil {
		s.logger.Info().Str("user_id", ownerID).Str("fingerprint", fingerprint).Msg("duplicate save, returning existing evaluation")
		return toEvaluationResponse(existing), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.EvaluationResponse{}, err
	}

	evaluation := models.Evaluation{
		OwnerID:        ownerID,
		PRDTitle:       req.PRDTitle,
		PRDFingerprint: fingerprint,
		BinaryScore:    datatypes.JSON(req.BinaryScore),
		FixPlan:        datatypes.JSON(req.FixPlan),
		AgentTasks:     datatypes.JSON(req.AgentTasks),
		Paid:           true,
	}
	if err := s.evaluations.Create(ctx, &evaluation); err != nil {
		return dto.EvaluationResponse{}, err
	}

	s.publisher.Publish("evaluation.saved", map[string]any{
		"evaluation_id": evaluation.ID,
		"owner_id":      ownerID,
	})

	return toEvaluationResponse(evaluation), nil
}

func (s *evaluationService) List(ctx context.Context, ownerID string) ([]dto.EvaluationSummary, error) {
	evaluations, err := s.evaluations.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	summaries := make([]dto.EvaluationSummary, 0, len(evaluations))
	for _, evaluation := range evaluations {
		summaries = append(summaries, dto.EvaluationSummary{
			ID:          evaluation.ID,
			PRDTitle:    evaluation.PRDTitle,
			Fingerprint: evaluation.PRDFingerprint,
			CreatedAt:   evaluation.CreatedAt,
		})
	}
	return summaries, nil
}

func (s *evaluationService) Get(ctx context.Context, ownerID string, id uint) (dto.EvaluationResponse, error) {
	evaluation, err := s.fetchOwned(ctx, ownerID, id)
	if err != nil {
		return dto.EvaluationResponse{}, err
	}
	return toEvaluationResponse(evaluation), nil
}

func (s *evaluationService) Delete(ctx context.Context, ownerID string, id uint) error {
	evaluation, err := s.fetchOwned(ctx, ownerID, id)
	if err != nil {
		return err
	}
	return s.evaluations.Delete(ctx, evaluation.ID)
}

func (s *evaluationService) fetchOwned(ctx context.Context, ownerID string, id uint) (models.Evaluation, error) {
	evaluation, err := s.evaluations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Evaluation{}, ErrEvaluationNotFound
		}
		return models.Evaluation{}, err
	}
	if evaluation.OwnerID != ownerID {
		return models.Evaluation{}, ErrOwnership
	}
	return evaluation, nil
}

func toEvaluationResponse(evaluation models.Evaluation) dto.EvaluationResponse {
	return dto.EvaluationResponse{
		ID:          evaluation.ID,
		PRDTitle:    evaluation.PRDTitle,
		Fingerprint: evaluation.PRDFingerprint,
		BinaryScore: []byte(evaluation.BinaryScore),
		FixPlan:     []byte(evaluation.FixPlan),
		AgentTasks:  []byte(evaluation.AgentTasks),
		CreatedAt:   evaluation.CreatedAt,
	}
}
