package service

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/evalprd/evalprd-api/internal/dto"
	"github.com/evalprd/evalprd-api/internal/models"
	"github.com/evalprd/evalprd-api/internal/repository"
	"github.com/evalprd/evalprd-api/pkg/events"
)

// EvaluationPriceCents is the flat price for persisting an evaluation.
const EvaluationPriceCents = 99

var (
	// ErrInvalidSignature signals a webhook whose signature does not verify.
	ErrInvalidSignature = errors.New("webhook signature verification failed")
	// ErrPaymentNotFound signals an unknown order id.
	ErrPaymentNotFound = errors.New("payment not found")
)

// CheckoutClient abstracts the Snap transaction call so tests can stub the
// gateway.
type CheckoutClient interface {
	CreateTransaction(req *snap.Request) (*snap.Response, *midtrans.Error)
}

// PaymentService stages evaluation results at checkout and promotes them to
// saved evaluations when the gateway confirms settlement.
type PaymentService interface {
	CreateCheckout(ctx context.Context, ownerID string, req dto.CreateCheckoutRequest) (dto.CheckoutResponse, error)
	HandleNotification(ctx context.Context, notification dto.PaymentNotification) error
}

type paymentService struct {
	payments    repository.PaymentRepository
	staged      repository.StagedEvaluationRepository
	evaluations repository.EvaluationRepository
	checkout    CheckoutClient
	publisher   *events.Publisher
	serverKey   string
	logger      zerolog.Logger
}

// NewPaymentService constructs the payment service.
func NewPaymentService(
	payments repository.PaymentRepository,
	staged repository.StagedEvaluationRepository,
	evaluations repository.EvaluationRepository,
	checkout CheckoutClient,
	publisher *events.Publisher,
	serverKey string,
	logger zerolog.Logger,
) PaymentService {
	return &paymentService{
		payments:    payments,
		staged:      staged,
		evaluations: evaluations,
		checkout:    checkout,
		publisher:   publisher,
		serverKey:   serverKey,
		logger:      logger.With().Str("component", "payment_service").Logger(),
	}
}

func (s *paymentService) CreateCheckout(ctx context.Context, ownerID string, req dto.CreateCheckoutRequest) (dto.CheckoutResponse, error) {
	stagedRecord := models.StagedEvaluation{
		OwnerID:        ownerID,
		PRDTitle:       req.PRDTitle,
		PRDFingerprint: Fingerprint(req.PRDText),
		BinaryScore:    datatypes.JSON(req.BinaryScore),
		FixPlan:        datatypes.JSON(req.FixPlan),
		AgentTasks:     datatypes.JSON(req.AgentTasks),
	}
	if err := s.staged.Create(ctx, &stagedRecord); err != nil {
		return dto.CheckoutResponse{}, err
	}

	orderID := uuid.NewString()
	payment := models.Payment{
		OwnerID:            ownerID,
		OrderID:            orderID,
		AmountCents:        EvaluationPriceCents,
		Currency:           "USD",
		Status:             models.PaymentStatusPending,
		StagedEvaluationID: stagedRecord.ID,
	}
	if err := s.payments.Create(ctx, &payment); err != nil {
		return dto.CheckoutResponse{}, err
	}

	snapResp, midErr := s.checkout.CreateTransaction(&snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  orderID,
			GrossAmt: EvaluationPriceCents,
		},
		CreditCard: &snap.CreditCardDetails{Secure: true},
	})
	if midErr != nil {
		return dto.CheckoutResponse{}, fmt.Errorf("checkout session: %s", midErr.GetMessage())
	}

	s.logger.Info().Str("user_id", ownerID).Str("order_id", orderID).Msg("checkout session created")

	return dto.CheckoutResponse{
		CheckoutURL: snapResp.RedirectURL,
		SessionID:   orderID,
	}, nil
}

// HandleNotification verifies the gateway signature before reading anything
// else from the payload. Signature = SHA512(order_id + status_code +
// gross_amount + server_key).
func (s *paymentService) HandleNotification(ctx context.Context, notification dto.PaymentNotification) error {
	input := notification.OrderID + notification.StatusCode + notification.GrossAmount + s.serverKey
	expected := fmt.Sprintf("%x", sha512.Sum512([]byte(input)))
	if subtle.ConstantTimeCompare([]byte(expected), []byte(notification.SignatureKey)) != 1 {
		s.logger.Warn().Str("order_id", notification.OrderID).Msg("webhook signature mismatch")
		return ErrInvalidSignature
	}

	settled := notification.TransactionStatus == "settlement" ||
		(notification.TransactionStatus == "capture" && notification.FraudStatus != "challenge")
	if !settled {
		s.logger.Info().
			Str("order_id", notification.OrderID).
			Str("transaction_status", notification.TransactionStatus).
			Msg("ignoring non-settlement notification")
		return nil
	}

	payment, err := s.payments.GetByOrderID(ctx, notification.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPaymentNotFound
		}
		return err
	}
	if payment.IsCompleted() {
		return nil
	}

	stagedRecord, err := s.staged.GetByID(ctx, payment.StagedEvaluationID)
	if err != nil {
		return err
	}

	// A repeat checkout for a document the owner already paid for settles
	// against the existing record instead of minting a duplicate.
	evaluation, err := s.evaluations.FindByOwnerAndFingerprint(ctx, stagedRecord.OwnerID, stagedRecord.PRDFingerprint)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		evaluation = models.Evaluation{
			OwnerID:        stagedRecord.OwnerID,
			PRDTitle:       stagedRecord.PRDTitle,
			PRDFingerprint: stagedRecord.PRDFingerprint,
			BinaryScore:    stagedRecord.BinaryScore,
			FixPlan:        stagedRecord.FixPlan,
			AgentTasks:     stagedRecord.AgentTasks,
			Paid:           true,
		}
		err = s.evaluations.Create(ctx, &evaluation)
	}
	if err != nil {
		return err
	}

	now := time.Now()
	payment.Status = models.PaymentStatusCompleted
	payment.CompletedAt = &now
	payment.EvaluationID = &evaluation.ID
	if err := s.payments.Update(ctx, &payment); err != nil {
		return err
	}

	if err := s.staged.Delete(ctx, stagedRecord.ID); err != nil {
		s.logger.Warn().Err(err).Uint("staged_id", stagedRecord.ID).Msg("failed to remove staged evaluation")
	}

	s.publisher.Publish("payment.completed", map[string]any{
		"order_id":      payment.OrderID,
		"owner_id":      payment.OwnerID,
		"evaluation_id": evaluation.ID,
	})

	s.logger.Info().
		Str("order_id", payment.OrderID).
		Uint("evaluation_id", evaluation.ID).
		Msg("payment settled, evaluation promoted")

	return nil
}
