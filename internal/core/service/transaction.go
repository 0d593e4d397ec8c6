package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/DanielPopoola/vpos-gateway/internal/core/domain"
	"github.com/DanielPopoola/vpos-gateway/internal/core/ports"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionService drives a transaction from creation to its single
// terminal outcome.
type TransactionService struct {
	repo      ports.TransactionRepository
	gateway   ports.GatewayPort
	publisher ports.EventPublisher
	mode      domain.Mode
	logger    *slog.Logger
}

func NewTransactionService(
	repo ports.TransactionRepository,
	gateway ports.GatewayPort,
	publisher ports.EventPublisher,
	mode domain.Mode,
	logger *slog.Logger,
) *TransactionService {
	return &TransactionService{
		repo:      repo,
		gateway:   gateway,
		publisher: publisher,
		mode:      mode,
		logger:    logger.With("component", "transaction_service"),
	}
}

// CreatePayment validates and stores a new, unrequested payment.
func (s *TransactionService) CreatePayment(ctx context.Context, mobile string, amount decimal.Decimal) (*domain.Transaction, error) {
	t, err := domain.NewPayment(mobile, amount)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to store payment: %w", err)
	}
	return t, nil
}

// CreateRefund stores a refund of parentID. The parent row is locked so two
// concurrent refunds of the same payment cannot both pass the checks.
func (s *TransactionService) CreateRefund(ctx context.Context, parentID uuid.UUID) (*domain.Transaction, error) {
	var refund *domain.Transaction
	err := s.repo.WithTx(ctx, func(txRepo ports.TransactionRepository) error {
		parent, err := txRepo.FindByIDForUpdate(ctx, parentID)
		if err != nil {
			if domain.IsErrorCode(err, domain.ErrCodeTransactionNotFound) {
				return domain.NewInvalidParentError(fmt.Sprintf("parent transaction %s does not exist", parentID))
			}
			return err
		}

		existing, err := txRepo.FindRefundOf(ctx, parentID)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.NewDuplicateRefundError(parentID.String())
		}

		r, err := domain.NewRefund(parent, s.mode)
		if err != nil {
			return err
		}
		if err := txRepo.Create(ctx, r); err != nil {
			return err
		}
		refund = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refund, nil
}

func (s *TransactionService) FindByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	return s.repo.FindByID(ctx, id)
}

// Submit sends t to vPOS. It returns false without calling vPOS when t was
// already requested. A 202 without a location breaks the vPOS contract and
// is returned as CONTRACT_VIOLATION with t left unrequested.
func (s *TransactionService) Submit(ctx context.Context, t *domain.Transaction, delivery domain.DeliveryMode) (bool, error) {
	if t.Requested {
		return false, nil
	}

	req := ports.SubmitRequest{
		Type:     t.Type,
		Mobile:   t.Mobile,
		Amount:   t.Amount,
		Delivery: delivery,
	}
	if t.IsRefund() {
		handle, err := s.parentHandle(ctx, t)
		if err != nil {
			return false, err
		}
		req.ParentHandle = handle
	}

	location, err := s.gateway.Submit(ctx, req, t.IdempotencyKey())
	if err != nil {
		submissionsCounter.WithLabelValues(string(t.Type), "error").Inc()
		return false, fmt.Errorf("failed to submit transaction %s: %w: %w", t.ID, ports.ErrGatewayUnavailable, err)
	}
	if location == "" {
		contractViolationsCounter.Inc()
		submissionsCounter.WithLabelValues(string(t.Type), "error").Inc()
		s.logger.Error("vPOS accepted no request for transaction",
			"transaction_id", t.ID,
			"type", t.Type,
		)
		return false, domain.NewContractViolationError(t.ID.String())
	}

	handle := domain.HandleFromLocation(location)
	won, err := s.repo.MarkRequested(ctx, t.ID, handle, location)
	if err != nil {
		return false, fmt.Errorf("failed to record tracking handle: %w", err)
	}
	if !won {
		submissionsCounter.WithLabelValues(string(t.Type), "duplicate").Inc()
		s.refresh(ctx, t)
		return false, nil
	}

	t.MarkRequested(location)
	submissionsCounter.WithLabelValues(string(t.Type), "requested").Inc()
	s.logger.Info("transaction submitted",
		"transaction_id", t.ID,
		"type", t.Type,
		"tracking_handle", handle,
		"delivery", delivery,
	)
	return true, nil
}

// CheckAndApply asks vPOS for the outcome of t and stores it when terminal.
// A nil outcome with a nil error means vPOS has no result yet.
func (s *TransactionService) CheckAndApply(ctx context.Context, t *domain.Transaction, blockUntilDone bool) (*domain.Outcome, error) {
	if t.IsCompleted() {
		return t.Outcome, nil
	}
	if !t.Requested || t.TrackingHandle == nil {
		return nil, domain.NewNotRequestedError(t.ID.String())
	}

	result, err := s.gateway.CheckStatus(ctx, *t.TrackingHandle, blockUntilDone)
	if err != nil {
		return nil, fmt.Errorf("failed to check transaction %s: %w: %w", t.ID, ports.ErrGatewayUnavailable, err)
	}
	if !result.IsTerminal() {
		return nil, nil
	}

	if _, err := s.apply(ctx, t, result, domain.SourcePoll); err != nil {
		return nil, err
	}
	return t.Outcome, nil
}

// ApplyExternalConfirmation stores an outcome pushed by vPOS. It reports
// false when t already had an outcome, including when a concurrent poll
// stored one first.
func (s *TransactionService) ApplyExternalConfirmation(ctx context.Context, t *domain.Transaction, result *domain.GatewayResult) (bool, error) {
	if t.IsCompleted() {
		return false, nil
	}
	if !result.IsTerminal() {
		return false, domain.NewValidationError("confirmation does not carry a terminal status")
	}
	return s.apply(ctx, t, result, domain.SourceWebhook)
}

// apply is the only path that writes an outcome. The storage compare-and-set
// decides the winner, and only the winner publishes.
func (s *TransactionService) apply(ctx context.Context, t *domain.Transaction, result *domain.GatewayResult, source domain.ConfirmationSource) (bool, error) {
	if t.IsCompleted() {
		return false, nil
	}

	outcome := result.Outcome()
	won, err := s.repo.SetOutcome(ctx, t.ID, outcome)
	if err != nil {
		return false, fmt.Errorf("failed to store outcome: %w", err)
	}
	if !won {
		duplicateConfirmationsCounter.WithLabelValues(string(source)).Inc()
		s.refresh(ctx, t)
		return false, nil
	}

	t.Complete(outcome)
	outcomesAppliedCounter.WithLabelValues(string(t.Type), string(outcome.Status), string(source)).Inc()
	s.logger.Info("transaction completed",
		"transaction_id", t.ID,
		"status", outcome.Status,
		"status_code", outcome.StatusCode,
		"source", source,
	)

	// the outcome is stored; a failed publish must not undo it
	event := domain.NewTransactionCompleted(t, source)
	if err := s.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Error("failed to publish completion event",
			"transaction_id", t.ID,
			"error", err,
		)
	}
	return true, nil
}

func (s *TransactionService) parentHandle(ctx context.Context, t *domain.Transaction) (string, error) {
	if t.ParentID == nil {
		return "", domain.NewInvalidParentError("refund has no parent transaction")
	}
	parent, err := s.repo.FindByID(ctx, *t.ParentID)
	if err != nil {
		return "", err
	}
	if parent.TrackingHandle == nil {
		return "", domain.NewInvalidParentError(fmt.Sprintf("parent transaction %s was never submitted", parent.ID))
	}
	return *parent.TrackingHandle, nil
}

// refresh reloads t after losing a compare-and-set so callers see the stored state.
func (s *TransactionService) refresh(ctx context.Context, t *domain.Transaction) {
	stored, err := s.repo.FindByID(ctx, t.ID)
	if err != nil {
		s.logger.Warn("failed to reload transaction", "transaction_id", t.ID, "error", err)
		return
	}
	*t = *stored
}
