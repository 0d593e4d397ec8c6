package ports

import (
	"context"
	"time"

	"github.com/DanielPopoola/vpos-gateway/internal/core/domain"
	"github.com/google/uuid"
)

// TransactionRepository persists transaction records. MarkRequested and
// SetOutcome are compare-and-set operations: they report false, without
// error, when the field was already written.
type TransactionRepository interface {
	Create(ctx context.Context, t *domain.Transaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	FindRefundOf(ctx context.Context, parentID uuid.UUID) (*domain.Transaction, error)

	MarkRequested(ctx context.Context, id uuid.UUID, handle, location string) (bool, error)
	SetOutcome(ctx context.Context, id uuid.UUID, outcome *domain.Outcome) (bool, error)

	// MarkChecked records that a status check for id came back without an
	// outcome. It is a no-op once the outcome is set.
	MarkChecked(ctx context.Context, id uuid.UUID) error

	// FindUnresolved returns requested records without an outcome whose last
	// update or check is more than olderThan ago, least recently seen first.
	FindUnresolved(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.Transaction, error)

	// WithTx executes a function within a database transaction.
	WithTx(ctx context.Context, fn func(TransactionRepository) error) error
}
