package ports

import (
	"context"

	"github.com/DanielPopoola/vpos-gateway/internal/core/domain"
)

// EventPublisher dispatches completion events to whoever consumes them.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.TransactionCompleted) error
}
