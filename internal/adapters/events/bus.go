// Package events delivers transaction completion events to subscribers.
package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/DanielPopoola/vpos-gateway/internal/core/domain"
	"github.com/DanielPopoola/vpos-gateway/internal/core/ports"
)

// Handler consumes one completion event.
type Handler func(ctx context.Context, event domain.TransactionCompleted) error

// Bus is an in-process ports.EventPublisher. Publish calls every subscriber
// in subscription order and joins their errors.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
	logger   *slog.Logger
}

var _ ports.EventPublisher = (*Bus)(nil)

func NewBus(logger *slog.Logger) *Bus {
	return &Bus{logger: logger.With("component", "event_bus")}
}

func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

func (b *Bus) Publish(ctx context.Context, event domain.TransactionCompleted) error {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers...)
	b.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if err := h(ctx, event); err != nil {
			b.logger.Warn("event handler failed",
				"transaction_id", event.TransactionID,
				"error", err,
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogHandler records every completion at info level.
func LogHandler(logger *slog.Logger) Handler {
	return func(ctx context.Context, event domain.TransactionCompleted) error {
		logger.InfoContext(ctx, "transaction completed event",
			"transaction_id", event.TransactionID,
			"type", event.Type,
			"status", event.Status,
			"status_code", event.StatusCode,
			"source", event.Source,
		)
		return nil
	}
}
