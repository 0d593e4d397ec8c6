package testhelpers

import (
	"context"
	"sync"

	"github.com/DanielPopoola/vpos-gateway/internal/core/domain"
)

// RecordingPublisher keeps every published event.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []domain.TransactionCompleted

	Err error
}

func (p *RecordingPublisher) Publish(ctx context.Context, event domain.TransactionCompleted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.Err
}

func (p *RecordingPublisher) Events() []domain.TransactionCompleted {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.TransactionCompleted(nil), p.events...)
}
