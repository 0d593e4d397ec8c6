package testhelpers

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/DanielPopoola/vpos-gateway/internal/core/domain"
	"github.com/DanielPopoola/vpos-gateway/internal/core/ports"
	"github.com/google/uuid"
)

// MemoryRepository is an in-memory ports.TransactionRepository with the same
// compare-and-set semantics as the real stores. Records are copied on the
// way in and out so callers never share state.
type MemoryRepository struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	txs  map[uuid.UUID]*domain.Transaction

	CreateFn        func(ctx context.Context, t *domain.Transaction) error
	FindByIDFn      func(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	MarkRequestedFn func(ctx context.Context, id uuid.UUID, handle, location string) (bool, error)
	SetOutcomeFn    func(ctx context.Context, id uuid.UUID, outcome *domain.Outcome) (bool, error)
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		txs: make(map[uuid.UUID]*domain.Transaction),
	}
}

// Put stores t as is, bypassing the Create checks.
func (m *MemoryRepository) Put(t *domain.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txs[t.ID] = Clone(t)
}

func (m *MemoryRepository) Create(ctx context.Context, t *domain.Transaction) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, t)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ParentID != nil {
		for _, existing := range m.txs {
			if existing.ParentID != nil && *existing.ParentID == *t.ParentID {
				return domain.NewDuplicateRefundError(t.ParentID.String())
			}
		}
	}
	m.txs[t.ID] = Clone(t)
	return nil
}

func (m *MemoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	if m.FindByIDFn != nil {
		return m.FindByIDFn(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.txs[id]; ok {
		return Clone(t), nil
	}
	return nil, domain.NewTransactionNotFoundError(id.String())
}

func (m *MemoryRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	return m.FindByID(ctx, id)
}

func (m *MemoryRepository) FindRefundOf(ctx context.Context, parentID uuid.UUID) (*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.txs {
		if t.ParentID != nil && *t.ParentID == parentID {
			return Clone(t), nil
		}
	}
	return nil, nil
}

func (m *MemoryRepository) MarkRequested(ctx context.Context, id uuid.UUID, handle, location string) (bool, error) {
	if m.MarkRequestedFn != nil {
		return m.MarkRequestedFn(ctx, id, handle, location)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.txs[id]
	if !ok {
		return false, domain.NewTransactionNotFoundError(id.String())
	}
	if t.Requested {
		return false, nil
	}
	t.TrackingHandle = &handle
	t.Location = &location
	t.Requested = true
	t.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (m *MemoryRepository) SetOutcome(ctx context.Context, id uuid.UUID, outcome *domain.Outcome) (bool, error) {
	if m.SetOutcomeFn != nil {
		return m.SetOutcomeFn(ctx, id, outcome)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.txs[id]
	if !ok {
		return false, domain.NewTransactionNotFoundError(id.String())
	}
	if t.Outcome != nil {
		return false, nil
	}
	o := *outcome
	t.Outcome = &o
	t.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (m *MemoryRepository) MarkChecked(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.txs[id]
	if !ok {
		return domain.NewTransactionNotFoundError(id.String())
	}
	if t.Outcome == nil {
		now := time.Now().UTC()
		t.CheckedAt = &now
	}
	return nil
}

func (m *MemoryRepository) FindUnresolved(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cutoff := time.Now().UTC().Add(-olderThan)
	var out []*domain.Transaction
	for _, t := range m.txs {
		if t.Requested && t.Outcome == nil && !t.LastSeen().After(cutoff) {
			out = append(out, Clone(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastSeen().Before(out[j].LastSeen()) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryRepository) WithTx(ctx context.Context, fn func(repo ports.TransactionRepository) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return fn(m)
}

// Clone deep-copies a transaction.
func Clone(t *domain.Transaction) *domain.Transaction {
	c := *t
	if t.ParentID != nil {
		id := *t.ParentID
		c.ParentID = &id
	}
	if t.TrackingHandle != nil {
		h := *t.TrackingHandle
		c.TrackingHandle = &h
	}
	if t.Location != nil {
		l := *t.Location
		c.Location = &l
	}
	if t.Outcome != nil {
		o := *t.Outcome
		c.Outcome = &o
	}
	if t.CheckedAt != nil {
		at := *t.CheckedAt
		c.CheckedAt = &at
	}
	return &c
}
