// Package boltstore stores transactions in a single BoltDB file, for deployments
// without a PostgreSQL server.
//
// Bolt allows one read-write transaction at a time, so the compare-and-set
// operations run inside a single Update and cannot interleave.
package boltstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/DanielPopoola/vpos-gateway/internal/core/domain"
	"github.com/DanielPopoola/vpos-gateway/internal/core/ports"
	bolt "github.com/boltdb/bolt"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	transactionsBucket = []byte("transactions")
	refundsBucket      = []byte("refunds")
)

// Store implements ports.TransactionRepository on BoltDB. A Store created by
// WithTx runs every operation inside that one bolt transaction.
type Store struct {
	db *bolt.DB
	tx *bolt.Tx
}

var _ ports.TransactionRepository = (*Store)(nil)

// Open opens (or creates) the database file and its buckets.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt database %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{transactionsBucket, refundsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create bolt buckets: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database file is still open.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.View(func(tx *bolt.Tx) error { return nil })
}

// record is the stored form of a transaction.
type record struct {
	ID             uuid.UUID              `json:"id"`
	Type           domain.TransactionType `json:"type"`
	Mobile         string                 `json:"mobile"`
	Amount         string                 `json:"amount"`
	ParentID       *uuid.UUID             `json:"parent_id,omitempty"`
	TrackingHandle *string                `json:"tracking_handle,omitempty"`
	Location       *string                `json:"location,omitempty"`
	Requested      bool                   `json:"requested"`
	CheckedAt      *time.Time             `json:"checked_at,omitempty"`
	Outcome        *domain.Outcome        `json:"outcome,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

func toRecord(t *domain.Transaction) record {
	return record{
		ID:             t.ID,
		Type:           t.Type,
		Mobile:         t.Mobile,
		Amount:         t.Amount.StringFixed(2),
		ParentID:       t.ParentID,
		TrackingHandle: t.TrackingHandle,
		Location:       t.Location,
		Requested:      t.Requested,
		CheckedAt:      t.CheckedAt,
		Outcome:        t.Outcome,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

func (r record) transaction() (*domain.Transaction, error) {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q on transaction %s: %w", r.Amount, r.ID, err)
	}
	return &domain.Transaction{
		ID:             r.ID,
		Type:           r.Type,
		Mobile:         r.Mobile,
		Amount:         amount,
		ParentID:       r.ParentID,
		TrackingHandle: r.TrackingHandle,
		Location:       r.Location,
		Requested:      r.Requested,
		CheckedAt:      r.CheckedAt,
		Outcome:        r.Outcome,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}, nil
}

func (s *Store) view(fn func(tx *bolt.Tx) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	return s.db.View(fn)
}

func (s *Store) update(fn func(tx *bolt.Tx) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	return s.db.Update(fn)
}

func (s *Store) Create(ctx context.Context, t *domain.Transaction) error {
	return s.update(func(tx *bolt.Tx) error {
		txs := tx.Bucket(transactionsBucket)
		key := t.ID[:]
		if txs.Get(key) != nil {
			return fmt.Errorf("transaction %s already exists", t.ID)
		}

		if t.ParentID != nil {
			if txs.Get(t.ParentID[:]) == nil {
				return domain.NewInvalidParentError(fmt.Sprintf("parent transaction %s does not exist", t.ParentID))
			}
			refunds := tx.Bucket(refundsBucket)
			if refunds.Get(t.ParentID[:]) != nil {
				return domain.NewDuplicateRefundError(t.ParentID.String())
			}
			if err := refunds.Put(t.ParentID[:], key); err != nil {
				return err
			}
		}

		return put(tx, toRecord(t))
	})
}

func (s *Store) FindByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	var r record
	err := s.view(func(tx *bolt.Tx) error {
		var err error
		r, err = get(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r.transaction()
}

// FindByIDForUpdate is FindByID; bolt write transactions are already exclusive.
func (s *Store) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	return s.FindByID(ctx, id)
}

func (s *Store) FindRefundOf(ctx context.Context, parentID uuid.UUID) (*domain.Transaction, error) {
	var (
		r     record
		found bool
	)
	err := s.view(func(tx *bolt.Tx) error {
		v := tx.Bucket(refundsBucket).Get(parentID[:])
		if v == nil {
			return nil
		}
		id, err := uuid.FromBytes(v)
		if err != nil {
			return err
		}
		r, err = get(tx, id)
		found = err == nil
		return err
	})
	if err != nil || !found {
		return nil, err
	}
	return r.transaction()
}

func (s *Store) MarkRequested(ctx context.Context, id uuid.UUID, handle, location string) (bool, error) {
	won := false
	err := s.update(func(tx *bolt.Tx) error {
		r, err := get(tx, id)
		if err != nil {
			return err
		}
		if r.Requested {
			return nil
		}
		r.TrackingHandle = &handle
		r.Location = &location
		r.Requested = true
		r.UpdatedAt = time.Now().UTC()
		won = true
		return put(tx, r)
	})
	return won, err
}

func (s *Store) SetOutcome(ctx context.Context, id uuid.UUID, outcome *domain.Outcome) (bool, error) {
	won := false
	err := s.update(func(tx *bolt.Tx) error {
		r, err := get(tx, id)
		if err != nil {
			return err
		}
		if r.Outcome != nil {
			return nil
		}
		r.Outcome = outcome
		r.UpdatedAt = time.Now().UTC()
		won = true
		return put(tx, r)
	})
	return won, err
}

func (s *Store) MarkChecked(ctx context.Context, id uuid.UUID) error {
	return s.update(func(tx *bolt.Tx) error {
		r, err := get(tx, id)
		if err != nil {
			return err
		}
		if r.Outcome != nil {
			return nil
		}
		now := time.Now().UTC()
		r.CheckedAt = &now
		return put(tx, r)
	})
}

func (s *Store) FindUnresolved(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.Transaction, error) {
	cutoff := time.Now().UTC().Add(-olderThan)

	var results []*domain.Transaction
	err := s.view(func(tx *bolt.Tx) error {
		return tx.Bucket(transactionsBucket).ForEach(func(k, v []byte) error {
			var r record
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			if !r.Requested || r.Outcome != nil {
				return nil
			}
			t, err := r.transaction()
			if err != nil {
				return err
			}
			if !t.LastSeen().After(cutoff) {
				results = append(results, t)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("scan unresolved transactions: %w", err)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].LastSeen().Before(results[j].LastSeen()) })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// WithTx runs fn inside one read-write bolt transaction. Returning an error
// from fn rolls everything back.
func (s *Store) WithTx(ctx context.Context, fn func(ports.TransactionRepository) error) error {
	if s.tx != nil {
		return fn(s)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(&Store{db: s.db, tx: tx})
	})
}

func get(tx *bolt.Tx, id uuid.UUID) (record, error) {
	var r record
	v := tx.Bucket(transactionsBucket).Get(id[:])
	if v == nil {
		return r, domain.NewTransactionNotFoundError(id.String())
	}
	if err := json.Unmarshal(v, &r); err != nil {
		return r, fmt.Errorf("decode transaction %s: %w", id, err)
	}
	return r, nil
}

func put(tx *bolt.Tx, r record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return tx.Bucket(transactionsBucket).Put(r.ID[:], data)
}
