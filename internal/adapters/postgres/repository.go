package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DanielPopoola/vpos-gateway/internal/core/domain"
	"github.com/DanielPopoola/vpos-gateway/internal/core/ports"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const selectColumns = `
	SELECT id, type, mobile, amount::text, parent_id,
		tracking_handle, location, requested, checked_at,
		outcome_status, outcome_code, outcome_payload,
		created_at, updated_at
	FROM transactions`

type TransactionRepository struct {
	pool *pgxpool.Pool
	q    Executor
}

func NewTransactionRepository(db *DB) *TransactionRepository {
	return &TransactionRepository{
		pool: db.Pool,
		q:    db.Pool,
	}
}

var _ ports.TransactionRepository = (*TransactionRepository)(nil)

// Create saves a new transaction to the database
func (r *TransactionRepository) Create(ctx context.Context, t *domain.Transaction) error {
	query := `INSERT INTO transactions (
				id, type, mobile, amount, parent_id, requested, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.q.Exec(ctx, query,
		t.ID,
		t.Type,
		t.Mobile,
		t.Amount.StringFixed(2),
		t.ParentID,
		t.Requested,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) && t.ParentID != nil {
			return domain.NewDuplicateRefundError(t.ParentID.String())
		}
		if IsForeignKeyViolation(err) && t.ParentID != nil {
			return domain.NewInvalidParentError(fmt.Sprintf("parent transaction %s does not exist", t.ParentID))
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (r *TransactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	row := r.q.QueryRow(ctx, selectColumns+` WHERE id = $1`, id)
	return scanTransaction(row, id.String())
}

// FindByIDForUpdate retrieves a transaction and locks the row until the surrounding transaction ends.
func (r *TransactionRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	row := r.q.QueryRow(ctx, selectColumns+` WHERE id = $1 FOR UPDATE`, id)
	return scanTransaction(row, id.String())
}

// FindRefundOf returns nil, nil when the payment has no refund.
func (r *TransactionRepository) FindRefundOf(ctx context.Context, parentID uuid.UUID) (*domain.Transaction, error) {
	row := r.q.QueryRow(ctx, selectColumns+` WHERE parent_id = $1`, parentID)
	t, err := scanTransaction(row, parentID.String())
	if domain.IsErrorCode(err, domain.ErrCodeTransactionNotFound) {
		return nil, nil
	}
	return t, err
}

func (r *TransactionRepository) MarkRequested(ctx context.Context, id uuid.UUID, handle, location string) (bool, error) {
	query := `
			UPDATE transactions
			SET tracking_handle = $2, location = $3, requested = TRUE, updated_at = NOW()
			WHERE id = $1 AND requested = FALSE
	`

	cmdTag, err := r.q.Exec(ctx, query, id, handle, location)
	if err != nil {
		return false, fmt.Errorf("failed to mark transaction requested: %w", err)
	}
	if cmdTag.RowsAffected() == 1 {
		return true, nil
	}
	return false, r.ensureExists(ctx, id)
}

func (r *TransactionRepository) SetOutcome(ctx context.Context, id uuid.UUID, outcome *domain.Outcome) (bool, error) {
	query := `
			UPDATE transactions
			SET outcome_status = $2, outcome_code = $3, outcome_payload = $4, updated_at = NOW()
			WHERE id = $1 AND outcome_status IS NULL
	`

	var code *string
	if outcome.StatusCode != "" {
		code = &outcome.StatusCode
	}
	var payload []byte
	if len(outcome.Payload) > 0 {
		payload = outcome.Payload
	}

	cmdTag, err := r.q.Exec(ctx, query, id, outcome.Status, code, payload)
	if err != nil {
		return false, fmt.Errorf("failed to set transaction outcome: %w", err)
	}
	if cmdTag.RowsAffected() == 1 {
		return true, nil
	}
	return false, r.ensureExists(ctx, id)
}

// MarkChecked stamps checked_at on a record still waiting for its outcome.
// A record that completed in the meantime is left alone.
func (r *TransactionRepository) MarkChecked(ctx context.Context, id uuid.UUID) error {
	query := `
			UPDATE transactions
			SET checked_at = NOW()
			WHERE id = $1 AND outcome_status IS NULL
	`

	cmdTag, err := r.q.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark transaction checked: %w", err)
	}
	if cmdTag.RowsAffected() == 1 {
		return nil
	}
	return r.ensureExists(ctx, id)
}

func (r *TransactionRepository) FindUnresolved(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.Transaction, error) {
	cutoff := time.Now().Add(-olderThan)

	query := selectColumns + `
		WHERE requested AND outcome_status IS NULL
			AND COALESCE(checked_at, updated_at) <= $1
		ORDER BY COALESCE(checked_at, updated_at) ASC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("query unresolved transactions: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Transaction, error) {
		return scanTransaction(row, "")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan unresolved transactions: %w", err)
	}
	return results, nil
}

// WithTx executes a function within a database transaction
func (r *TransactionRepository) WithTx(ctx context.Context, fn func(ports.TransactionRepository) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// Defer rollback in case of panic or error (if commit isn't reached)
	defer tx.Rollback(ctx)

	repoWithTx := &TransactionRepository{
		pool: r.pool,
		q:    tx,
	}

	if err := fn(repoWithTx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *TransactionRepository) ensureExists(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM transactions WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check transaction: %w", err)
	}
	if !exists {
		return domain.NewTransactionNotFoundError(id.String())
	}
	return nil
}

// scanTransaction scans a row selected with selectColumns. ref names the
// lookup key in the not-found error.
func scanTransaction(row pgx.Row, ref string) (*domain.Transaction, error) {
	var (
		t             domain.Transaction
		amount        string
		outcomeStatus *string
		outcomeCode   *string
		payload       []byte
	)
	err := row.Scan(
		&t.ID,
		&t.Type,
		&t.Mobile,
		&amount,
		&t.ParentID,
		&t.TrackingHandle,
		&t.Location,
		&t.Requested,
		&t.CheckedAt,
		&outcomeStatus,
		&outcomeCode,
		&payload,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewTransactionNotFoundError(ref)
		}
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	t.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q on transaction %s: %w", amount, t.ID, err)
	}

	if outcomeStatus != nil {
		t.Outcome = &domain.Outcome{
			Status:  domain.OutcomeStatus(*outcomeStatus),
			Payload: payload,
		}
		if outcomeCode != nil {
			t.Outcome.StatusCode = *outcomeCode
		}
	}
	return &t, nil
}
