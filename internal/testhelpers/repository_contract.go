package testhelpers

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DanielPopoola/vpos-gateway/internal/core/domain"
	"github.com/DanielPopoola/vpos-gateway/internal/core/ports"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunRepositoryContract checks the behavior every TransactionRepository must
// share. newRepo must return an empty store.
func RunRepositoryContract(t *testing.T, newRepo func(t *testing.T) ports.TransactionRepository) {
	ctx := context.Background()

	t.Run("create and find", func(t *testing.T) {
		repo := newRepo(t)
		p := NewPayment(t)

		require.NoError(t, repo.Create(ctx, p))
		found, err := repo.FindByID(ctx, p.ID)

		require.NoError(t, err)
		assert.Equal(t, p.ID, found.ID)
		assert.Equal(t, domain.TypePayment, found.Type)
		assert.Equal(t, p.Mobile, found.Mobile)
		assert.True(t, p.Amount.Equal(found.Amount), found.Amount.String())
		assert.Nil(t, found.ParentID)
		assert.False(t, found.Requested)
		assert.Nil(t, found.Outcome)
	})

	t.Run("find unknown", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.FindByID(ctx, uuid.New())

		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeTransactionNotFound))
	})

	t.Run("mark requested once", func(t *testing.T) {
		repo := newRepo(t)
		p := NewPayment(t)
		require.NoError(t, repo.Create(ctx, p))

		ok, err := repo.MarkRequested(ctx, p.ID, "h1", "/requests/h1")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.MarkRequested(ctx, p.ID, "h2", "/requests/h2")
		require.NoError(t, err)
		assert.False(t, ok)

		found, err := repo.FindByID(ctx, p.ID)
		require.NoError(t, err)
		assert.True(t, found.Requested)
		require.NotNil(t, found.TrackingHandle)
		assert.Equal(t, "h1", *found.TrackingHandle)
		assert.Equal(t, "/requests/h1", *found.Location)
	})

	t.Run("mark requested unknown", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.MarkRequested(ctx, uuid.New(), "h", "/requests/h")

		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeTransactionNotFound))
	})

	t.Run("set outcome once", func(t *testing.T) {
		repo := newRepo(t)
		p := NewPayment(t)
		require.NoError(t, repo.Create(ctx, p))

		ok, err := repo.SetOutcome(ctx, p.ID, &domain.Outcome{
			Status:     domain.OutcomeRejected,
			StatusCode: "2001",
			Payload:    []byte(`{"id": "h1", "status": "rejected"}`),
		})
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.SetOutcome(ctx, p.ID, &domain.Outcome{Status: domain.OutcomeAccepted})
		require.NoError(t, err)
		assert.False(t, ok)

		found, err := repo.FindByID(ctx, p.ID)
		require.NoError(t, err)
		require.NotNil(t, found.Outcome)
		assert.Equal(t, domain.OutcomeRejected, found.Outcome.Status)
		assert.Equal(t, "2001", found.Outcome.StatusCode)
		assert.JSONEq(t, `{"id":"h1","status":"rejected"}`, string(found.Outcome.Payload))
	})

	t.Run("concurrent set outcome has one winner", func(t *testing.T) {
		repo := newRepo(t)
		p := NewPayment(t)
		require.NoError(t, repo.Create(ctx, p))

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := repo.SetOutcome(ctx, p.ID, &domain.Outcome{Status: domain.OutcomeAccepted})
				assert.NoError(t, err)
				if ok {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.EqualValues(t, 1, wins.Load())
	})

	t.Run("one refund per payment", func(t *testing.T) {
		repo := newRepo(t)
		parent := NewAcceptedPayment(t, "parent-h")
		require.NoError(t, repo.Create(ctx, parent))

		refund, err := domain.NewRefund(parent, domain.ModeProduction)
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, refund))

		found, err := repo.FindRefundOf(ctx, parent.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, refund.ID, found.ID)
		assert.Equal(t, parent.ID, *found.ParentID)

		second, err := domain.NewRefund(parent, domain.ModeProduction)
		require.NoError(t, err)
		err = repo.Create(ctx, second)
		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeDuplicateRefund))

		none, err := repo.FindRefundOf(ctx, refund.ID)
		require.NoError(t, err)
		assert.Nil(t, none)
	})

	t.Run("find unresolved", func(t *testing.T) {
		repo := newRepo(t)
		pending := NewPayment(t)
		done := NewPayment(t)
		fresh := NewPayment(t)
		for _, p := range []*domain.Transaction{pending, done, fresh} {
			require.NoError(t, repo.Create(ctx, p))
		}
		_, err := repo.MarkRequested(ctx, pending.ID, "pending", "/requests/pending")
		require.NoError(t, err)
		_, err = repo.MarkRequested(ctx, done.ID, "done", "/requests/done")
		require.NoError(t, err)
		_, err = repo.SetOutcome(ctx, done.ID, &domain.Outcome{Status: domain.OutcomeAccepted})
		require.NoError(t, err)

		unresolved, err := repo.FindUnresolved(ctx, 0, 10)
		require.NoError(t, err)
		require.Len(t, unresolved, 1)
		assert.Equal(t, pending.ID, unresolved[0].ID)

		unresolved, err = repo.FindUnresolved(ctx, time.Hour, 10)
		require.NoError(t, err)
		assert.Empty(t, unresolved)
	})

	t.Run("checked records go to the back of the queue", func(t *testing.T) {
		repo := newRepo(t)
		first := NewPayment(t)
		second := NewPayment(t)
		for _, p := range []*domain.Transaction{first, second} {
			require.NoError(t, repo.Create(ctx, p))
			_, err := repo.MarkRequested(ctx, p.ID, p.ID.String(), "/requests/"+p.ID.String())
			require.NoError(t, err)
		}

		unresolved, err := repo.FindUnresolved(ctx, 0, 1)
		require.NoError(t, err)
		require.Len(t, unresolved, 1)
		require.Equal(t, first.ID, unresolved[0].ID)

		require.NoError(t, repo.MarkChecked(ctx, first.ID))

		unresolved, err = repo.FindUnresolved(ctx, 0, 1)
		require.NoError(t, err)
		require.Len(t, unresolved, 1)
		assert.Equal(t, second.ID, unresolved[0].ID)

		found, err := repo.FindByID(ctx, first.ID)
		require.NoError(t, err)
		require.NotNil(t, found.CheckedAt)
		assert.Nil(t, found.Outcome)

		unresolved, err = repo.FindUnresolved(ctx, time.Hour, 10)
		require.NoError(t, err)
		assert.Empty(t, unresolved)
	})

	t.Run("mark checked leaves completed records alone", func(t *testing.T) {
		repo := newRepo(t)
		p := NewPayment(t)
		require.NoError(t, repo.Create(ctx, p))
		_, err := repo.SetOutcome(ctx, p.ID, &domain.Outcome{Status: domain.OutcomeAccepted})
		require.NoError(t, err)

		require.NoError(t, repo.MarkChecked(ctx, p.ID))

		found, err := repo.FindByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Nil(t, found.CheckedAt)

		err = repo.MarkChecked(ctx, uuid.New())
		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeTransactionNotFound))
	})

	t.Run("with tx commits and rolls back", func(t *testing.T) {
		repo := newRepo(t)
		committed := NewPayment(t)
		rolledBack := NewPayment(t)

		require.NoError(t, repo.WithTx(ctx, func(tx ports.TransactionRepository) error {
			return tx.Create(ctx, committed)
		}))

		err := repo.WithTx(ctx, func(tx ports.TransactionRepository) error {
			if err := tx.Create(ctx, rolledBack); err != nil {
				return err
			}
			return domain.NewValidationError("abort")
		})
		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeValidation))

		_, err = repo.FindByID(ctx, committed.ID)
		assert.NoError(t, err)
		_, err = repo.FindByID(ctx, rolledBack.ID)
		assert.True(t, domain.IsErrorCode(err, domain.ErrCodeTransactionNotFound))
	})
}
