package boltstore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/DanielPopoola/vpos-gateway/internal/adapters/boltstore"
	"github.com/DanielPopoola/vpos-gateway/internal/core/domain"
	"github.com/DanielPopoola/vpos-gateway/internal/core/ports"
	"github.com/DanielPopoola/vpos-gateway/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *boltstore.Store {
	t.Helper()
	store, err := boltstore.Open(filepath.Join(t.TempDir(), "vpos.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore(t *testing.T) {
	testhelpers.RunRepositoryContract(t, func(t *testing.T) ports.TransactionRepository {
		return openStore(t)
	})
}

func TestStore_RefundOfUnknownParent(t *testing.T) {
	store := openStore(t)
	refund, err := domain.NewRefund(testhelpers.NewAcceptedPayment(t, "never-stored"), domain.ModeProduction)
	require.NoError(t, err)

	err = store.Create(context.Background(), refund)

	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeInvalidParent))
}

func TestStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vpos.db")
	store, err := boltstore.Open(path)
	require.NoError(t, err)

	p := testhelpers.NewPayment(t)
	require.NoError(t, store.Create(context.Background(), p))
	_, err = store.MarkRequested(context.Background(), p.ID, "h1", "/requests/h1")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := boltstore.Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	found, err := reopened.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.True(t, found.Requested)
	assert.Equal(t, "h1", *found.TrackingHandle)
	assert.NoError(t, reopened.Ping(context.Background()))
}
