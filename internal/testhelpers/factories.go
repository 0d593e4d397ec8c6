package testhelpers

import (
	"io"
	"log/slog"
	"testing"

	"github.com/DanielPopoola/vpos-gateway/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// DiscardLogger returns a logger that writes nowhere.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewPayment builds an unrequested payment of 1500.00 to 923000000.
func NewPayment(t *testing.T) *domain.Transaction {
	t.Helper()
	p, err := domain.NewPayment("923000000", decimal.RequireFromString("1500.00"))
	require.NoError(t, err)
	return p
}

// NewRequestedPayment builds a payment that vPOS accepted under handle.
func NewRequestedPayment(t *testing.T, handle string) *domain.Transaction {
	t.Helper()
	p := NewPayment(t)
	require.True(t, p.MarkRequested("https://vpos.ao/api/v1/requests/"+handle))
	return p
}

// NewAcceptedPayment builds a requested payment with an accepted outcome.
func NewAcceptedPayment(t *testing.T, handle string) *domain.Transaction {
	t.Helper()
	p := NewRequestedPayment(t, handle)
	require.True(t, p.Complete(&domain.Outcome{
		Status:  domain.OutcomeAccepted,
		Payload: []byte(`{"id":"` + handle + `","status":"accepted"}`),
	}))
	return p
}

// Result builds the gateway document vPOS reports for a finished request.
func Result(t *testing.T, id string, status domain.OutcomeStatus, reason string) *domain.GatewayResult {
	t.Helper()
	body := `{"id":"` + id + `","status":"` + string(status) + `"`
	if reason != "" {
		body += `,"status_reason":` + reason
	}
	body += `}`
	r, err := domain.ParseGatewayResult([]byte(body))
	require.NoError(t, err)
	return r
}
