package ports

import (
	"context"
	"errors"

	"github.com/DanielPopoola/vpos-gateway/internal/core/domain"
	"github.com/shopspring/decimal"
)

// SubmitRequest carries what vPOS needs to create a transaction. Payments use
// Mobile and Amount, refunds use ParentHandle.
type SubmitRequest struct {
	Type         domain.TransactionType
	Mobile       string
	Amount       decimal.Decimal
	ParentHandle string
	Delivery     domain.DeliveryMode
}

// ErrGatewayUnavailable wraps failures to reach vPOS at all.
var ErrGatewayUnavailable = errors.New("vpos gateway unavailable")

// GatewayPort defines the behavior of the vPOS payment gateway.
type GatewayPort interface {
	// Submit returns the location of the accepted request, or "" when vPOS
	// did not accept it.
	Submit(ctx context.Context, req SubmitRequest, idempotencyKey string) (string, error)

	// CheckStatus returns nil when the outcome is not known yet.
	CheckStatus(ctx context.Context, handle string, blockUntilDone bool) (*domain.GatewayResult, error)
}
