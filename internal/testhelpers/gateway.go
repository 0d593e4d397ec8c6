package testhelpers

import (
	"context"

	"github.com/DanielPopoola/vpos-gateway/internal/core/domain"
	"github.com/DanielPopoola/vpos-gateway/internal/core/ports"
	"github.com/stretchr/testify/mock"
)

// MockGateway is a testify mock of ports.GatewayPort.
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Submit(ctx context.Context, req ports.SubmitRequest, idempotencyKey string) (string, error) {
	args := m.Called(ctx, req, idempotencyKey)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) CheckStatus(ctx context.Context, handle string, blockUntilDone bool) (*domain.GatewayResult, error) {
	args := m.Called(ctx, handle, blockUntilDone)
	if r := args.Get(0); r != nil {
		return r.(*domain.GatewayResult), args.Error(1)
	}
	return nil, args.Error(1)
}
