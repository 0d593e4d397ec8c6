package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DanielPopoola/vpos-gateway/internal/core/domain"
	"github.com/DanielPopoola/vpos-gateway/internal/core/ports"
	"github.com/DanielPopoola/vpos-gateway/internal/core/service"
	"github.com/DanielPopoola/vpos-gateway/internal/testhelpers"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type TransactionServiceSuite struct {
	suite.Suite
	ctx       context.Context
	repo      *testhelpers.MemoryRepository
	gateway   *testhelpers.MockGateway
	publisher *testhelpers.RecordingPublisher
	service   *service.TransactionService
}

func (s *TransactionServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.repo = testhelpers.NewMemoryRepository()
	s.gateway = &testhelpers.MockGateway{}
	s.publisher = &testhelpers.RecordingPublisher{}
	s.service = service.NewTransactionService(s.repo, s.gateway, s.publisher, domain.ModeProduction, testhelpers.DiscardLogger())
}

func (s *TransactionServiceSuite) TearDownTest() {
	s.gateway.AssertExpectations(s.T())
}

func TestTransactionServiceSuite(t *testing.T) {
	suite.Run(t, new(TransactionServiceSuite))
}

func (s *TransactionServiceSuite) TestCreatePayment() {
	t, err := s.service.CreatePayment(s.ctx, "+244923000000", decimal.RequireFromString("2500"))

	s.Require().NoError(err)
	s.Equal("923000000", t.Mobile)

	stored, err := s.repo.FindByID(s.ctx, t.ID)
	s.Require().NoError(err)
	s.False(stored.Requested)
}

func (s *TransactionServiceSuite) TestCreatePayment_InvalidPhone() {
	_, err := s.service.CreatePayment(s.ctx, "+351912345678", decimal.NewFromInt(10))

	s.True(domain.IsErrorCode(err, domain.ErrCodeInvalidPhone))
}

func (s *TransactionServiceSuite) TestCreateRefund() {
	parent := testhelpers.NewAcceptedPayment(s.T(), "pay-1")
	s.repo.Put(parent)

	refund, err := s.service.CreateRefund(s.ctx, parent.ID)

	s.Require().NoError(err)
	s.Equal(domain.TypeRefund, refund.Type)
	s.Equal(parent.ID, *refund.ParentID)
	s.Equal(parent.Mobile, refund.Mobile)
}

func (s *TransactionServiceSuite) TestCreateRefund_Duplicate() {
	parent := testhelpers.NewAcceptedPayment(s.T(), "pay-1")
	s.repo.Put(parent)

	_, err := s.service.CreateRefund(s.ctx, parent.ID)
	s.Require().NoError(err)

	_, err = s.service.CreateRefund(s.ctx, parent.ID)
	s.True(domain.IsErrorCode(err, domain.ErrCodeDuplicateRefund))
}

func (s *TransactionServiceSuite) TestCreateRefund_UnknownParent() {
	_, err := s.service.CreateRefund(s.ctx, uuid.New())

	s.True(domain.IsErrorCode(err, domain.ErrCodeInvalidParent))
}

func (s *TransactionServiceSuite) TestCreateRefund_RejectedParent() {
	parent := testhelpers.NewRequestedPayment(s.T(), "pay-1")
	parent.Complete(&domain.Outcome{Status: domain.OutcomeRejected, StatusCode: "2001"})
	s.repo.Put(parent)

	_, err := s.service.CreateRefund(s.ctx, parent.ID)

	s.True(domain.IsErrorCode(err, domain.ErrCodeInvalidParent))
}

func (s *TransactionServiceSuite) TestSubmit_Payment() {
	t := testhelpers.NewPayment(s.T())
	s.repo.Put(t)

	s.gateway.On("Submit", mock.Anything, ports.SubmitRequest{
		Type:     domain.TypePayment,
		Mobile:   t.Mobile,
		Amount:   t.Amount,
		Delivery: domain.DeliveryWebhook,
	}, t.IdempotencyKey()).Return("https://vpos.ao/api/v1/requests/req-42", nil).Once()

	ok, err := s.service.Submit(s.ctx, t, domain.DeliveryWebhook)

	s.Require().NoError(err)
	s.True(ok)
	s.True(t.Requested)
	s.Equal("req-42", *t.TrackingHandle)

	stored, _ := s.repo.FindByID(s.ctx, t.ID)
	s.Equal("req-42", *stored.TrackingHandle)
	s.Equal("https://vpos.ao/api/v1/requests/req-42", *stored.Location)
}

func (s *TransactionServiceSuite) TestSubmit_AlreadyRequested() {
	t := testhelpers.NewRequestedPayment(s.T(), "req-1")
	s.repo.Put(t)

	ok, err := s.service.Submit(s.ctx, t, domain.DeliveryWebhook)

	s.Require().NoError(err)
	s.False(ok)
	s.gateway.AssertNotCalled(s.T(), "Submit", mock.Anything, mock.Anything, mock.Anything)
}

func (s *TransactionServiceSuite) TestSubmit_RefundUsesParentHandle() {
	parent := testhelpers.NewAcceptedPayment(s.T(), "pay-handle")
	s.repo.Put(parent)
	refund, err := s.service.CreateRefund(s.ctx, parent.ID)
	s.Require().NoError(err)

	s.gateway.On("Submit", mock.Anything, mock.MatchedBy(func(req ports.SubmitRequest) bool {
		return req.Type == domain.TypeRefund && req.ParentHandle == "pay-handle" && req.Delivery == domain.DeliveryPolling
	}), refund.IdempotencyKey()).Return("/api/v1/requests/ref-1", nil).Once()

	ok, err := s.service.Submit(s.ctx, refund, domain.DeliveryPolling)

	s.Require().NoError(err)
	s.True(ok)
	s.Equal("ref-1", *refund.TrackingHandle)
}

func (s *TransactionServiceSuite) TestSubmit_RefundOfUnsubmittedParent() {
	parent := testhelpers.NewPayment(s.T())
	s.repo.Put(parent)
	refund, err := domain.NewRefund(parent, domain.ModeSandbox)
	s.Require().NoError(err)
	s.repo.Put(refund)

	_, err = s.service.Submit(s.ctx, refund, domain.DeliveryWebhook)

	s.True(domain.IsErrorCode(err, domain.ErrCodeInvalidParent))
}

func (s *TransactionServiceSuite) TestSubmit_NoLocationIsContractViolation() {
	t := testhelpers.NewPayment(s.T())
	s.repo.Put(t)
	s.gateway.On("Submit", mock.Anything, mock.Anything, t.IdempotencyKey()).Return("", nil).Once()

	ok, err := s.service.Submit(s.ctx, t, domain.DeliveryWebhook)

	s.False(ok)
	s.True(domain.IsErrorCode(err, domain.ErrCodeContractViolation))
	s.False(t.Requested)

	stored, _ := s.repo.FindByID(s.ctx, t.ID)
	s.False(stored.Requested)
	s.Nil(stored.TrackingHandle)
}

func (s *TransactionServiceSuite) TestSubmit_TransportError() {
	t := testhelpers.NewPayment(s.T())
	s.repo.Put(t)
	netErr := errors.New("connection refused")
	s.gateway.On("Submit", mock.Anything, mock.Anything, mock.Anything).Return("", netErr).Once()

	_, err := s.service.Submit(s.ctx, t, domain.DeliveryWebhook)

	s.ErrorIs(err, netErr)
	s.False(t.Requested)
}

func (s *TransactionServiceSuite) TestSubmit_LostRace() {
	t := testhelpers.NewPayment(s.T())
	s.repo.Put(t)

	// another submission stored its handle while this one was in flight
	s.gateway.On("Submit", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			_, _ = s.repo.MarkRequested(s.ctx, t.ID, "first", "/requests/first")
		}).
		Return("/requests/second", nil).Once()

	ok, err := s.service.Submit(s.ctx, t, domain.DeliveryWebhook)

	s.Require().NoError(err)
	s.False(ok)
	s.Equal("first", *t.TrackingHandle)
}

func (s *TransactionServiceSuite) TestCheckAndApply_Terminal() {
	t := testhelpers.NewRequestedPayment(s.T(), "req-1")
	s.repo.Put(t)
	s.gateway.On("CheckStatus", mock.Anything, "req-1", true).
		Return(testhelpers.Result(s.T(), "req-1", domain.OutcomeAccepted, ""), nil).Once()

	outcome, err := s.service.CheckAndApply(s.ctx, t, true)

	s.Require().NoError(err)
	s.Require().NotNil(outcome)
	s.Equal(domain.OutcomeAccepted, outcome.Status)
	s.True(t.Accepted())

	events := s.publisher.Events()
	s.Require().Len(events, 1)
	s.Equal(t.ID, events[0].TransactionID)
	s.Equal(domain.SourcePoll, events[0].Source)
	s.Equal("req-1", events[0].TrackingHandle)
}

func (s *TransactionServiceSuite) TestCheckAndApply_Unknown() {
	t := testhelpers.NewRequestedPayment(s.T(), "req-1")
	s.repo.Put(t)
	s.gateway.On("CheckStatus", mock.Anything, "req-1", false).Return(nil, nil).Once()

	outcome, err := s.service.CheckAndApply(s.ctx, t, false)

	s.Require().NoError(err)
	s.Nil(outcome)
	s.Empty(s.publisher.Events())
}

func (s *TransactionServiceSuite) TestCheckAndApply_AlreadyCompleted() {
	t := testhelpers.NewAcceptedPayment(s.T(), "req-1")
	s.repo.Put(t)

	outcome, err := s.service.CheckAndApply(s.ctx, t, true)

	s.Require().NoError(err)
	s.Same(t.Outcome, outcome)
	s.gateway.AssertNotCalled(s.T(), "CheckStatus", mock.Anything, mock.Anything, mock.Anything)
}

func (s *TransactionServiceSuite) TestCheckAndApply_NotRequested() {
	t := testhelpers.NewPayment(s.T())
	s.repo.Put(t)

	_, err := s.service.CheckAndApply(s.ctx, t, false)

	s.True(domain.IsErrorCode(err, domain.ErrCodeNotRequested))
}

func (s *TransactionServiceSuite) TestApplyExternalConfirmation() {
	t := testhelpers.NewRequestedPayment(s.T(), "req-1")
	s.repo.Put(t)
	result := testhelpers.Result(s.T(), "req-1", domain.OutcomeRejected, "2001")

	ok, err := s.service.ApplyExternalConfirmation(s.ctx, t, result)

	s.Require().NoError(err)
	s.True(ok)
	s.True(t.Rejected())
	s.Equal("2001", t.Outcome.StatusCode)

	ok, err = s.service.ApplyExternalConfirmation(s.ctx, t, result)
	s.Require().NoError(err)
	s.False(ok)

	s.Len(s.publisher.Events(), 1)
}

func (s *TransactionServiceSuite) TestApplyExternalConfirmation_StaleCopy() {
	t := testhelpers.NewRequestedPayment(s.T(), "req-1")
	s.repo.Put(t)
	stale := testhelpers.Clone(t)

	ok, err := s.service.ApplyExternalConfirmation(s.ctx, t, testhelpers.Result(s.T(), "req-1", domain.OutcomeAccepted, ""))
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.service.ApplyExternalConfirmation(s.ctx, stale, testhelpers.Result(s.T(), "req-1", domain.OutcomeRejected, "3000"))

	s.Require().NoError(err)
	s.False(ok)
	s.True(stale.Accepted(), "loser should see the stored outcome")
	s.Len(s.publisher.Events(), 1)
}

func (s *TransactionServiceSuite) TestApplyExternalConfirmation_NotTerminal() {
	t := testhelpers.NewRequestedPayment(s.T(), "req-1")
	s.repo.Put(t)

	_, err := s.service.ApplyExternalConfirmation(s.ctx, t, testhelpers.Result(s.T(), "req-1", "processing", ""))

	s.True(domain.IsErrorCode(err, domain.ErrCodeValidation))
}

func (s *TransactionServiceSuite) TestApply_PublishFailureKeepsOutcome() {
	t := testhelpers.NewRequestedPayment(s.T(), "req-1")
	s.repo.Put(t)
	s.publisher.Err = errors.New("broker down")

	ok, err := s.service.ApplyExternalConfirmation(s.ctx, t, testhelpers.Result(s.T(), "req-1", domain.OutcomeAccepted, ""))

	s.Require().NoError(err)
	s.True(ok)
	stored, _ := s.repo.FindByID(s.ctx, t.ID)
	s.True(stored.Accepted())
}

func TestFindByID_NotFound(t *testing.T) {
	svc := service.NewTransactionService(testhelpers.NewMemoryRepository(), &testhelpers.MockGateway{}, &testhelpers.RecordingPublisher{}, domain.ModeSandbox, testhelpers.DiscardLogger())

	_, err := svc.FindByID(context.Background(), uuid.New())

	require.Error(t, err)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeTransactionNotFound))
}
