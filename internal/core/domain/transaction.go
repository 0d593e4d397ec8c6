// Package domain defines the transaction record exchanged with vPOS and its lifecycle rules.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType distinguishes a payment request from a refund of a previous payment
type TransactionType string

const (
	TypePayment TransactionType = "payment"
	TypeRefund  TransactionType = "refund"
)

// Mode selects the vPOS environment. It changes the supervisor card used for
// refunds and relaxes refund parent checks in sandbox.
type Mode string

const (
	ModeProduction Mode = "production"
	ModeSandbox    Mode = "sandbox"
)

// DeliveryMode selects how the outcome of a submitted transaction is learned.
type DeliveryMode string

const (
	// DeliveryWebhook asks vPOS to push the outcome to our callback URL.
	DeliveryWebhook DeliveryMode = "webhook"
	// DeliveryPolling sends no callback URL; the outcome must be polled.
	DeliveryPolling DeliveryMode = "polling"
)

// ParseDeliveryMode returns DeliveryWebhook for an empty string.
func ParseDeliveryMode(s string) (DeliveryMode, error) {
	switch DeliveryMode(strings.ToLower(s)) {
	case "", DeliveryWebhook:
		return DeliveryWebhook, nil
	case DeliveryPolling:
		return DeliveryPolling, nil
	}
	return "", NewValidationError("delivery must be webhook or polling")
}

// Transaction is one payment or refund attempt.
//
// Identity fields (ID, Type, Mobile, Amount, ParentID) never change after
// creation. TrackingHandle and Outcome are write-once: they move from nil to
// set exactly once and later attempts are ignored.
type Transaction struct {
	ID       uuid.UUID
	Type     TransactionType
	Mobile   string
	Amount   decimal.Decimal
	ParentID *uuid.UUID

	TrackingHandle *string
	Location       *string
	Requested      bool
	Outcome        *Outcome

	// CheckedAt is the last time a status check found no outcome yet.
	CheckedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// amountPlaces is the precision of a kwanza amount. vPOS takes cents, and
// anything finer is refused rather than rounded.
const amountPlaces = 2

// NewPayment validates the subscriber number and amount and returns an unrequested payment.
func NewPayment(mobile string, amount decimal.Decimal) (*Transaction, error) {
	normalized, err := NormalizePhone(mobile)
	if err != nil {
		return nil, err
	}
	if !amount.Equal(amount.Truncate(amountPlaces)) || !amount.IsPositive() {
		return nil, NewInvalidAmountError(amount.String())
	}

	now := time.Now().UTC()
	return &Transaction{
		ID:        uuid.New(),
		Type:      TypePayment,
		Mobile:    normalized,
		Amount:    amount,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// NewRefund builds a refund of parent. In production the parent must be an
// accepted payment; sandbox only requires it to exist.
func NewRefund(parent *Transaction, mode Mode) (*Transaction, error) {
	if parent == nil {
		return nil, NewInvalidParentError("parent transaction is required")
	}
	if mode == ModeProduction {
		if parent.IsRefund() {
			return nil, NewInvalidParentError("parent transaction is a refund")
		}
		if !parent.Accepted() {
			return nil, NewInvalidParentError("parent transaction is not an accepted payment")
		}
	}

	parentID := parent.ID
	now := time.Now().UTC()
	return &Transaction{
		ID:        uuid.New(),
		Type:      TypeRefund,
		Mobile:    parent.Mobile,
		Amount:    parent.Amount,
		ParentID:  &parentID,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IdempotencyKey is sent with every gateway request for this record. It is
// stable across retries so vPOS deduplicates resubmissions.
func (t *Transaction) IdempotencyKey() string {
	return t.ID.String()
}

func (t *Transaction) IsPayment() bool { return t.Type == TypePayment }

func (t *Transaction) IsRefund() bool { return t.Type == TypeRefund }

func (t *Transaction) IsCompleted() bool { return t.Outcome != nil }

// LastSeen is the later of the last update and the last status check.
func (t *Transaction) LastSeen() time.Time {
	if t.CheckedAt != nil && t.CheckedAt.After(t.UpdatedAt) {
		return *t.CheckedAt
	}
	return t.UpdatedAt
}

func (t *Transaction) Accepted() bool {
	return t.Outcome != nil && t.Outcome.Status == OutcomeAccepted
}

func (t *Transaction) Rejected() bool {
	return t.Outcome != nil && t.Outcome.Status == OutcomeRejected
}

// MarkRequested records the location returned by vPOS. It reports false when
// the record already has a tracking handle.
func (t *Transaction) MarkRequested(location string) bool {
	if t.Requested || t.TrackingHandle != nil {
		return false
	}
	handle := HandleFromLocation(location)
	t.TrackingHandle = &handle
	t.Location = &location
	t.Requested = true
	t.UpdatedAt = time.Now().UTC()
	return true
}

// Complete sets the outcome. It reports false when an outcome is already set.
func (t *Transaction) Complete(outcome *Outcome) bool {
	if t.Outcome != nil || outcome == nil {
		return false
	}
	t.Outcome = outcome
	t.UpdatedAt = time.Now().UTC()
	return true
}

// HandleFromLocation extracts the tracking handle, the last path segment of
// the location header vPOS returns for an accepted request.
func HandleFromLocation(location string) string {
	trimmed := strings.TrimRight(location, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}
