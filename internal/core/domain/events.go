package domain

import (
	"time"

	"github.com/google/uuid"
)

// ConfirmationSource tells which path delivered the outcome.
type ConfirmationSource string

const (
	SourcePoll    ConfirmationSource = "poll"
	SourceWebhook ConfirmationSource = "webhook"
)

// TransactionCompleted is published once per record, after its outcome is stored.
type TransactionCompleted struct {
	TransactionID  uuid.UUID          `json:"transaction_id"`
	Type           TransactionType    `json:"type"`
	ParentID       *uuid.UUID         `json:"parent_id,omitempty"`
	TrackingHandle string             `json:"tracking_handle"`
	Amount         string             `json:"amount"`
	Mobile         string             `json:"mobile"`
	Status         OutcomeStatus      `json:"status"`
	StatusCode     string             `json:"status_code,omitempty"`
	Source         ConfirmationSource `json:"source"`
	CompletedAt    time.Time          `json:"completed_at"`
}

// NewTransactionCompleted snapshots a completed record.
func NewTransactionCompleted(t *Transaction, source ConfirmationSource) TransactionCompleted {
	ev := TransactionCompleted{
		TransactionID: t.ID,
		Type:          t.Type,
		ParentID:      t.ParentID,
		Amount:        t.Amount.StringFixed(2),
		Mobile:        t.Mobile,
		Source:        source,
		CompletedAt:   t.UpdatedAt,
	}
	if t.TrackingHandle != nil {
		ev.TrackingHandle = *t.TrackingHandle
	}
	if t.Outcome != nil {
		ev.Status = t.Outcome.Status
		ev.StatusCode = t.Outcome.StatusCode
	}
	return ev
}
