package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// OutcomeStatus is the terminal status vPOS reports for a transaction
type OutcomeStatus string

const (
	OutcomeAccepted OutcomeStatus = "accepted"
	OutcomeRejected OutcomeStatus = "rejected"
)

// IsTerminal reports whether the status ends the lifecycle.
func (s OutcomeStatus) IsTerminal() bool {
	return s == OutcomeAccepted || s == OutcomeRejected
}

// Outcome is the write-once terminal result of a transaction.
type Outcome struct {
	Status     OutcomeStatus   `json:"status"`
	StatusCode string          `json:"status_code,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Reason returns the human readable reason for the status code.
func (o *Outcome) Reason() string {
	if o.StatusCode == "" {
		return ""
	}
	return StatusReason(o.StatusCode)
}

// StatusCode accepts status_reason as either a JSON string or a JSON number.
type StatusCode string

func (c *StatusCode) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = StatusCode(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("status_reason must be a string or number: %w", err)
	}
	*c = StatusCode(n.String())
	return nil
}

// GatewayResult is a transaction document reported by vPOS, either in a
// status check response or in a webhook delivery.
type GatewayResult struct {
	ID           string        `json:"id"`
	Status       OutcomeStatus `json:"status"`
	StatusReason StatusCode    `json:"status_reason"`

	Raw json.RawMessage `json:"-"`
}

// ParseGatewayResult decodes a vPOS transaction document and keeps the raw bytes.
func ParseGatewayResult(raw []byte) (*GatewayResult, error) {
	var r GatewayResult
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode gateway result: %w", err)
	}
	r.Status = OutcomeStatus(strings.ToLower(string(r.Status)))
	r.Raw = append(json.RawMessage(nil), raw...)
	return &r, nil
}

// IsTerminal reports whether the result carries a final status.
func (r *GatewayResult) IsTerminal() bool {
	return r != nil && r.Status.IsTerminal()
}

// Outcome converts the result into the value stored on the record.
func (r *GatewayResult) Outcome() *Outcome {
	payload := r.Raw
	if len(payload) == 0 {
		payload, _ = json.Marshal(r)
	}
	return &Outcome{
		Status:     r.Status,
		StatusCode: string(r.StatusReason),
		Payload:    payload,
	}
}
