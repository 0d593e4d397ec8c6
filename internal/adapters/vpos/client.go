// Package vpos talks to the vPOS mobile-money gateway over HTTP.
package vpos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/DanielPopoola/vpos-gateway/internal/config"
	"github.com/DanielPopoola/vpos-gateway/internal/core/domain"
	"github.com/DanielPopoola/vpos-gateway/internal/core/ports"
)

// MaxETAWait bounds how long CheckStatus blocks on a reported eta.
const MaxETAWait = 90 * time.Second

type HTTPClient struct {
	baseURL        string
	posID          int
	token          string
	callbackURL    string
	supervisorCard string
	httpClient     *http.Client
	logger         *slog.Logger

	// sleep waits for d or until ctx is done.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewClient(cfg config.VposConfig, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		posID:          cfg.PosID,
		token:          cfg.Token,
		callbackURL:    strings.TrimRight(cfg.CallbackURL, "/"),
		supervisorCard: cfg.ActiveSupervisorCard(),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger.With("component", "vpos_client"),
		sleep:  sleepContext,
	}
}

var _ ports.GatewayPort = (*HTTPClient)(nil)

type paymentRequest struct {
	Type        domain.TransactionType `json:"type"`
	PosID       int                    `json:"pos_id"`
	Mobile      string                 `json:"mobile"`
	Amount      string                 `json:"amount"`
	CallbackURL string                 `json:"callback_url,omitempty"`
}

type refundRequest struct {
	Type                domain.TransactionType `json:"type"`
	ParentTransactionID string                 `json:"parent_transaction_id"`
	SupervisorCard      string                 `json:"supervisor_card"`
	CallbackURL         string                 `json:"callback_url,omitempty"`
}

// requestStatus is what GET /requests/{id} returns while vPOS is still
// processing. Once done vPOS redirects to the transaction itself.
type requestStatus struct {
	ETA *float64 `json:"eta"`
}

// Submit creates a payment or refund. Only a 202 carries a location; any
// other status yields "" so the caller decides what to do.
func (c *HTTPClient) Submit(ctx context.Context, req ports.SubmitRequest, idempotencyKey string) (string, error) {
	var callbackURL string
	if req.Delivery != domain.DeliveryPolling {
		callbackURL = c.callbackURL + "/" + idempotencyKey
	}

	var body any
	switch req.Type {
	case domain.TypeRefund:
		body = refundRequest{
			Type:                domain.TypeRefund,
			ParentTransactionID: req.ParentHandle,
			SupervisorCard:      c.supervisorCard,
			CallbackURL:         callbackURL,
		}
	default:
		body = paymentRequest{
			Type:        domain.TypePayment,
			PosID:       c.posID,
			Mobile:      req.Mobile,
			Amount:      req.Amount.StringFixed(2),
			CallbackURL: callbackURL,
		}
	}

	resp, err := c.do(ctx, http.MethodPost, "/transactions", body, idempotencyKey)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusAccepted {
		c.logger.Warn("vPOS did not accept transaction",
			"idempotency_key", idempotencyKey,
			"status", resp.StatusCode,
		)
		return "", nil
	}
	return resp.Header.Get("Location"), nil
}

// CheckStatus returns the transaction document once vPOS has a final
// status, and nil while it is still processing or could not be read.
// With blockUntilDone it waits once for the reported eta, capped at
// MaxETAWait, and checks again without blocking.
func (c *HTTPClient) CheckStatus(ctx context.Context, handle string, blockUntilDone bool) (*domain.GatewayResult, error) {
	resp, err := c.do(ctx, http.MethodGet, "/requests/"+handle, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Warn("failed to read status response", "handle", handle, "error", err)
		return nil, nil
	}

	var pending requestStatus
	if err := json.Unmarshal(raw, &pending); err != nil {
		c.logger.Warn("failed to decode status response", "handle", handle, "error", err)
		return nil, nil
	}
	if pending.ETA != nil {
		if !blockUntilDone {
			return nil, nil
		}
		wait := etaWait(*pending.ETA)
		if err := c.sleep(ctx, wait); err != nil {
			return nil, nil
		}
		return c.CheckStatus(ctx, handle, false)
	}

	result, err := domain.ParseGatewayResult(raw)
	if err != nil {
		c.logger.Warn("failed to decode transaction", "handle", handle, "error", err)
		return nil, nil
	}
	if !result.IsTerminal() {
		return nil, nil
	}
	return result, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any, idempotencyKey string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("error marshalling json: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	if idempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("error making request to vPOS: %w", err)
	}
	return resp, nil
}

func etaWait(eta float64) time.Duration {
	if eta < 0 {
		eta = 0
	}
	if eta+1 >= MaxETAWait.Seconds() {
		return MaxETAWait
	}
	return time.Duration((eta + 1) * float64(time.Second))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
