package vpos

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DanielPopoola/vpos-gateway/internal/config"
	"github.com/DanielPopoola/vpos-gateway/internal/core/domain"
	"github.com/DanielPopoola/vpos-gateway/internal/core/ports"
	"github.com/DanielPopoola/vpos-gateway/internal/testhelpers"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, mode domain.Mode) *HTTPClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(config.VposConfig{
		PosID:              42,
		Token:              "secret-token",
		CallbackURL:        "https://shop.example/vpos/",
		Mode:               string(mode),
		BaseURL:            server.URL,
		SupervisorCard:     "live-card",
		TestSupervisorCard: "test-card",
		Timeout:            5 * time.Second,
	}, testhelpers.DiscardLogger())
}

func TestHTTPClient_Submit(t *testing.T) {
	t.Run("payment with webhook delivery", func(t *testing.T) {
		var body map[string]any
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/transactions", r.URL.Path)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
			assert.Equal(t, "key-1", r.Header.Get("Idempotency-Key"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

			w.Header().Set("Location", "/api/v1/requests/req-1")
			w.WriteHeader(http.StatusAccepted)
		}, domain.ModeProduction)

		location, err := client.Submit(context.Background(), ports.SubmitRequest{
			Type:     domain.TypePayment,
			Mobile:   "923000000",
			Amount:   decimal.RequireFromString("1500.5"),
			Delivery: domain.DeliveryWebhook,
		}, "key-1")

		require.NoError(t, err)
		assert.Equal(t, "/api/v1/requests/req-1", location)
		assert.Equal(t, "payment", body["type"])
		assert.EqualValues(t, 42, body["pos_id"])
		assert.Equal(t, "923000000", body["mobile"])
		assert.Equal(t, "1500.50", body["amount"])
		assert.Equal(t, "https://shop.example/vpos/key-1", body["callback_url"])
	})

	t.Run("polling delivery omits callback", func(t *testing.T) {
		var body map[string]any
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			w.Header().Set("Location", "/api/v1/requests/req-2")
			w.WriteHeader(http.StatusAccepted)
		}, domain.ModeProduction)

		_, err := client.Submit(context.Background(), ports.SubmitRequest{
			Type:     domain.TypePayment,
			Mobile:   "923000000",
			Amount:   decimal.NewFromInt(10),
			Delivery: domain.DeliveryPolling,
		}, "key-2")

		require.NoError(t, err)
		assert.NotContains(t, body, "callback_url")
	})

	t.Run("refund uses parent handle and mode card", func(t *testing.T) {
		for mode, card := range map[domain.Mode]string{
			domain.ModeProduction: "live-card",
			domain.ModeSandbox:    "test-card",
		} {
			var body map[string]any
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				w.Header().Set("Location", "/api/v1/requests/ref-1")
				w.WriteHeader(http.StatusAccepted)
			}, mode)

			_, err := client.Submit(context.Background(), ports.SubmitRequest{
				Type:         domain.TypeRefund,
				ParentHandle: "pay-handle",
				Delivery:     domain.DeliveryWebhook,
			}, "key-3")

			require.NoError(t, err)
			assert.Equal(t, "refund", body["type"])
			assert.Equal(t, "pay-handle", body["parent_transaction_id"])
			assert.Equal(t, card, body["supervisor_card"], string(mode))
			assert.NotContains(t, body, "mobile")
		}
	})

	t.Run("non 202 yields no location", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Location", "/api/v1/requests/ignored")
			w.WriteHeader(http.StatusBadRequest)
		}, domain.ModeProduction)

		location, err := client.Submit(context.Background(), ports.SubmitRequest{Type: domain.TypePayment, Amount: decimal.NewFromInt(1)}, "key-4")

		require.NoError(t, err)
		assert.Empty(t, location)
	})

	t.Run("transport error is returned", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {}, domain.ModeProduction)
		client.baseURL = "http://127.0.0.1:1"

		_, err := client.Submit(context.Background(), ports.SubmitRequest{Type: domain.TypePayment, Amount: decimal.NewFromInt(1)}, "key-5")

		assert.Error(t, err)
	})
}

func TestHTTPClient_CheckStatus(t *testing.T) {
	t.Run("terminal transaction", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/requests/req-1", r.URL.Path)
			assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{"id":"req-1","status":"rejected","status_reason":2002}`))
		}, domain.ModeProduction)

		result, err := client.CheckStatus(context.Background(), "req-1", false)

		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, domain.OutcomeRejected, result.Status)
		assert.Equal(t, domain.StatusCode("2002"), result.StatusReason)
		assert.JSONEq(t, `{"id":"req-1","status":"rejected","status_reason":2002}`, string(result.Raw))
	})

	t.Run("follows see other to the transaction", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/requests/req-1":
				http.Redirect(w, r, "/transactions/req-1", http.StatusSeeOther)
			case "/transactions/req-1":
				_, _ = w.Write([]byte(`{"id":"req-1","status":"accepted"}`))
			}
		}, domain.ModeProduction)

		result, err := client.CheckStatus(context.Background(), "req-1", false)

		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, domain.OutcomeAccepted, result.Status)
	})

	t.Run("eta without blocking is unknown", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"eta":5}`))
		}, domain.ModeProduction)
		client.sleep = func(context.Context, time.Duration) error {
			t.Fatal("should not wait")
			return nil
		}

		result, err := client.CheckStatus(context.Background(), "req-1", false)

		require.NoError(t, err)
		assert.Nil(t, result)
	})

	t.Run("eta with blocking waits once and rechecks", func(t *testing.T) {
		var calls atomic.Int32
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				_, _ = w.Write([]byte(`{"eta":5}`))
				return
			}
			_, _ = w.Write([]byte(`{"id":"req-1","status":"accepted"}`))
		}, domain.ModeProduction)
		var waited []time.Duration
		client.sleep = func(_ context.Context, d time.Duration) error {
			waited = append(waited, d)
			return nil
		}

		result, err := client.CheckStatus(context.Background(), "req-1", true)

		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, []time.Duration{6 * time.Second}, waited)
		assert.EqualValues(t, 2, calls.Load())
	})

	t.Run("eta wait is capped and never loops", func(t *testing.T) {
		var calls atomic.Int32
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			_, _ = w.Write([]byte(`{"eta":200}`))
		}, domain.ModeProduction)
		var waited []time.Duration
		client.sleep = func(_ context.Context, d time.Duration) error {
			waited = append(waited, d)
			return nil
		}

		result, err := client.CheckStatus(context.Background(), "req-1", true)

		require.NoError(t, err)
		assert.Nil(t, result)
		assert.Equal(t, []time.Duration{MaxETAWait}, waited)
		assert.EqualValues(t, 2, calls.Load())
	})

	t.Run("interrupted wait is unknown", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"eta":5}`))
		}, domain.ModeProduction)
		client.sleep = func(context.Context, time.Duration) error {
			return errors.New("interrupted")
		}

		result, err := client.CheckStatus(context.Background(), "req-1", true)

		require.NoError(t, err)
		assert.Nil(t, result)
	})

	t.Run("non 2xx is unknown", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}, domain.ModeProduction)

		result, err := client.CheckStatus(context.Background(), "req-1", true)

		require.NoError(t, err)
		assert.Nil(t, result)
	})

	t.Run("malformed body is unknown", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		}, domain.ModeProduction)

		result, err := client.CheckStatus(context.Background(), "req-1", true)

		require.NoError(t, err)
		assert.Nil(t, result)
	})

	t.Run("pending status without eta is unknown", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"id":"req-1","status":"processing"}`))
		}, domain.ModeProduction)

		result, err := client.CheckStatus(context.Background(), "req-1", false)

		require.NoError(t, err)
		assert.Nil(t, result)
	})
}

func TestSleepContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := sleepContext(ctx, time.Minute)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))
}
