package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/DanielPopoola/vpos-gateway/internal/adapters/handler/middleware"
	"github.com/DanielPopoola/vpos-gateway/internal/core/domain"
	"github.com/DanielPopoola/vpos-gateway/internal/core/fee"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// TransactionService is the part of the lifecycle controller the HTTP layer drives.
type TransactionService interface {
	CreatePayment(ctx context.Context, mobile string, amount decimal.Decimal) (*domain.Transaction, error)
	CreateRefund(ctx context.Context, parentID uuid.UUID) (*domain.Transaction, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	Submit(ctx context.Context, t *domain.Transaction, delivery domain.DeliveryMode) (bool, error)
	CheckAndApply(ctx context.Context, t *domain.Transaction, blockUntilDone bool) (*domain.Outcome, error)
	ApplyExternalConfirmation(ctx context.Context, t *domain.Transaction, result *domain.GatewayResult) (bool, error)
}

// HealthChecker reports whether the storage backend is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type TransactionHandler struct {
	service  TransactionService
	fees     fee.Descriptor
	validate *validator.Validate
	logger   *slog.Logger
}

func NewTransactionHandler(service TransactionService, fees fee.Descriptor, logger *slog.Logger) *TransactionHandler {
	return &TransactionHandler{
		service:  service,
		fees:     fees,
		validate: validator.New(),
		logger:   logger.With("component", "transaction_handler"),
	}
}

func (h *TransactionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/transactions", func(r chi.Router) {
		r.Post("/payments", h.HandleCreatePayment)
		r.Post("/refunds", h.HandleCreateRefund)
		r.Get("/{id}", h.HandleGetTransaction)
		r.Post("/{id}/submit", h.HandleSubmit)
		r.Post("/{id}/check", h.HandleCheck)
	})
	r.Get("/fees", h.HandleQuoteFee)
}

// NewRouter mounts the API, the vPOS confirmation endpoint and the
// operational endpoints behind the shared middleware chain.
func NewRouter(
	transactions *TransactionHandler,
	confirmations *ConfirmationHandler,
	health HealthChecker,
	requestTimeout time.Duration,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/healthz", handleHealth(health))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	transactions.RegisterRoutes(r)
	confirmations.RegisterRoutes(r)

	return r
}

func handleHealth(health HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := health.Ping(r.Context()); err != nil {
			respondWithCode(w, http.StatusServiceUnavailable, ErrCodeUnhealthy, err.Error())
			return
		}
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
