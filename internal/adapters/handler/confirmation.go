package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/DanielPopoola/vpos-gateway/internal/core/domain"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// ConfirmationHandler receives the outcome vPOS pushes to the callback URL
// given at submission. Signature checks, if any, happen in front of it.
type ConfirmationHandler struct {
	service TransactionService
	logger  *slog.Logger
}

func NewConfirmationHandler(service TransactionService, logger *slog.Logger) *ConfirmationHandler {
	return &ConfirmationHandler{
		service: service,
		logger:  logger.With("component", "confirmation_handler"),
	}
}

// RegisterRoutes routes every method so that non-POST deliveries get a 405
// from the handler itself.
func (h *ConfirmationHandler) RegisterRoutes(r chi.Router) {
	r.HandleFunc("/vpos/{transactionID}", h.HandleConfirmation)
}

func (h *ConfirmationHandler) HandleConfirmation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rawID := chi.URLParam(r, "transactionID")
	logger := h.logger.With(
		"request_id", chimw.GetReqID(ctx),
		"transaction_id", rawID,
	)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "confirmation with unsupported method", "method", r.Method)
		w.Header().Set("Allow", http.MethodPost)
		respondWithCode(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "only POST is accepted")
		return
	}

	id, err := uuid.Parse(rawID)
	if err != nil {
		respondWithError(w, domain.NewTransactionNotFoundError(rawID))
		return
	}

	t, err := h.service.FindByID(ctx, id)
	if err != nil {
		if !domain.IsErrorCode(err, domain.ErrCodeTransactionNotFound) {
			logger.ErrorContext(ctx, "failed to load transaction", "error", err)
		}
		respondWithError(w, err)
		return
	}

	switch {
	case t.IsCompleted():
		logger.WarnContext(ctx, "confirmation for completed transaction")
		respondWithCode(w, http.StatusForbidden, ErrCodeForbidden, "transaction already has an outcome")
		return
	case t.TrackingHandle == nil:
		logger.WarnContext(ctx, "confirmation for transaction never submitted")
		respondWithCode(w, http.StatusForbidden, ErrCodeForbidden, "transaction was never submitted to vPOS")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		logger.WarnContext(ctx, "failed to read confirmation body", "error", err)
		respondWithCode(w, http.StatusBadRequest, ErrCodeInvalidPayload, "confirmation body is unreadable or too large")
		return
	}

	result, err := domain.ParseGatewayResult(raw)
	if err != nil {
		logger.WarnContext(ctx, "malformed confirmation", "error", err)
		respondWithCode(w, http.StatusBadRequest, ErrCodeInvalidPayload, "confirmation body is not a vPOS transaction")
		return
	}

	if result.ID != *t.TrackingHandle {
		logger.WarnContext(ctx, "confirmation id does not match tracking handle",
			"confirmation_id", result.ID,
			"tracking_handle", *t.TrackingHandle,
		)
		respondWithCode(w, http.StatusForbidden, ErrCodeForbidden, "confirmation does not belong to this transaction")
		return
	}

	applied, err := h.service.ApplyExternalConfirmation(ctx, t, result)
	if err != nil {
		if domain.IsErrorCode(err, domain.ErrCodeValidation) {
			respondWithError(w, err)
			return
		}
		logger.ErrorContext(ctx, "failed to apply confirmation", "error", err)
		respondWithCode(w, http.StatusInternalServerError, ErrCodeInternal, "confirmation could not be stored")
		return
	}
	if !applied {
		respondWithCode(w, http.StatusConflict, ErrCodeAlreadyConfirmed, "transaction outcome was already recorded")
		return
	}

	logger.InfoContext(ctx, "confirmation applied", "status", result.Status)
	respondWithJSON(w, http.StatusOK, toTransactionResponse(t))
}
