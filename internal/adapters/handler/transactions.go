package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/DanielPopoola/vpos-gateway/internal/core/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const maxRequestBody = 1 << 20

type CreatePaymentRequest struct {
	Mobile   string          `json:"mobile" validate:"required" example:"923000000"`
	Amount   decimal.Decimal `json:"amount" example:"1500.00"`
	Delivery string          `json:"delivery,omitempty" example:"webhook"`
}

type CreateRefundRequest struct {
	ParentID string `json:"parent_id" validate:"required,uuid" example:"550e8400-e29b-41d4-a716-446655440000"`
	Delivery string `json:"delivery,omitempty" example:"polling"`
}

// TransactionResponse is the API view of a transaction. Status is pending
// before submission, requested while vPOS has not answered, then the outcome.
type TransactionResponse struct {
	ID             uuid.UUID  `json:"id"`
	Type           string     `json:"type"`
	Mobile         string     `json:"mobile"`
	Amount         string     `json:"amount"`
	ParentID       *uuid.UUID `json:"parent_id,omitempty"`
	TrackingHandle *string    `json:"tracking_handle,omitempty"`
	Requested      bool       `json:"requested"`
	Status         string     `json:"status"`
	StatusCode     string     `json:"status_code,omitempty"`
	StatusReason   string     `json:"status_reason,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type SubmitResponse struct {
	Submitted   bool                 `json:"submitted"`
	Transaction *TransactionResponse `json:"transaction"`
}

func toTransactionResponse(t *domain.Transaction) *TransactionResponse {
	resp := &TransactionResponse{
		ID:             t.ID,
		Type:           string(t.Type),
		Mobile:         t.Mobile,
		Amount:         t.Amount.StringFixed(2),
		ParentID:       t.ParentID,
		TrackingHandle: t.TrackingHandle,
		Requested:      t.Requested,
		Status:         "pending",
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
	switch {
	case t.Outcome != nil:
		resp.Status = string(t.Outcome.Status)
		resp.StatusCode = t.Outcome.StatusCode
		resp.StatusReason = t.Outcome.Reason()
	case t.Requested:
		resp.Status = "requested"
	}
	return resp
}

// HandleCreatePayment creates a payment and submits it to vPOS
// @Summary      Request a payment
// @Description  Validates the subscriber number, stores the payment and asks vPOS to charge it.
// @Tags         transactions
// @Accept       json
// @Produce      json
// @Param        request  body      CreatePaymentRequest  true  "Payment details"
// @Success      201      {object}  APIResponse           "Payment requested"
// @Failure      400      {object}  APIResponse           "Invalid phone or amount"
// @Failure      502      {object}  APIResponse           "vPOS unreachable"
// @Router       /transactions/payments [post]
func (h *TransactionHandler) HandleCreatePayment(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if !h.decode(w, r, &req) {
		return
	}

	delivery, err := domain.ParseDeliveryMode(req.Delivery)
	if err != nil {
		respondWithError(w, err)
		return
	}

	t, err := h.service.CreatePayment(r.Context(), req.Mobile, req.Amount)
	if err != nil {
		respondWithError(w, err)
		return
	}

	h.submitCreated(w, r, t, delivery)
}

// HandleCreateRefund creates a refund of a previous payment and submits it to vPOS
// @Summary      Refund a payment
// @Tags         transactions
// @Accept       json
// @Produce      json
// @Param        request  body      CreateRefundRequest  true  "Refund details"
// @Success      201      {object}  APIResponse          "Refund requested"
// @Failure      400      {object}  APIResponse          "Parent cannot be refunded"
// @Failure      409      {object}  APIResponse          "Parent already refunded"
// @Router       /transactions/refunds [post]
func (h *TransactionHandler) HandleCreateRefund(w http.ResponseWriter, r *http.Request) {
	var req CreateRefundRequest
	if !h.decode(w, r, &req) {
		return
	}

	delivery, err := domain.ParseDeliveryMode(req.Delivery)
	if err != nil {
		respondWithError(w, err)
		return
	}

	parentID, err := uuid.Parse(req.ParentID)
	if err != nil {
		respondWithError(w, domain.NewValidationError("parent_id must be a uuid"))
		return
	}

	t, err := h.service.CreateRefund(r.Context(), parentID)
	if err != nil {
		respondWithError(w, err)
		return
	}

	h.submitCreated(w, r, t, delivery)
}

// submitCreated submits a freshly stored record. On failure the record stays
// unrequested and the error names its id so the client can retry the submit.
func (h *TransactionHandler) submitCreated(w http.ResponseWriter, r *http.Request, t *domain.Transaction, delivery domain.DeliveryMode) {
	if _, err := h.service.Submit(r.Context(), t, delivery); err != nil {
		h.logger.Warn("submission failed",
			"transaction_id", t.ID,
			"type", t.Type,
			"error", err,
		)
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, toTransactionResponse(t))
}

func (h *TransactionHandler) HandleGetTransaction(w http.ResponseWriter, r *http.Request) {
	t, ok := h.load(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, toTransactionResponse(t))
}

// HandleSubmit submits a stored record. Submitting an already requested
// record is a no-op that reports submitted=false.
func (h *TransactionHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	delivery, err := domain.ParseDeliveryMode(r.URL.Query().Get("delivery"))
	if err != nil {
		respondWithError(w, err)
		return
	}

	t, ok := h.load(w, r)
	if !ok {
		return
	}

	submitted, err := h.service.Submit(r.Context(), t, delivery)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, SubmitResponse{
		Submitted:   submitted,
		Transaction: toTransactionResponse(t),
	})
}

// HandleCheck polls vPOS for the outcome. With wait=true it honours the
// eta vPOS hands back before answering. 202 means the outcome is still unknown.
func (h *TransactionHandler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	wait := false
	if v := r.URL.Query().Get("wait"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			respondWithError(w, domain.NewValidationError("wait must be a boolean"))
			return
		}
		wait = parsed
	}

	t, ok := h.load(w, r)
	if !ok {
		return
	}

	outcome, err := h.service.CheckAndApply(r.Context(), t, wait)
	if err != nil {
		respondWithError(w, err)
		return
	}
	if outcome == nil {
		respondWithJSON(w, http.StatusAccepted, toTransactionResponse(t))
		return
	}
	respondWithJSON(w, http.StatusOK, toTransactionResponse(t))
}

func (h *TransactionHandler) load(w http.ResponseWriter, r *http.Request) (*domain.Transaction, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		respondWithError(w, domain.NewTransactionNotFoundError(raw))
		return nil, false
	}
	t, err := h.service.FindByID(r.Context(), id)
	if err != nil {
		respondWithError(w, err)
		return nil, false
	}
	return t, true
}

func (h *TransactionHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, domain.NewValidationError("invalid request body: "+err.Error()))
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		respondWithError(w, domain.NewValidationError(err.Error()))
		return false
	}
	return true
}
