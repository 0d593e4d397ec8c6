package handler

import (
	"net/http"

	"github.com/DanielPopoola/vpos-gateway/internal/core/domain"
	"github.com/DanielPopoola/vpos-gateway/internal/core/fee"
	"github.com/shopspring/decimal"
)

// HandleQuoteFee returns the fee breakdown for ?amount= under the configured fee structure
// @Summary      Quote the processing fee
// @Tags         fees
// @Produce      json
// @Param        amount  query     string       true  "Gross amount"  example:"1000.00"
// @Success      200     {object}  APIResponse  "Fee breakdown"
// @Failure      400     {object}  APIResponse  "Invalid amount"
// @Failure      404     {object}  APIResponse  "No fee structure configured"
// @Router       /fees [get]
func (h *TransactionHandler) HandleQuoteFee(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("amount")
	amount, err := decimal.NewFromString(raw)
	if err != nil || amount.IsNegative() {
		respondWithError(w, domain.NewInvalidAmountError(raw))
		return
	}

	breakdown := fee.Compute(amount, h.fees)
	if breakdown == nil {
		respondWithCode(w, http.StatusNotFound, ErrCodeFeeNotConfigured, "no fee percent is configured")
		return
	}
	respondWithJSON(w, http.StatusOK, breakdown)
}
