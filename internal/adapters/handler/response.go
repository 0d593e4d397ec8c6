package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/DanielPopoola/vpos-gateway/internal/core/domain"
	"github.com/DanielPopoola/vpos-gateway/internal/core/ports"
)

const (
	ErrCodeInternal           = "INTERNAL_ERROR"
	ErrCodeGatewayUnavailable = "GATEWAY_UNAVAILABLE"
	ErrCodeFeeNotConfigured   = "FEE_NOT_CONFIGURED"
	ErrCodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	ErrCodeInvalidPayload     = "INVALID_PAYLOAD"
	ErrCodeForbidden          = "CONFIRMATION_FORBIDDEN"
	ErrCodeAlreadyConfirmed   = "ALREADY_CONFIRMED"
	ErrCodeUnhealthy          = "UNHEALTHY"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondWithJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := APIResponse{
		Success: status >= 200 && status < 300,
	}

	if response.Success {
		response.Data = data
	} else {
		if apiErr, ok := data.(*APIError); ok {
			response.Error = apiErr
		}
	}

	_ = json.NewEncoder(w).Encode(response)
}

func respondWithCode(w http.ResponseWriter, status int, code, message string) {
	respondWithJSON(w, status, &APIError{
		Code:    code,
		Message: message,
	})
}

func respondWithError(w http.ResponseWriter, err error) {
	status, apiErr := errorResponse(err)
	respondWithJSON(w, status, apiErr)
}

// errorResponse maps an error returned by the transaction service to the
// status and body sent to API clients.
func errorResponse(err error) (int, *APIError) {
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		status := http.StatusBadRequest
		switch domainErr.Code {
		case domain.ErrCodeValidation, domain.ErrCodeInvalidPhone, domain.ErrCodeInvalidAmount, domain.ErrCodeInvalidParent:
			status = http.StatusBadRequest
		case domain.ErrCodeTransactionNotFound:
			status = http.StatusNotFound
		case domain.ErrCodeDuplicateRefund, domain.ErrCodeNotRequested:
			status = http.StatusConflict
		case domain.ErrCodeContractViolation:
			status = http.StatusInternalServerError
		}
		return status, &APIError{Code: domainErr.Code, Message: domainErr.Message}
	}

	if errors.Is(err, ports.ErrGatewayUnavailable) {
		return http.StatusBadGateway, &APIError{Code: ErrCodeGatewayUnavailable, Message: err.Error()}
	}

	return http.StatusInternalServerError, &APIError{Code: ErrCodeInternal, Message: "internal server error"}
}
