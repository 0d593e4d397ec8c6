package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business logic error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeInvalidPhone        = "INVALID_PHONE"
	ErrCodeInvalidAmount       = "INVALID_AMOUNT"
	ErrCodeInvalidParent       = "INVALID_PARENT"
	ErrCodeDuplicateRefund     = "DUPLICATE_REFUND"
	ErrCodeTransactionNotFound = "TRANSACTION_NOT_FOUND"
	ErrCodeNotRequested        = "NOT_REQUESTED"
	ErrCodeContractViolation   = "CONTRACT_VIOLATION"
)

func NewValidationError(message string) *DomainError {
	return &DomainError{
		Code:    ErrCodeValidation,
		Message: message,
	}
}

func NewInvalidPhoneError(phone string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidPhone,
		Message: fmt.Sprintf("invalid national phone number of angola: %q", phone),
	}
}

func NewInvalidAmountError(amount string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidAmount,
		Message: fmt.Sprintf("invalid amount %s", amount),
	}
}

func NewInvalidParentError(reason string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidParent,
		Message: reason,
	}
}

func NewDuplicateRefundError(parentID string) *DomainError {
	return &DomainError{
		Code:    ErrCodeDuplicateRefund,
		Message: fmt.Sprintf("transaction %s already has a refund", parentID),
	}
}

func NewTransactionNotFoundError(id string) *DomainError {
	return &DomainError{
		Code:    ErrCodeTransactionNotFound,
		Message: fmt.Sprintf("transaction with ID %s not found", id),
	}
}

func NewNotRequestedError(id string) *DomainError {
	return &DomainError{
		Code:    ErrCodeNotRequested,
		Message: fmt.Sprintf("transaction %s has not been submitted to vPOS", id),
	}
}

// NewContractViolationError reports that vPOS did not hand back a tracking
// handle for a submission. The integration cannot continue safely.
func NewContractViolationError(id string) *DomainError {
	return &DomainError{
		Code:    ErrCodeContractViolation,
		Message: fmt.Sprintf("vPOS returned no location for transaction %s", id),
	}
}

// IsErrorCode checks if an error is a DomainError with a specific code
func IsErrorCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}
