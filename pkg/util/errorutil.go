package util

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes carried by DomainError.
const (
	CodeValidation          = "VALIDATION_FAILED"
	CodeNotFound            = "NOT_FOUND"
	CodeDuplicateInbound    = "DUPLICATE_INBOUND"
	CodeExtractionAmbiguous = "EXTRACTION_AMBIGUOUS"
	CodeUpstreamSendFailed  = "UPSTREAM_SEND_FAILED"
	CodeConflict            = "CONFLICT"
	CodeInternal            = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

// NewDuplicateInbound marks a replayed provider message. Callers treat it as
// an acknowledged no-op, not a failure.
func NewDuplicateInbound(inboundKey string) error {
	return NewDomainError(CodeDuplicateInbound, "inbound message already processed", http.StatusOK, map[string]any{
		"inboundKey": inboundKey,
	})
}

// NewExtractionAmbiguity signals a parsed value that needs user confirmation
// before it can be committed to the profile.
func NewExtractionAmbiguity(slot string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	details["slot"] = slot
	return NewDomainError(CodeExtractionAmbiguous, "extracted value requires confirmation", http.StatusConflict, details)
}

// NewUpstreamSendError wraps a transport send failure. Session state committed
// before the send attempt is never rolled back.
func NewUpstreamSendError(provider string, err error) error {
	return &DomainError{
		Code:       CodeUpstreamSendFailed,
		Message:    fmt.Sprintf("outbound send via %s failed", provider),
		HTTPStatus: http.StatusBadGateway,
		Details:    map[string]any{"provider": provider},
		Err:        err,
	}
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if de, ok := NewInternalError(err).(*DomainError); ok {
		return de
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}

// IsCode reports whether err is a DomainError carrying the given code.
func IsCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}
