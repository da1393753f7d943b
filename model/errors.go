package model

import "fmt"

// Standard error codes.
const (
	ErrBadRequest         = "BAD_REQUEST"
	ErrUnauthorized       = "UNAUTHORIZED"
	ErrNotFound           = "NOT_FOUND"
	ErrConflict           = "CONFLICT"
	ErrValidationError    = "VALIDATION_ERROR"
	ErrInternalError      = "INTERNAL_ERROR"
	ErrBackendUnavailable = "BACKEND_UNAVAILABLE"
)

// Dialog-specific error codes.
const (
	ErrSessionNotFound = "SESSION_NOT_FOUND"
	ErrConnectInFlight = "CONNECT_IN_FLIGHT"
	ErrRecoveryPending = "RECOVERY_PENDING"
)

// Provider error numbers classified by the connect orchestrator. Any other
// number surfaces as a plain form error.
const (
	// ProviderErrCertUntrusted is raised when the server certificate chain
	// cannot be verified; resolved by the trust-certificate recovery dialog.
	ProviderErrCertUntrusted = -2146893019

	// ProviderErrFirewallBlocked is raised when the client IP is not allowed
	// through the server firewall; resolved by the add-firewall-rule dialog.
	ProviderErrFirewallBlocked = 40615
)

// ErrorEnvelope is the standard error response envelope returned to the host
// UI. It implements the error interface.
type ErrorEnvelope struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *ErrorEnvelope) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FieldError describes a field-level validation error.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewBadRequestError returns a BAD_REQUEST error.
func NewBadRequestError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrBadRequest, Message: msg}
}

// NewUnauthorizedError returns an UNAUTHORIZED error.
func NewUnauthorizedError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrUnauthorized, Message: msg}
}

// NewNotFoundError returns a NOT_FOUND error.
func NewNotFoundError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrNotFound, Message: msg}
}

// NewConflictError returns a CONFLICT error.
func NewConflictError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrConflict, Message: msg}
}

// NewValidationError returns a VALIDATION_ERROR with field-level details.
func NewValidationError(details []FieldError) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrValidationError,
		Message: "One or more fields are invalid",
		Details: details,
	}
}

// NewInternalError returns an INTERNAL_ERROR.
func NewInternalError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrInternalError,
		Message: "An unexpected error occurred",
	}
}

// NewBackendUnavailableError returns a BACKEND_UNAVAILABLE error.
func NewBackendUnavailableError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrBackendUnavailable,
		Message: "The remote service is temporarily unavailable",
	}
}

// NewSessionNotFoundError returns a SESSION_NOT_FOUND error.
func NewSessionNotFoundError(sessionID string) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrSessionNotFound,
		Message: fmt.Sprintf("dialog session %q not found", sessionID),
	}
}

// NewRecoveryPendingError returns a RECOVERY_PENDING error. Raised when a
// recovery-resolution action arrives without a matching recovery dialog.
func NewRecoveryPendingError(kind RecoveryKind) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrRecoveryPending,
		Message: fmt.Sprintf("no %q recovery dialog is pending", kind),
	}
}

// NewConnectInFlightError returns a CONNECT_IN_FLIGHT error.
func NewConnectInFlightError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrConnectInFlight,
		Message: "A connection attempt is already in progress",
	}
}

// ConnectResult is the outcome of the remote validate-and-save call. A
// non-zero ErrorNumber carries the provider's failure classification.
type ConnectResult struct {
	Success      bool   `json:"success"`
	ErrorNumber  int    `json:"errorNumber,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	ConnectionID string `json:"connectionId,omitempty"`
}
