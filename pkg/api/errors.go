package api

import "fmt"

// ErrorType represents the category of an API error.
type ErrorType string

const (
	ErrorTypeServerError        ErrorType = "server_error"
	ErrorTypeInvalidRequest     ErrorType = "invalid_request"
	ErrorTypeNotFound           ErrorType = "not_found"
	ErrorTypeUnauthenticated    ErrorType = "unauthenticated"
	ErrorTypeDuplicateIdentity  ErrorType = "duplicate_identity"
	ErrorTypeInvalidCredentials ErrorType = "invalid_credentials"
	ErrorTypeTooManyRequests    ErrorType = "too_many_requests"
	ErrorTypeStoreUnavailable   ErrorType = "store_unavailable"
	ErrorTypeUpstreamError      ErrorType = "upstream_error"
	ErrorTypeUnsupportedMedia   ErrorType = "unsupported_media_type"
	ErrorTypeUnprocessable      ErrorType = "unprocessable"
	ErrorTypeForbidden          ErrorType = "forbidden"
)

// APIError represents a structured API error with type, param, and message.
// The message is what clients display; the type is the stable machine-readable kind.
type APIError struct {
	Type    ErrorType
	Param   string
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (param: %s)", e.Type, e.Message, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorResponse is the JSON body written for every error:
//
//	{"error": "Email is already in use!", "type": "duplicate_identity"}
type ErrorResponse struct {
	Error string    `json:"error"`
	Type  ErrorType `json:"type"`
	Param string    `json:"param,omitempty"`
}

// Response converts the error into its wire representation.
func (e *APIError) Response() ErrorResponse {
	return ErrorResponse{Error: e.Message, Type: e.Type, Param: e.Param}
}

// NewInvalidRequestError creates an APIError for invalid request parameters.
func NewInvalidRequestError(param, message string) *APIError {
	return &APIError{
		Type:    ErrorTypeInvalidRequest,
		Param:   param,
		Message: message,
	}
}

// NewNotFoundError creates an APIError for resources that cannot be found.
func NewNotFoundError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewServerError creates an APIError for internal server errors.
func NewServerError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeServerError,
		Message: message,
	}
}

// NewUnauthenticatedError creates an APIError for requests without a verified identity.
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Type:    ErrorTypeUnauthenticated,
		Message: "Unauthorized",
	}
}

// NewDuplicateIdentityError is returned when signing up with a registered email.
func NewDuplicateIdentityError() *APIError {
	return &APIError{
		Type:    ErrorTypeDuplicateIdentity,
		Message: "Email is already in use!",
	}
}

// NewInvalidCredentialsError covers both unknown email and wrong password.
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Type:    ErrorTypeInvalidCredentials,
		Message: "Invalid email or password",
	}
}

// NewTooManyRequestsError creates an APIError for rate limiting.
func NewTooManyRequestsError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeTooManyRequests,
		Message: message,
	}
}

// NewStoreUnavailableError creates an APIError for a failing storage backend.
// Clients may retry.
func NewStoreUnavailableError() *APIError {
	return &APIError{
		Type:    ErrorTypeStoreUnavailable,
		Message: "Storage temporarily unavailable, please retry",
	}
}

// NewUpstreamError creates an APIError for failures of the tutoring backend.
func NewUpstreamError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeUpstreamError,
		Message: message,
	}
}

// NewUnsupportedMediaError creates an APIError for uploads of unknown formats.
func NewUnsupportedMediaError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeUnsupportedMedia,
		Message: message,
	}
}

// NewUnprocessableError creates an APIError for well-formed input that cannot be used.
func NewUnprocessableError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeUnprocessable,
		Message: message,
	}
}

// NewForbiddenError creates an APIError for requests refused by policy.
func NewForbiddenError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeForbidden,
		Message: message,
	}
}
