package apperr

import (
	"errors"
	"net/http"
)

// AppError carries a stable code alongside a user-facing message
type AppError struct {
	Code    string
	Message string
	Origin  error
}

func (e *AppError) Error() string {
	if e.Origin != nil {
		return e.Message + ": " + e.Origin.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Origin
}

const (
	NotFound     = "NOT_FOUND"
	InvalidInput = "INVALID_INPUT"
	Forbidden    = "FORBIDDEN"

	Unauthorized       = "UNAUTHORIZED"
	InvalidToken       = "INVALID_TOKEN"
	InvalidCredentials = "INVALID_CREDENTIALS"
	UserAlreadyExists  = "USER_ALREADY_EXISTS"

	ProfileIncomplete = "PROFILE_INCOMPLETE"
	UploadFailed      = "UPLOAD_FAILED"
	Database          = "DATABASE"
)

// New creates an AppError
func New(code, message string, origin error) *AppError {
	return &AppError{Code: code, Message: message, Origin: origin}
}

// NotFoundf is a shorthand for a not-found error on a named resource
func NotFoundf(resource string, origin error) *AppError {
	return &AppError{Code: NotFound, Message: resource + " not found", Origin: origin}
}

// Invalid is a shorthand for an input validation error
func Invalid(message string) *AppError {
	return &AppError{Code: InvalidInput, Message: message}
}

// DB wraps a store failure; the message shown to users stays generic
func DB(origin error) *AppError {
	return &AppError{Code: Database, Message: "something went wrong, please try again", Origin: origin}
}

// Response is the JSON body of every error reply
type Response struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// ResponseOf builds the reply body for err
func ResponseOf(err error) Response {
	return Response{Error: PublicMessage(err), Code: CodeOf(err)}
}

// CodeOf returns the code of the first AppError in err's chain
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// Is reports whether err carries the given code
func Is(err error, code string) bool {
	return CodeOf(err) == code
}

// PublicMessage returns the text that may be shown to the end user
func PublicMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "something went wrong, please try again"
}

// HTTPStatus maps an error to a response status code
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case NotFound:
		return http.StatusNotFound
	case InvalidInput, ProfileIncomplete:
		return http.StatusBadRequest
	case Unauthorized, InvalidToken, InvalidCredentials:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case UserAlreadyExists:
		return http.StatusConflict
	case UploadFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
