// Package errors defines the error values services return and renders them as
// HTTP responses. Import it as apierrors.
package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Field messages shared by the services and the binding layer.
const (
	NonFieldErrors = "non_field_errors"

	MsgRequired             = "This field is required."
	MsgBlank                = "This field may not be blank."
	MsgInvalidEmail         = "Enter a valid email address."
	MsgInvalidUUID          = "Must be a valid UUID."
	MsgInvalidString        = "Not a valid string."
	MsgInvalidValue         = "Invalid value."
	MsgEmailTaken           = "user with this email address already exists."
	MsgTitleTaken           = "Task with this task name already exists."
	MsgIncorrectCredentials = "Incorrect Credentials"
	MsgTokenInvalid         = "Token is invalid or expired"
)

func MaxLengthMessage(limit string) string {
	return fmt.Sprintf("Ensure this field has no more than %s characters.", limit)
}

func MinLengthMessage(limit string) string {
	return fmt.Sprintf("Ensure this field has at least %s characters.", limit)
}

func DoesNotExistMessage(pk string) string {
	return fmt.Sprintf("Invalid pk \"%s\" - object does not exist.", pk)
}

var (
	ErrPermissionDenied = stderrors.New("permission denied")
	ErrNotFound         = stderrors.New("not found")
	ErrThrottled        = stderrors.New("request throttled")
)

// ValidationError maps request fields to the messages describing what is
// wrong with them. It renders as a 400 with the map as the body.
type ValidationError struct {
	Fields map[string][]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string][]string)}
}

// FieldError is shorthand for a ValidationError carrying a single message.
func FieldError(field, message string) *ValidationError {
	return NewValidationError().Add(field, message)
}

func (e *ValidationError) Add(field, message string) *ValidationError {
	e.Fields[field] = append(e.Fields[field], message)
	return e
}

func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(e.Fields[k], " ")))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// FromValidator converts validator output into a ValidationError. Field names
// come from the validator's tag name function, so callers should register one
// that reads the json tag.
func FromValidator(err error) error {
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return err
	}

	ve := NewValidationError()
	for _, fe := range verrs {
		ve.Add(fe.Field(), FieldMessage(fe))
	}
	return ve
}

func FieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return MsgRequired
	case "notblank":
		return MsgBlank
	case "email":
		return MsgInvalidEmail
	case "uuid", "uuid4":
		return MsgInvalidUUID
	case "max":
		return MaxLengthMessage(fe.Param())
	case "min":
		return MinLengthMessage(fe.Param())
	default:
		return MsgInvalidValue
	}
}

// AuthenticationError is a 401 carrying a detail and a machine readable code.
type AuthenticationError struct {
	Detail string `json:"detail"`
	Code   string `json:"code"`
}

func (e *AuthenticationError) Error() string {
	return e.Detail
}

var (
	ErrNotAuthenticated = &AuthenticationError{
		Detail: "Authentication credentials were not provided.",
		Code:   "not_authenticated",
	}
	// ErrTokenNotValid is returned for refresh and verify failures.
	ErrTokenNotValid = &AuthenticationError{
		Detail: MsgTokenInvalid,
		Code:   "token_not_valid",
	}
	// ErrAccessTokenNotValid is returned when a bearer token cannot authenticate a request.
	ErrAccessTokenNotValid = &AuthenticationError{
		Detail: "Given token not valid for any token type",
		Code:   "token_not_valid",
	}
	ErrBadAuthorizationHeader = &AuthenticationError{
		Detail: "Authorization header must contain two space-delimited values",
		Code:   "bad_authorization_header",
	}
	ErrUserNotFound = &AuthenticationError{
		Detail: "User not found",
		Code:   "user_not_found",
	}
	ErrUserInactive = &AuthenticationError{
		Detail: "User is inactive",
		Code:   "user_inactive",
	}
)

// ParseError wraps a malformed request body.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return "JSON parse error - " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
