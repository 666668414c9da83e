package services

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	apierrors "taskdesk/backend/internal/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return v
}

// checkFields runs the struct tags and returns the collected field errors.
// The returned ValidationError is never nil so callers can add domain level
// errors (uniqueness, references) to it before deciding.
func checkFields(input any) (*apierrors.ValidationError, error) {
	err := apierrors.FromValidator(validate.Struct(input))
	if err == nil {
		return apierrors.NewValidationError(), nil
	}

	var ve *apierrors.ValidationError
	if errors.As(err, &ve) {
		return ve, nil
	}
	return nil, err
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}

func invalid(ve *apierrors.ValidationError, field string) bool {
	_, ok := ve.Fields[field]
	return ok
}

// normalizeEmail lower-cases the domain part, leaving the local part alone.
func normalizeEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at] + "@" + strings.ToLower(email[at+1:])
}
