package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	apierrors "taskdesk/backend/internal/errors"
)

// text is a request scalar. JSON strings and numbers both decode into it,
// anything else is a type error on the field. A null leaves the field absent.
type text string

func (t *text) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	switch c := data[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = text(s)
	case c == '-' || (c >= '0' && c <= '9'):
		*t = text(data)
	default:
		return &json.UnmarshalTypeError{Value: jsonKind(c), Type: reflect.TypeOf("")}
	}
	return nil
}

func (t *text) ptr() *string {
	if t == nil {
		return nil
	}
	s := string(*t)
	return &s
}

func jsonKind(c byte) string {
	switch c {
	case '{':
		return "object"
	case '[':
		return "array"
	case 't', 'f':
		return "bool"
	default:
		return "null"
	}
}

// pythonKinds names JSON kinds the way clients of this API expect to see
// them in the non-object body message.
var pythonKinds = map[string]string{
	"array":  "list",
	"string": "str",
	"number": "int",
	"bool":   "bool",
}

// bindJSON binds the request body into dst. An empty body binds as an empty
// object so the services report missing fields.
func bindJSON(c *gin.Context, dst any) error {
	if c.Request.Body == nil {
		return nil
	}

	err := c.ShouldBindBodyWith(dst, binding.JSON)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		if typeErr.Field == "" {
			return apierrors.FieldError(apierrors.NonFieldErrors,
				fmt.Sprintf("Invalid data. Expected a dictionary, but got %s.", bodyKind(c, typeErr.Value)))
		}
		return apierrors.FieldError(typeErr.Field, apierrors.MsgInvalidString)
	}

	return &apierrors.ParseError{Err: err}
}

// bodyKind names the kind of a non-object body. Numbers are split into int
// and float by their literal.
func bodyKind(c *gin.Context, value string) string {
	if value == "number" {
		if raw, ok := c.Get(gin.BodyBytesKey); ok {
			if body, ok := raw.([]byte); ok && bytes.ContainsAny(body, ".eE") {
				return "float"
			}
		}
	}
	if kind, ok := pythonKinds[value]; ok {
		return kind
	}
	return value
}
