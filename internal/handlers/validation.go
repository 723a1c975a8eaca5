package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"plantcare/internal/models"
)

const maxJSONBody = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
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

// bodyTooLargeError reports a JSON body over the read limit.
type bodyTooLargeError struct {
	limit int64
}

func (e *bodyTooLargeError) Error() string {
	return fmt.Sprintf("request body must not exceed %d bytes", e.limit)
}

// decodeJSON reads a single JSON object into dst and validates it. Oversized
// bodies fail with *bodyTooLargeError; every other failure is a
// *models.ValidationError naming the offending field where possible.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		return describeDecodeError(err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return &bodyTooLargeError{limit: maxErr.Limit}
		}
		return &models.ValidationError{Message: "request body must contain a single JSON object"}
	}
	if err := validate.Struct(dst); err != nil {
		return describeValidationError(err)
	}
	return nil
}

func describeDecodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return &bodyTooLargeError{limit: maxErr.Limit}
	case errors.As(err, &typeErr):
		return &models.ValidationError{
			Field:   typeErr.Field,
			Value:   typeErr.Value,
			Message: fmt.Sprintf("%s must be a %s, got %s", typeErr.Field, typeErr.Type.Kind(), typeErr.Value),
		}
	case errors.As(err, &syntaxErr):
		return &models.ValidationError{Message: fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset)}
	case errors.Is(err, io.EOF):
		return &models.ValidationError{Message: "request body is required"}
	default:
		return &models.ValidationError{Message: fmt.Sprintf("invalid request body: %v", err)}
	}
}

func describeValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &models.ValidationError{Message: err.Error()}
	}

	fe := verrs[0]
	field := fe.Field()
	var msg string
	switch fe.Tag() {
	case "required":
		msg = field + " is required"
	case "notblank":
		msg = field + " must not be blank"
	case "gte", "min":
		msg = fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lte", "max":
		msg = fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	default:
		msg = fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
	if fe.Kind() == reflect.String && (fe.Tag() == "min" || fe.Tag() == "max") {
		msg = fmt.Sprintf("%s length must be %s %s characters", field, map[string]string{"min": "at least", "max": "at most"}[fe.Tag()], fe.Param())
	}

	return &models.ValidationError{
		Field:   field,
		Value:   fmt.Sprint(fe.Value()),
		Message: msg,
	}
}
