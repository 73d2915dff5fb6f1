// Package validate checks untrusted request input (body, query and path)
// before any business logic runs. Failures are always a single
// VALIDATION_ERROR listing every violated field.
package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ayush/project-tracker/internal/apierr"
)

// MaxBodyBytes bounds every JSON request body.
const MaxBodyBytes = 1 << 20

var v = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type normalizer interface {
	Normalize()
}

// Struct normalizes dst (when it knows how) and validates its tags.
func Struct(dst any) error {
	if n, ok := dst.(normalizer); ok {
		n.Normalize()
	}

	err := v.Struct(dst)
	if err == nil {
		return nil
	}

	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return fmt.Errorf("validate %T: %w", dst, err)
	}
	details := make([]apierr.FieldError, 0, len(ves))
	for _, fe := range ves {
		details = append(details, apierr.FieldError{Field: fe.Field(), Message: message(fe)})
	}
	return apierr.Validation(details...)
}

// Body decodes a JSON request body into dst and validates it.
func Body(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	dec := json.NewDecoder(r.Body)

	if err := dec.Decode(dst); err != nil {
		return decodeError(err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return apierr.Validation(apierr.FieldError{Field: "body", Message: "must contain a single JSON object"})
	}
	return Struct(dst)
}

// ID validates a path identifier and returns it in canonical lowercase form,
// which is how the stores key their records.
func ID(raw string) (string, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", apierr.Validation(apierr.FieldError{Field: "id", Message: "must be a valid UUID"})
	}
	return id.String(), nil
}

func decodeError(err error) error {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		maxErr    *http.MaxBytesError
	)
	switch {
	case errors.Is(err, io.EOF):
		return apierr.Validation(apierr.FieldError{Field: "body", Message: "is required"})
	case errors.As(err, &typeErr) && typeErr.Field != "":
		return apierr.Validation(apierr.FieldError{
			Field:   typeErr.Field,
			Message: fmt.Sprintf("must be of type %s", jsonType(typeErr.Type)),
		})
	case errors.As(err, &maxErr):
		return apierr.Validation(apierr.FieldError{
			Field:   "body",
			Message: fmt.Sprintf("must not exceed %d bytes", maxErr.Limit),
		})
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF), errors.As(err, &typeErr):
		return apierr.Validation(apierr.FieldError{Field: "body", Message: "must be a valid JSON object"})
	default:
		return apierr.Validation(apierr.FieldError{Field: "body", Message: "could not be decoded"})
	}
}

func jsonType(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice, reflect.Array:
		return "array"
	default:
		return "object"
	}
}

func message(fe validator.FieldError) string {
	unit := ""
	if fe.Kind() == reflect.String {
		unit = " characters"
	}
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "uuid":
		return "must be a valid UUID"
	case "min":
		return fmt.Sprintf("must be at least %s%s", fe.Param(), unit)
	case "max":
		return fmt.Sprintf("must be at most %s%s", fe.Param(), unit)
	case "oneof":
		return "must be one of: " + strings.Join(strings.Fields(fe.Param()), ", ")
	default:
		return "is invalid"
	}
}
