// Package request decodes and validates JSON request bodies.
package request

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/KretovDmitry/bistro/internal/interface/api/rest/header"
	"github.com/KretovDmitry/bistro/internal/models/errs"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DecodeJSON reads the body into v and validates it.
func DecodeJSON(r *http.Request, v any) error {
	if !header.IsApplicationJSONContentType(r) {
		return fmt.Errorf("%w: content type %q", errs.ErrInvalidRequest, r.Header.Get("Content-Type"))
	}

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return checkJSONDecodeError(err)
	}

	return Validate(v)
}

// Validate runs struct tag validation and reports the first offending field.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return fmt.Errorf("%w: %s", errs.ErrInvalidRequest, err)
	}

	fe := ve[0]
	return &errs.ValidationError{Field: fieldPath(fe), Message: message(fe)}
}

// ParseDecimal decodes a JSON number or numeric string, reporting failures against field.
func ParseDecimal(field string, data []byte) (decimal.Decimal, error) {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return decimal.Zero, &errs.ValidationError{Field: field, Message: "must be a decimal number"}
	}
	return d, nil
}

func checkJSONDecodeError(err error) error {
	var ve *errs.ValidationError
	if errors.As(err, &ve) {
		return ve
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &errs.ValidationError{
			Field:   typeErr.Field,
			Message: fmt.Sprintf("must be of type %s, got %s", typeErr.Type, typeErr.Value),
		}
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: malformed JSON", errs.ErrInvalidRequest)
	}
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: empty body", errs.ErrInvalidRequest)
	}
	return fmt.Errorf("%w: %s", errs.ErrInvalidRequest, err)
}

// fieldPath drops the struct name from the namespace: "Req.items[0].quantity" -> "items[0].quantity".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i > -1 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.Slice || fe.Kind() == reflect.String {
			return fmt.Sprintf("must contain at least %s element(s)", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must not exceed %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "email":
		return "must be a valid email"
	case "datetime":
		return fmt.Sprintf("must match layout %s", fe.Param())
	}
	return fmt.Sprintf("failed on %s", fe.Tag())
}
