package papers

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// validatorInstance returns the shared validator, reporting fields by their
// json names.
func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// validateStruct checks v against its validate tags and converts the first
// failure into a ValidationError.
func validateStruct(v any) error {
	return toValidationError(validatorInstance().Struct(v), "")
}

// validateVar checks a single value against tag, reporting it as field.
func validateVar(field string, v any, tag string) error {
	return toValidationError(validatorInstance().Var(v, tag), field)
}

func toValidationError(err error, field string) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ValidationError{Field: field, Reason: err.Error()}
	}
	fe := verrs[0]
	if field == "" {
		field = fe.Namespace()
		// Drop the struct name prefix: "Outcome.item_id" -> "item_id".
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
	}
	return &ValidationError{Field: field, Reason: describeTag(fe)}
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "min":
		return "must have at least " + fe.Param() + " entries"
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	default:
		return "failed " + fe.Tag() + " check"
	}
}
