package validation

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Error describes the first field of an entity that failed validation
type Error struct {
	Entity     string
	Field      string
	Constraint string
	Value      interface{}
}

func (e *Error) Error() string {
	if e.Entity == "" {
		return fmt.Sprintf("%s %s", e.Field, e.Constraint)
	}
	return fmt.Sprintf("%s: %s %s", e.Entity, e.Field, e.Constraint)
}

var (
	once     sync.Once
	validate *validator.Validate
)

func engine() *validator.Validate {
	once.Do(func() {
		validate = validator.New()

		// Report fields by their JSON names so messages match the wire format
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})

		_ = validate.RegisterValidation("percent", func(fl validator.FieldLevel) bool {
			v := fl.Field().Float()
			return !math.IsNaN(v) && v >= 0 && v <= 100
		})
	})
	return validate
}

// Struct validates v against its `validate` tags and returns *Error for the
// first violated constraint.
func Struct(entity string, v interface{}) error {
	err := engine().Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("%s: %w", entity, err)
	}

	fe := fieldErrs[0]
	return &Error{
		Entity:     entity,
		Field:      fe.Field(),
		Constraint: describe(fe),
		Value:      fe.Value(),
	}
}

// Fail builds an *Error for checks that cannot be expressed as struct tags.
func Fail(entity, field, constraint string, value interface{}) error {
	return &Error{Entity: entity, Field: field, Constraint: constraint, Value: value}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "percent":
		return fmt.Sprintf("must be within 0..100, got %v", fe.Value())
	case "gte", "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be >= %s, got %v", fe.Param(), fe.Value())
	case "lte", "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be <= %s, got %v", fe.Param(), fe.Value())
	case "gt":
		return fmt.Sprintf("must be > %s, got %v", fe.Param(), fe.Value())
	case "url", "http_url":
		return fmt.Sprintf("must be a valid URL, got %q", fe.Value())
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %v", fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("failed %q constraint, got %v", fe.Tag(), fe.Value())
	}
}
