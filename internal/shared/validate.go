package shared

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

// Validator returns the process-wide validator. Field names in errors use json tags.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
	})
	return validate
}

// ValidateStruct runs struct validation and converts failures into a ValidationError.
func ValidateStruct(v any) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := &ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		field := strings.TrimPrefix(fe.Namespace(), rootNamespace(fe))
		if field == "" {
			field = fe.Field()
		}
		out.Fields[field] = fieldMessage(fe)
	}
	return out
}

func rootNamespace(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[:i+1]
	}
	return ""
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "min":
		return "must be at least " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of " + fe.Param()
	case "datetime":
		return "must be a date formatted as " + fe.Param()
	default:
		return "is invalid"
	}
}

// Merge folds other's fields into e, keeping existing messages. Either side may be nil.
func (e *ValidationError) Merge(other *ValidationError) *ValidationError {
	if other == nil || len(other.Fields) == 0 {
		return e
	}
	if e == nil {
		e = &ValidationError{Fields: map[string]string{}}
	}
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	for k, v := range other.Fields {
		if _, exists := e.Fields[k]; !exists {
			e.Fields[k] = v
		}
	}
	return e
}
