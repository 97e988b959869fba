package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is the shared validator for request payloads. Violation reports
// use the json field names so clients see what they actually sent.
var validate = validator.New()

func init() {
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// FieldError reports one violated constraint on one request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// validateStruct runs tag validation and flattens the result to one entry per
// violated field, so a single response lists everything wrong with a request.
func validateStruct(value any) []FieldError {
	err := validate.Struct(value)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []FieldError{{Message: "invalid request"}}
	}

	fieldErrors := make([]FieldError, 0, len(validationErrors))
	for _, violation := range validationErrors {
		fieldErrors = append(fieldErrors, FieldError{
			Field:   violation.Field(),
			Message: fieldMessage(violation),
		})
	}
	return fieldErrors
}

func fieldMessage(violation validator.FieldError) string {
	switch violation.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		if violation.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", violation.Param())
		}
		return fmt.Sprintf("must be at least %s", violation.Param())
	case "max":
		if violation.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", violation.Param())
		}
		return fmt.Sprintf("must be at most %s", violation.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.Join(strings.Fields(violation.Param()), ", "))
	case "alphanum":
		return "must contain only letters and numbers"
	default:
		return fmt.Sprintf("failed %s validation", violation.Tag())
	}
}
