// Package validation translates go-playground/validator failures into
// field-keyed messages.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/pageza/foodgram/backend/internal/apperror"
)

var (
	usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)
	slugPattern     = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)

	once     sync.Once
	instance *validator.Validate
)

// Validator returns the shared validator with the custom tags registered.
func Validator() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			return usernamePattern.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
			return slugPattern.MatchString(fl.Field().String())
		})
		instance = v
	})
	return instance
}

// Struct validates s and returns an apperror validation error keyed by the
// JSON field names, or nil.
func Struct(s any) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string][]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = append(fields[fe.Field()], Message(fe.Tag(), fe.Param()))
	}
	return apperror.Validation(fields)
}

// Field validates a single value against tag and records any failure under
// name in fields.
func Field(fields map[string][]string, name string, value any, tag string) {
	err := Validator().Var(value, tag)
	if err == nil {
		return
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		fields[name] = append(fields[name], err.Error())
		return
	}
	for _, fe := range verrs {
		fields[name] = append(fields[name], Message(fe.Tag(), fe.Param()))
	}
}

// Message renders the user-facing text for a failed tag.
func Message(tag, param string) string {
	switch tag {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", param)
	case "min":
		return fmt.Sprintf("Ensure this field has at least %s characters.", param)
	case "gte":
		return fmt.Sprintf("Ensure this value is greater than or equal to %s.", param)
	case "lte":
		return fmt.Sprintf("Ensure this value is less than or equal to %s.", param)
	case "username":
		return "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."
	case "slug":
		return "Enter a valid slug consisting of letters, numbers, underscores or hyphens."
	default:
		return "Invalid value."
	}
}
