package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/tasklane/todo-api/internal/apperr"
	"github.com/tasklane/todo-api/internal/models"
)

var alphaSpaceRegex = regexp.MustCompile(`^[\p{L} ]+$`)

// Validator checks request structs against their validate tags and reports
// the first failure per field, keyed by the field's JSON name.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	// Registration of built-in-shaped rules cannot fail
	_ = v.RegisterValidation("alphaspace", func(fl validator.FieldLevel) bool {
		return alphaSpaceRegex.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("todostatus", func(fl validator.FieldLevel) bool {
		return models.TodoStatus(fl.Field().String()).Valid()
	})

	return &Validator{validate: v}
}

// Struct validates s. It returns nil when s is valid, otherwise an
// apperr validation error holding the field messages.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Internal(err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := fields[fe.Field()]; seen {
			continue
		}
		fields[fe.Field()] = Message(fe.Field(), fe.Tag(), fe.Param())
	}
	return apperr.Validation(fields)
}

// Message renders the client-facing message for a failed rule.
func Message(field, tag, param string) string {
	switch tag {
	case "required":
		return fmt.Sprintf("%s field is required.", field)
	case "min":
		return fmt.Sprintf("%s input must be at least %s characters long.", field, param)
	case "max":
		return fmt.Sprintf("%s input must not exceed %s characters.", field, param)
	case "email":
		return fmt.Sprintf("%s input must be a valid email address.", field)
	case "alphaspace":
		return fmt.Sprintf("%s input must contain only letters and spaces.", field)
	case "eqfield":
		return fmt.Sprintf("%s input must match %s.", field, strings.ToLower(param))
	case "todostatus":
		return fmt.Sprintf("%s must be todo, in progress, or done.", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s.", field, strings.ReplaceAll(param, " ", ", "))
	case "gte":
		return fmt.Sprintf("%s must be at least %s.", field, param)
	default:
		return fmt.Sprintf("%s input is invalid.", field)
	}
}
