package validators

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"safecircle/internal/utils"
)

var validate *validator.Validate

var presetRegex = regexp.MustCompile(`(?i)^[a-z0-9_-]{1,32}$`)

func init() {
	validate = validator.New()

	// report json names so messages match what the client sent
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	validate.RegisterValidation("preset", validatePreset)
	validate.RegisterValidation("contact_email", validateContactEmail)
	validate.RegisterValidation("sort_order", validateSortOrder)
}

// ValidationError represents a field validation error
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	var messages []string
	for _, err := range v {
		messages = append(messages, fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	return strings.Join(messages, "; ")
}

// ValidateStruct validates a struct and returns detailed errors
func ValidateStruct(s interface{}) ValidationErrors {
	var validationErrors ValidationErrors

	err := validate.Struct(s)
	if err != nil {
		fieldErrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return ValidationErrors{{Message: err.Error()}}
		}
		for _, err := range fieldErrors {
			validationErrors = append(validationErrors, ValidationError{
				Field:   err.Field(),
				Tag:     err.Tag(),
				Value:   fmt.Sprintf("%v", err.Value()),
				Message: getErrorMessage(err),
			})
		}
	}

	return validationErrors
}

// AsAppError converts validation failures into the API error shape, or nil.
func AsAppError(errs ValidationErrors) error {
	if len(errs) == 0 {
		return nil
	}
	return utils.NewValidationError(errs.Error())
}

func getErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", err.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
	case "gte", "lte":
		return fmt.Sprintf("%s is out of range", err.Field())
	case "latitude":
		return "lat must be between -90 and 90"
	case "longitude":
		return "lng must be between -180 and 180"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
	case "preset":
		return utils.ErrInvalidPreset
	case "contact_email":
		return "invalid email address"
	case "sort_order":
		return "order must be asc or desc"
	default:
		return fmt.Sprintf("validation failed for %s", err.Field())
	}
}

func validatePreset(fl validator.FieldLevel) bool {
	return presetRegex.MatchString(fl.Field().String())
}

func validateContactEmail(fl validator.FieldLevel) bool {
	return utils.IsValidEmail(utils.NormalizeEmail(fl.Field().String()))
}

func validateSortOrder(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	return value == "" || value == "asc" || value == "desc"
}
