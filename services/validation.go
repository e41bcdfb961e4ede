package services

import (
	"strings"

	"casetrack-backend/models"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// validateStruct runs struct tags and wraps failures as a ValidationError
func validateStruct(v interface{}) error {
	if err := validate.Struct(v); err != nil {
		return &models.AppError{
			Kind:    models.KindValidation,
			Message: FormatValidationErrors(err),
		}
	}
	return nil
}

// FormatValidationErrors formats validation errors into readable messages
func FormatValidationErrors(err error) string {
	var errorMessages []string

	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, fieldError := range validationErrors {
			switch fieldError.Tag() {
			case "required":
				errorMessages = append(errorMessages, fieldError.Field()+" is required")
			case "min":
				errorMessages = append(errorMessages, fieldError.Field()+" must be at least "+fieldError.Param()+" characters/items")
			case "max":
				errorMessages = append(errorMessages, fieldError.Field()+" must be at most "+fieldError.Param()+" characters/items")
			case "oneof":
				errorMessages = append(errorMessages, fieldError.Field()+" must be one of: "+strings.ReplaceAll(fieldError.Param(), " ", ", "))
			default:
				errorMessages = append(errorMessages, fieldError.Field()+" is invalid")
			}
		}
	}

	if len(errorMessages) == 0 {
		return err.Error()
	}
	return strings.Join(errorMessages, "; ")
}
