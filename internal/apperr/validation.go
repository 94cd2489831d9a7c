package apperr

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ValidationDetail describes one rejected input field.
type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Validation converts validator errors into a BadRequest carrying per-field details.
// Errors that are not validator.ValidationErrors are wrapped as Internal.
func Validation(err error) *Error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return Internal(err)
	}
	details := make([]ValidationDetail, 0, len(errs))
	for _, fe := range errs {
		details = append(details, ValidationDetail{
			Field:   fe.Field(),
			Message: validationMessage(fe),
			Code:    "validation_" + fe.Tag(),
		})
	}
	return &Error{Kind: KindBadRequest, Code: CodeValidation, Message: "invalid input", Details: details}
}

// InvalidField builds a single-field validation error for checks the tags cannot express.
func InvalidField(field, tag, msg string) *Error {
	return &Error{
		Kind:    KindBadRequest,
		Code:    CodeValidation,
		Message: "invalid input",
		Details: []ValidationDetail{{Field: field, Message: msg, Code: "validation_" + tag}},
	}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("Field '%s' is required", fe.Field())
	case "gt":
		return fmt.Sprintf("Field '%s' must be greater than %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("Field '%s' must not exceed %s in length", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("Field '%s' must be one of [%s]", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("Field validation for '%s' failed on the '%s' tag", fe.Field(), fe.Tag())
	}
}
