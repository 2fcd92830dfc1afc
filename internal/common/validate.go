package common

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	validator "github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// DecodeAndValidate decodes the request body into dst and runs struct
// validation. Failures come back as a VALIDATION_ERROR AppError with
// per-field details so handlers can return them directly.
func DecodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &AppError{Code: "VALIDATION_ERROR", Message: "invalid request body", HTTPStatus: http.StatusBadRequest, Err: err}
	}
	return ValidateStruct(dst)
}

// ValidateStruct validates dst against its `validate` tags.
func ValidateStruct(dst any) error {
	if err := validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			details := make(map[string]string, len(fieldErrs))
			for _, fe := range fieldErrs {
				details[strings.ToLower(fe.Field())] = fe.Tag()
			}
			return &AppError{Code: "VALIDATION_ERROR", Message: "validation failed", HTTPStatus: http.StatusBadRequest, Details: details}
		}
		return &AppError{Code: "VALIDATION_ERROR", Message: "validation failed", HTTPStatus: http.StatusBadRequest, Err: err}
	}
	return nil
}
