package utils

import (
	"errors"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/go-playground/validator/v10"
)

// ProcessValidationErrors flattens a binding failure into field -> failed rule.
// Returns nil when the error is not a validation error (e.g. malformed JSON).
func ProcessValidationErrors(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}

	errorResponse := make(map[string]string, len(validationErrors))
	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}
	return errorResponse
}

func IsDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}
