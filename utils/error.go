package utils

import "errors"

// Error taxonomy shared across the HTTP layer.
var (
	ErrorRecordNotFound = errors.New("record not found")
	ErrorValidation     = errors.New("validation failed")
	ErrorUnauthorized   = errors.New("unauthorized")
)
