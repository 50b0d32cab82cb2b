package api

import "codeberg.org/mutker/vitalsd/internal/errors"

const (
	ErrMalformedPayload = errors.ErrorCode("api_malformed_payload")
	ErrMissingChannel   = errors.ErrorCode("api_missing_channel")
	ErrNonFiniteValue   = errors.ErrorCode("api_non_finite_value")
	ErrUnauthorized     = errors.ErrorCode("api_unauthorized")
	ErrNoFrame          = errors.ErrorCode("api_no_frame")
)
