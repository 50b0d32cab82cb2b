package telemetry

import "codeberg.org/mutker/vitalsd/internal/errors"

const (
	// Configuration Errors
	ErrInvalidChannelSet = errors.ErrorCode("telemetry_invalid_channel_set")

	// Append Errors
	ErrUnknownChannel = errors.ErrorCode("telemetry_unknown_channel")

	// Consistency Errors
	ErrStorePoisoned = errors.ErrorCode("telemetry_store_poisoned")
)
