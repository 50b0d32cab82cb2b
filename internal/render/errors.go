package render

import "codeberg.org/mutker/vitalsd/internal/errors"

const (
	ErrInvalidOptions = errors.ErrorCode("render_invalid_options")
	ErrDrawFailed     = errors.ErrorCode("render_draw_failed")
	ErrEncodeFailed   = errors.ErrorCode("render_encode_failed")
)
