package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"codeberg.org/mutker/vitalsd/internal/errors"
	"github.com/stretchr/testify/assert"
)

const errTest = errors.ErrorCode("test_code")

func TestErrorMessage(t *testing.T) {
	f := errors.New()

	assert.Equal(t, "Invalid interval value", f.New(errors.ErrInvalidInterval).Error())
	assert.Equal(t, "custom", f.WithMessage(errors.ErrInternal, "custom").Error())
	assert.Equal(t, "test_code: 42", f.WithData(errTest, 42).Error())
	assert.Equal(t, "Operation failed: boom", f.Wrap(errors.ErrOperationFailed, stderrors.New("boom")).Error())
}

func TestWithMessageKeepsCode(t *testing.T) {
	err := errors.New().New(errTest).WithMessage("other")

	assert.Equal(t, errTest, err.Code())
	assert.Equal(t, "other", err.Error())
}

func TestHasCode(t *testing.T) {
	f := errors.New()
	inner := f.New(errTest)
	outer := f.Wrap(errors.ErrOperationFailed, inner)
	wrapped := fmt.Errorf("context: %w", outer)

	assert.True(t, errors.HasCode(wrapped, errors.ErrOperationFailed))
	assert.True(t, errors.HasCode(wrapped, errTest))
	assert.False(t, errors.HasCode(wrapped, errors.ErrTimeout))
	assert.False(t, errors.HasCode(stderrors.New("plain"), errTest))
	assert.False(t, errors.HasCode(nil, errTest))
}

func TestIsMatchesByCode(t *testing.T) {
	f := errors.New()
	sentinel := f.New(errTest)

	assert.True(t, errors.Is(f.WithData(errTest, "x"), sentinel))
	assert.False(t, errors.Is(f.New(errors.ErrInternal), sentinel))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, errTest, errors.CodeOf(fmt.Errorf("x: %w", errors.New().New(errTest))))
	assert.Equal(t, errors.ErrInternal, errors.CodeOf(stderrors.New("plain")))
}
