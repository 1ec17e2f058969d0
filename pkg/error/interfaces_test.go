package error

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBaseError_Is(t *testing.T) {
	err := WrapError(CodePersistence, "write dataset", errors.New("disk full"))

	assert.True(t, errors.Is(err, ErrPersistence))
	assert.False(t, errors.Is(err, ErrProvider))

	wrapped := fmt.Errorf("market bonds: %w", err)
	assert.True(t, errors.Is(wrapped, ErrPersistence), "包装后仍应能识别错误代码")
}

func TestBaseError_ErrorString(t *testing.T) {
	err := NewError(CodeConfiguration, "FRED_API_KEY not set")
	assert.Equal(t, "CONFIGURATION: FRED_API_KEY not set", err.Error())

	cause := errors.New("permission denied")
	err = WrapError(CodePersistence, "save tracker", cause)
	assert.Equal(t, "PERSISTENCE: save tracker: permission denied", err.Error())
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeProvider, CodeOf(fmt.Errorf("x: %w", NewError(CodeProvider, "boom"))))
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))

	err := NewError(CodeProvider, "boom").WithContext("id", "^GSPC")
	assert.Equal(t, "^GSPC", err.Context["id"])
}
