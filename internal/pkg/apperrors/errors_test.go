// internal/pkg/apperrors/errors_test.go
package apperrors

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeOf(t *testing.T) {
	err := New(CodeNotFound, "order not found")
	code, ok := CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, CodeNotFound, code)

	_, ok = CodeOf(io.EOF)
	assert.False(t, ok)

	_, ok = CodeOf(nil)
	assert.False(t, ok)
}

func TestCodeSurvivesWrapping(t *testing.T) {
	inner := New(CodeInsufficientStock, "insufficient stock")
	wrapped := fmt.Errorf("checkout failed: %w", inner)

	assert.True(t, IsCode(wrapped, CodeInsufficientStock))
	assert.False(t, IsCode(wrapped, CodeConflict))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeGatewayError, "gateway call failed")

	assert.True(t, IsCode(err, CodeGatewayError))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "GATEWAY_ERROR")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestIsComparesByCode(t *testing.T) {
	a := New(CodeConflict, "first")
	b := New(CodeConflict, "second")
	c := New(CodeNotFound, "other")

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}
