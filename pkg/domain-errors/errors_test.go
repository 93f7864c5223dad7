package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches the outer code", func(t *testing.T) {
		err := New(CodeInsufficientStock, "asked for 5, have 3")
		assert.True(t, HasCode(err, CodeInsufficientStock))
		assert.False(t, HasCode(err, CodeNotFound))
	})

	t.Run("matches a wrapped code", func(t *testing.T) {
		inner := New(CodeConcurrentConflict, "lost decrement race")
		outer := Wrap(inner, CodeInternal, "administer failed")
		assert.True(t, HasCode(outer, CodeConcurrentConflict))
		assert.True(t, HasCode(outer, CodeInternal))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
	})
}

func TestWrap(t *testing.T) {
	t.Run("nil cause yields nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, CodeInternal, "ignored"))
	})

	t.Run("cause stays reachable via errors.Is", func(t *testing.T) {
		cause := errors.New("row locked")
		err := Wrap(cause, CodeConcurrentConflict, "allocation raced")
		require.Error(t, err)
		assert.True(t, errors.Is(err, cause))
	})

	t.Run("cause survives a second fmt wrap", func(t *testing.T) {
		err := fmt.Errorf("administer: %w", New(CodeInventoryExhausted, "no eligible batch"))
		assert.True(t, HasCode(err, CodeInventoryExhausted))
	})
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeNotFound, CodeOf(New(CodeNotFound, "no such batch")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("driver failure")))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(New(CodeConcurrentConflict, "raced")))
	assert.False(t, Retryable(New(CodeInventoryExhausted, "empty")))
}
