package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type customError struct {
	Msg string
}

func (e customError) Error() string { return e.Msg }

func TestWrap(t *testing.T) {
	baseErr := errors.New("base error")

	t.Run("wrap non-nil error", func(t *testing.T) {
		wrapped := Wrap(baseErr, "wrapped")
		require.Error(t, wrapped)
		assert.Equal(t, "wrapped: base error", wrapped.Error())
		assert.True(t, Is(wrapped, baseErr))
	})

	t.Run("wrap nil error", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, "wrapped"))
	})

	t.Run("domain error keeps its category", func(t *testing.T) {
		domainErr := Wrap(ErrConflict, "rotation already in progress")
		assert.True(t, Is(domainErr, ErrConflict))
		assert.False(t, Is(domainErr, ErrInvalidInput))
	})
}

func TestAs(t *testing.T) {
	err := Wrap(customError{Msg: "boom"}, "context")

	var target customError
	require.True(t, As(err, &target))
	assert.Equal(t, "boom", target.Msg)
}

func TestJoin(t *testing.T) {
	err := Join(ErrNotFound, nil, ErrInternal)
	require.Error(t, err)
	assert.True(t, Is(err, ErrNotFound))
	assert.True(t, Is(err, ErrInternal))
	assert.NoError(t, Join(nil, nil))
}
