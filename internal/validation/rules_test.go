package validation

import (
	"encoding/base64"
	"testing"

	validation "github.com/jellydator/validation"
	"github.com/stretchr/testify/assert"

	apperrors "github.com/allisson/fieldcrypt/internal/errors"
)

func TestIdentifier(t *testing.T) {
	t.Run("accepts plain identifiers", func(t *testing.T) {
		for _, s := range []string{"users", "phone_number", "_tmp", "T1"} {
			assert.NoError(t, validation.Validate(s, Identifier), s)
		}
	})

	t.Run("rejects anything that could change a query", func(t *testing.T) {
		for _, s := range []string{"1users", "users;drop", "a-b", "users.phone", "na me"} {
			assert.Error(t, validation.Validate(s, Identifier), s)
		}
	})
}

func TestBase64(t *testing.T) {
	assert.NoError(t, validation.Validate(base64.StdEncoding.EncodeToString([]byte("abc")), Base64))
	assert.NoError(t, validation.Validate("", Base64))
	assert.Error(t, validation.Validate("not base64!!", Base64))
}

func TestMinDecodedLength(t *testing.T) {
	short := base64.StdEncoding.EncodeToString(make([]byte, 8))
	long := base64.StdEncoding.EncodeToString(make([]byte, 32))

	assert.Error(t, validation.Validate(short, MinDecodedLength(32)))
	assert.NoError(t, validation.Validate(long, MinDecodedLength(32)))
	assert.NoError(t, validation.Validate("%%%", MinDecodedLength(32)))
}

func TestWrapValidationError(t *testing.T) {
	assert.NoError(t, WrapValidationError(nil))

	err := WrapValidationError(validation.Validate(" x", NoWhitespace))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	assert.Error(t, validation.Validate("   ", NotBlank))
}
