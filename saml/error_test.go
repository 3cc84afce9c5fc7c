package saml

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError_Error(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)

	t.Run("without-cause", func(t *testing.T) {
		err := newValidationErr(ErrorKindProfile, "audience mismatch")
		assert.Equal("audience mismatch", err.Error())
		assert.Nil(err.Unwrap())
	})

	t.Run("with-cause", func(t *testing.T) {
		err := wrapValidationErr(ErrorKindSignature, "signature invalid", ErrInvalidSignature)
		assert.Equal("signature invalid: invalid signature", err.Error())
		assert.True(errors.Is(err, ErrInvalidSignature))
	})
}
