// internal/auth/pin_test.go
package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePIN(t *testing.T) {
	assert.NoError(t, ValidatePIN("1234"))
	assert.NoError(t, ValidatePIN("002481"))
	assert.ErrorIs(t, ValidatePIN("123"), ErrWeakPIN)
	assert.ErrorIs(t, ValidatePIN(""), ErrWeakPIN)
	assert.ErrorIs(t, ValidatePIN("12a4"), ErrWeakPIN)
	assert.ErrorIs(t, ValidatePIN("1234 "), ErrWeakPIN)
}

func TestHashRoundTrip(t *testing.T) {
	hash, err := CreateHash("4711", Params)
	require.NoError(t, err)

	ok, err := ComparePINAndHash("4711", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ComparePINAndHash("4712", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDecodeHashRejectsGarbage(t *testing.T) {
	_, _, _, err := DecodeHash("not-a-hash")
	assert.ErrorIs(t, err, ErrInvalidHash)
}
