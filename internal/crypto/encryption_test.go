package crypto

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() string {
	key := make([]byte, KeySize)
	for i := range key {
		key[i] = byte(i)
	}
	return base64.StdEncoding.EncodeToString(key)
}

func TestNewEncryptor(t *testing.T) {
	t.Run("valid 32-byte key", func(t *testing.T) {
		encryptor, err := NewEncryptor(testKey())
		require.NoError(t, err)
		assert.NotNil(t, encryptor)
	})

	t.Run("invalid base64", func(t *testing.T) {
		_, err := NewEncryptor("not-valid-base64!!!")
		assert.Error(t, err)
	})

	t.Run("wrong key length", func(t *testing.T) {
		_, err := NewEncryptor(base64.StdEncoding.EncodeToString(make([]byte, 16)))
		assert.ErrorContains(t, err, "must be 32 bytes")
	})
}

func TestEncryptDecrypt(t *testing.T) {
	encryptor, err := NewEncryptor(testKey())
	require.NoError(t, err)

	for _, plaintext := range []string{"", "password", "pässwörd with ünïcode", string(make([]byte, 4096))} {
		sealed, err := encryptor.Encrypt(plaintext)
		require.NoError(t, err)

		opened, err := encryptor.Decrypt(sealed)
		require.NoError(t, err)
		assert.Equal(t, plaintext, opened)
	}
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	encryptor, err := NewEncryptor(testKey())
	require.NoError(t, err)

	a, err := encryptor.Encrypt("same")
	require.NoError(t, err)
	b, err := encryptor.Encrypt("same")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestDecryptFailures(t *testing.T) {
	encryptor, err := NewEncryptor(testKey())
	require.NoError(t, err)

	t.Run("too short", func(t *testing.T) {
		_, err := encryptor.Decrypt([]byte{1, 2, 3})
		assert.ErrorIs(t, err, ErrCiphertextTooShort)
	})

	t.Run("tampered", func(t *testing.T) {
		sealed, err := encryptor.Encrypt("secret")
		require.NoError(t, err)
		sealed[len(sealed)-1] ^= 0xff

		_, err = encryptor.Decrypt(sealed)
		assert.Error(t, err)
	})

	t.Run("other key", func(t *testing.T) {
		sealed, err := encryptor.Encrypt("secret")
		require.NoError(t, err)

		otherKey, err := GenerateKey()
		require.NoError(t, err)
		other, err := NewEncryptor(otherKey)
		require.NoError(t, err)

		_, err = other.Decrypt(sealed)
		assert.Error(t, err)
	})
}
