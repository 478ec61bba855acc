// Package testutil starts the throwaway servers and containers the tests run against.
package testutil

import (
	"encoding/base64"
	"testing"

	"github.com/vdavid/vmail/webclient/internal/crypto"
)

// TestEncryptionKey is a fixed key (bytes 0..31) shared by every package under test.
var TestEncryptionKey = func() string {
	key := make([]byte, crypto.KeySize)
	for i := range key {
		key[i] = byte(i)
	}
	return base64.StdEncoding.EncodeToString(key)
}()

// GetTestEncryptor returns an encryptor using TestEncryptionKey.
func GetTestEncryptor(t *testing.T) *crypto.Encryptor {
	t.Helper()

	encryptor, err := crypto.NewEncryptor(TestEncryptionKey)
	if err != nil {
		t.Fatalf("Failed to create encryptor: %v", err)
	}
	return encryptor
}
