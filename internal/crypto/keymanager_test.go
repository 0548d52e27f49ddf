package crypto

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := EncryptSecret("feed-api-key-123", "hunter2")
	require.NoError(t, err)

	secret, err := DecryptSecret(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "feed-api-key-123", secret)
}

func TestDecryptWrongPassword(t *testing.T) {
	blob, err := EncryptSecret("feed-api-key-123", "hunter2")
	require.NoError(t, err)

	_, err = DecryptSecret(blob, "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decryption failed")
}

func TestEncryptRejectsEmptyInputs(t *testing.T) {
	_, err := EncryptSecret("", "hunter2")
	assert.Error(t, err)

	_, err = EncryptSecret("secret", "")
	assert.Error(t, err)
}

func TestEncryptionIsSalted(t *testing.T) {
	a, err := EncryptSecret("secret", "hunter2")
	require.NoError(t, err)
	b, err := EncryptSecret("secret", "hunter2")
	require.NoError(t, err)

	assert.NotEqual(t, string(a), string(b))
}

func TestLoadAPIKeyRawTakesPrecedence(t *testing.T) {
	key, err := LoadAPIKey(KeyConfig{RawKey: "plain", EncryptedKeyPath: "/nonexistent"})
	require.NoError(t, err)
	assert.Equal(t, "plain", key)
}

func TestLoadAPIKeyFromEncryptedFile(t *testing.T) {
	blob, err := EncryptSecret("from-file", "hunter2")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "feed_key.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	key, err := LoadAPIKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "hunter2"})
	require.NoError(t, err)
	assert.Equal(t, "from-file", key)
}

func TestLoadAPIKeyEmptyConfig(t *testing.T) {
	key, err := LoadAPIKey(KeyConfig{})
	require.NoError(t, err)
	assert.Empty(t, key)
}
