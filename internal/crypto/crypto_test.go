package crypto

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeadersAtDeterministic(t *testing.T) {
	h := &HMACAuth{Key: "agent", Secret: "s3cret"}
	a := h.HeadersAt("POST", "/lottery/bet/bulk", `{"a":1}`, 1700000000)
	b := h.HeadersAt("POST", "/lottery/bet/bulk", `{"a":1}`, 1700000000)
	assert.Equal(t, a, b)
	assert.Equal(t, "agent", a[HeaderAPIKey])
	assert.Equal(t, "1700000000", a[HeaderTimestamp])

	c := h.HeadersAt("POST", "/lottery/bet/bulk", `{"a":2}`, 1700000000)
	assert.NotEqual(t, a[HeaderSignature], c[HeaderSignature])
}

func TestEnabledAndString(t *testing.T) {
	var nilAuth *HMACAuth
	assert.False(t, nilAuth.Enabled())
	assert.False(t, (&HMACAuth{Key: "k"}).Enabled())
	assert.True(t, (&HMACAuth{Key: "k", Secret: "s"}).Enabled())
	assert.NotContains(t, (&HMACAuth{Key: "abcdefgh", Secret: "topsecret"}).String(), "topsecret")
}

func TestOwnerIDStable(t *testing.T) {
	a := OwnerID("pepper", "token-1")
	assert.Len(t, a, 32)
	assert.Equal(t, a, OwnerID("pepper", "token-1"))
	assert.NotEqual(t, a, OwnerID("pepper", "token-2"))
	assert.NotEqual(t, a, OwnerID("other", "token-1"))
}

func TestSecretRoundTripThroughFile(t *testing.T) {
	blob, err := EncryptSecret("agent-secret", "pw")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "secret.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	got, err := LoadSecret(SecretConfig{EncryptedPath: path, Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "agent-secret", got)

	_, err = LoadSecret(SecretConfig{EncryptedPath: path, Password: "wrong"})
	assert.Error(t, err)
}

func TestLoadSecretPrecedence(t *testing.T) {
	got, err := LoadSecret(SecretConfig{Raw: "raw", EncryptedPath: "/does/not/exist"})
	require.NoError(t, err)
	assert.Equal(t, "raw", got)

	got, err = LoadSecret(SecretConfig{})
	require.NoError(t, err)
	assert.Empty(t, got)
}
