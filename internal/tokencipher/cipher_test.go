package tokencipher

import (
	"crypto/rand"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	t.Parallel()

	c, err := New(testKey(t))
	require.NoError(t, err)

	tests := []struct {
		name      string
		plaintext string
	}{
		{name: "typical token", plaintext: "eyJhbGciOiJkaXIiLCJlbmMiOiJBMTI4Q0JDLUhTMjU2In0..refresh"},
		{name: "short value", plaintext: "x"},
		{name: "unicode", plaintext: "tøkén-值"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ct, err := c.Encrypt(tt.plaintext)
			require.NoError(t, err)
			assert.NotEqual(t, tt.plaintext, ct)

			got, err := c.Decrypt(ct)
			require.NoError(t, err)
			assert.Equal(t, tt.plaintext, got)
		})
	}
}

func TestEncryptEmptyIsEmpty(t *testing.T) {
	t.Parallel()

	c, err := New(testKey(t))
	require.NoError(t, err)

	ct, err := c.Encrypt("")
	require.NoError(t, err)
	assert.Empty(t, ct)

	pt, err := c.Decrypt("")
	require.NoError(t, err)
	assert.Empty(t, pt)
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	t.Parallel()

	c, err := New(testKey(t))
	require.NoError(t, err)

	a, err := c.Encrypt("same-token")
	require.NoError(t, err)
	b, err := c.Encrypt("same-token")
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "each encryption must use a fresh nonce")
}

func TestDecryptRejectsTampering(t *testing.T) {
	t.Parallel()

	c, err := New(testKey(t))
	require.NoError(t, err)

	ct, err := c.Encrypt("secret")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(ct)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	tampered := base64.StdEncoding.EncodeToString(raw)

	_, err = c.Decrypt(tampered)
	assert.Error(t, err)
}

func TestDecryptRejectsGarbage(t *testing.T) {
	t.Parallel()

	c, err := New(testKey(t))
	require.NoError(t, err)

	tests := []struct {
		name  string
		input string
	}{
		{name: "not base64", input: "%%%not-base64%%%"},
		{name: "too short", input: base64.StdEncoding.EncodeToString([]byte("ab"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := c.Decrypt(tt.input)
			assert.Error(t, err)
		})
	}
}

func TestNewRejectsBadKeyLength(t *testing.T) {
	t.Parallel()

	_, err := New([]byte("too short"))
	assert.Error(t, err)
}

func TestNewFromSourceKeyFile(t *testing.T) {
	t.Parallel()

	key := testKey(t)
	path := filepath.Join(t.TempDir(), "token.key")
	require.NoError(t, os.WriteFile(path, []byte(base64.StdEncoding.EncodeToString(key)+"\n"), 0o600))

	c, err := NewFromSource(path)
	require.NoError(t, err)

	ct, err := c.Encrypt("hello")
	require.NoError(t, err)
	got, err := c.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestNewFromSourceEnv(t *testing.T) {
	key := testKey(t)
	t.Setenv(EnvKeyVar, base64.StdEncoding.EncodeToString(key))

	c, err := NewFromSource("")
	require.NoError(t, err)
	require.NotNil(t, c)
}

func TestNewFromSourceMissingKey(t *testing.T) {
	t.Setenv(EnvKeyVar, "")

	_, err := NewFromSource("")
	assert.Error(t, err)
}
