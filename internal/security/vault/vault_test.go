package vault

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVault(t *testing.T, key string) Provider {
	t.Helper()
	v, err := NewFactory(Config{Provider: "aes", AESKey: key})
	require.NoError(t, err)
	return v
}

func TestCredentialsRoundTrip(t *testing.T) {
	v := newVault(t, "local-dev-key")
	id := uuid.New()
	creds := map[string]string{"consumer_key": "ck", "passkey": "bfb279f9aa9bdbcf158e97dd71a467cd"}

	sealed, err := SealCredentials(v, id, creds)
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "bfb279f9")

	opened, err := OpenCredentials(v, id, sealed)
	require.NoError(t, err)
	assert.Equal(t, creds, opened)
}

func TestCredentialsBoundToIntegration(t *testing.T) {
	v := newVault(t, "local-dev-key")
	sealed, err := SealCredentials(v, uuid.New(), map[string]string{"secret_key": "sk_test"})
	require.NoError(t, err)

	_, err = OpenCredentials(v, uuid.New(), sealed)
	assert.ErrorIs(t, err, ErrDecryption)
}

func TestWrongKeyAndGarbage(t *testing.T) {
	id := uuid.New()
	sealed, err := SealCredentials(newVault(t, "key-a"), id, map[string]string{"secret_key": "s"})
	require.NoError(t, err)

	b := newVault(t, "key-b")
	_, err = OpenCredentials(b, id, sealed)
	assert.ErrorIs(t, err, ErrDecryption)

	_, err = OpenCredentials(b, id, []byte("garbage"))
	assert.ErrorIs(t, err, ErrInvalidPayload)
	_, err = OpenCredentials(b, id, nil)
	assert.ErrorIs(t, err, ErrInvalidPayload)
	_, err = b.Decrypt([]byte(`{"v":1,"n":"","c":""}`), nil)
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestFactoryValidation(t *testing.T) {
	_, err := NewFactory(Config{Provider: "aes", AESKey: "  "})
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = NewFactory(Config{Provider: "kms", AESKey: "k"})
	assert.ErrorIs(t, err, ErrUnknownProvider)

	_, err = SealCredentials(nil, uuid.New(), nil)
	assert.ErrorIs(t, err, ErrInvalidKey)
}
