package security_test

import (
	"testing"
	"time"

	"github.com/fernet/fernet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenismatch/internal/security"
)

func TestTokenRoundTrip(t *testing.T) {
	ts := security.NewTokenService("secret", time.Hour)

	tok, err := ts.CreateForUser(42)
	require.NoError(t, err)

	id, err := ts.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestTokenRejects(t *testing.T) {
	ts := security.NewTokenService("secret", time.Hour)

	t.Run("Expired", func(t *testing.T) {
		tok, err := ts.CreateWithTTL(1, -time.Minute)
		require.NoError(t, err)
		_, err = ts.Parse(tok)
		assert.Error(t, err)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		other := security.NewTokenService("other", time.Hour)
		tok, err := other.CreateForUser(1)
		require.NoError(t, err)
		_, err = ts.Parse(tok)
		assert.Error(t, err)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := ts.Parse("not-a-token")
		assert.Error(t, err)
	})
}

func TestPasswordHasher(t *testing.T) {
	h := security.NewPasswordHasher(4)

	hashed, err := h.Hash("rolandgarros")
	require.NoError(t, err)
	assert.NotEqual(t, "rolandgarros", hashed)
	assert.NoError(t, h.Verify("rolandgarros", hashed))
	assert.Error(t, h.Verify("wimbledon", hashed))
}

func TestEncryptor(t *testing.T) {
	enc, err := security.NewEncryptor([]byte("any length secret"), nil)
	require.NoError(t, err)

	sealed, err := enc.Encrypt("Salut, dispo samedi ?")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "Salut")

	plain, err := enc.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "Salut, dispo samedi ?", plain)

	again, err := enc.Encrypt("Salut, dispo samedi ?")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ per message")

	_, err = enc.Decrypt("bm9wZQ==")
	assert.ErrorIs(t, err, security.ErrDecrypt)

	_, err = security.NewEncryptor(nil, nil)
	assert.Error(t, err)
}

func TestEncryptorLegacyFernet(t *testing.T) {
	var k fernet.Key
	require.NoError(t, k.Generate())

	legacy, err := fernet.EncryptAndSign([]byte("Oui, 14h ça marche"), &k)
	require.NoError(t, err)

	enc, err := security.NewEncryptor([]byte("new secret"), []string{"garbage", k.Encode()})
	require.NoError(t, err)

	plain, err := enc.Decrypt(string(legacy))
	require.NoError(t, err)
	assert.Equal(t, "Oui, 14h ça marche", plain)
}
