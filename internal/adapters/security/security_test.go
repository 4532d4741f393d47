package security

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityTokenRoundTrip(t *testing.T) {
	t.Parallel()

	signer, err := NewEphemeralIdentityTokenVerifier("https://id.example.org", "identity")
	require.NoError(t, err)
	token, err := signer.Sign("sub-123", " Brother@Example.org ", time.Minute)
	require.NoError(t, err)

	claims, err := signer.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "sub-123", claims.Subject)
	assert.Equal(t, "brother@example.org", claims.Email)

	pub, err := signer.PublicKeyPEM()
	require.NoError(t, err)
	verifier, err := NewIdentityTokenVerifier(pub, "https://id.example.org", "identity")
	require.NoError(t, err)
	_, err = verifier.Verify(context.Background(), token)
	require.NoError(t, err)

	_, err = verifier.Sign("sub-123", "", time.Minute)
	assert.Error(t, err)
}

func TestIdentityTokenRejections(t *testing.T) {
	t.Parallel()

	signer, err := NewEphemeralIdentityTokenVerifier("issuer-a", "")
	require.NoError(t, err)

	expired, err := signer.Sign("sub", "a@example.org", -time.Hour)
	require.NoError(t, err)
	_, err = signer.Verify(context.Background(), expired)
	assert.Error(t, err, "expired token")

	other, err := NewEphemeralIdentityTokenVerifier("issuer-b", "")
	require.NoError(t, err)
	foreign, err := other.Sign("sub", "a@example.org", time.Minute)
	require.NoError(t, err)
	_, err = signer.Verify(context.Background(), foreign)
	assert.Error(t, err, "foreign key and issuer")

	noSubject, err := signer.Sign("", "a@example.org", time.Minute)
	require.NoError(t, err)
	_, err = signer.Verify(context.Background(), noSubject)
	assert.Error(t, err, "missing subject")

	hmac := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "sub",
		Issuer:    "issuer-a",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	})
	raw, err := hmac.SignedString([]byte("shared-secret"))
	require.NoError(t, err)
	_, err = signer.Verify(context.Background(), raw)
	assert.Error(t, err, "non-RS256 algorithm")
}

func TestSigningVerifierFromPEM(t *testing.T) {
	t.Parallel()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	source := &IdentityTokenVerifier{publicKey: &key.PublicKey, privateKey: key}
	privatePEM, err := source.PrivateKeyPEM()
	require.NoError(t, err)

	signer, err := NewSigningIdentityTokenVerifier(privatePEM, "", "")
	require.NoError(t, err)
	token, err := signer.Sign("sub-9", "nine@example.org", time.Minute)
	require.NoError(t, err)
	claims, err := source.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "sub-9", claims.Subject)

	_, err = NewSigningIdentityTokenVerifier("not pem", "", "")
	assert.Error(t, err)
}

func TestInvitationHasher(t *testing.T) {
	t.Parallel()

	h := NewInvitationHasher(4)
	hash, err := h.Hash("token-value")
	require.NoError(t, err)
	assert.NotEqual(t, "token-value", hash)
	assert.NoError(t, h.Compare(hash, "token-value"))
	assert.Error(t, h.Compare(hash, "other-token"))
}
