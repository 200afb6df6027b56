package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/corridor/pkg/auth"
	jose "gopkg.in/go-jose/go-jose.v2"
	"gopkg.in/go-jose/go-jose.v2/jwt"
)

const testSecret = "a-shared-secret-that-is-long-enough-for-hs256"

func mintToken(t *testing.T, secret string, claims jwt.Claims, custom map[string]interface{}) string {
	t.Helper()

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: []byte(secret)},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	require.NoError(t, err)

	builder := jwt.Signed(signer).Claims(claims)
	if custom != nil {
		builder = builder.Claims(custom)
	}

	token, err := builder.CompactSerialize()
	require.NoError(t, err)
	return token
}

func validClaims() jwt.Claims {
	now := time.Now()
	return jwt.Claims{
		Issuer:   "corridor",
		Subject:  "AMB-1",
		Audience: jwt.Audience{"corridor-relay"},
		IssuedAt: jwt.NewNumericDate(now),
		Expiry:   jwt.NewNumericDate(now.Add(time.Hour)),
	}
}

func TestSecretVerifierAcceptsValidToken(t *testing.T) {
	verifier, err := auth.NewSecretVerifier(testSecret, "corridor", "corridor-relay")
	require.NoError(t, err)

	token := mintToken(t, testSecret, validClaims(), map[string]interface{}{"scope": "relay", "role": "AMBULANCE"})

	claims, err := verifier.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "AMB-1", claims.Subject)
	assert.Equal(t, "relay", claims.Scope)
	assert.Equal(t, "AMBULANCE", claims.Role)
}

func TestSecretVerifierRejects(t *testing.T) {
	verifier, err := auth.NewSecretVerifier(testSecret, "corridor", "corridor-relay")
	require.NoError(t, err)

	_, err = verifier.Verify(context.Background(), "")
	assert.ErrorIs(t, err, auth.ErrMissingToken)

	_, err = verifier.Verify(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	wrongSecret := mintToken(t, "another-secret-that-is-also-long-enough-xx", validClaims(), nil)
	_, err = verifier.Verify(context.Background(), wrongSecret)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	expired := validClaims()
	expired.IssuedAt = jwt.NewNumericDate(time.Now().Add(-3 * time.Hour))
	expired.Expiry = jwt.NewNumericDate(time.Now().Add(-2 * time.Hour))
	_, err = verifier.Verify(context.Background(), mintToken(t, testSecret, expired, nil))
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	wrongAudience := validClaims()
	wrongAudience.Audience = jwt.Audience{"someone-else"}
	_, err = verifier.Verify(context.Background(), mintToken(t, testSecret, wrongAudience, nil))
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc.def", auth.BearerToken("Bearer abc.def"))
	assert.Equal(t, "abc.def", auth.BearerToken("bearer abc.def"))
	assert.Equal(t, "", auth.BearerToken("Basic Zm9vOmJhcg=="))
	assert.Equal(t, "", auth.BearerToken(""))
}

func TestGetVerifier(t *testing.T) {
	t.Setenv("CORRIDOR_JWT_SECRET", testSecret)

	verifier, err := auth.GetVerifier()
	require.NoError(t, err)

	_, err = verifier.Verify(context.Background(), mintToken(t, testSecret, validClaims(), nil))
	assert.NoError(t, err)
}
