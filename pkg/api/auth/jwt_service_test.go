package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fileauth "github.com/marmos91/filerealm/pkg/auth"
)

const testSecret = "test-secret-key-must-be-32-chars!"

func newTestService(t *testing.T) *JWTService {
	t.Helper()
	svc, err := NewJWTService(JWTConfig{Secret: testSecret, Issuer: "test-issuer", AccessTokenDuration: time.Minute})
	require.NoError(t, err)
	return svc
}

func TestNewJWTService(t *testing.T) {
	_, err := NewJWTService(JWTConfig{})
	assert.ErrorIs(t, err, ErrInvalidSecretLength)

	_, err = NewJWTService(JWTConfig{Secret: "short"})
	assert.ErrorIs(t, err, ErrInvalidSecretLength)

	svc, err := NewJWTService(JWTConfig{Secret: testSecret})
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, svc.AccessTokenDuration())
	assert.Equal(t, "filerealm", svc.config.Issuer)
}

func TestGenerateAndValidateToken(t *testing.T) {
	svc := newTestService(t)
	user := &fileauth.User{Username: "alice", Realm: "file1", Roles: []string{"admin", "user"}}

	token, err := svc.GenerateToken(user)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.Equal(t, int64(60), token.ExpiresIn)

	claims, err := svc.ValidateToken(token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, "file1", claims.Realm)
	assert.True(t, claims.IsAdmin())
	assert.True(t, claims.HasRole("user"))
	_, err = uuid.Parse(claims.ID)
	assert.NoError(t, err, "jti is a uuid")

	other, err := svc.GenerateToken(user)
	require.NoError(t, err)
	otherClaims, err := svc.ValidateToken(other.AccessToken)
	require.NoError(t, err)
	assert.NotEqual(t, claims.ID, otherClaims.ID)
}

func TestValidateToken_Expired(t *testing.T) {
	svc := newTestService(t)
	issued := time.Now().Add(-time.Hour)
	svc.now = func() time.Time { return issued }
	token, err := svc.GenerateToken(&fileauth.User{Username: "alice"})
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateToken(token.AccessToken)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateToken_Invalid(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	otherSvc, err := NewJWTService(JWTConfig{Secret: "another-secret-key-must-be-32-chars", Issuer: "test-issuer"})
	require.NoError(t, err)
	token, err := otherSvc.GenerateToken(&fileauth.User{Username: "alice"})
	require.NoError(t, err)
	_, err = svc.ValidateToken(token.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken, "wrong signature")

	wrongIssuer, err := NewJWTService(JWTConfig{Secret: testSecret, Issuer: "elsewhere"})
	require.NoError(t, err)
	token, err = wrongIssuer.GenerateToken(&fileauth.User{Username: "alice"})
	require.NoError(t, err)
	_, err = svc.ValidateToken(token.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken, "wrong issuer")

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Username: "alice"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.ValidateToken(none)
	assert.ErrorIs(t, err, ErrInvalidToken, "alg none")
}

func TestClaims_CanAccessUser(t *testing.T) {
	c := &Claims{Username: "bob", Roles: []string{"user"}}
	assert.True(t, c.CanAccessUser("bob"))
	assert.False(t, c.CanAccessUser("alice"))

	admin := &Claims{Username: "root", Roles: []string{RoleAdmin}}
	assert.True(t, admin.CanAccessUser("alice"))
}
