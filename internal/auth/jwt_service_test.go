package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestJWTServiceGenerateAndValidate(t *testing.T) {
	svc, err := NewJWTService(JWTConfig{Secret: "test-secret", Issuer: "trail"})
	require.NoError(t, err)

	token, err := svc.GenerateAccessToken(AccessTokenInput{
		UserID:      "user-1",
		TenantID:    "tenant-1",
		ClientID:    "client-1",
		Permissions: []string{"logs.view", "logs.export"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
	require.Equal(t, "tenant-1", claims.TenantID)
	require.Equal(t, "client-1", claims.ClientID)
	require.Equal(t, "trail", claims.Issuer)
	require.True(t, claims.HasPermission("logs.view"))
	require.True(t, claims.HasPermission("logs.export"))
	require.False(t, claims.HasPermission("logs.delete"))
}

func TestJWTServiceRequiresSecret(t *testing.T) {
	_, err := NewJWTService(JWTConfig{})
	require.Error(t, err)
}

func TestJWTServiceGenerateValidatesInput(t *testing.T) {
	svc, err := NewJWTService(JWTConfig{Secret: "test-secret"})
	require.NoError(t, err)

	_, err = svc.GenerateAccessToken(AccessTokenInput{TenantID: "tenant-1"})
	require.Error(t, err)

	_, err = svc.GenerateAccessToken(AccessTokenInput{UserID: "user-1"})
	require.Error(t, err)
}

func TestJWTServiceRejectsExpiredToken(t *testing.T) {
	issued := time.Date(2026, 5, 6, 12, 0, 0, 0, time.UTC)
	current := issued

	svc, err := NewJWTService(JWTConfig{
		Secret:         "test-secret",
		AccessTokenTTL: time.Minute,
		Clock:          func() time.Time { return current },
	})
	require.NoError(t, err)

	token, err := svc.GenerateAccessToken(AccessTokenInput{UserID: "user-1", TenantID: "tenant-1"})
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(token)
	require.NoError(t, err)

	current = issued.Add(2 * time.Minute)
	_, err = svc.ValidateAccessToken(token)
	require.Error(t, err)
}

func TestJWTServiceRejectsWrongSecret(t *testing.T) {
	issuer, err := NewJWTService(JWTConfig{Secret: "secret-a"})
	require.NoError(t, err)
	verifier, err := NewJWTService(JWTConfig{Secret: "secret-b"})
	require.NoError(t, err)

	token, err := issuer.GenerateAccessToken(AccessTokenInput{UserID: "user-1", TenantID: "tenant-1"})
	require.NoError(t, err)

	_, err = verifier.ValidateAccessToken(token)
	require.Error(t, err)
}

func TestJWTServiceRejectsWrongIssuer(t *testing.T) {
	issuer, err := NewJWTService(JWTConfig{Secret: "shared-secret", Issuer: "other-system"})
	require.NoError(t, err)
	verifier, err := NewJWTService(JWTConfig{Secret: "shared-secret", Issuer: "trail"})
	require.NoError(t, err)

	token, err := issuer.GenerateAccessToken(AccessTokenInput{UserID: "user-1", TenantID: "tenant-1"})
	require.NoError(t, err)

	_, err = verifier.ValidateAccessToken(token)
	require.Error(t, err)
	require.Contains(t, err.Error(), "issuer")

	// A verifier with no configured issuer accepts tokens from any issuer.
	open, err := NewJWTService(JWTConfig{Secret: "shared-secret"})
	require.NoError(t, err)
	_, err = open.ValidateAccessToken(token)
	require.NoError(t, err)
}

func TestJWTServiceRejectsMissingTenant(t *testing.T) {
	svc, err := NewJWTService(JWTConfig{Secret: "test-secret"})
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken("")
	require.Error(t, err)
}

func TestClaimsWildcardPermission(t *testing.T) {
	claims := &Claims{Permissions: []string{"*"}}
	require.True(t, claims.HasPermission("logs.view"))
	require.True(t, claims.HasPermission("anything.at.all"))

	empty := &Claims{}
	require.False(t, empty.HasPermission("logs.view"))
}
