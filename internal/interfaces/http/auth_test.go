package http

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baeksung/approval-engine/internal/domain/entity"
)

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)

	token, err := issuer.Issue(&entity.User{ID: "u-1", Name: "Kim", Role: entity.RoleAdmin})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userID, role, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", userID)
	assert.Equal(t, entity.RoleAdmin, role)
}

func TestTokenExpired(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", -time.Minute)

	token, err := issuer.Issue(&entity.User{ID: "u-1", Role: entity.RoleUser})
	require.NoError(t, err)

	_, _, err = issuer.Parse(token)
	assert.Error(t, err)
}

func TestTokenWrongSecret(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)
	other := NewTokenIssuer("other-secret", time.Hour)

	token, err := issuer.Issue(&entity.User{ID: "u-1", Role: entity.RoleUser})
	require.NoError(t, err)

	_, _, err = other.Parse(token)
	assert.Error(t, err)
}
