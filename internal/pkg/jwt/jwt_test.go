package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	secretA = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	secretB = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func TestNewKeyRing_Validation(t *testing.T) {
	_, err := NewKeyRing("chamahub", "k1", map[string]string{"k1": "short"}, nil)
	assert.Error(t, err)

	_, err = NewKeyRing("chamahub", "k2", map[string]string{"k1": secretA}, nil)
	assert.Error(t, err)

	_, err = NewKeyRing("chamahub", "k1", map[string]string{"k1": secretA}, []string{"k1"})
	assert.Error(t, err)
}

func TestAccessAndRefreshTokens(t *testing.T) {
	kr, err := NewKeyRing("chamahub", "k1", map[string]string{"k1": secretA}, nil)
	require.NoError(t, err)

	access, accessExp, err := kr.GenerateAccessToken(42, time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), accessExp, 2*time.Second)

	claims, err := kr.ValidateAccessToken(access)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)

	refresh, tokenID, _, err := kr.GenerateRefreshToken(42, 24*time.Hour)
	require.NoError(t, err)
	rc, err := kr.ValidateRefreshToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, tokenID, rc.TokenID)

	// Kinds are not interchangeable
	_, err = kr.ValidateAccessToken(refresh)
	assert.ErrorIs(t, err, ErrWrongKind)
	_, err = kr.ValidateRefreshToken(access)
	assert.ErrorIs(t, err, ErrWrongKind)
}

func TestExpiredToken(t *testing.T) {
	kr, err := NewKeyRing("chamahub", "k1", map[string]string{"k1": secretA}, nil)
	require.NoError(t, err)

	token, _, err := kr.GenerateAccessToken(7, time.Minute)
	require.NoError(t, err)

	kr.SetClock(func() time.Time { return time.Now().Add(time.Hour) })
	_, err = kr.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestKeyRotation(t *testing.T) {
	old, err := NewKeyRing("chamahub", "k1", map[string]string{"k1": secretA}, nil)
	require.NoError(t, err)
	token, _, err := old.GenerateAccessToken(9, time.Hour)
	require.NoError(t, err)

	// Tokens signed with a previous key still verify after rotation
	rotated, err := NewKeyRing("chamahub", "k2", map[string]string{"k1": secretA, "k2": secretB}, nil)
	require.NoError(t, err)
	claims, err := rotated.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(9), claims.UserID)

	// ...until that key is retired
	retired, err := NewKeyRing("chamahub", "k2", map[string]string{"k1": secretA, "k2": secretB}, []string{"k1"})
	require.NoError(t, err)
	_, err = retired.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrUnknownKey)
}

func TestRejectsForeignIssuerAndGarbage(t *testing.T) {
	kr, err := NewKeyRing("chamahub", "k1", map[string]string{"k1": secretA}, nil)
	require.NoError(t, err)
	other, err := NewKeyRing("someone-else", "k1", map[string]string{"k1": secretA}, nil)
	require.NoError(t, err)

	token, _, err := other.GenerateAccessToken(1, time.Hour)
	require.NoError(t, err)
	_, err = kr.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = kr.ValidateAccessToken("not.a.jwt")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
