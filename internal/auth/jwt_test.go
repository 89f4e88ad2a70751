package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanaya/osu-server-spectator/internal/utils"
)

func newTestProvider() *JWTProvider {
	cfg := JWTConfig{
		Secret:   "test-secret-at-least-16-chars",
		Issuer:   "osu-web",
		Audience: "osu-multiplayer",
	}
	return NewJWTProvider(cfg, utils.NewLogger())
}

func TestValidateTokenRoundTrip(t *testing.T) {
	p := newTestProvider()

	token, err := p.GenerateToken(101, "peppy", time.Minute)
	require.NoError(t, err)

	claims, err := p.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int32(101), claims.UserID)
	assert.Equal(t, "peppy", claims.Username)
}

func TestValidateTokenExpired(t *testing.T) {
	p := newTestProvider()

	token, err := p.GenerateToken(101, "peppy", -time.Minute)
	require.NoError(t, err)

	_, err = p.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	p := newTestProvider()
	token, err := p.GenerateToken(101, "peppy", time.Minute)
	require.NoError(t, err)

	other := NewJWTProvider(JWTConfig{
		Secret:   "a-completely-different-secret",
		Issuer:   "osu-web",
		Audience: "osu-multiplayer",
	}, utils.NewLogger())

	_, err = other.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenGarbage(t *testing.T) {
	p := newTestProvider()

	_, err := p.ValidateToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
