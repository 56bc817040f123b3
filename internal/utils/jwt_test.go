package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-share-secret"

func TestMintVerifyRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	claims := map[string]interface{}{
		"alert_id":   "alert-1",
		"contact_id": "contact-1",
		"scope":      ScopeViewer,
		"exp":        float64(now.Add(time.Hour).Unix()),
	}

	token, err := Mint(claims, testSecret)
	require.NoError(t, err)

	got, err := VerifySymmetricAt(token, testSecret, now)
	require.NoError(t, err)
	assert.Equal(t, claims, got)

	again, err := Mint(claims, testSecret)
	require.NoError(t, err)
	assert.Equal(t, token, again, "minting is deterministic")
}

func TestVerifySymmetricRejectsExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	token, err := Mint(map[string]interface{}{"exp": float64(now.Add(time.Minute).Unix())}, testSecret)
	require.NoError(t, err)

	_, err = VerifySymmetricAt(token, testSecret, now)
	require.NoError(t, err)

	_, err = VerifySymmetricAt(token, testSecret, now.Add(2*time.Minute))
	assert.ErrorIs(t, err, ErrTokenRejected)
}

func TestVerifySymmetricExpiryBoundary(t *testing.T) {
	exp := time.Unix(1800000000, 0).UTC()
	token, err := Mint(map[string]interface{}{"exp": float64(exp.Unix())}, testSecret)
	require.NoError(t, err)

	_, err = VerifySymmetricAt(token, testSecret, exp)
	assert.NoError(t, err, "valid at exactly exp")

	_, err = VerifySymmetricAt(token, testSecret, exp.Add(500*time.Millisecond))
	assert.NoError(t, err, "valid for the rest of the exp second")

	_, err = VerifySymmetricAt(token, testSecret, exp.Add(time.Second))
	assert.ErrorIs(t, err, ErrTokenRejected)
}

func TestVerifySymmetricRejectsAnyAlteredByte(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	token, err := Mint(map[string]interface{}{
		"alert_id": "alert-1",
		"scope":    ScopeViewer,
		"exp":      float64(now.Add(time.Hour).Unix()),
	}, testSecret)
	require.NoError(t, err)

	for i := 0; i < len(token); i++ {
		replacement := byte('A')
		if token[i] == 'A' {
			replacement = 'B'
		}
		altered := token[:i] + string(replacement) + token[i+1:]

		_, err := VerifySymmetricAt(altered, testSecret, now)
		assert.Error(t, err, "byte %d altered", i)
	}
}

func TestVerifySymmetricRejectsWrongSecretAndShape(t *testing.T) {
	token, err := Mint(map[string]interface{}{"exp": float64(time.Now().Add(time.Hour).Unix())}, testSecret)
	require.NoError(t, err)

	_, err = VerifySymmetric(token, "other-secret")
	assert.ErrorIs(t, err, ErrSignatureMismatch)

	_, err = VerifySymmetric("only.two", testSecret)
	assert.ErrorIs(t, err, ErrMalformedToken)

	_, err = VerifySymmetric(token+".extra", testSecret)
	assert.ErrorIs(t, err, ErrMalformedToken)
}

func TestShareTokenHelpers(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	authority := NewTokenAuthority(testSecret).WithClock(func() time.Time { return now })

	t.Run("contact bound", func(t *testing.T) {
		token, err := authority.MintShareToken("alert-1", "contact-1", ShareTokenTTL)
		require.NoError(t, err)

		share, err := authority.ParseShareToken(token)
		require.NoError(t, err)
		assert.Equal(t, "alert-1", share.AlertID)
		assert.Equal(t, "contact-1", share.ContactID)
		assert.True(t, share.CanReact())
		assert.Equal(t, now.Add(ShareTokenTTL), share.ExpiresAt)
	})

	t.Run("read only", func(t *testing.T) {
		token, err := authority.MintShareToken("alert-1", "", ShareTokenTTL)
		require.NoError(t, err)

		share, err := authority.ParseShareToken(token)
		require.NoError(t, err)
		assert.Empty(t, share.ContactID)
		assert.False(t, share.CanReact())
	})

	t.Run("expired after ttl", func(t *testing.T) {
		token, err := authority.MintShareToken("alert-1", "", ShareTokenTTL)
		require.NoError(t, err)

		later := authority.WithClock(func() time.Time { return now.Add(ShareTokenTTL + time.Second) })
		_, err = later.ParseShareToken(token)
		assert.Error(t, err)
	})
}

func TestTokenPurposesDoNotCross(t *testing.T) {
	authority := NewTokenAuthority(testSecret)

	verify, err := authority.MintVerifyToken("contact-1", VerifyTokenTTL)
	require.NoError(t, err)
	_, err = authority.ParseShareToken(verify)
	assert.ErrorIs(t, err, ErrWrongTokenPurpose)

	contactID, err := authority.ParseVerifyToken(verify)
	require.NoError(t, err)
	assert.Equal(t, "contact-1", contactID)

	share, err := authority.MintShareToken("alert-1", "contact-1", ShareTokenTTL)
	require.NoError(t, err)
	_, err = authority.ParseVerifyToken(share)
	assert.ErrorIs(t, err, ErrWrongTokenPurpose)
}
