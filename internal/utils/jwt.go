package utils

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformedToken    = errors.New("malformed token")
	ErrSignatureMismatch = errors.New("token signature mismatch")
	ErrTokenRejected     = errors.New("token rejected")
	ErrWrongTokenPurpose = errors.New("token not valid for this purpose")
)

// Mint signs claims as a compact HS256 JWS. The caller sets "exp"; no
// default expiry is added here.
func Mint(claims map[string]interface{}, secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims(claims))
	return token.SignedString([]byte(secret))
}

// VerifySymmetric checks an HS256 token against secret at the current time.
func VerifySymmetric(token, secret string) (map[string]interface{}, error) {
	return VerifySymmetricAt(token, secret, time.Now())
}

// VerifySymmetricAt checks the MAC before the payload is decoded, then
// rejects the token when now, in whole UTC seconds, is past its exp claim.
// A token is still valid during its exp second.
func VerifySymmetricAt(token, secret string, now time.Time) (map[string]interface{}, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, ErrMalformedToken
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
		jwt.WithStrictDecoding(),
	)

	sig, err := parser.DecodeSegment(parts[2])
	if err != nil {
		return nil, ErrMalformedToken
	}
	// hmac.Equal under the hood
	if err := jwt.SigningMethodHS256.Verify(parts[0]+"."+parts[1], sig, []byte(secret)); err != nil {
		return nil, ErrSignatureMismatch
	}

	claims := jwt.MapClaims{}
	_, err = parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, ErrTokenRejected
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, ErrTokenRejected
	}
	if exp != nil && now.UTC().Unix() > exp.Unix() {
		return nil, ErrTokenRejected
	}

	return map[string]interface{}(claims), nil
}

// ShareClaims is the decoded form of a viewer share token. An empty
// ContactID means a read-only token (the sender's own preview link).
type ShareClaims struct {
	AlertID   string
	ContactID string
	ExpiresAt time.Time
}

func (s *ShareClaims) CanReact() bool {
	return s.ContactID != ""
}

// TokenAuthority mints and verifies the capability tokens of one deployment.
type TokenAuthority struct {
	secret string
	now    func() time.Time
}

func NewTokenAuthority(secret string) *TokenAuthority {
	return &TokenAuthority{secret: secret, now: time.Now}
}

// WithClock replaces the time source, for tests.
func (a *TokenAuthority) WithClock(now func() time.Time) *TokenAuthority {
	return &TokenAuthority{secret: a.secret, now: now}
}

func (a *TokenAuthority) MintShareToken(alertID, contactID string, ttl time.Duration) (string, error) {
	claims := map[string]interface{}{
		"alert_id": alertID,
		"scope":    ScopeViewer,
		"exp":      a.now().Add(ttl).Unix(),
	}
	if contactID != "" {
		claims["contact_id"] = contactID
	}
	return Mint(claims, a.secret)
}

func (a *TokenAuthority) ParseShareToken(token string) (*ShareClaims, error) {
	claims, err := VerifySymmetricAt(token, a.secret, a.now())
	if err != nil {
		return nil, err
	}

	if scope, _ := claims["scope"].(string); scope != ScopeViewer {
		return nil, ErrWrongTokenPurpose
	}
	if _, hasAction := claims["action"]; hasAction {
		return nil, ErrWrongTokenPurpose
	}
	alertID, _ := claims["alert_id"].(string)
	if alertID == "" {
		return nil, ErrWrongTokenPurpose
	}

	share := &ShareClaims{AlertID: alertID}
	if contactID, ok := claims["contact_id"].(string); ok {
		share.ContactID = contactID
	}
	if exp, ok := claims["exp"].(float64); ok {
		share.ExpiresAt = time.Unix(int64(exp), 0).UTC()
	}
	return share, nil
}

func (a *TokenAuthority) MintVerifyToken(contactID string, ttl time.Duration) (string, error) {
	return Mint(map[string]interface{}{
		"action":     ActionVerify,
		"contact_id": contactID,
		"exp":        a.now().Add(ttl).Unix(),
	}, a.secret)
}

// ParseVerifyToken returns the contact id bound to a verification token.
func (a *TokenAuthority) ParseVerifyToken(token string) (string, error) {
	claims, err := VerifySymmetricAt(token, a.secret, a.now())
	if err != nil {
		return "", err
	}
	if action, _ := claims["action"].(string); action != ActionVerify {
		return "", ErrWrongTokenPurpose
	}
	contactID, _ := claims["contact_id"].(string)
	if contactID == "" {
		return "", ErrWrongTokenPurpose
	}
	return contactID, nil
}
