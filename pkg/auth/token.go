package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const defaultIssuer = "photoblog"

// ErrInvalidToken is returned for tokens that are malformed, tampered with,
// signed with another key or expired.
var ErrInvalidToken = errors.New("invalid token")

// Purpose binds a token to the single state change it authorizes.
type Purpose string

const (
	PurposeConfirm     Purpose = "confirm"
	PurposeReset       Purpose = "reset"
	PurposeChangeEmail Purpose = "change_email"
	PurposeAuth        Purpose = "auth"
)

// Payload is the data carried by a token.
type Payload struct {
	AccountID int64
	Purpose   Purpose
	NewEmail  string
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Purpose  Purpose `json:"purpose"`
	NewEmail string  `json:"new_email,omitempty"`
}

// TokenCodec issues and verifies HS256 signed, expiring tokens.
type TokenCodec struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// TokenOption configures a TokenCodec.
type TokenOption func(*TokenCodec)

// WithClock overrides the time source, used for issuing and for expiry checks.
func WithClock(now func() time.Time) TokenOption {
	return func(c *TokenCodec) {
		c.now = now
	}
}

// WithIssuer sets the iss claim written and required by the codec.
func WithIssuer(issuer string) TokenOption {
	return func(c *TokenCodec) {
		c.issuer = issuer
	}
}

// NewTokenCodec builds a codec signing with secret.
func NewTokenCodec(secret string, opts ...TokenOption) (*TokenCodec, error) {
	if secret == "" {
		return nil, errors.New("token secret must not be empty")
	}
	c := &TokenCodec{
		secret: []byte(secret),
		issuer: defaultIssuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Issue signs payload into a token valid for ttl.
func (c *TokenCodec) Issue(p Payload, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("token ttl must be positive, got %s", ttl)
	}
	if p.Purpose == "" {
		return "", errors.New("token purpose must be set")
	}
	now := c.now()
	// NumericDate keeps whole seconds; round up so a token never expires
	// before ttl has elapsed.
	expires := now.Add(ttl)
	if t := expires.Truncate(time.Second); !t.Equal(expires) {
		expires = t.Add(time.Second)
	}
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(p.AccountID, 10),
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Purpose:  p.Purpose,
		NewEmail: p.NewEmail,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Verify checks signature and expiry and only then decodes the payload.
func (c *TokenCodec) Verify(token string) (Payload, error) {
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return Payload{}, ErrInvalidToken
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return Payload{
		AccountID: id,
		Purpose:   claims.Purpose,
		NewEmail:  claims.NewEmail,
	}, nil
}

// VerifyFor verifies token and additionally requires it to carry purpose
// and to be issued for accountID.
func (c *TokenCodec) VerifyFor(token string, purpose Purpose, accountID int64) (Payload, bool) {
	p, err := c.Verify(token)
	if err != nil {
		return Payload{}, false
	}
	if p.Purpose != purpose || p.AccountID != accountID {
		return Payload{}, false
	}
	return p, true
}
