package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken covers malformed, expired, badly signed and wrong-class tokens.
// Callers must not distinguish between those cases when answering clients.
var ErrInvalidToken = errors.New("invalid token")

// ErrExpired is wrapped alongside ErrInvalidToken when the only problem is expiry.
// Session code uses it to tell revoked-then-expired tokens apart from forgeries.
var ErrExpired = errors.New("token expired")

// CodecConfig is the explicit signing configuration for one identity domain.
type CodecConfig struct {
	Secret   string
	Issuer   string
	Audience string
}

// Codec signs and verifies session tokens. It holds no mutable state.
type Codec struct {
	secret   []byte
	issuer   string
	audience string
}

func NewCodec(cfg CodecConfig) (*Codec, error) {
	if cfg.Secret == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	return &Codec{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
	}, nil
}

/* ===================== SIGN ===================== */

// Sign mints a token for subjectID of the given class that expires after ttl.
func (c *Codec) Sign(now time.Time, subjectID string, class TokenClass, ttl time.Duration) (string, Claims, error) {
	if subjectID == "" {
		return "", Claims{}, errors.New("auth: subject is required")
	}
	if !class.Valid() {
		return "", Claims{}, fmt.Errorf("auth: unknown token class %q", class)
	}
	if ttl <= 0 {
		return "", Claims{}, errors.New("auth: ttl must be > 0")
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   subjectID,
			Audience:  audienceOrNil(c.audience),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Class: class,
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(c.secret)
	if err != nil {
		return "", Claims{}, err
	}
	return signed, claims, nil
}

/* ===================== VERIFY ===================== */

// Verify parses tokenString and checks signature, expiry and class.
// Every failure is reported as ErrInvalidToken (wrapped with the cause).
func (c *Codec) Verify(tokenString string, expected TokenClass, now time.Time) (Claims, error) {
	if tokenString == "" {
		return Claims{}, ErrInvalidToken
	}

	var claims Claims

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithLeeway(30 * time.Second), // clock skew tolerance
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}
	if c.audience != "" {
		opts = append(opts, jwt.WithAudience(c.audience))
	}

	parser := jwt.NewParser(opts...)
	_, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, ErrExpired)
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Class != expected {
		return Claims{}, fmt.Errorf("%w: class mismatch", ErrInvalidToken)
	}
	if claims.Subject == "" {
		return Claims{}, fmt.Errorf("%w: subject missing", ErrInvalidToken)
	}
	if claims.ID == "" {
		return Claims{}, fmt.Errorf("%w: jti missing", ErrInvalidToken)
	}

	return claims, nil
}

func audienceOrNil(aud string) jwt.ClaimStrings {
	if aud == "" {
		return nil
	}
	return jwt.ClaimStrings{aud}
}

// HashToken returns the hex SHA-256 of a token. Persisted token records are keyed by
// this value, never by the token itself.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
