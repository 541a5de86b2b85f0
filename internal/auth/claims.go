package auth

import "github.com/golang-jwt/jwt/v5"

// TokenClass distinguishes what a signed token may be used for.
// A token is only ever accepted where its class is expected.
type TokenClass string

const (
	TokenClassAccess        TokenClass = "access"
	TokenClassRefresh       TokenClass = "refresh"
	TokenClassPasswordReset TokenClass = "password_reset"
	TokenClassAdmin         TokenClass = "admin"
)

func (c TokenClass) Valid() bool {
	switch c {
	case TokenClassAccess, TokenClassRefresh, TokenClassPasswordReset, TokenClassAdmin:
		return true
	default:
		return false
	}
}

// Claims are the only supported JWT claims shape for this service.
// The subject is carried in RegisteredClaims.Subject.
type Claims struct {
	jwt.RegisteredClaims

	Class TokenClass `json:"class"`
}

// SubjectID returns the principal id the token was issued for.
func (c Claims) SubjectID() string { return c.Subject }
