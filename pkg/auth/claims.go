package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID    string
	Email     string
	SessionID string
	JTI       string
}

// AccessTokenClaims is the storefront access token. The signed-in user is
// carried in the standard subject claim; sid pins the guest cart session the
// token was issued for.
type AccessTokenClaims struct {
	Email     string `json:"email,omitempty"`
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

func (c *AccessTokenClaims) UserID() string {
	if c == nil {
		return ""
	}
	return c.Subject
}
