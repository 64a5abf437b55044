package transfer

import "github.com/golang-jwt/jwt/v5"

type CustomClaims struct {
	UserID string `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// Owner returns the user id carried by the token. Tokens minted by the auth
// provider only set the subject.
func (c *CustomClaims) Owner() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.Subject
}
