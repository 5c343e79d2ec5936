package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the only supported JWT claims shape for this service.
// The subject is the user's normalized phone number.
type Claims struct {
	jwt.RegisteredClaims

	Phone     string    `json:"phone"`
	Role      string    `json:"role,omitempty"`
	TokenType TokenType `json:"token_type"`
}
