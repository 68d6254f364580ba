package jwt

import "github.com/golang-jwt/jwt/v5"

// TokenType discriminates access tokens from refresh tokens.
type TokenType string

const (
	TypeAccess  TokenType = "access"
	TypeRefresh TokenType = "refresh"
)

// Valid reports whether t is a known token type.
func (t TokenType) Valid() bool {
	return t == TypeAccess || t == TypeRefresh
}

// Claims is the payload carried by every token. Subject and UserID hold the
// same value; user_id is kept for clients that read it directly.
type Claims struct {
	TokenType TokenType `json:"token_type"`
	UserID    string    `json:"user_id"`
	jwt.RegisteredClaims
}
