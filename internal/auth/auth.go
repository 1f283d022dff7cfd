package auth

import (
	"context"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Credentials is what authentication needs to know about an account.
type Credentials struct {
	UserID       int64
	Email        string
	PasswordHash string
	Role         string
}

// Claims is the signed session snapshot. Roles and permissions reflect the moment of issuance
// and are not refreshed for the life of the token.
type Claims struct {
	Email       string   `json:"email"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *Claims) UserID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

func (c *Claims) HasPermission(name string) bool {
	for _, p := range c.Permissions {
		if p == name {
			return true
		}
	}
	return false
}

// Session is the result of a successful login.
type Session struct {
	UserID      int64     `json:"userId"`
	Email       string    `json:"email"`
	Roles       []string  `json:"roles"`
	Permissions []string  `json:"permissions"`
	Token       string    `json:"token"`
	TokenType   string    `json:"tokenType"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// TokenGenerator signs and verifies session tokens.
type TokenGenerator interface {
	GenerateToken(identity Identity) (token string, expiresAt time.Time, err error)
	ValidateToken(tokenString string) (*Claims, error)
}

// Identity is the claim set handed to the token generator.
type Identity struct {
	UserID      int64
	Email       string
	Roles       []string
	Permissions []string
}

type ctxKey string

const contextClaimsKey ctxKey = "claims"

func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, contextClaimsKey, claims)
}

func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(contextClaimsKey).(*Claims)
	return c, ok
}
