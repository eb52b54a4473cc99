package auth

import "github.com/Val17-ui/CACESmodule-sub000/internal/auth/jwt"

// Operator roles.
const (
	RoleTrainer = "trainer"
	RoleAdmin   = "admin"
)

// TokenValidator is satisfied by *jwt.Manager.
type TokenValidator interface {
	ValidateToken(token string) (*jwt.Claims, error)
}
