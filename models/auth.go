package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims represents the claims of the bearer tokens issued upstream
type JWTClaims struct {
	UserID      string   `json:"user_id"`
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	Role        Role     `json:"role"`
	Designation string   `json:"designation,omitempty"`
	Contact     string   `json:"contact,omitempty"`
	Permissions []string `json:"permissions,omitempty"`

	jwt.RegisteredClaims
}

// Actor converts verified claims into the engine's caller identity.
func (c *JWTClaims) Actor() *Actor {
	return &Actor{
		UserID:      c.UserID,
		Name:        c.Name,
		Email:       c.Email,
		Role:        c.Role,
		Designation: c.Designation,
		Contact:     c.Contact,
		Permissions: c.Permissions,
	}
}
