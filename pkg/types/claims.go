package types

import "github.com/golang-jwt/jwt/v5"

const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
)

// Claims is the token payload issued by the identity provider.
type Claims struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the verified caller attached to a request.
type Identity struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Role  string `json:"role"`
	IsDev bool   `json:"isDev,omitempty"`
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

func (i Identity) Authenticated() bool {
	return i.UID != ""
}
