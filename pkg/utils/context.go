package utils

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/linskybing/club-intake/pkg/types"
)

const IdentityKey = "identity"

var ErrNoIdentity = errors.New("identity not found in context")

// GetIdentityFromContext returns the verified caller set by the auth middleware.
var GetIdentityFromContext = func(c *gin.Context) (types.Identity, error) {
	v, exists := c.Get(IdentityKey)
	if !exists {
		return types.Identity{}, ErrNoIdentity
	}
	id, ok := v.(types.Identity)
	if !ok {
		return types.Identity{}, errors.New("invalid identity type")
	}
	return id, nil
}

// OptionalIdentity returns the caller when present, or the zero identity.
func OptionalIdentity(c *gin.Context) types.Identity {
	id, err := GetIdentityFromContext(c)
	if err != nil {
		return types.Identity{}
	}
	return id
}
