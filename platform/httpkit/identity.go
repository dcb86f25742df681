package httpkit

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Identity is the authenticated caller as seen by handlers. Case actions
// only require an authenticated user; roles are not modelled.
type Identity interface {
	UserID() uuid.UUID
	IsAuthenticated() bool
}

type identity struct {
	userID        uuid.UUID
	authenticated bool
}

func (i identity) UserID() uuid.UUID { return i.userID }

func (i identity) IsAuthenticated() bool { return i.authenticated }

// GetIdentity reads the user placed on the context by AuthRequired. Without
// one, the identity is anonymous.
func GetIdentity(c *gin.Context) Identity {
	raw, ok := c.Get(ContextUserIDKey)
	if !ok {
		return identity{}
	}
	uid, ok := raw.(uuid.UUID)
	if !ok || uid == uuid.Nil {
		return identity{}
	}
	return identity{userID: uid, authenticated: true}
}

// MustGetIdentity aborts with 401 and returns nil when the caller is anonymous.
func MustGetIdentity(c *gin.Context) Identity {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return nil
	}
	return id
}
