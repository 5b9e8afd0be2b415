package middleware

import (
	"context"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/yukikurage/task-assignment-api/internal/constants"
	apierrors "github.com/yukikurage/task-assignment-api/internal/errors"
	"github.com/yukikurage/task-assignment-api/internal/models"
)

// Identity is the authenticated caller of the current request
type Identity struct {
	UserID   uint64
	Username string
	Role     models.Role
}

// IsAdmin reports whether the caller is an administrator
func (i Identity) IsAdmin() bool {
	return i.Role == models.RoleAdmin
}

// UserFinder loads users; a missing user is (nil, nil)
type UserFinder interface {
	FindByID(ctx context.Context, id uint64) (*models.User, error)
}

// LoadIdentity resolves the session's user. It returns nil without error when
// the session is anonymous or refers to a user that no longer exists; the
// stale session is cleared in that case.
func LoadIdentity(c *gin.Context, users UserFinder) (*Identity, error) {
	session := sessions.Default(c)
	userID, ok := toUint64(session.Get(constants.ContextKeyUserID))
	if !ok {
		return nil, nil
	}

	user, err := users.FindByID(c.Request.Context(), userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		session.Clear()
		_ = session.Save()
		return nil, nil
	}

	return &Identity{UserID: user.ID, Username: user.Username, Role: user.Role}, nil
}

// RequireAuth resolves the session user and stores the Identity in the
// request context
func RequireAuth(users UserFinder) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := LoadIdentity(c, users)
		if err != nil {
			zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("failed to load session user")
			apierrors.InternalError(c, "")
			return
		}
		if identity == nil {
			apierrors.Unauthorized(c, "")
			return
		}

		c.Set(constants.ContextKeyIdentity, *identity)
		c.Set(constants.ContextKeyUserID, identity.UserID)
		c.Next()
	}
}

// RequireAdmin rejects callers that are not administrators
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := GetIdentity(c)
		if !ok {
			apierrors.Unauthorized(c, "")
			return
		}
		if !identity.IsAdmin() {
			apierrors.Forbidden(c, "Admin access required")
			return
		}
		c.Next()
	}
}

// GetIdentity retrieves the caller set by RequireAuth
func GetIdentity(c *gin.Context) (Identity, bool) {
	v, exists := c.Get(constants.ContextKeyIdentity)
	if !exists {
		return Identity{}, false
	}
	identity, ok := v.(Identity)
	return identity, ok
}

// GetUserID retrieves the current user ID from context
func GetUserID(c *gin.Context) (uint64, bool) {
	userID, exists := c.Get(constants.ContextKeyUserID)
	if !exists {
		return 0, false
	}
	return toUint64(userID)
}

func toUint64(v any) (uint64, bool) {
	switch v := v.(type) {
	case uint64:
		return v, true
	case uint:
		return uint64(v), true
	case int:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case int64:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	default:
		return 0, false
	}
}
