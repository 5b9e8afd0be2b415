package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
	apierrors "github.com/yukikurage/task-assignment-api/internal/errors"
)

const contextKeyTargetUserID = "target_user_id"

// RequireSelfOrAdmin lets a caller act on the account named by :id only when
// it is their own or they are an administrator
func RequireSelfOrAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		targetID, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			apierrors.BadRequest(c, "Invalid user ID")
			return
		}

		identity, ok := GetIdentity(c)
		if !ok {
			apierrors.Unauthorized(c, "")
			return
		}

		if !identity.IsAdmin() && identity.UserID != targetID {
			apierrors.Forbidden(c, "Permission denied")
			return
		}

		c.Set(contextKeyTargetUserID, targetID)
		c.Next()
	}
}

// GetTargetUserID retrieves the account ID checked by RequireSelfOrAdmin
func GetTargetUserID(c *gin.Context) (uint64, bool) {
	v, exists := c.Get(contextKeyTargetUserID)
	if !exists {
		return 0, false
	}
	return toUint64(v)
}
