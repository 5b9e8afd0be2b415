package middleware

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	apierrors "github.com/yukikurage/task-assignment-api/internal/errors"
	"github.com/yukikurage/task-assignment-api/internal/models"
)

const contextKeyTask = "task"

// TaskFinder loads tasks; a missing task is (nil, nil)
type TaskFinder interface {
	FindByID(ctx context.Context, id uint64) (*models.Task, error)
}

// RequireTaskAccess loads the task named by the :id parameter and lets only
// its assignee or an administrator through
func RequireTaskAccess(tasks TaskFinder) gin.HandlerFunc {
	return func(c *gin.Context) {
		taskID, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			apierrors.BadRequest(c, "Invalid task ID")
			return
		}

		identity, ok := GetIdentity(c)
		if !ok {
			apierrors.Unauthorized(c, "")
			return
		}

		task, err := tasks.FindByID(c.Request.Context(), taskID)
		if err != nil {
			zerolog.Ctx(c.Request.Context()).Error().Err(err).Uint64("task_id", taskID).Msg("failed to load task")
			apierrors.InternalError(c, "")
			return
		}
		if task == nil {
			apierrors.NotFound(c, "Task not found")
			return
		}

		if !identity.IsAdmin() && task.AssignedTo != identity.UserID {
			apierrors.Forbidden(c, "Permission denied")
			return
		}

		c.Set(contextKeyTask, task)
		c.Next()
	}
}

// GetTask retrieves the task set by RequireTaskAccess
func GetTask(c *gin.Context) (*models.Task, bool) {
	v, exists := c.Get(contextKeyTask)
	if !exists {
		return nil, false
	}
	task, ok := v.(*models.Task)
	return task, ok
}
