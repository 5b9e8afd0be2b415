package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/task-assignment-api/internal/constants"
	"github.com/yukikurage/task-assignment-api/internal/dto"
	apierrors "github.com/yukikurage/task-assignment-api/internal/errors"
	"github.com/yukikurage/task-assignment-api/internal/middleware"
	"github.com/yukikurage/task-assignment-api/internal/services"
)

type DashboardHandler struct {
	userService *services.UserService
	taskService *services.TaskService
}

func NewDashboardHandler(userService *services.UserService, taskService *services.TaskService) *DashboardHandler {
	return &DashboardHandler{
		userService: userService,
		taskService: taskService,
	}
}

// GetDashboard returns the overview of the caller's role. Administrators get
// account and task statistics with the overdue and upcoming queues; users get
// their own statistics and nearest tasks.
func (h *DashboardHandler) GetDashboard(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		apierrors.Unauthorized(c, "")
		return
	}

	ctx := c.Request.Context()
	sc := services.ScopeFor(identity.UserID, identity.IsAdmin())

	taskStats, err := h.taskService.GetStats(ctx, sc)
	if err != nil {
		respondError(c, err)
		return
	}

	if !identity.IsAdmin() {
		tasks, err := h.taskService.GetByAssignedUser(ctx, identity.UserID)
		if err != nil {
			respondError(c, err)
			return
		}
		if len(tasks) > constants.RecentTasksLimit {
			tasks = tasks[:constants.RecentTasksLimit]
		}

		c.JSON(http.StatusOK, dto.UserDashboard{
			TaskStats:   taskStats,
			RecentTasks: dto.ToTaskDTOs(tasks),
		})
		return
	}

	userStats, err := h.userService.GetStats(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	overdue, err := h.taskService.GetOverdueTasks(ctx, sc)
	if err != nil {
		respondError(c, err)
		return
	}
	upcoming, err := h.taskService.GetUpcomingTasks(ctx, sc, 0)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.AdminDashboard{
		UserStats:     userStats,
		TaskStats:     taskStats,
		OverdueTasks:  dto.ToTaskDTOs(overdue),
		UpcomingTasks: dto.ToTaskDTOs(upcoming),
	})
}
