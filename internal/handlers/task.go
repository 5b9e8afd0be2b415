package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/task-assignment-api/internal/dto"
	apierrors "github.com/yukikurage/task-assignment-api/internal/errors"
	"github.com/yukikurage/task-assignment-api/internal/middleware"
	"github.com/yukikurage/task-assignment-api/internal/models"
	"github.com/yukikurage/task-assignment-api/internal/services"
	"github.com/yukikurage/task-assignment-api/internal/utils"
)

type TaskHandler struct {
	taskService *services.TaskService
}

func NewTaskHandler(taskService *services.TaskService) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
	}
}

// scope returns the read scope of the caller
func scope(c *gin.Context) (services.Scope, bool) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		apierrors.Unauthorized(c, "")
		return services.Scope{}, false
	}
	return services.ScopeFor(identity.UserID, identity.IsAdmin()), true
}

// ListTasks returns the tasks visible to the caller
// Can filter by ?status=, search with ?q= and page with ?page=&limit=
func (h *TaskHandler) ListTasks(c *gin.Context) {
	sc, ok := scope(c)
	if !ok {
		return
	}

	input := services.ListTasksInput{Scope: sc, Query: c.Query("q")}
	if raw := c.Query("status"); raw != "" {
		status, err := models.ParseTaskStatus(raw)
		if err != nil {
			apierrors.BadRequest(c, "Invalid status")
			return
		}
		input.Status = &status
	}

	params, paged := utils.GetPaginationParams(c)
	if paged {
		input.Offset = params.Offset
		input.Limit = params.Limit
	}

	ctx := c.Request.Context()
	tasks, err := h.taskService.ListTasks(ctx, input)
	if err != nil {
		respondError(c, err)
		return
	}

	if !paged {
		c.JSON(http.StatusOK, gin.H{"tasks": dto.ToTaskDTOs(tasks)})
		return
	}

	total, err := h.taskService.CountTasks(ctx, input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tasks":      dto.ToTaskDTOs(tasks),
		"pagination": utils.NewPaginationResponse(params, total),
	})
}

// CreateTask creates a task assigned by the caller
func (h *TaskHandler) CreateTask(c *gin.Context) {
	type CreateTaskRequest struct {
		Title       string       `json:"title"`
		Description string       `json:"description"`
		AssignedTo  uint64       `json:"assigned_to"`
		Deadline    *models.Date `json:"deadline"`
		Priority    string       `json:"priority"`
	}

	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}
	if req.Title == "" || req.AssignedTo == 0 {
		apierrors.BadRequest(c, "Title and assigned_to required")
		return
	}

	task, err := h.taskService.Create(c.Request.Context(), services.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		AssignedTo:  req.AssignedTo,
		AssignedBy:  userID,
		Deadline:    req.Deadline,
		Priority:    models.TaskPriority(req.Priority),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Task created successfully",
		"task":    dto.ToTaskDTO(*task),
	})
}

// GetStats returns per-status counts of the caller's tasks
func (h *TaskHandler) GetStats(c *gin.Context) {
	sc, ok := scope(c)
	if !ok {
		return
	}

	stats, err := h.taskService.GetStats(c.Request.Context(), sc)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

// GetOverdue returns unfinished tasks past their deadline
func (h *TaskHandler) GetOverdue(c *gin.Context) {
	sc, ok := scope(c)
	if !ok {
		return
	}

	tasks, err := h.taskService.GetOverdueTasks(c.Request.Context(), sc)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tasks": dto.ToTaskDTOs(tasks)})
}

// GetUpcoming returns unfinished tasks due within ?days= days
func (h *TaskHandler) GetUpcoming(c *gin.Context) {
	sc, ok := scope(c)
	if !ok {
		return
	}

	days := 0
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			apierrors.BadRequest(c, "Invalid days parameter")
			return
		}
		days = n
	}

	tasks, err := h.taskService.GetUpcomingTasks(c.Request.Context(), sc, days)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tasks": dto.ToTaskDTOs(tasks)})
}

// SendReminders e-mails assignees about approaching and passed deadlines
func (h *TaskHandler) SendReminders(c *gin.Context) {
	result, err := h.taskService.SendDeadlineReminders(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Deadline reminders sent",
		"approaching": result.Approaching,
		"overdue":     result.Overdue,
	})
}

// GetTask returns a specific task by ID
// Task is already loaded by RequireTaskAccess middleware
func (h *TaskHandler) GetTask(c *gin.Context) {
	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"task": dto.ToTaskDTO(*task)})
}

type updateTaskRequest struct {
	Title       *string             `json:"title" binding:"omitempty,max=255"`
	Description *string             `json:"description"`
	AssignedTo  *uint64             `json:"assigned_to" binding:"omitempty,gt=0"`
	Deadline    models.OptionalDate `json:"deadline"`
	Priority    *string             `json:"priority"`
	Status      *string             `json:"status"`
}

func (r updateTaskRequest) input() services.UpdateTaskInput {
	input := services.UpdateTaskInput{
		Title:       r.Title,
		Description: r.Description,
		AssignedTo:  r.AssignedTo,
	}
	if r.Deadline.Set {
		if r.Deadline.Value == nil {
			input.ClearDeadline = true
		} else {
			input.Deadline = r.Deadline.Value
		}
	}
	if r.Priority != nil {
		p := models.TaskPriority(*r.Priority)
		input.Priority = &p
	}
	return input
}

// UpdateTask changes a task. A body holding only "status" is a status change
// open to the assignee; any other field requires an administrator, who may
// combine field edits with a status change.
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "")
		return
	}
	identity, _ := middleware.GetIdentity(c)

	body, err := readBody(c)
	if err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}
	keys, err := fieldKeys(body)
	if err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}
	var req updateTaskRequest
	if err := decodeStrict(body, &req); err != nil {
		apierrors.BadRequest(c, bodyErrorMessage(err))
		return
	}

	ctx := c.Request.Context()

	if _, hasStatus := keys["status"]; hasStatus && len(keys) == 1 {
		if req.Status == nil {
			apierrors.BadRequest(c, "Invalid status")
			return
		}
		updated, err := h.taskService.UpdateStatus(ctx, task.ID, models.TaskStatus(*req.Status), identity.UserID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message": "Task status updated successfully",
			"task":    dto.ToTaskDTO(*updated),
		})
		return
	}

	if !identity.IsAdmin() {
		apierrors.Forbidden(c, "Admin access required")
		return
	}

	if req.Status != nil && !models.TaskStatus(*req.Status).Valid() {
		apierrors.BadRequest(c, "Invalid status")
		return
	}

	updated, err := h.taskService.Update(ctx, task.ID, req.input(), identity.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	// Same-state writes are audited like any other transition.
	if req.Status != nil {
		updated, err = h.taskService.UpdateStatus(ctx, task.ID, models.TaskStatus(*req.Status), identity.UserID)
		if err != nil {
			respondError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Task updated successfully",
		"task":    dto.ToTaskDTO(*updated),
	})
}

// DeleteTask removes a task. Its history is kept.
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	taskID, ok := parseID(c)
	if !ok {
		apierrors.BadRequest(c, "Invalid task ID")
		return
	}

	if _, err := h.taskService.Delete(c.Request.Context(), taskID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Task deleted successfully"})
}

// GetHistory returns the status transitions of a task, newest first
func (h *TaskHandler) GetHistory(c *gin.Context) {
	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "")
		return
	}

	history, err := h.taskService.GetHistory(c.Request.Context(), task.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"history": dto.ToTaskHistoryDTOs(history)})
}
