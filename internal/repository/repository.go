package repository

import (
	"context"
	"time"

	"github.com/yukikurage/task-assignment-api/internal/models"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create creates a new user
	Create(ctx context.Context, user *models.User) error

	// FindByID finds a user by ID
	FindByID(ctx context.Context, id uint64) (*models.User, error)

	// FindByEmail finds a user by email
	FindByEmail(ctx context.Context, email string) (*models.User, error)

	// FindByUsername finds a user by username
	FindByUsername(ctx context.Context, username string) (*models.User, error)

	// List lists users, optionally restricted to one role
	List(ctx context.Context, role *models.Role) ([]models.User, error)

	// Update writes the given columns and reports how many rows matched
	Update(ctx context.Context, id uint64, fields map[string]any) (int64, error)

	// UpdatePassword replaces the stored password hash
	UpdatePassword(ctx context.Context, id uint64, passwordHash string) (int64, error)

	// Delete hard deletes a user
	Delete(ctx context.Context, id uint64) (int64, error)

	// Stats counts users per role
	Stats(ctx context.Context) (UserStats, error)
}

// UserStats holds aggregate user counts
type UserStats struct {
	TotalUsers int64 `json:"total_users"`
	AdminCount int64 `json:"admin_count"`
	UserCount  int64 `json:"user_count"`
}

// TaskRepository defines the interface for task data access
type TaskRepository interface {
	// CreateWithHistory inserts a task and its first history entry atomically
	CreateWithHistory(ctx context.Context, task *models.Task, entry *models.TaskHistory) error

	// FindByID finds a task by ID with assignee and assigner loaded
	FindByID(ctx context.Context, id uint64) (*models.Task, error)

	// List retrieves tasks matching the filter
	List(ctx context.Context, filter TaskFilter) ([]models.Task, error)

	// Count counts tasks matching the filter, ignoring order and paging
	Count(ctx context.Context, filter TaskFilter) (int64, error)

	// Update writes the given columns and reports how many rows matched
	Update(ctx context.Context, id uint64, fields map[string]any) (int64, error)

	// UpdateStatus changes the status and appends a history entry atomically,
	// returning the previous status
	UpdateStatus(ctx context.Context, id uint64, status models.TaskStatus, actorID uint64, changedAt time.Time) (models.TaskStatus, error)

	// Delete hard deletes a task, keeping its history
	Delete(ctx context.Context, id uint64) (int64, error)

	// Stats aggregates status counts in one read
	Stats(ctx context.Context, today models.Date, assignedTo *uint64) (TaskStats, error)

	// History lists the status transitions of a task, newest first
	History(ctx context.Context, taskID uint64) ([]models.TaskHistory, error)

	// CountByUser counts tasks a user is assigned to or assigned
	CountByUser(ctx context.Context, userID uint64) (int64, error)
}

// TaskStats holds aggregate task counts
type TaskStats struct {
	TotalTasks      int64 `json:"total_tasks"`
	PendingCount    int64 `json:"pending_count"`
	InProgressCount int64 `json:"in_progress_count"`
	CompletedCount  int64 `json:"completed_count"`
	OverdueCount    int64 `json:"overdue_count"`
}

// TaskOrder selects the sort order of a task listing
type TaskOrder int

const (
	// OrderNewest sorts by creation time, newest first
	OrderNewest TaskOrder = iota
	// OrderDeadline sorts by deadline ascending, then newest first
	OrderDeadline
	// OrderDeadlineOnly sorts by deadline ascending
	OrderDeadlineOnly
)

// TaskFilter holds filtering options for listing tasks
type TaskFilter struct {
	AssignedTo     *uint64
	Status         *models.TaskStatus
	ExcludeStatus  *models.TaskStatus
	Query          string
	DeadlineBefore *models.Date
	DeadlineFrom   *models.Date
	DeadlineTo     *models.Date
	Order          TaskOrder
	Offset         int
	Limit          int
}
