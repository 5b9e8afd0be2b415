package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/yukikurage/task-assignment-api/internal/constants"
	"github.com/yukikurage/task-assignment-api/internal/metrics"
	"github.com/yukikurage/task-assignment-api/internal/models"
	"github.com/yukikurage/task-assignment-api/internal/notification"
	"github.com/yukikurage/task-assignment-api/internal/repository"
	"gorm.io/gorm"
)

var (
	ErrTaskNotFound     = errors.New("task not found")
	ErrTitleRequired    = errors.New("title is required")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrInvalidPriority  = errors.New("invalid priority")
	ErrAssigneeNotFound = errors.New("assigned user not found")
	ErrAssigneeIsAdmin  = errors.New("cannot assign tasks to administrators")
)

// TaskService handles task business logic
type TaskService struct {
	taskRepo       repository.TaskRepository
	userRepo       repository.UserRepository
	notifier       notification.Notifier
	log            zerolog.Logger
	now            func() time.Time
	upcomingWindow int
}

// TaskServiceOption configures a TaskService
type TaskServiceOption func(*TaskService)

// WithClock replaces the time source
func WithClock(now func() time.Time) TaskServiceOption {
	return func(s *TaskService) {
		s.now = now
	}
}

// WithUpcomingWindow sets the default window of the upcoming view in days
func WithUpcomingWindow(days int) TaskServiceOption {
	return func(s *TaskService) {
		if days > 0 {
			s.upcomingWindow = days
		}
	}
}

// NewTaskService creates a new TaskService
func NewTaskService(taskRepo repository.TaskRepository, userRepo repository.UserRepository, notifier notification.Notifier, log zerolog.Logger, opts ...TaskServiceOption) *TaskService {
	s := &TaskService{
		taskRepo:       taskRepo,
		userRepo:       userRepo,
		notifier:       notifier,
		log:            log.With().Str("component", "task_service").Logger(),
		now:            time.Now,
		upcomingWindow: constants.DefaultUpcomingWindowDays,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scope restricts task reads to one assignee unless All is set
type Scope struct {
	UserID uint64
	All    bool
}

// ScopeFor returns the read scope of a caller: administrators see every task,
// users only their own.
func ScopeFor(userID uint64, isAdmin bool) Scope {
	return Scope{UserID: userID, All: isAdmin}
}

func (s Scope) assignedTo() *uint64 {
	if s.All {
		return nil
	}
	id := s.UserID
	return &id
}

// CreateTaskInput represents input for creating a task
type CreateTaskInput struct {
	Title       string
	Description string
	AssignedTo  uint64
	AssignedBy  uint64
	Deadline    *models.Date
	Priority    models.TaskPriority
}

// UpdateTaskInput represents input for updating a task. Nil fields are left
// unchanged; ClearDeadline removes the deadline.
type UpdateTaskInput struct {
	Title         *string
	Description   *string
	AssignedTo    *uint64
	Deadline      *models.Date
	ClearDeadline bool
	Priority      *models.TaskPriority
}

func (in UpdateTaskInput) empty() bool {
	return in.Title == nil && in.Description == nil && in.AssignedTo == nil &&
		in.Deadline == nil && !in.ClearDeadline && in.Priority == nil
}

// ListTasksInput represents filters for listing tasks. A positive Limit
// selects one page starting at Offset.
type ListTasksInput struct {
	Scope  Scope
	Status *models.TaskStatus
	Query  string
	Offset int
	Limit  int
}

func (in ListTasksInput) filter() repository.TaskFilter {
	filter := repository.TaskFilter{
		AssignedTo: in.Scope.assignedTo(),
		Status:     in.Status,
		Query:      in.Query,
		Order:      repository.OrderDeadline,
		Offset:     in.Offset,
		Limit:      in.Limit,
	}
	if in.Query != "" || (in.Scope.All && in.Status == nil) {
		filter.Order = repository.OrderNewest
	}
	return filter
}

// ReminderResult counts the notices sent by SendDeadlineReminders
type ReminderResult struct {
	Approaching int `json:"approaching"`
	Overdue     int `json:"overdue"`
}

func (s *TaskService) today() models.Date {
	return models.DateOf(s.now())
}

// Create stores a pending task with its first history entry and notifies the assignee
func (s *TaskService) Create(ctx context.Context, input CreateTaskInput) (*models.Task, error) {
	title, err := normalizeTitle(input.Title)
	if err != nil {
		return nil, err
	}

	priority := input.Priority
	if priority == "" {
		priority = models.TaskPriorityMedium
	}
	if !priority.Valid() {
		return nil, ErrInvalidPriority
	}

	assignee, err := s.loadAssignee(ctx, input.AssignedTo)
	if err != nil {
		return nil, err
	}

	assigner, err := s.userRepo.FindByID(ctx, input.AssignedBy)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find assigner: %w", err)
	}

	now := s.now()
	task := &models.Task{
		Title:       title,
		Description: input.Description,
		AssignedTo:  assignee.ID,
		AssignedBy:  assigner.ID,
		Status:      models.TaskStatusPending,
		Priority:    priority,
		Deadline:    input.Deadline,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	entry := &models.TaskHistory{
		UserID:    assigner.ID,
		NewStatus: models.TaskStatusPending,
		ChangedAt: now,
	}

	if err := s.taskRepo.CreateWithHistory(ctx, task, entry); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	metrics.ObserveTaskCreated()
	s.log.Info().
		Uint64("task_id", task.ID).
		Uint64("assigned_to", assignee.ID).
		Uint64("assigned_by", assigner.ID).
		Msg("task created")

	created, err := s.GetTask(ctx, task.ID)
	if err != nil {
		return nil, err
	}

	// Delivery may outlast the request; nothing reads ctx after this.
	s.notifier.TaskAssigned(ctx, notification.AssignmentNotice{
		Recipient:   recipient(assignee),
		TaskTitle:   created.Title,
		Description: created.Description,
		Deadline:    created.Deadline,
		AssignedBy:  assigner.Username,
	})

	return created, nil
}

// FindByID returns the task with display fields, or nil when absent
func (s *TaskService) FindByID(ctx context.Context, id uint64) (*models.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, id)
	return optional(task, err)
}

// GetTask returns a task with display fields
func (s *TaskService) GetTask(ctx context.Context, id uint64) (*models.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}

	return task, nil
}

// GetAll returns every task, newest first
func (s *TaskService) GetAll(ctx context.Context) ([]models.Task, error) {
	return s.list(ctx, repository.TaskFilter{Order: repository.OrderNewest})
}

// GetByAssignedUser returns a user's tasks by deadline, undated last
func (s *TaskService) GetByAssignedUser(ctx context.Context, userID uint64) ([]models.Task, error) {
	return s.list(ctx, repository.TaskFilter{AssignedTo: &userID, Order: repository.OrderDeadline})
}

// GetByStatus returns the tasks in one status by deadline, undated last
func (s *TaskService) GetByStatus(ctx context.Context, status models.TaskStatus) ([]models.Task, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	return s.list(ctx, repository.TaskFilter{Status: &status, Order: repository.OrderDeadline})
}

// Search matches the query against title and description, newest first
func (s *TaskService) Search(ctx context.Context, query string, scope Scope) ([]models.Task, error) {
	return s.list(ctx, repository.TaskFilter{
		AssignedTo: scope.assignedTo(),
		Query:      query,
		Order:      repository.OrderNewest,
	})
}

// ListTasks returns the tasks visible in the scope, optionally filtered by
// status or a search query
func (s *TaskService) ListTasks(ctx context.Context, input ListTasksInput) ([]models.Task, error) {
	if input.Status != nil && !input.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	return s.list(ctx, input.filter())
}

// CountTasks counts the tasks ListTasks would return without paging
func (s *TaskService) CountTasks(ctx context.Context, input ListTasksInput) (int64, error) {
	if input.Status != nil && !input.Status.Valid() {
		return 0, ErrInvalidStatus
	}

	total, err := s.taskRepo.Count(ctx, input.filter())
	if err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return total, nil
}

// GetOverdueTasks returns unfinished tasks whose deadline has passed
func (s *TaskService) GetOverdueTasks(ctx context.Context, scope Scope) ([]models.Task, error) {
	today := s.today()
	completed := models.TaskStatusCompleted
	return s.list(ctx, repository.TaskFilter{
		AssignedTo:     scope.assignedTo(),
		DeadlineBefore: &today,
		ExcludeStatus:  &completed,
		Order:          repository.OrderDeadlineOnly,
	})
}

// GetUpcomingTasks returns unfinished tasks due between today and the end of
// the window. A non-positive window uses the configured default.
func (s *TaskService) GetUpcomingTasks(ctx context.Context, scope Scope, windowDays int) ([]models.Task, error) {
	if windowDays <= 0 {
		windowDays = s.upcomingWindow
	}
	if windowDays > constants.MaxUpcomingWindowDays {
		windowDays = constants.MaxUpcomingWindowDays
	}

	today := s.today()
	end := today.AddDays(windowDays)
	completed := models.TaskStatusCompleted
	return s.list(ctx, repository.TaskFilter{
		AssignedTo:    scope.assignedTo(),
		DeadlineFrom:  &today,
		DeadlineTo:    &end,
		ExcludeStatus: &completed,
		Order:         repository.OrderDeadlineOnly,
	})
}

// Update applies the provided fields. Reassignment is checked against the
// administrator rule and notifies the new assignee.
func (s *TaskService) Update(ctx context.Context, id uint64, input UpdateTaskInput, actorID uint64) (*models.Task, error) {
	if input.empty() {
		return nil, ErrNoFieldsToUpdate
	}

	task, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if input.Title != nil {
		title, err := normalizeTitle(*input.Title)
		if err != nil {
			return nil, err
		}
		fields["title"] = title
	}
	if input.Description != nil {
		fields["description"] = *input.Description
	}
	if input.Priority != nil {
		if !input.Priority.Valid() {
			return nil, ErrInvalidPriority
		}
		fields["priority"] = string(*input.Priority)
	}
	if input.ClearDeadline {
		fields["deadline"] = nil
	} else if input.Deadline != nil {
		fields["deadline"] = *input.Deadline
	}

	var newAssignee *models.User
	if input.AssignedTo != nil && *input.AssignedTo != task.AssignedTo {
		newAssignee, err = s.loadAssignee(ctx, *input.AssignedTo)
		if err != nil {
			return nil, err
		}
		fields["assigned_to"] = newAssignee.ID
	}

	if len(fields) > 0 {
		fields["updated_at"] = s.now()
		if _, err := s.taskRepo.Update(ctx, id, fields); err != nil {
			return nil, fmt.Errorf("failed to update task: %w", err)
		}
	}

	updated, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	if newAssignee != nil {
		s.log.Info().Uint64("task_id", id).Uint64("assigned_to", newAssignee.ID).Msg("task reassigned")
		assignedBy := ""
		if actor, err := s.userRepo.FindByID(ctx, actorID); err == nil {
			assignedBy = actor.Username
		}
		s.notifier.TaskAssigned(ctx, notification.AssignmentNotice{
			Recipient:   recipient(newAssignee),
			TaskTitle:   updated.Title,
			Description: updated.Description,
			Deadline:    updated.Deadline,
			AssignedBy:  assignedBy,
		})
	}

	return updated, nil
}

// UpdateStatus records a status transition and notifies the other party:
// the assigner when the assignee acted, otherwise the assignee
func (s *TaskService) UpdateStatus(ctx context.Context, id uint64, status models.TaskStatus, actorID uint64) (*models.Task, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	previous, err := s.taskRepo.UpdateStatus(ctx, id, status, actorID, s.now())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to update task status: %w", err)
	}

	metrics.ObserveStatusTransition(string(previous), string(status))
	s.log.Info().
		Uint64("task_id", id).
		Uint64("actor_id", actorID).
		Str("old_status", string(previous)).
		Str("new_status", string(status)).
		Msg("task status changed")

	task, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	to := task.Assignee
	if actorID == task.AssignedTo {
		to = task.Assigner
	}
	s.notifier.TaskStatusChanged(ctx, notification.StatusChangeNotice{
		Recipient: recipient(&to),
		TaskTitle: task.Title,
		OldStatus: previous,
		NewStatus: status,
	})

	return task, nil
}

// Delete removes a task. Its history is kept.
func (s *TaskService) Delete(ctx context.Context, id uint64) (bool, error) {
	rows, err := s.taskRepo.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete task: %w", err)
	}
	if rows == 0 {
		return false, ErrTaskNotFound
	}

	s.log.Info().Uint64("task_id", id).Msg("task deleted")
	return true, nil
}

// GetHistory returns the status transitions of a task, newest first
func (s *TaskService) GetHistory(ctx context.Context, taskID uint64) ([]models.TaskHistory, error) {
	history, err := s.taskRepo.History(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get task history: %w", err)
	}
	return history, nil
}

// GetStats counts the tasks in the scope per status and overdue
func (s *TaskService) GetStats(ctx context.Context, scope Scope) (repository.TaskStats, error) {
	stats, err := s.taskRepo.Stats(ctx, s.today(), scope.assignedTo())
	if err != nil {
		return repository.TaskStats{}, fmt.Errorf("failed to get task stats: %w", err)
	}
	return stats, nil
}

// SendDeadlineReminders notifies assignees of tasks due within the upcoming
// window and of overdue tasks
func (s *TaskService) SendDeadlineReminders(ctx context.Context) (ReminderResult, error) {
	var result ReminderResult
	all := Scope{All: true}
	today := s.today()

	upcoming, err := s.GetUpcomingTasks(ctx, all, s.upcomingWindow)
	if err != nil {
		return result, err
	}
	overdue, err := s.GetOverdueTasks(ctx, all)
	if err != nil {
		return result, err
	}

	for i := range upcoming {
		task := &upcoming[i]
		s.notifier.DeadlineApproaching(ctx, notification.DeadlineNotice{
			Recipient: recipient(&task.Assignee),
			TaskTitle: task.Title,
			Deadline:  *task.Deadline,
			Days:      today.DaysUntil(*task.Deadline),
		})
		result.Approaching++
	}
	for i := range overdue {
		task := &overdue[i]
		s.notifier.DeadlinePassed(ctx, notification.DeadlineNotice{
			Recipient: recipient(&task.Assignee),
			TaskTitle: task.Title,
			Deadline:  *task.Deadline,
			Days:      task.Deadline.DaysUntil(today),
		})
		result.Overdue++
	}

	s.log.Info().
		Int("approaching", result.Approaching).
		Int("overdue", result.Overdue).
		Msg("deadline reminders sent")
	return result, nil
}

func (s *TaskService) list(ctx context.Context, filter repository.TaskFilter) ([]models.Task, error) {
	tasks, err := s.taskRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// loadAssignee returns the user a task may be assigned to
func (s *TaskService) loadAssignee(ctx context.Context, id uint64) (*models.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssigneeNotFound
		}
		return nil, fmt.Errorf("failed to find assignee: %w", err)
	}
	if user.IsAdmin() {
		return nil, ErrAssigneeIsAdmin
	}
	return user, nil
}

func recipient(u *models.User) notification.Recipient {
	return notification.Recipient{Email: u.Email, Name: u.Username}
}
