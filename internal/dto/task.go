package dto

import (
	"time"

	"github.com/yukikurage/task-assignment-api/internal/models"
	"github.com/yukikurage/task-assignment-api/internal/repository"
)

// TaskDTO represents a task in API responses
type TaskDTO struct {
	ID                 uint64              `json:"id"`
	Title              string              `json:"title"`
	Description        string              `json:"description"`
	AssignedTo         uint64              `json:"assigned_to"`
	AssignedToUsername string              `json:"assigned_to_username,omitempty"`
	AssignedToEmail    string              `json:"assigned_to_email,omitempty"`
	AssignedBy         uint64              `json:"assigned_by"`
	AssignedByUsername string              `json:"assigned_by_username,omitempty"`
	Status             models.TaskStatus   `json:"status"`
	Priority           models.TaskPriority `json:"priority"`
	Deadline           *models.Date        `json:"deadline"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// TaskHistoryDTO represents one status transition
type TaskHistoryDTO struct {
	ID        uint64             `json:"id"`
	TaskID    uint64             `json:"task_id"`
	UserID    uint64             `json:"user_id"`
	Username  string             `json:"username"`
	OldStatus *models.TaskStatus `json:"old_status"`
	NewStatus models.TaskStatus  `json:"new_status"`
	ChangedAt time.Time          `json:"changed_at"`
}

// AdminDashboard is the dashboard of an administrator
type AdminDashboard struct {
	UserStats     repository.UserStats `json:"user_stats"`
	TaskStats     repository.TaskStats `json:"task_stats"`
	OverdueTasks  []TaskDTO            `json:"overdue_tasks"`
	UpcomingTasks []TaskDTO            `json:"upcoming_tasks"`
}

// UserDashboard is the dashboard of a regular user
type UserDashboard struct {
	TaskStats   repository.TaskStats `json:"task_stats"`
	RecentTasks []TaskDTO            `json:"recent_tasks"`
}

// ToTaskDTO converts a Task model to TaskDTO
func ToTaskDTO(task models.Task) TaskDTO {
	dto := TaskDTO{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		AssignedTo:  task.AssignedTo,
		AssignedBy:  task.AssignedBy,
		Status:      task.Status,
		Priority:    task.Priority,
		Deadline:    task.Deadline,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}

	// Include display fields if preloaded
	if task.Assignee.ID != 0 {
		dto.AssignedToUsername = task.Assignee.Username
		dto.AssignedToEmail = task.Assignee.Email
	}
	if task.Assigner.ID != 0 {
		dto.AssignedByUsername = task.Assigner.Username
	}

	return dto
}

// ToTaskDTOs converts a slice of tasks
func ToTaskDTOs(tasks []models.Task) []TaskDTO {
	out := make([]TaskDTO, len(tasks))
	for i, task := range tasks {
		out[i] = ToTaskDTO(task)
	}
	return out
}

// ToTaskHistoryDTOs converts history entries
func ToTaskHistoryDTOs(entries []models.TaskHistory) []TaskHistoryDTO {
	out := make([]TaskHistoryDTO, len(entries))
	for i, e := range entries {
		out[i] = TaskHistoryDTO{
			ID:        e.ID,
			TaskID:    e.TaskID,
			UserID:    e.UserID,
			Username:  e.Username,
			OldStatus: e.OldStatus,
			NewStatus: e.NewStatus,
			ChangedAt: e.ChangedAt,
		}
	}
	return out
}
