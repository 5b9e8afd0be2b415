package repository

import (
	"context"
	"strings"
	"time"

	"github.com/yukikurage/task-assignment-api/internal/database"
	"github.com/yukikurage/task-assignment-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormTaskRepository is a GORM implementation of TaskRepository
type GormTaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &GormTaskRepository{db: db}
}

// CreateWithHistory inserts a task and its first history entry in one transaction
func (r *GormTaskRepository) CreateWithHistory(ctx context.Context, task *models.Task, entry *models.TaskHistory) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(task).Error; err != nil {
			return err
		}

		entry.TaskID = task.ID
		return tx.Create(entry).Error
	})
}

// FindByID finds a task by ID with assignee and assigner loaded
func (r *GormTaskRepository) FindByID(ctx context.Context, id uint64) (*models.Task, error) {
	var task models.Task
	if err := r.db.WithContext(ctx).
		Preload("Assignee").
		Preload("Assigner").
		First(&task, id).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// List retrieves tasks matching the filter
func (r *GormTaskRepository) List(ctx context.Context, filter TaskFilter) ([]models.Task, error) {
	tasks := []models.Task{}
	query := r.filtered(ctx, filter)

	switch filter.Order {
	case OrderDeadline:
		query = query.
			Order("CASE WHEN tasks.deadline IS NULL THEN 1 ELSE 0 END, tasks.deadline ASC").
			Order("tasks.created_at DESC").
			Order("tasks.id DESC")
	case OrderDeadlineOnly:
		query = query.
			Order("CASE WHEN tasks.deadline IS NULL THEN 1 ELSE 0 END, tasks.deadline ASC").
			Order("tasks.id ASC")
	case OrderNewest:
		query = query.Order("tasks.created_at DESC").Order("tasks.id DESC")
	}

	query = query.Scopes(database.Paginate(filter.Offset, filter.Limit))

	if err := query.Preload("Assignee").Preload("Assigner").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// Count counts tasks matching the filter, ignoring order and paging
func (r *GormTaskRepository) Count(ctx context.Context, filter TaskFilter) (int64, error) {
	var total int64
	if err := r.filtered(ctx, filter).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (r *GormTaskRepository) filtered(ctx context.Context, filter TaskFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.Task{})

	if filter.AssignedTo != nil {
		query = query.Where("tasks.assigned_to = ?", *filter.AssignedTo)
	}
	if filter.Status != nil {
		query = query.Where("tasks.status = ?", string(*filter.Status))
	}
	if filter.ExcludeStatus != nil {
		query = query.Where("tasks.status <> ?", string(*filter.ExcludeStatus))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
		query = query.Where("(LOWER(tasks.title) LIKE ? ESCAPE '!' OR LOWER(tasks.description) LIKE ? ESCAPE '!')", pattern, pattern)
	}
	if filter.DeadlineBefore != nil {
		query = query.Where("tasks.deadline < ?", *filter.DeadlineBefore)
	}
	if filter.DeadlineFrom != nil {
		query = query.Where("tasks.deadline >= ?", *filter.DeadlineFrom)
	}
	if filter.DeadlineTo != nil {
		query = query.Where("tasks.deadline <= ?", *filter.DeadlineTo)
	}
	return query
}

// Update writes the given columns
func (r *GormTaskRepository) Update(ctx context.Context, id uint64, fields map[string]any) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Task{}).Where("id = ?", id).Updates(fields)
	return result.RowsAffected, result.Error
}

// UpdateStatus locks the task row, writes the new status and appends the
// history entry in one transaction
func (r *GormTaskRepository) UpdateStatus(ctx context.Context, id uint64, status models.TaskStatus, actorID uint64, changedAt time.Time) (models.TaskStatus, error) {
	var previous models.TaskStatus

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task models.Task
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "status").
			First(&task, id).Error; err != nil {
			return err
		}
		previous = task.Status

		if err := tx.Model(&models.Task{}).
			Where("id = ?", id).
			Updates(map[string]any{"status": string(status), "updated_at": changedAt}).Error; err != nil {
			return err
		}

		old := previous
		return tx.Create(&models.TaskHistory{
			TaskID:    id,
			UserID:    actorID,
			OldStatus: &old,
			NewStatus: status,
			ChangedAt: changedAt,
		}).Error
	})
	if err != nil {
		return "", err
	}

	return previous, nil
}

// Delete hard deletes a task. History rows are kept as the audit trail.
func (r *GormTaskRepository) Delete(ctx context.Context, id uint64) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&models.Task{}, id)
	return result.RowsAffected, result.Error
}

// Stats aggregates status and overdue counts in one statement
func (r *GormTaskRepository) Stats(ctx context.Context, today models.Date, assignedTo *uint64) (TaskStats, error) {
	var stats TaskStats

	sql := `
		SELECT
			COUNT(*) AS total_tasks,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS pending_count,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS in_progress_count,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS completed_count,
			COALESCE(SUM(CASE WHEN deadline < ? AND status <> ? THEN 1 ELSE 0 END), 0) AS overdue_count
		FROM tasks`
	args := []any{
		string(models.TaskStatusPending),
		string(models.TaskStatusInProgress),
		string(models.TaskStatusCompleted),
		today,
		string(models.TaskStatusCompleted),
	}

	if assignedTo != nil {
		sql += " WHERE assigned_to = ?"
		args = append(args, *assignedTo)
	}

	err := r.db.WithContext(ctx).Raw(sql, args...).Scan(&stats).Error
	return stats, err
}

// History lists the transitions of a task with the actor's username, newest first
func (r *GormTaskRepository) History(ctx context.Context, taskID uint64) ([]models.TaskHistory, error) {
	entries := []models.TaskHistory{}
	err := r.db.WithContext(ctx).
		Model(&models.TaskHistory{}).
		Select("task_history.*, users.username AS username").
		Joins("LEFT JOIN users ON users.id = task_history.user_id").
		Where("task_history.task_id = ?", taskID).
		Order("task_history.changed_at DESC").
		Order("task_history.id DESC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// CountByUser counts tasks referencing the user as assignee or assigner
func (r *GormTaskRepository) CountByUser(ctx context.Context, userID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("assigned_to = ? OR assigned_by = ?", userID, userID).
		Count(&count).Error
	return count, err
}

// escapeLike escapes LIKE wildcards using '!' as the escape character
func escapeLike(s string) string {
	replacer := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return replacer.Replace(s)
}
