package models

import "time"

// TaskHistory is one append-only status transition. Neither TaskID nor
// UserID carries a foreign key so entries outlive the rows they describe.
type TaskHistory struct {
	ID        uint64      `gorm:"primarykey" json:"id"`
	TaskID    uint64      `gorm:"not null" json:"task_id"`
	UserID    uint64      `gorm:"not null" json:"user_id"`
	OldStatus *TaskStatus `gorm:"type:varchar(20)" json:"old_status"`
	NewStatus TaskStatus  `gorm:"type:varchar(20);not null" json:"new_status"`
	ChangedAt time.Time   `gorm:"not null" json:"changed_at"`

	// Username of the acting user, filled by read joins only.
	Username string `gorm:"->;-:migration" json:"username"`
}

func (TaskHistory) TableName() string {
	return "task_history"
}
