package database

import (
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type indexSpec struct {
	table   string
	name    string
	columns string
}

var indexes = []indexSpec{
	// Task indexes for filtering and sorting
	{"tasks", "idx_tasks_assigned_to", "assigned_to"},
	{"tasks", "idx_tasks_assigned_by", "assigned_by"},
	{"tasks", "idx_tasks_status", "status"},
	{"tasks", "idx_tasks_deadline", "deadline"},
	{"tasks", "idx_tasks_created_at", "created_at"},

	// History lookups per task
	{"task_history", "idx_task_history_task_id", "task_id"},
}

// AddIndexes adds the lookup indexes that AutoMigrate does not derive from tags.
func AddIndexes(db *gorm.DB, log zerolog.Logger) error {
	migrator := db.Migrator()

	for _, idx := range indexes {
		if migrator.HasIndex(idx.table, idx.name) {
			log.Debug().Str("index", idx.name).Msg("Index already exists, skipping")
			continue
		}

		sql := fmt.Sprintf("CREATE INDEX %s ON %s (%s)", idx.name, idx.table, idx.columns)
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}

		log.Info().Str("index", idx.name).Str("table", idx.table).Str("columns", idx.columns).Msg("Created index")
	}

	return nil
}
