package database

import (
	"gorm.io/gorm"
)

// Paginate applies offset and limit to a GORM query. Non-positive values are
// ignored.
func Paginate(offset, limit int) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if offset > 0 {
			db = db.Offset(offset)
		}
		if limit > 0 {
			db = db.Limit(limit)
		}
		return db
	}
}
