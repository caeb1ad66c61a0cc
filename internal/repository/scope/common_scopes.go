package scope

import "gorm.io/gorm"

// Messages tie on created_at when written in the same transaction; id keeps
// the order stable between polls.
func OrderByCreatedAsc(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC").Order("id ASC")
}

func OrderByStartedAsc(db *gorm.DB) *gorm.DB {
	return db.Order("started_at ASC").Order("id ASC")
}
