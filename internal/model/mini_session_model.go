package model

import (
	"time"

	"github.com/google/uuid"
)

type MiniSession struct {
	Id        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionId uuid.UUID  `gorm:"type:uuid;not null;index"`
	StartedAt time.Time  `gorm:"not null"`
	EndedAt   *time.Time `gorm:"default:null"`
	IsActive  bool       `gorm:"not null;default:false"`
}

func (MiniSession) TableName() string {
	return "mini_sessions"
}
