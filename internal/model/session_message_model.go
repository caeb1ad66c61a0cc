package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type SessionMessage struct {
	Id            uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionId     uuid.UUID      `gorm:"type:uuid;not null;index"`
	MiniSessionId *uuid.UUID     `gorm:"type:uuid;index"`
	Role          string         `gorm:"type:varchar(20);not null"`
	Content       string         `gorm:"type:text;not null"`
	PsvsSnapshot  datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt     time.Time      `gorm:"not null;index"`
}

func (SessionMessage) TableName() string {
	return "session_messages"
}
