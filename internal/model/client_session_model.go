package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ClientSession is one conversation between a client and the assistant.
type ClientSession struct {
	Id         uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ClientId   uuid.UUID      `gorm:"type:uuid;not null;index"`
	StartedAt  time.Time      `gorm:"not null;index"`
	ProVisible bool           `gorm:"not null;default:true"` // client opted to share with their practitioner
	CreatedAt  time.Time      `gorm:"autoCreateTime"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime"`
	DeletedAt  gorm.DeletedAt `gorm:"index"`
}

func (ClientSession) TableName() string {
	return "client_sessions"
}
