package model

import (
	"time"

	"github.com/google/uuid"
)

type SupervisionFeedback struct {
	Id             uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionId      uuid.UUID  `gorm:"type:uuid;not null;index"`
	MessageId      *uuid.UUID `gorm:"type:uuid"`
	PractitionerId string     `gorm:"type:varchar(64);not null;index"`
	Rating         int        `gorm:"not null"`
	Comment        string     `gorm:"type:text"`
	CreatedAt      time.Time  `gorm:"autoCreateTime"`
}

func (SupervisionFeedback) TableName() string {
	return "supervision_feedback"
}
