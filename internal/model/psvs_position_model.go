package model

import (
	"time"

	"github.com/google/uuid"
)

// PsvsPosition is one reading of a client's aggregate psychological state.
// The newest row is the current position; older rows form the trajectory.
type PsvsPosition struct {
	Id          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ClientId    uuid.UUID `gorm:"type:uuid;not null;index:idx_psvs_client_recorded,priority:1"`
	StressLevel float64   `gorm:"not null"`
	EnergyState string    `gorm:"type:varchar(20);not null"`
	Distance    float64   `gorm:"not null;default:0"`
	RecordedAt  time.Time `gorm:"not null;index:idx_psvs_client_recorded,priority:2"`
}

func (PsvsPosition) TableName() string {
	return "psvs_positions"
}
