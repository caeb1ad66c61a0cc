package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ByClientID struct {
	ClientID uuid.UUID
}

func (s ByClientID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("client_id = ?", s.ClientID)
}

type BySessionID struct {
	SessionID uuid.UUID
}

func (s BySessionID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("session_id = ?", s.SessionID)
}

type ByPractitionerID struct {
	PractitionerID string
}

func (s ByPractitionerID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("practitioner_id = ?", s.PractitionerID)
}
