package entity

import (
	"time"

	"github.com/google/uuid"
)

type ClientSession struct {
	Id         uuid.UUID
	ClientId   uuid.UUID
	StartedAt  time.Time
	ProVisible bool
	CreatedAt  time.Time
	DeletedAt  *time.Time
	IsDeleted  bool
}

type SessionMessage struct {
	Id            uuid.UUID
	SessionId     uuid.UUID
	MiniSessionId *uuid.UUID
	Role          string
	Content       string
	// PsvsSnapshot is the raw stored reading; it is validated when read.
	PsvsSnapshot []byte
	CreatedAt    time.Time
}

type MiniSession struct {
	Id        uuid.UUID
	SessionId uuid.UUID
	StartedAt time.Time
	EndedAt   *time.Time
	IsActive  bool
}

type PsvsPosition struct {
	Id          uuid.UUID
	ClientId    uuid.UUID
	StressLevel float64
	EnergyState string
	Distance    float64
	RecordedAt  time.Time
}

type SupervisionFeedback struct {
	Id             uuid.UUID
	SessionId      uuid.UUID
	MessageId      *uuid.UUID
	PractitionerId string
	Rating         int
	Comment        string
	CreatedAt      time.Time
}
