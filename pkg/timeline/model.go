package timeline

import (
	"math"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type EnergyState string

const (
	EnergyPositive EnergyState = "positive"
	EnergyNegative EnergyState = "negative"
	EnergyNeurotic EnergyState = "neurotic"
)

func (e EnergyState) Valid() bool {
	switch e {
	case EnergyPositive, EnergyNegative, EnergyNeurotic:
		return true
	}
	return false
}

const (
	MinStress = 0.0
	MaxStress = 10.0
)

// Snapshot is a psychological-state reading (PSVS) attached to a message
// or reported as the client's aggregate position.
type Snapshot struct {
	StressLevel float64     `json:"stress_level"`
	EnergyState EnergyState `json:"energy_state"`
	Distance    float64     `json:"distance"`
}

// Valid reports whether the snapshot can drive the indicator.
func (s *Snapshot) Valid() bool {
	if s == nil {
		return false
	}
	if !finite(s.StressLevel) || !finite(s.Distance) {
		return false
	}
	if s.StressLevel < MinStress || s.StressLevel > MaxStress {
		return false
	}
	return s.EnergyState.Valid()
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

type Message struct {
	ID           string    `json:"id"`
	Role         Role      `json:"role"`
	Content      string    `json:"content"`
	Timestamp    time.Time `json:"timestamp"`
	SubSessionID *string   `json:"sub_session_id,omitempty"`
	Snapshot     *Snapshot `json:"psvs_snapshot,omitempty"`
}

// SubSession is a bounded "mini-session" inside a parent session.
type SubSession struct {
	ID        string     `json:"id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	IsActive  bool       `json:"is_active"`
}

type Session struct {
	ID         string    `json:"id"`
	ClientID   string    `json:"client_id"`
	StartedAt  time.Time `json:"started_at"`
	ProVisible bool      `json:"pro_visible"`
}

const (
	// GroupOrphan holds messages that predate sub-session tracking in a
	// session that otherwise has sub-sessions.
	GroupOrphan = "ORPHAN"
	// GroupLegacy holds every message of a session without sub-sessions.
	GroupLegacy = "LEGACY"
)

type Group struct {
	GroupID          string     `json:"group_id"`
	StartedAt        time.Time  `json:"started_at"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
	IsActive         bool       `json:"is_active"`
	UserMessageCount int        `json:"user_message_count"`
	Messages         []Message  `json:"messages"`
}

// LatestUserMessage returns the last user-authored message of the group.
func (g Group) LatestUserMessage() (Message, bool) {
	for i := len(g.Messages) - 1; i >= 0; i-- {
		if g.Messages[i].Role == RoleUser {
			return g.Messages[i], true
		}
	}
	return Message{}, false
}

// SessionTimeline is one session with its derived groups. Hidden sessions
// keep their chronological slot but carry no groups.
type SessionTimeline struct {
	Session Session `json:"session"`
	Hidden  bool    `json:"hidden"`
	Groups  []Group `json:"groups"`
}

// LastGroup returns the chronologically last group of the session.
func (st SessionTimeline) LastGroup() (Group, bool) {
	if st.Hidden || len(st.Groups) == 0 {
		return Group{}, false
	}
	return st.Groups[len(st.Groups)-1], true
}

func (st SessionTimeline) MessageCount() int {
	n := 0
	for _, g := range st.Groups {
		n += len(g.Messages)
	}
	return n
}

// Position is the service's aggregate "current position" for a client plus
// its recent trajectory.
type Position struct {
	Current    Snapshot          `json:"current"`
	Trajectory []TrajectoryPoint `json:"trajectory"`
}

type TrajectoryPoint struct {
	StressLevel float64     `json:"stress_level"`
	EnergyState EnergyState `json:"energy_state"`
	Timestamp   time.Time   `json:"timestamp"`
}

// Feedback is a practitioner's supervision note on a session, passed through
// to the data service untouched.
type Feedback struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"session_id"`
	MessageID      *string   `json:"message_id,omitempty"`
	PractitionerID string    `json:"practitioner_id"`
	Rating         int       `json:"rating"`
	Comment        string    `json:"comment"`
	CreatedAt      time.Time `json:"created_at"`
}

// ExpansionKey identifies a group across sessions. Group ids are only unique
// within one session because ORPHAN and LEGACY repeat.
func ExpansionKey(sessionID, groupID string) string {
	return sessionID + "/" + groupID
}
