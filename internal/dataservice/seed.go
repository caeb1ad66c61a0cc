package dataservice

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"psvs-console-be/internal/entity"
	"psvs-console-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

// DemoClient describes what SeedDemo wrote.
type DemoClient struct {
	ClientID       uuid.UUID
	SessionIDs     []uuid.UUID
	MiniSessionIDs []uuid.UUID
	MessageCount   int
}

type demoLine struct {
	role   string
	text   string
	stress float64
	energy string
}

// SeedDemo writes one client with a legacy session, a session with an
// orphan message and two mini sessions, a hidden session and a position
// history. It runs in a single transaction.
func SeedDemo(ctx context.Context, factory unitofwork.RepositoryFactory, start time.Time) (*DemoClient, error) {
	uow := factory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer uow.Rollback()

	demo := &DemoClient{ClientID: uuid.New()}
	sessions := uow.ClientSessionRepository()
	minis := uow.MiniSessionRepository()

	newSession := func(at time.Time, visible bool) (uuid.UUID, error) {
		s := &entity.ClientSession{Id: uuid.New(), ClientId: demo.ClientID, StartedAt: at, ProVisible: visible}
		if err := sessions.Create(ctx, s); err != nil {
			return uuid.Nil, fmt.Errorf("create session: %w", err)
		}
		demo.SessionIDs = append(demo.SessionIDs, s.Id)
		return s.Id, nil
	}
	newMini := func(sessionID uuid.UUID, at time.Time, ended *time.Time, active bool) (uuid.UUID, error) {
		m := &entity.MiniSession{Id: uuid.New(), SessionId: sessionID, StartedAt: at, EndedAt: ended, IsActive: active}
		if err := minis.Create(ctx, m); err != nil {
			return uuid.Nil, fmt.Errorf("create mini session: %w", err)
		}
		demo.MiniSessionIDs = append(demo.MiniSessionIDs, m.Id)
		return m.Id, nil
	}

	var rows []*entity.SessionMessage
	addLines := func(sessionID uuid.UUID, mini *uuid.UUID, at time.Time, lines []demoLine) error {
		for i, l := range lines {
			row := &entity.SessionMessage{
				Id:            uuid.New(),
				SessionId:     sessionID,
				MiniSessionId: mini,
				Role:          l.role,
				Content:       l.text,
				CreatedAt:     at.Add(time.Duration(i) * time.Minute),
			}
			if l.role == "user" {
				raw, err := json.Marshal(map[string]interface{}{
					"stress_level": l.stress,
					"energy_state": l.energy,
					"distance":     l.stress / 2,
				})
				if err != nil {
					return err
				}
				row.PsvsSnapshot = raw
			}
			rows = append(rows, row)
		}
		return nil
	}

	legacy, err := newSession(start, true)
	if err != nil {
		return nil, err
	}
	if err := addLines(legacy, nil, start.Add(time.Minute), []demoLine{
		{"user", "I have not been sleeping well.", 6, "negative"},
		{"assistant", "That sounds exhausting. What keeps you up?", 0, ""},
	}); err != nil {
		return nil, err
	}

	second := start.Add(24 * time.Hour)
	current, err := newSession(second, true)
	if err != nil {
		return nil, err
	}
	if err := addLines(current, nil, second.Add(time.Minute), []demoLine{
		{"user", "Before we start, work was rough today.", 7.5, "neurotic"},
	}); err != nil {
		return nil, err
	}
	firstEnd := second.Add(40 * time.Minute)
	miniA, err := newMini(current, second.Add(10*time.Minute), &firstEnd, false)
	if err != nil {
		return nil, err
	}
	if err := addLines(current, &miniA, second.Add(11*time.Minute), []demoLine{
		{"user", "I keep replaying the meeting.", 7, "negative"},
		{"assistant", "What part stays with you most?", 0, ""},
		{"user", "Being interrupted, I think.", 5.5, "negative"},
	}); err != nil {
		return nil, err
	}
	miniB, err := newMini(current, second.Add(50*time.Minute), nil, true)
	if err != nil {
		return nil, err
	}
	if err := addLines(current, &miniB, second.Add(51*time.Minute), []demoLine{
		{"user", "Writing it down helped a bit.", 3.5, "positive"},
	}); err != nil {
		return nil, err
	}

	if _, err := newSession(second.Add(48*time.Hour), false); err != nil {
		return nil, err
	}

	if err := uow.SessionMessageRepository().CreateBulk(ctx, rows); err != nil {
		return nil, fmt.Errorf("create messages: %w", err)
	}
	demo.MessageCount = len(rows)

	positions := uow.PsvsPositionRepository()
	for i, stress := range []float64{6, 7.5, 7, 5.5, 3.5} {
		energy := "positive"
		if stress >= 4 {
			energy = "negative"
		}
		p := &entity.PsvsPosition{
			Id:          uuid.New(),
			ClientId:    demo.ClientID,
			StressLevel: stress,
			EnergyState: energy,
			Distance:    stress / 2,
			RecordedAt:  start.Add(time.Duration(i) * 6 * time.Hour),
		}
		if err := positions.Create(ctx, p); err != nil {
			return nil, fmt.Errorf("create position: %w", err)
		}
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return demo, nil
}
