package dataservice

import (
	"context"
	"errors"
	"fmt"

	"psvs-console-be/internal/entity"
	"psvs-console-be/internal/repository/specification"
	"psvs-console-be/internal/repository/unitofwork"
	"psvs-console-be/pkg/timeline"

	"github.com/google/uuid"
)

var (
	ErrInvalidID      = errors.New("invalid identifier")
	ErrUnknownSession = errors.New("unknown session")
)

// Store serves the timeline from the service's own Postgres tables.
type Store struct {
	uowFactory unitofwork.RepositoryFactory
}

var _ timeline.DataService = &Store{}

func NewStore(uowFactory unitofwork.RepositoryFactory) *Store {
	return &Store{uowFactory: uowFactory}
}

func parseID(kind, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s %q", ErrInvalidID, kind, raw)
	}
	return id, nil
}

func (s *Store) ListSessions(ctx context.Context, clientID string) ([]timeline.Session, error) {
	cid, err := parseID("client", clientID)
	if err != nil {
		return nil, err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	rows, err := uow.ClientSessionRepository().FindAll(ctx, specification.ByClientID{ClientID: cid})
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	out := make([]timeline.Session, 0, len(rows))
	for _, r := range rows {
		out = append(out, timeline.Session{
			ID:         r.Id.String(),
			ClientID:   r.ClientId.String(),
			StartedAt:  r.StartedAt,
			ProVisible: r.ProVisible,
		})
	}
	return out, nil
}

func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]timeline.Message, error) {
	sid, err := parseID("session", sessionID)
	if err != nil {
		return nil, err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	rows, err := uow.SessionMessageRepository().FindAll(ctx, specification.BySessionID{SessionID: sid})
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	out := make([]timeline.Message, 0, len(rows))
	for _, r := range rows {
		out = append(out, messageFromEntity(r))
	}
	return out, nil
}

func messageFromEntity(r *entity.SessionMessage) timeline.Message {
	msg := timeline.Message{
		ID:        r.Id.String(),
		Role:      NormalizeRole(r.Role),
		Content:   r.Content,
		Timestamp: r.CreatedAt,
		Snapshot:  NormalizeSnapshotJSON(r.PsvsSnapshot),
	}
	if r.MiniSessionId != nil {
		sub := r.MiniSessionId.String()
		msg.SubSessionID = &sub
	}
	return msg
}

func (s *Store) ListSubSessions(ctx context.Context, sessionID string) ([]timeline.SubSession, error) {
	sid, err := parseID("session", sessionID)
	if err != nil {
		return nil, err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	rows, err := uow.MiniSessionRepository().FindAll(ctx, specification.BySessionID{SessionID: sid})
	if err != nil {
		return nil, fmt.Errorf("list mini sessions: %w", err)
	}

	out := make([]timeline.SubSession, 0, len(rows))
	for _, r := range rows {
		out = append(out, timeline.SubSession{
			ID:        r.Id.String(),
			StartedAt: r.StartedAt,
			EndedAt:   r.EndedAt,
			IsActive:  r.IsActive,
		})
	}
	return out, nil
}

// GetPosition returns the newest reading as the current position and up to
// trajectoryLimit readings, oldest first. No usable reading yields nil.
func (s *Store) GetPosition(ctx context.Context, clientID string, trajectoryLimit int) (*timeline.Position, error) {
	cid, err := parseID("client", clientID)
	if err != nil {
		return nil, err
	}
	if trajectoryLimit <= 0 {
		trajectoryLimit = timeline.DefaultTrajectoryLimit
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	rows, err := uow.PsvsPositionRepository().FindAll(ctx,
		specification.ByClientID{ClientID: cid},
		specification.OrderBy{Field: "recorded_at", Desc: true},
		specification.Limit{N: trajectoryLimit},
	)
	if err != nil {
		return nil, fmt.Errorf("get position: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	current := timeline.Snapshot{
		StressLevel: rows[0].StressLevel,
		EnergyState: timeline.EnergyState(rows[0].EnergyState),
		Distance:    rows[0].Distance,
	}
	if !current.Valid() {
		return nil, nil
	}

	pos := &timeline.Position{Current: current}
	for i := len(rows) - 1; i >= 0; i-- {
		pos.Trajectory = append(pos.Trajectory, timeline.TrajectoryPoint{
			StressLevel: rows[i].StressLevel,
			EnergyState: timeline.EnergyState(rows[i].EnergyState),
			Timestamp:   rows[i].RecordedAt,
		})
	}
	return pos, nil
}

func (s *Store) SubmitFeedback(ctx context.Context, feedback timeline.Feedback) error {
	sid, err := parseID("session", feedback.SessionID)
	if err != nil {
		return err
	}
	var mid *uuid.UUID
	if feedback.MessageID != nil {
		id, err := parseID("message", *feedback.MessageID)
		if err != nil {
			return err
		}
		mid = &id
	}
	fid := uuid.New()
	if feedback.ID != "" {
		if fid, err = parseID("feedback", feedback.ID); err != nil {
			return err
		}
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer uow.Rollback()

	session, err := uow.ClientSessionRepository().FindOne(ctx, specification.ByID{ID: sid})
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		return fmt.Errorf("%w: %s", ErrUnknownSession, feedback.SessionID)
	}

	row := &entity.SupervisionFeedback{
		Id:             fid,
		SessionId:      sid,
		MessageId:      mid,
		PractitionerId: feedback.PractitionerID,
		Rating:         feedback.Rating,
		Comment:        feedback.Comment,
		CreatedAt:      feedback.CreatedAt,
	}
	if err := uow.SupervisionFeedbackRepository().Create(ctx, row); err != nil {
		return fmt.Errorf("save feedback: %w", err)
	}

	return uow.Commit()
}
