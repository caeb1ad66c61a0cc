package mapper

import (
	"time"

	"psvs-console-be/internal/entity"
	"psvs-console-be/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TimelineMapper struct{}

func NewTimelineMapper() *TimelineMapper {
	return &TimelineMapper{}
}

// Session Mappers

func (m *TimelineMapper) ClientSessionToEntity(s *model.ClientSession) *entity.ClientSession {
	if s == nil {
		return nil
	}

	var deletedAt *time.Time
	if s.DeletedAt.Valid {
		t := s.DeletedAt.Time
		deletedAt = &t
	}

	return &entity.ClientSession{
		Id:         s.Id,
		ClientId:   s.ClientId,
		StartedAt:  s.StartedAt,
		ProVisible: s.ProVisible,
		CreatedAt:  s.CreatedAt,
		DeletedAt:  deletedAt,
		IsDeleted:  s.DeletedAt.Valid,
	}
}

func (m *TimelineMapper) ClientSessionToModel(s *entity.ClientSession) *model.ClientSession {
	if s == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if s.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *s.DeletedAt, Valid: true}
	} else if s.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	return &model.ClientSession{
		Id:         s.Id,
		ClientId:   s.ClientId,
		StartedAt:  s.StartedAt,
		ProVisible: s.ProVisible,
		CreatedAt:  s.CreatedAt,
		DeletedAt:  deletedAt,
	}
}

// Message Mappers

func (m *TimelineMapper) SessionMessageToEntity(msg *model.SessionMessage) *entity.SessionMessage {
	if msg == nil {
		return nil
	}
	return &entity.SessionMessage{
		Id:            msg.Id,
		SessionId:     msg.SessionId,
		MiniSessionId: msg.MiniSessionId,
		Role:          msg.Role,
		Content:       msg.Content,
		PsvsSnapshot:  []byte(msg.PsvsSnapshot),
		CreatedAt:     msg.CreatedAt,
	}
}

func (m *TimelineMapper) SessionMessageToModel(msg *entity.SessionMessage) *model.SessionMessage {
	if msg == nil {
		return nil
	}
	var snapshot datatypes.JSON
	if len(msg.PsvsSnapshot) > 0 {
		snapshot = datatypes.JSON(msg.PsvsSnapshot)
	}
	return &model.SessionMessage{
		Id:            msg.Id,
		SessionId:     msg.SessionId,
		MiniSessionId: msg.MiniSessionId,
		Role:          msg.Role,
		Content:       msg.Content,
		PsvsSnapshot:  snapshot,
		CreatedAt:     msg.CreatedAt,
	}
}

func (m *TimelineMapper) SessionMessagesToEntities(msgs []*model.SessionMessage) []*entity.SessionMessage {
	out := make([]*entity.SessionMessage, len(msgs))
	for i, msg := range msgs {
		out[i] = m.SessionMessageToEntity(msg)
	}
	return out
}

// Mini Session Mappers

func (m *TimelineMapper) MiniSessionToEntity(s *model.MiniSession) *entity.MiniSession {
	if s == nil {
		return nil
	}
	return &entity.MiniSession{
		Id:        s.Id,
		SessionId: s.SessionId,
		StartedAt: s.StartedAt,
		EndedAt:   s.EndedAt,
		IsActive:  s.IsActive,
	}
}

func (m *TimelineMapper) MiniSessionToModel(s *entity.MiniSession) *model.MiniSession {
	if s == nil {
		return nil
	}
	return &model.MiniSession{
		Id:        s.Id,
		SessionId: s.SessionId,
		StartedAt: s.StartedAt,
		EndedAt:   s.EndedAt,
		IsActive:  s.IsActive,
	}
}

// Position Mappers

func (m *TimelineMapper) PsvsPositionToEntity(p *model.PsvsPosition) *entity.PsvsPosition {
	if p == nil {
		return nil
	}
	return &entity.PsvsPosition{
		Id:          p.Id,
		ClientId:    p.ClientId,
		StressLevel: p.StressLevel,
		EnergyState: p.EnergyState,
		Distance:    p.Distance,
		RecordedAt:  p.RecordedAt,
	}
}

func (m *TimelineMapper) PsvsPositionToModel(p *entity.PsvsPosition) *model.PsvsPosition {
	if p == nil {
		return nil
	}
	return &model.PsvsPosition{
		Id:          p.Id,
		ClientId:    p.ClientId,
		StressLevel: p.StressLevel,
		EnergyState: p.EnergyState,
		Distance:    p.Distance,
		RecordedAt:  p.RecordedAt,
	}
}

// Feedback Mappers

func (m *TimelineMapper) SupervisionFeedbackToEntity(f *model.SupervisionFeedback) *entity.SupervisionFeedback {
	if f == nil {
		return nil
	}
	return &entity.SupervisionFeedback{
		Id:             f.Id,
		SessionId:      f.SessionId,
		MessageId:      f.MessageId,
		PractitionerId: f.PractitionerId,
		Rating:         f.Rating,
		Comment:        f.Comment,
		CreatedAt:      f.CreatedAt,
	}
}

func (m *TimelineMapper) SupervisionFeedbackToModel(f *entity.SupervisionFeedback) *model.SupervisionFeedback {
	if f == nil {
		return nil
	}
	return &model.SupervisionFeedback{
		Id:             f.Id,
		SessionId:      f.SessionId,
		MessageId:      f.MessageId,
		PractitionerId: f.PractitionerId,
		Rating:         f.Rating,
		Comment:        f.Comment,
		CreatedAt:      f.CreatedAt,
	}
}
