package service

import (
	"context"
	"encoding/json"
	"time"

	"psvs-console-be/internal/dto"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

type IFeedbackService interface {
	Submit(ctx context.Context, practitionerID string, req *dto.SubmitFeedbackRequest) (*dto.SubmitFeedbackResponse, error)
}

// feedbackService queues supervision feedback; the consumer forwards it to
// the data service.
type feedbackService struct {
	publisher message.Publisher
	topicName string
}

func NewFeedbackService(publisher message.Publisher, topicName string) IFeedbackService {
	return &feedbackService{
		publisher: publisher,
		topicName: topicName,
	}
}

func (s *feedbackService) Submit(ctx context.Context, practitionerID string, req *dto.SubmitFeedbackRequest) (*dto.SubmitFeedbackResponse, error) {
	now := time.Now().UTC()
	payload := dto.FeedbackMessage{
		Id:             uuid.NewString(),
		SessionId:      req.SessionId,
		MessageId:      req.MessageId,
		PractitionerId: practitionerID,
		Rating:         req.Rating,
		Comment:        req.Comment,
		CreatedAt:      now,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	msg := message.NewMessage(watermill.NewUUID(), body)
	msg.SetContext(ctx)
	if err := s.publisher.Publish(s.topicName, msg); err != nil {
		return nil, err
	}

	return &dto.SubmitFeedbackResponse{
		Id:       payload.Id,
		QueuedAt: now,
	}, nil
}
