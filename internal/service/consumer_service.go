// FILE: internal/service/consumer_service.go
package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"psvs-console-be/internal/dataservice"
	"psvs-console-be/internal/dataservice/remote"
	"psvs-console-be/internal/dto"
	"psvs-console-be/internal/pkg/logger"
	"psvs-console-be/pkg/timeline"

	"github.com/ThreeDotsLabs/watermill/message"
)

const (
	consumerModule     = "FeedbackConsumer"
	maxFeedbackAttempt = 5
	submitTimeout      = 15 * time.Second
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	subscriber  message.Subscriber
	topicName   string
	dataService timeline.DataService
	logger      logger.ILogger
	backoff     time.Duration

	mu       sync.Mutex
	attempts map[string]int
}

func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	dataService timeline.DataService,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		subscriber:  subscriber,
		topicName:   topicName,
		dataService: dataService,
		logger:      log,
		backoff:     200 * time.Millisecond,
		attempts:    make(map[string]int),
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.FeedbackMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error(consumerModule, "Failed to unmarshal feedback", map[string]interface{}{"error": err.Error(), "message_uuid": msg.UUID})
		msg.Ack() // Redelivery cannot fix a malformed payload.
		return
	}

	submitCtx, cancel := context.WithTimeout(ctx, submitTimeout)
	defer cancel()

	err := cs.dataService.SubmitFeedback(submitCtx, timeline.Feedback{
		ID:             payload.Id,
		SessionID:      payload.SessionId,
		MessageID:      payload.MessageId,
		PractitionerID: payload.PractitionerId,
		Rating:         payload.Rating,
		Comment:        payload.Comment,
		CreatedAt:      payload.CreatedAt,
	})
	if err == nil {
		cs.forget(msg.UUID)
		cs.logger.Info(consumerModule, "Feedback forwarded", map[string]interface{}{"feedback_id": payload.Id, "session_id": payload.SessionId})
		msg.Ack()
		return
	}

	details := map[string]interface{}{"feedback_id": payload.Id, "session_id": payload.SessionId, "error": err.Error()}

	if permanent(err) {
		cs.forget(msg.UUID)
		cs.logger.Error(consumerModule, "Feedback rejected, dropping", details)
		msg.Ack()
		return
	}

	attempt := cs.attempt(msg.UUID)
	details["attempt"] = attempt
	if attempt >= maxFeedbackAttempt {
		cs.forget(msg.UUID)
		cs.logger.Error(consumerModule, "Feedback delivery gave up", details)
		msg.Ack()
		return
	}

	cs.logger.Warn(consumerModule, "Feedback delivery failed, retrying", details)
	select {
	case <-ctx.Done():
	case <-time.After(time.Duration(attempt) * cs.backoff):
	}
	msg.Nack()
}

// permanent reports errors a retry cannot fix.
func permanent(err error) bool {
	if errors.Is(err, dataservice.ErrInvalidID) || errors.Is(err, dataservice.ErrUnknownSession) {
		return true
	}
	var statusErr *remote.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status >= 400 && statusErr.Status < 500
	}
	return false
}

func (cs *consumerService) attempt(id string) int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.attempts[id]++
	return cs.attempts[id]
}

func (cs *consumerService) forget(id string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	delete(cs.attempts, id)
}
