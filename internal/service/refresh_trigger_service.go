package service

import (
	"context"

	"psvs-console-be/internal/pkg/logger"
	"psvs-console-be/pkg/events"
	pktNats "psvs-console-be/pkg/nats"
)

const refreshTriggerModule = "RefreshTrigger"

// EventSubscriber is satisfied by pkg/nats.Subscriber.
type EventSubscriber interface {
	Subscribe(ctx context.Context, eventType string, durableName string, handler pktNats.EventHandler) error
}

// RefreshTriggerService refreshes open timelines as soon as the conversation
// side reports a new message. Polling stays the authoritative path; this
// only shortens the delay.
type RefreshTriggerService struct {
	subscriber  EventSubscriber
	timeline    ITimelineService
	durableName string
	logger      logger.ILogger
}

func NewRefreshTriggerService(sub EventSubscriber, timeline ITimelineService, durableName string, log logger.ILogger) *RefreshTriggerService {
	return &RefreshTriggerService{
		subscriber:  sub,
		timeline:    timeline,
		durableName: durableName,
		logger:      log,
	}
}

// Start begins listening to MESSAGE_CREATED.
func (s *RefreshTriggerService) Start(ctx context.Context) error {
	if err := s.subscriber.Subscribe(ctx, events.MessageCreated, s.durableName, s.handleEvent); err != nil {
		s.logger.Error(refreshTriggerModule, "Failed to start subscriber", map[string]interface{}{"error": err.Error()})
		return err
	}
	s.logger.Info(refreshTriggerModule, "Listening for new messages", map[string]interface{}{"durable": s.durableName})
	return nil
}

func (s *RefreshTriggerService) handleEvent(ctx context.Context, event events.Event) error {
	clientID, ok := events.StringField(event, "client_id")
	if !ok {
		s.logger.Warn(refreshTriggerModule, "Event without client_id, skipping", map[string]interface{}{"type": event.EventType()})
		return nil
	}

	refreshed := s.timeline.RefreshClient(ctx, clientID)
	s.logger.Debug(refreshTriggerModule, "Refreshed open timelines", map[string]interface{}{"client_id": clientID, "views": refreshed})
	return nil
}
