package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"psvs-console-be/internal/dto"
	"psvs-console-be/internal/pkg/logger"
	"psvs-console-be/internal/pkg/serverutils"
	"psvs-console-be/internal/repository/memory"
	"psvs-console-be/pkg/events"
	pktNats "psvs-console-be/pkg/nats"
	"psvs-console-be/pkg/timeline"
)

const (
	FrameTimelineState  = "timeline_state"
	FrameTimelineClosed = "timeline_closed"
	FrameTimelineError  = "timeline_error"

	timelineModule = "TimelineService"
	publishTimeout = 5 * time.Second
)

var ErrNoOpenTimeline = fmt.Errorf("no open timeline: %w", serverutils.ErrNotFound)

// StatePusher delivers frames to a practitioner's consoles. The websocket
// hub implements it.
type StatePusher interface {
	Send(practitionerID, msgType string, payload interface{})
}

type ITimelineService interface {
	Open(ctx context.Context, practitionerID string, req *dto.OpenTimelineRequest) (*dto.TimelineStateResponse, error)
	State(ctx context.Context, practitionerID string) (*dto.TimelineStateResponse, error)
	Refresh(ctx context.Context, practitionerID string) (*dto.TimelineStateResponse, error)
	SetAutoRefresh(ctx context.Context, practitionerID string, req *dto.SetAutoRefreshRequest) (*dto.TimelineStateResponse, error)
	ToggleGroup(ctx context.Context, practitionerID string, req *dto.ToggleGroupRequest) (*dto.ToggleGroupResponse, error)
	SelectMessage(ctx context.Context, practitionerID string, req *dto.SelectMessageRequest) (*dto.PointerResponse, error)
	Scroll(ctx context.Context, practitionerID string, req *dto.ScrollRequest) (*dto.PointerResponse, error)
	Settled(ctx context.Context, practitionerID string) (*dto.TimelineStateResponse, error)
	AcknowledgeNewMessages(ctx context.Context, practitionerID string) (*dto.AcknowledgeNewMessagesResponse, error)
	Close(ctx context.Context, practitionerID string) error

	// RefreshClient refreshes every auto-refreshing view on the client's
	// timeline and returns how many refreshed. Idle views are left alone.
	RefreshClient(ctx context.Context, clientID string) int
	// HandleInbound applies a websocket frame from the practitioner's console.
	HandleInbound(practitionerID string, data []byte)
	OpenCount() int
	Shutdown()
}

type TimelineOptions struct {
	PollInterval    time.Duration
	SettleDelay     time.Duration
	TrajectoryLimit int
	ViewTTL         time.Duration
	// AutoRefresh applies when an open request does not say.
	AutoRefresh bool
}

type timelineService struct {
	dataService timeline.DataService
	views       *memory.ViewRepository
	pusher      StatePusher
	events      pktNats.EventPublisher
	logger      logger.ILogger
	opts        TimelineOptions
}

func NewTimelineService(
	dataService timeline.DataService,
	pusher StatePusher,
	eventPublisher pktNats.EventPublisher,
	log logger.ILogger,
	opts TimelineOptions,
) ITimelineService {
	s := &timelineService{
		dataService: dataService,
		pusher:      pusher,
		events:      eventPublisher,
		logger:      log,
		opts:        opts,
	}
	s.views = memory.NewViewRepository(opts.ViewTTL, s.onEvicted)
	return s
}

func (s *timelineService) Open(ctx context.Context, practitionerID string, req *dto.OpenTimelineRequest) (*dto.TimelineStateResponse, error) {
	autoRefresh := s.opts.AutoRefresh
	if req.AutoRefresh != nil {
		autoRefresh = *req.AutoRefresh
	}

	obs := &stateObserver{practitionerID: practitionerID, clientID: req.ClientId, svc: s}
	view := timeline.NewView(req.ClientId, s.dataService, timeline.Options{
		PollInterval:    s.opts.PollInterval,
		SettleDelay:     s.opts.SettleDelay,
		TrajectoryLimit: s.opts.TrajectoryLimit,
		AutoRefresh:     autoRefresh,
		Logger:          s.logger,
		OnChange:        obs.observe,
	})

	if previous := s.views.Save(practitionerID, view); previous != nil {
		s.logger.Info(timelineModule, "Replaced open timeline", map[string]interface{}{
			"practitioner_id": practitionerID,
			"previous_client": previous.ClientID(),
			"client_id":       req.ClientId,
		})
		s.closed(practitionerID, previous, "replaced")
	}

	if err := view.Open(ctx); err != nil {
		if errors.Is(err, timeline.ErrClosed) {
			return nil, ErrNoOpenTimeline
		}
		// The view stays open; the first successful refresh bootstraps it.
		s.logger.Warn(timelineModule, "Timeline opened without data", map[string]interface{}{
			"practitioner_id": practitionerID,
			"client_id":       req.ClientId,
			"error":           err.Error(),
		})
	}

	s.publish(events.NewTimelineEvent(events.TimelineOpened, practitionerID, req.ClientId, map[string]interface{}{
		"auto_refresh": autoRefresh,
	}))

	return s.stateResponse(practitionerID, view), nil
}

func (s *timelineService) State(ctx context.Context, practitionerID string) (*dto.TimelineStateResponse, error) {
	view, err := s.view(practitionerID)
	if err != nil {
		return nil, err
	}
	return s.stateResponse(practitionerID, view), nil
}

// Refresh runs a full reload, which also re-derives the pointer from the
// most recently expanded group.
func (s *timelineService) Refresh(ctx context.Context, practitionerID string) (*dto.TimelineStateResponse, error) {
	view, err := s.view(practitionerID)
	if err != nil {
		return nil, err
	}
	if err := view.Reload(ctx); err != nil {
		return nil, err
	}
	return s.stateResponse(practitionerID, view), nil
}

func (s *timelineService) SetAutoRefresh(ctx context.Context, practitionerID string, req *dto.SetAutoRefreshRequest) (*dto.TimelineStateResponse, error) {
	view, err := s.view(practitionerID)
	if err != nil {
		return nil, err
	}
	if err := view.SetAutoRefresh(*req.Enabled); err != nil {
		return nil, err
	}
	return s.stateResponse(practitionerID, view), nil
}

func (s *timelineService) ToggleGroup(ctx context.Context, practitionerID string, req *dto.ToggleGroupRequest) (*dto.ToggleGroupResponse, error) {
	view, err := s.view(practitionerID)
	if err != nil {
		return nil, err
	}
	expanded, err := view.ToggleGroup(req.SessionId, req.GroupId)
	if err != nil {
		return nil, err
	}
	return &dto.ToggleGroupResponse{
		SessionId: req.SessionId,
		GroupId:   req.GroupId,
		Expanded:  expanded,
		Pointer:   view.State().Pointer,
	}, nil
}

func (s *timelineService) SelectMessage(ctx context.Context, practitionerID string, req *dto.SelectMessageRequest) (*dto.PointerResponse, error) {
	view, err := s.view(practitionerID)
	if err != nil {
		return nil, err
	}
	pointer, err := view.Select(req.MessageId)
	if err != nil {
		return nil, err
	}
	return &dto.PointerResponse{Pointer: pointer, Changed: true}, nil
}

func (s *timelineService) Scroll(ctx context.Context, practitionerID string, req *dto.ScrollRequest) (*dto.PointerResponse, error) {
	view, err := s.view(practitionerID)
	if err != nil {
		return nil, err
	}
	pointer, changed := view.OnScroll(req.Viewport())
	return &dto.PointerResponse{Pointer: pointer, Changed: changed}, nil
}

func (s *timelineService) Settled(ctx context.Context, practitionerID string) (*dto.TimelineStateResponse, error) {
	view, err := s.view(practitionerID)
	if err != nil {
		return nil, err
	}
	view.ScrollSettled()
	return s.stateResponse(practitionerID, view), nil
}

func (s *timelineService) AcknowledgeNewMessages(ctx context.Context, practitionerID string) (*dto.AcknowledgeNewMessagesResponse, error) {
	view, err := s.view(practitionerID)
	if err != nil {
		return nil, err
	}
	res := &dto.AcknowledgeNewMessagesResponse{Acknowledged: view.AcknowledgeNewMessages()}
	if res.Acknowledged {
		res.Scroll = view.State().Scroll
	}
	return res, nil
}

func (s *timelineService) Close(ctx context.Context, practitionerID string) error {
	if !s.views.Delete(practitionerID) {
		return ErrNoOpenTimeline
	}
	return nil
}

func (s *timelineService) RefreshClient(ctx context.Context, clientID string) int {
	refreshed := 0
	for practitionerID, view := range s.views.FindByClient(clientID) {
		if view.LifecycleState() != string(timeline.StatePolling) {
			continue
		}
		err := view.Refresh(ctx)
		switch {
		case err == nil:
			refreshed++
		case errors.Is(err, timeline.ErrRefreshInFlight), errors.Is(err, timeline.ErrClosed):
		default:
			s.logger.Warn(timelineModule, "Triggered refresh failed", map[string]interface{}{
				"practitioner_id": practitionerID,
				"client_id":       clientID,
				"error":           err.Error(),
			})
		}
	}
	return refreshed
}

func (s *timelineService) HandleInbound(practitionerID string, data []byte) {
	var frame dto.InboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		s.pushError(practitionerID, "", "malformed frame")
		return
	}

	ctx := context.Background()
	var err error
	switch frame.Type {
	case "scroll":
		var req dto.ScrollRequest
		if err = decodeFrame(frame.Data, &req); err == nil {
			_, err = s.Scroll(ctx, practitionerID, &req)
		}
	case "select":
		var req dto.SelectMessageRequest
		if err = decodeFrame(frame.Data, &req); err == nil {
			_, err = s.SelectMessage(ctx, practitionerID, &req)
		}
	case "toggle_group":
		var req dto.ToggleGroupRequest
		if err = decodeFrame(frame.Data, &req); err == nil {
			_, err = s.ToggleGroup(ctx, practitionerID, &req)
		}
	case "settled":
		_, err = s.Settled(ctx, practitionerID)
	case "ack_new":
		_, err = s.AcknowledgeNewMessages(ctx, practitionerID)
	default:
		err = fmt.Errorf("unknown frame type %q", frame.Type)
	}

	if err != nil {
		s.pushError(practitionerID, frame.Type, err.Error())
	}
}

func (s *timelineService) OpenCount() int {
	return s.views.Count()
}

// Shutdown closes every open view.
func (s *timelineService) Shutdown() {
	s.views.Flush()
}

func (s *timelineService) view(practitionerID string) (*timeline.View, error) {
	view, ok := s.views.Touch(practitionerID)
	if !ok {
		return nil, ErrNoOpenTimeline
	}
	return view, nil
}

func (s *timelineService) stateResponse(practitionerID string, view *timeline.View) *dto.TimelineStateResponse {
	return &dto.TimelineStateResponse{
		State:          view.State(),
		PractitionerId: practitionerID,
		Lifecycle:      view.LifecycleState(),
	}
}

func (s *timelineService) onEvicted(practitionerID string, view *timeline.View) {
	s.closed(practitionerID, view, "closed")
}

func (s *timelineService) closed(practitionerID string, view *timeline.View, reason string) {
	if s.pusher != nil {
		s.pusher.Send(practitionerID, FrameTimelineClosed, map[string]interface{}{
			"client_id": view.ClientID(),
			"reason":    reason,
		})
	}
	s.publish(events.NewTimelineEvent(events.TimelineClosed, practitionerID, view.ClientID(), map[string]interface{}{
		"reason": reason,
	}))
}

func (s *timelineService) pushError(practitionerID, frameType, message string) {
	if s.pusher == nil {
		return
	}
	s.pusher.Send(practitionerID, FrameTimelineError, map[string]interface{}{
		"frame": frameType,
		"error": message,
	})
}

func (s *timelineService) publish(evt events.BaseEvent) {
	if s.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.events.Publish(ctx, evt); err != nil {
		s.logger.Warn(timelineModule, "Failed to publish event", map[string]interface{}{
			"type":  evt.Type,
			"error": err.Error(),
		})
	}
}

func decodeFrame(raw json.RawMessage, out interface{}) error {
	if len(raw) == 0 {
		return errors.New("frame has no data")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode frame data: %w", err)
	}
	return serverutils.ValidateRequest(out)
}

// stateObserver forwards view changes to the practitioner's consoles in
// version order and reports the rising edge of the new-messages flag.
type stateObserver struct {
	practitionerID string
	clientID       string
	svc            *timelineService

	mu          sync.Mutex
	lastVersion uint64
	hadNew      bool
}

func (o *stateObserver) observe(state timeline.State) {
	o.mu.Lock()
	if state.Version <= o.lastVersion {
		o.mu.Unlock()
		return
	}
	o.lastVersion = state.Version
	rising := state.HasNewMessages && !o.hadNew
	o.hadNew = state.HasNewMessages

	if o.svc.pusher != nil {
		o.svc.pusher.Send(o.practitionerID, FrameTimelineState, state)
	}
	o.mu.Unlock()

	if rising {
		o.svc.publish(events.NewTimelineEvent(events.TimelineNewMessages, o.practitionerID, o.clientID, map[string]interface{}{
			"message_count": state.MessageCount,
		}))
	}
}
