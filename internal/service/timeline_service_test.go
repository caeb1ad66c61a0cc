package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"psvs-console-be/internal/dto"
	"psvs-console-be/internal/pkg/logger"
	"psvs-console-be/internal/pkg/serverutils"
	"psvs-console-be/pkg/events"
	pktNats "psvs-console-be/pkg/nats"
	"psvs-console-be/pkg/timeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

type fakeDataService struct {
	mu        sync.Mutex
	sessions  []timeline.Session
	messages  map[string][]timeline.Message
	subs      map[string][]timeline.SubSession
	position  *timeline.Position
	submitFn  func(timeline.Feedback) error
	submitted []timeline.Feedback
}

func newFakeDataService() *fakeDataService {
	return &fakeDataService{
		messages: make(map[string][]timeline.Message),
		subs:     make(map[string][]timeline.SubSession),
	}
}

func (f *fakeDataService) ListSessions(context.Context, string) ([]timeline.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]timeline.Session(nil), f.sessions...), nil
}

func (f *fakeDataService) ListMessages(_ context.Context, sessionID string) ([]timeline.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]timeline.Message(nil), f.messages[sessionID]...), nil
}

func (f *fakeDataService) ListSubSessions(_ context.Context, sessionID string) ([]timeline.SubSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]timeline.SubSession(nil), f.subs[sessionID]...), nil
}

func (f *fakeDataService) GetPosition(context.Context, string, int) (*timeline.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position, nil
}

func (f *fakeDataService) SubmitFeedback(_ context.Context, fb timeline.Feedback) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitFn != nil {
		if err := f.submitFn(fb); err != nil {
			return err
		}
	}
	f.submitted = append(f.submitted, fb)
	return nil
}

func (f *fakeDataService) addMessage(sessionID string, msg timeline.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[sessionID] = append(f.messages[sessionID], msg)
}

func (f *fakeDataService) submittedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submitted)
}

type frame struct {
	practitionerID string
	msgType        string
	payload        interface{}
}

type recordingPusher struct {
	mu     sync.Mutex
	frames []frame
}

func (p *recordingPusher) Send(practitionerID, msgType string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames = append(p.frames, frame{practitionerID, msgType, payload})
}

func (p *recordingPusher) ofType(msgType string) []frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []frame
	for _, f := range p.frames {
		if f.msgType == msgType {
			out = append(out, f)
		}
	}
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) ofType(eventType string) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, e := range p.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

var _ pktNats.EventPublisher = &recordingPublisher{}

func ptr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

var t0 = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func seededDataService() *fakeDataService {
	ds := newFakeDataService()
	ds.sessions = []timeline.Session{{ID: "s1", ClientID: "c1", StartedAt: t0, ProVisible: true}}
	ds.messages["s1"] = []timeline.Message{
		{ID: "m1", Role: timeline.RoleUser, Content: "hi", Timestamp: t0.Add(time.Minute),
			Snapshot: &timeline.Snapshot{StressLevel: 3, EnergyState: timeline.EnergyPositive, Distance: 1}},
		{ID: "m2", Role: timeline.RoleAssistant, Content: "hello", Timestamp: t0.Add(2 * time.Minute)},
		{ID: "m3", Role: timeline.RoleUser, Content: "rough day", Timestamp: t0.Add(3 * time.Minute),
			Snapshot: &timeline.Snapshot{StressLevel: 8, EnergyState: timeline.EnergyNeurotic, Distance: 4}},
	}
	ds.position = &timeline.Position{Current: timeline.Snapshot{StressLevel: 5, EnergyState: timeline.EnergyNegative, Distance: 2}}
	return ds
}

type serviceFixture struct {
	svc    ITimelineService
	ds     *fakeDataService
	pusher *recordingPusher
	pub    *recordingPublisher
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		ds:     seededDataService(),
		pusher: &recordingPusher{},
		pub:    &recordingPublisher{},
	}
	f.svc = NewTimelineService(f.ds, f.pusher, f.pub, logger.NewWithCore(zapcore.NewNopCore()), TimelineOptions{
		PollInterval: time.Hour,
		ViewTTL:      time.Hour,
	})
	t.Cleanup(f.svc.Shutdown)
	return f
}

func TestTimelineService_OpenLoadsAndAnnounces(t *testing.T) {
	f := newServiceFixture(t)

	res, err := f.svc.Open(context.Background(), "pr-1", &dto.OpenTimelineRequest{ClientId: "c1"})
	require.NoError(t, err)

	assert.True(t, res.Loaded)
	assert.Equal(t, "pr-1", res.PractitionerId)
	assert.Equal(t, 3, res.MessageCount)
	require.NotNil(t, res.Pointer.MessageID)
	assert.Equal(t, "m3", *res.Pointer.MessageID, "pointer follows the latest user message of the expanded group")
	assert.Equal(t, timeline.TierNeurotic, res.Pointer.StressTier)
	require.NotNil(t, res.Scroll)
	assert.Equal(t, timeline.ScrollBottom, res.Scroll.Target)
	assert.Equal(t, "Idle", res.Lifecycle)

	assert.NotEmpty(t, f.pusher.ofType(FrameTimelineState))
	opened := f.pub.ofType(events.TimelineOpened)
	require.Len(t, opened, 1)
	assert.Equal(t, "c1", opened[0].Payload()["client_id"])
	assert.Equal(t, 1, f.svc.OpenCount())
}

func TestTimelineService_OpenReplacesPreviousView(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.Open(ctx, "pr-1", &dto.OpenTimelineRequest{ClientId: "c1"})
	require.NoError(t, err)
	_, err = f.svc.Open(ctx, "pr-1", &dto.OpenTimelineRequest{ClientId: "c2"})
	require.NoError(t, err)

	assert.Equal(t, 1, f.svc.OpenCount())
	closed := f.pub.ofType(events.TimelineClosed)
	require.Len(t, closed, 1)
	assert.Equal(t, "c1", closed[0].Payload()["client_id"])
	assert.Equal(t, "replaced", closed[0].Payload()["reason"])

	state, err := f.svc.State(ctx, "pr-1")
	require.NoError(t, err)
	assert.Equal(t, "c2", state.ClientID)
}

func TestTimelineService_RequiresOpenView(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.State(ctx, "nobody")
	assert.ErrorIs(t, err, serverutils.ErrNotFound)

	_, err = f.svc.SelectMessage(ctx, "nobody", &dto.SelectMessageRequest{MessageId: "m1"})
	assert.ErrorIs(t, err, ErrNoOpenTimeline)

	assert.ErrorIs(t, f.svc.Close(ctx, "nobody"), ErrNoOpenTimeline)
}

func TestTimelineService_SelectAndToggle(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	_, err := f.svc.Open(ctx, "pr-1", &dto.OpenTimelineRequest{ClientId: "c1"})
	require.NoError(t, err)

	sel, err := f.svc.SelectMessage(ctx, "pr-1", &dto.SelectMessageRequest{MessageId: "m1"})
	require.NoError(t, err)
	assert.Equal(t, timeline.SourceClick, sel.Pointer.Source)
	assert.Equal(t, 3.0, sel.Pointer.StressLevel)

	_, err = f.svc.SelectMessage(ctx, "pr-1", &dto.SelectMessageRequest{MessageId: "m2"})
	assert.ErrorIs(t, err, timeline.ErrNotSelectable)

	_, err = f.svc.SelectMessage(ctx, "pr-1", &dto.SelectMessageRequest{MessageId: "nope"})
	assert.ErrorIs(t, err, timeline.ErrUnknownMessage)

	toggled, err := f.svc.ToggleGroup(ctx, "pr-1", &dto.ToggleGroupRequest{SessionId: "s1", GroupId: timeline.GroupLegacy})
	require.NoError(t, err)
	assert.False(t, toggled.Expanded, "the bootstrap already expanded the last group")

	toggled, err = f.svc.ToggleGroup(ctx, "pr-1", &dto.ToggleGroupRequest{SessionId: "s1", GroupId: timeline.GroupLegacy})
	require.NoError(t, err)
	assert.True(t, toggled.Expanded)
	require.NotNil(t, toggled.Pointer.MessageID)
	assert.Equal(t, "m3", *toggled.Pointer.MessageID)
}

func TestTimelineService_NewMessagesAreAnnouncedOnce(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	_, err := f.svc.Open(ctx, "pr-1", &dto.OpenTimelineRequest{ClientId: "c1", AutoRefresh: boolPtr(true)})
	require.NoError(t, err)
	_, err = f.svc.Open(ctx, "pr-2", &dto.OpenTimelineRequest{ClientId: "other", AutoRefresh: boolPtr(true)})
	require.NoError(t, err)

	f.ds.addMessage("s1", timeline.Message{ID: "m4", Role: timeline.RoleUser, Content: "still here", Timestamp: t0.Add(4 * time.Minute)})

	assert.Equal(t, 1, f.svc.RefreshClient(ctx, "c1"))
	assert.Equal(t, 1, f.svc.RefreshClient(ctx, "c1"))

	announced := f.pub.ofType(events.TimelineNewMessages)
	require.Len(t, announced, 1)
	assert.Equal(t, "pr-1", announced[0].Payload()["practitioner_id"])
	assert.Equal(t, 4, announced[0].Payload()["message_count"])

	state, err := f.svc.State(ctx, "pr-1")
	require.NoError(t, err)
	assert.True(t, state.HasNewMessages)
	assert.Equal(t, timeline.ScrollBottom, state.Scroll.Target, "new messages never auto-scroll")

	ack, err := f.svc.AcknowledgeNewMessages(ctx, "pr-1")
	require.NoError(t, err)
	assert.True(t, ack.Acknowledged)
	require.NotNil(t, ack.Scroll)
	assert.Equal(t, timeline.ScrollNewMessages, ack.Scroll.Target)
	assert.False(t, ack.Scroll.Automatic)
}

func TestTimelineService_RefreshClientSkipsIdleViews(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	res, err := f.svc.Open(ctx, "pr-1", &dto.OpenTimelineRequest{ClientId: "c1", AutoRefresh: boolPtr(false)})
	require.NoError(t, err)
	require.Equal(t, "Idle", res.Lifecycle)
	require.Equal(t, 3, res.MessageCount)

	f.ds.addMessage("s1", timeline.Message{ID: "m4", Role: timeline.RoleUser, Timestamp: t0.Add(4 * time.Minute)})

	assert.Equal(t, 0, f.svc.RefreshClient(ctx, "c1"))

	state, err := f.svc.State(ctx, "pr-1")
	require.NoError(t, err)
	assert.Equal(t, "Idle", state.Lifecycle)
	assert.Equal(t, 3, state.MessageCount, "an idle view only changes on an explicit refresh")
	assert.False(t, state.HasNewMessages)
	assert.Empty(t, f.pub.ofType(events.TimelineNewMessages))

	refreshed, err := f.svc.Refresh(ctx, "pr-1")
	require.NoError(t, err)
	assert.Equal(t, 4, refreshed.MessageCount)
}

func TestTimelineService_CloseAnnouncesAndPushes(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	_, err := f.svc.Open(ctx, "pr-1", &dto.OpenTimelineRequest{ClientId: "c1"})
	require.NoError(t, err)

	require.NoError(t, f.svc.Close(ctx, "pr-1"))

	assert.Equal(t, 0, f.svc.OpenCount())
	require.Len(t, f.pub.ofType(events.TimelineClosed), 1)
	require.Len(t, f.pusher.ofType(FrameTimelineClosed), 1)

	_, err = f.svc.State(ctx, "pr-1")
	assert.ErrorIs(t, err, ErrNoOpenTimeline)
}

func TestTimelineService_HandleInbound(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	_, err := f.svc.Open(ctx, "pr-1", &dto.OpenTimelineRequest{ClientId: "c1"})
	require.NoError(t, err)

	send := func(frameType string, data interface{}) {
		raw, err := json.Marshal(data)
		require.NoError(t, err)
		body, err := json.Marshal(map[string]interface{}{"type": frameType, "data": json.RawMessage(raw)})
		require.NoError(t, err)
		f.svc.HandleInbound("pr-1", body)
	}

	send("settled", nil)
	state, err := f.svc.State(ctx, "pr-1")
	require.NoError(t, err)
	assert.Equal(t, timeline.ModeInteractive, state.Mode)

	send("scroll", dto.ScrollRequest{Height: 600, Elements: []timeline.Element{
		{MessageID: "m1", Role: timeline.RoleUser, Top: 10, Height: 80},
		{MessageID: "m3", Role: timeline.RoleUser, Top: 300, Height: 80},
	}})
	state, err = f.svc.State(ctx, "pr-1")
	require.NoError(t, err)
	assert.Equal(t, timeline.SourceScroll, state.Pointer.Source)
	assert.Equal(t, "m1", *state.Pointer.MessageID)

	send("select", dto.SelectMessageRequest{MessageId: "m3"})
	state, err = f.svc.State(ctx, "pr-1")
	require.NoError(t, err)
	assert.Equal(t, timeline.SourceClick, state.Pointer.Source)

	assert.Empty(t, f.pusher.ofType(FrameTimelineError))

	send("select", dto.SelectMessageRequest{})
	send("dance", nil)
	f.svc.HandleInbound("pr-1", []byte("{nope"))
	assert.Len(t, f.pusher.ofType(FrameTimelineError), 3)
}

func TestTimelineService_StatePushesAreOrdered(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	_, err := f.svc.Open(ctx, "pr-1", &dto.OpenTimelineRequest{ClientId: "c1"})
	require.NoError(t, err)
	_, err = f.svc.SelectMessage(ctx, "pr-1", &dto.SelectMessageRequest{MessageId: "m1"})
	require.NoError(t, err)

	var last uint64
	for _, fr := range f.pusher.ofType(FrameTimelineState) {
		state := fr.payload.(timeline.State)
		assert.Greater(t, state.Version, last)
		last = state.Version
	}
}
