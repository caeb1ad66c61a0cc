package timeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	mu          sync.Mutex
	sessions    []Session
	messages    map[string][]Message
	subSessions map[string][]SubSession
	position    *Position
	sessionsErr error
	positionErr error
	gate        chan struct{}
	calls       int
	feedback    []Feedback
}

func newFakeService() *fakeService {
	return &fakeService{
		messages:    make(map[string][]Message),
		subSessions: make(map[string][]SubSession),
	}
}

func (f *fakeService) ListSessions(ctx context.Context, clientID string) ([]Session, error) {
	f.mu.Lock()
	gate := f.gate
	f.calls++
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sessionsErr != nil {
		return nil, f.sessionsErr
	}
	out := make([]Session, len(f.sessions))
	copy(out, f.sessions)
	return out, nil
}

func (f *fakeService) ListMessages(_ context.Context, sessionID string) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Message, len(f.messages[sessionID]))
	copy(out, f.messages[sessionID])
	return out, nil
}

func (f *fakeService) ListSubSessions(_ context.Context, sessionID string) ([]SubSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]SubSession, len(f.subSessions[sessionID]))
	copy(out, f.subSessions[sessionID])
	return out, nil
}

func (f *fakeService) GetPosition(_ context.Context, _ string, _ int) (*Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.positionErr != nil {
		return nil, f.positionErr
	}
	if f.position == nil {
		return nil, errors.New("no position")
	}
	p := *f.position
	return &p, nil
}

func (f *fakeService) SubmitFeedback(_ context.Context, fb Feedback) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feedback = append(f.feedback, fb)
	return nil
}

func (f *fakeService) addMessages(sessionID string, msgs ...Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[sessionID] = append(f.messages[sessionID], msgs...)
}

// scenario builds two visible sessions and one hidden, the last visible one
// with sub-sessions A and B plus orphans: five messages in total.
func scenario() *fakeService {
	f := newFakeService()
	ended := at(10, 10)
	f.sessions = []Session{
		{ID: "S2", ClientID: "c1", StartedAt: at(9, 50), ProVisible: true},
		{ID: "S1", ClientID: "c1", StartedAt: at(8, 0), ProVisible: true},
		{ID: "S3", ClientID: "c1", StartedAt: at(11, 0), ProVisible: false},
	}
	f.messages["S1"] = []Message{
		withSnapshot(msg("s1-u1", RoleUser, at(8, 1), ""), 2, EnergyPositive),
	}
	f.subSessions["S2"] = []SubSession{
		{ID: "A", StartedAt: at(10, 0), EndedAt: &ended},
		{ID: "B", StartedAt: at(10, 20), IsActive: true},
	}
	f.messages["S2"] = []Message{
		withSnapshot(msg("o1", RoleUser, at(9, 55), ""), 3, EnergyPositive),
		withSnapshot(msg("a1", RoleUser, at(10, 1), "A"), 5, EnergyNegative),
		msg("a2", RoleAssistant, at(10, 2), "A"),
		withSnapshot(msg("b1", RoleUser, at(10, 21), "B"), 8, EnergyNeurotic),
	}
	f.messages["S3"] = []Message{msg("hidden", RoleUser, at(11, 1), "")}
	f.position = &Position{
		Current: Snapshot{StressLevel: 4.5, EnergyState: EnergyNegative, Distance: 2},
		Trajectory: []TrajectoryPoint{
			{StressLevel: 3, EnergyState: EnergyPositive, Timestamp: at(9, 0)},
			{StressLevel: 4.5, EnergyState: EnergyNegative, Timestamp: at(10, 0)},
		},
	}
	return f
}

func openView(t *testing.T, f *fakeService, opts Options) *View {
	t.Helper()
	v := NewView("c1", f, opts)
	require.NoError(t, v.Open(context.Background()))
	t.Cleanup(v.Close)
	return v
}

func TestView_BootstrapSeedsLastVisibleGroup(t *testing.T) {
	v := openView(t, scenario(), Options{})

	state := v.State()
	require.True(t, state.Loaded)
	require.Len(t, state.Sessions, 3)
	assert.Equal(t, []string{"S1", "S2", "S3"}, []string{state.Sessions[0].Session.ID, state.Sessions[1].Session.ID, state.Sessions[2].Session.ID})
	assert.True(t, state.Sessions[2].Hidden)
	assert.Equal(t, []string{ExpansionKey("S2", "B")}, state.Expanded)
	assert.False(t, state.HasNewMessages)
	assert.Equal(t, 5, state.MessageCount)
	assert.Equal(t, ModeBootstrapping, state.Mode)

	require.NotNil(t, state.Scroll)
	assert.Equal(t, ScrollCommand{Seq: 1, Target: ScrollBottom, Automatic: true}, *state.Scroll)

	require.NotNil(t, state.Pointer.MessageID)
	assert.Equal(t, "b1", *state.Pointer.MessageID)
	assert.Equal(t, SourceLatestInGroup, state.Pointer.Source)
	assert.Len(t, state.Trajectory, 2)
	require.NotNil(t, state.Aggregate)
	assert.Equal(t, 4.5, state.Aggregate.StressLevel)
}

func TestView_NewMessagesRaiseFlagAndExpandLastGroups(t *testing.T) {
	f := scenario()
	v := openView(t, f, Options{})
	v.ScrollSettled()

	_, err := v.ToggleGroup("S2", "B")
	require.NoError(t, err)
	require.Empty(t, v.State().Expanded)

	f.addMessages("S2",
		msg("b2", RoleAssistant, at(10, 22), "B"),
		withSnapshot(msg("b3", RoleUser, at(10, 23), "B"), 6, EnergyNegative),
	)
	require.NoError(t, v.Refresh(context.Background()))

	state := v.State()
	assert.Equal(t, 7, state.MessageCount)
	assert.True(t, state.HasNewMessages)
	assert.ElementsMatch(t, []string{ExpansionKey("S1", GroupLegacy), ExpansionKey("S2", "B")}, state.Expanded)
	assert.Equal(t, uint64(1), state.Scroll.Seq, "new messages never trigger an automatic scroll")
}

func TestView_FirstLoadDoesNotRaiseFlag(t *testing.T) {
	f := scenario()
	f.mu.Lock()
	f.sessions = nil
	f.mu.Unlock()

	v := NewView("c1", f, Options{})
	t.Cleanup(v.Close)
	f.mu.Lock()
	f.sessionsErr = errors.New("service down")
	f.mu.Unlock()
	require.Error(t, v.Open(context.Background()))
	assert.False(t, v.State().Loaded)

	fresh := scenario()
	f.mu.Lock()
	f.sessionsErr = nil
	f.sessions = fresh.sessions
	f.messages = fresh.messages
	f.subSessions = fresh.subSessions
	f.mu.Unlock()
	require.NoError(t, v.Refresh(context.Background()))

	state := v.State()
	assert.True(t, state.Loaded)
	assert.False(t, state.HasNewMessages)
	assert.Equal(t, []string{ExpansionKey("S2", "B")}, state.Expanded)
	require.NotNil(t, state.Scroll)
	assert.True(t, state.Scroll.Automatic)
}

func TestView_CountDecreaseIsNoop(t *testing.T) {
	f := scenario()
	v := openView(t, f, Options{})

	f.mu.Lock()
	f.sessions[1].ProVisible = false // S1
	f.mu.Unlock()
	require.NoError(t, v.Refresh(context.Background()))

	state := v.State()
	assert.Equal(t, 4, state.MessageCount)
	assert.False(t, state.HasNewMessages)
	assert.Equal(t, []string{ExpansionKey("S2", "B")}, state.Expanded)

	f.mu.Lock()
	f.sessions[1].ProVisible = true
	f.mu.Unlock()
	require.NoError(t, v.Refresh(context.Background()))
	assert.True(t, v.State().HasNewMessages, "growing again from the lowered count is new content")
}

func TestView_FailedRefreshKeepsPreviousState(t *testing.T) {
	f := scenario()
	v := openView(t, f, Options{})
	before := v.State()

	f.mu.Lock()
	f.sessionsErr = errors.New("timeout")
	f.mu.Unlock()

	assert.Error(t, v.Refresh(context.Background()))
	after := v.State()
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, before.MessageCount, after.MessageCount)
	assert.Equal(t, before.Pointer, after.Pointer)
}

func TestView_AggregateFailureStillAppliesGroups(t *testing.T) {
	f := scenario()
	v := openView(t, f, Options{})

	f.mu.Lock()
	f.positionErr = errors.New("psvs unavailable")
	f.mu.Unlock()
	f.addMessages("S1", msg("s1-a1", RoleAssistant, at(8, 2), ""))

	require.NoError(t, v.Refresh(context.Background()))
	state := v.State()
	assert.Equal(t, 6, state.MessageCount)
	assert.Equal(t, 4.5, state.Aggregate.StressLevel)
}

func TestView_ScrollSuppressedWhileBootstrapping(t *testing.T) {
	v := openView(t, scenario(), Options{})
	vp := Viewport{Height: 600, Elements: []Element{
		{MessageID: "a1", Role: RoleUser, Top: 5, Height: 80},
	}}

	_, changed := v.OnScroll(vp)
	assert.False(t, changed)
	assert.Equal(t, "b1", *v.State().Pointer.MessageID)

	v.ScrollSettled()
	assert.Equal(t, ModeInteractive, v.State().Mode)

	p, changed := v.OnScroll(vp)
	assert.True(t, changed)
	assert.Equal(t, "a1", *p.MessageID)
	assert.Equal(t, SourceScroll, p.Source)
}

func TestView_SettleDelayLiftsSuppression(t *testing.T) {
	v := openView(t, scenario(), Options{SettleDelay: 10 * time.Millisecond})

	assert.Eventually(t, func() bool {
		return v.State().Mode == ModeInteractive
	}, time.Second, 5*time.Millisecond)
}

func TestView_ClickOutranksScrollWhileVisible(t *testing.T) {
	v := openView(t, scenario(), Options{})
	v.ScrollSettled()

	p, err := v.Select("o1")
	require.NoError(t, err)
	assert.Equal(t, SourceClick, p.Source)

	stillVisible := Viewport{Height: 600, Elements: []Element{
		{MessageID: "a1", Role: RoleUser, Top: 0, Height: 80},
		{MessageID: "o1", Role: RoleUser, Top: 300, Height: 80},
	}}
	_, changed := v.OnScroll(stillVisible)
	assert.False(t, changed)
	assert.Equal(t, "o1", *v.State().Pointer.MessageID)

	scrolledAway := Viewport{Height: 600, Elements: []Element{
		{MessageID: "o1", Role: RoleUser, Top: -200, Height: 80},
		{MessageID: "a1", Role: RoleUser, Top: 0, Height: 80},
	}}
	p, changed = v.OnScroll(scrolledAway)
	assert.True(t, changed)
	assert.Equal(t, "a1", *p.MessageID)
}

func TestView_AggregateRefreshNeverClobbersSelection(t *testing.T) {
	f := scenario()
	v := openView(t, f, Options{})

	_, err := v.Select("a1")
	require.NoError(t, err)

	f.mu.Lock()
	f.position = &Position{Current: Snapshot{StressLevel: 9.5, EnergyState: EnergyNeurotic, Distance: 7}}
	f.mu.Unlock()
	require.NoError(t, v.Reload(context.Background()))

	p := v.State().Pointer
	require.NotNil(t, p.MessageID)
	assert.Equal(t, "a1", *p.MessageID)
	assert.Equal(t, 5.0, p.StressLevel)
	assert.Equal(t, EnergyNegative, p.EnergyState)
	assert.Equal(t, SourceClick, p.Source)
	assert.Equal(t, 9.5, v.State().Aggregate.StressLevel)
}

func TestView_BindingToHiddenSessionFallsBackToAggregate(t *testing.T) {
	f := scenario()
	v := openView(t, f, Options{})

	_, err := v.Select("o1")
	require.NoError(t, err)

	f.mu.Lock()
	f.sessions[0].ProVisible = false
	f.position = &Position{Current: Snapshot{StressLevel: 6.5, EnergyState: EnergyNegative, Distance: 4}}
	f.mu.Unlock()
	require.NoError(t, v.Refresh(context.Background()))

	p := v.State().Pointer
	assert.Nil(t, p.MessageID)
	assert.Equal(t, SourceAggregate, p.Source)
	assert.Equal(t, 6.5, p.StressLevel)
	assert.Equal(t, EnergyNegative, p.EnergyState)
}

func TestView_SelectRejectsAssistantAndUnknown(t *testing.T) {
	v := openView(t, scenario(), Options{})

	_, err := v.Select("a2")
	assert.ErrorIs(t, err, ErrNotSelectable)

	_, err = v.Select("nope")
	assert.ErrorIs(t, err, ErrUnknownMessage)
}

func TestView_ExpandOverridesScroll(t *testing.T) {
	v := openView(t, scenario(), Options{})
	v.ScrollSettled()

	_, changed := v.OnScroll(Viewport{Height: 600, Elements: []Element{
		{MessageID: "o1", Role: RoleUser, Top: 0, Height: 80},
	}})
	require.True(t, changed)

	expanded, err := v.ToggleGroup("S2", "A")
	require.NoError(t, err)
	assert.True(t, expanded)

	p := v.State().Pointer
	assert.Equal(t, "a1", *p.MessageID)
	assert.Equal(t, SourceExpand, p.Source)

	_, err = v.ToggleGroup("S2", "Z")
	assert.ErrorIs(t, err, ErrUnknownGroup)
}

func TestView_AcknowledgeNewMessages(t *testing.T) {
	f := scenario()
	v := openView(t, f, Options{})
	assert.False(t, v.AcknowledgeNewMessages())

	f.addMessages("S1", msg("s1-u2", RoleUser, at(8, 5), ""))
	require.NoError(t, v.Refresh(context.Background()))
	require.True(t, v.State().HasNewMessages)

	assert.True(t, v.AcknowledgeNewMessages())
	state := v.State()
	assert.False(t, state.HasNewMessages)
	assert.Equal(t, ScrollCommand{Seq: 2, Target: ScrollNewMessages, Automatic: false}, *state.Scroll)
}

func TestView_RefreshesNeverOverlap(t *testing.T) {
	f := scenario()
	v := openView(t, f, Options{})

	gate := make(chan struct{})
	f.mu.Lock()
	f.gate = gate
	f.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- v.Refresh(context.Background()) }()

	require.Eventually(t, func() bool { return v.refreshing.Load() }, time.Second, time.Millisecond)
	assert.ErrorIs(t, v.Refresh(context.Background()), ErrRefreshInFlight)

	close(gate)
	require.NoError(t, <-done)
}

func TestView_PollingLifecycle(t *testing.T) {
	f := scenario()
	v := openView(t, f, Options{PollInterval: 5 * time.Millisecond, AutoRefresh: true})
	assert.Equal(t, string(StatePolling), v.LifecycleState())
	assert.True(t, v.State().AutoRefresh)

	f.addMessages("S2", msg("b2", RoleAssistant, at(10, 30), "B"))
	assert.Eventually(t, func() bool {
		return v.State().HasNewMessages
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, v.SetAutoRefresh(false))
	assert.Equal(t, string(StateIdle), v.LifecycleState())
	state := v.State()
	assert.False(t, state.AutoRefresh)
	assert.Equal(t, 6, state.MessageCount, "turning polling off keeps what is displayed")

	f.mu.Lock()
	calls := f.calls
	f.mu.Unlock()
	time.Sleep(30 * time.Millisecond)
	f.mu.Lock()
	assert.Equal(t, calls, f.calls, "no fetches after polling stops")
	f.mu.Unlock()
}

func TestView_CloseDiscardsEverything(t *testing.T) {
	f := scenario()
	v := NewView("c1", f, Options{PollInterval: 5 * time.Millisecond, AutoRefresh: true})
	require.NoError(t, v.Open(context.Background()))

	v.Close()
	v.Close()

	assert.Equal(t, string(StateClosed), v.LifecycleState())
	state := v.State()
	assert.True(t, state.Closed)
	assert.False(t, state.AutoRefresh)
	assert.Empty(t, state.Sessions)
	assert.Empty(t, state.Expanded)
	assert.Nil(t, state.Pointer.MessageID)
	assert.ErrorIs(t, v.Refresh(context.Background()), ErrClosed)
	assert.NoError(t, v.SetAutoRefresh(true))
	assert.Equal(t, string(StateClosed), v.LifecycleState())
}

func TestView_OnChangeReceivesIncreasingVersions(t *testing.T) {
	var (
		mu       sync.Mutex
		versions []uint64
	)
	v := openView(t, scenario(), Options{OnChange: func(s State) {
		mu.Lock()
		versions = append(versions, s.Version)
		mu.Unlock()
	}})
	v.ScrollSettled()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, versions, 2)
	assert.Less(t, versions[0], versions[1])
}
