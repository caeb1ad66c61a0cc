package timeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/qmuntal/stateless"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultPollInterval = 3 * time.Second
	DefaultSettleDelay  = 500 * time.Millisecond

	fetchConcurrency = 4
	logModule        = "Timeline"
)

var (
	ErrRefreshInFlight = errors.New("timeline: refresh already in flight")
	ErrClosed          = errors.New("timeline: view is closed")
	ErrUnknownMessage  = errors.New("timeline: unknown message")
	ErrNotSelectable   = errors.New("timeline: message carries no usable snapshot")
	ErrUnknownGroup    = errors.New("timeline: unknown group")
)

var tracer = otel.Tracer("psvs-console-be/timeline")

// Mode separates the bootstrap auto-scroll window, during which scroll
// events are ignored, from normal interaction.
type Mode string

const (
	ModeBootstrapping Mode = "bootstrapping"
	ModeInteractive   Mode = "interactive"
)

const (
	ScrollBottom      = "bottom"
	ScrollNewMessages = "new_messages"
)

// ScrollCommand asks the host to move the viewport. Seq grows with every
// command so hosts can tell repeats apart.
type ScrollCommand struct {
	Seq       uint64 `json:"seq"`
	Target    string `json:"target"`
	Automatic bool   `json:"automatic"`
}

type Options struct {
	PollInterval    time.Duration
	SettleDelay     time.Duration
	TrajectoryLimit int
	AutoRefresh     bool
	Logger          Logger
	// OnChange receives every new state. It runs outside the view lock and
	// must not block.
	OnChange func(State)
}

// State is everything a rendering layer binds to.
type State struct {
	ClientID       string            `json:"client_id"`
	Version        uint64            `json:"version"`
	Loaded         bool              `json:"loaded"`
	Sessions       []SessionTimeline `json:"sessions"`
	Pointer        Pointer           `json:"pointer"`
	Aggregate      *Snapshot         `json:"aggregate,omitempty"`
	Trajectory     []TrajectoryPoint `json:"trajectory"`
	Expanded       []string          `json:"expanded"`
	HasNewMessages bool              `json:"has_new_messages"`
	AutoRefresh    bool              `json:"auto_refresh"`
	Mode           Mode              `json:"mode"`
	Scroll         *ScrollCommand    `json:"scroll,omitempty"`
	MessageCount   int               `json:"message_count"`
	LastRefreshAt  *time.Time        `json:"last_refresh_at,omitempty"`
	Closed         bool              `json:"closed"`
}

// View is one open timeline: grouped sessions, the indicator pointer, the
// expansion set and the refresh lifecycle. All derived state dies with it.
type View struct {
	clientID string
	svc      DataService
	opts     Options
	log      Logger

	mu            sync.Mutex
	sessions      []SessionTimeline
	index         MessageIndex
	indicator     *Indicator
	trajectory    *Trajectory
	expansion     *Expansion
	lastExpanded  string
	aggregate     *Snapshot
	lastCount     int
	loaded        bool
	hasNew        bool
	mode          Mode
	scroll        *ScrollCommand
	scrollSeq     uint64
	viewport      *Viewport
	version       uint64
	lastRefreshAt *time.Time
	polling       bool
	closed        bool
	settleTimer   *time.Timer

	refreshing atomic.Bool

	lifeMu     sync.Mutex
	lifecycle  *stateless.StateMachine
	cancelPoll context.CancelFunc
	pollDone   chan struct{}
}

func NewView(clientID string, svc DataService, opts Options) *View {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.SettleDelay < 0 {
		opts.SettleDelay = 0
	}
	if opts.Logger == nil {
		opts.Logger = NopLogger
	}
	v := &View{
		clientID: clientID,
		svc:      svc,
		opts:     opts,
		log:      opts.Logger,
	}
	v.resetLocked()
	v.lifecycle = newLifecycle(v)
	return v
}

func (v *View) ClientID() string {
	return v.clientID
}

// Open bootstraps the view: it clears derived state, runs the first load and
// starts polling when auto-refresh is on. A failed first load is logged and
// returned; the view stays open and the next successful refresh bootstraps.
func (v *View) Open(ctx context.Context) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	v.resetLocked()
	v.mu.Unlock()

	err := v.refresh(ctx, true)
	if err != nil {
		v.log.Warn(logModule, "Initial load failed", map[string]interface{}{"client_id": v.clientID, "error": err.Error()})
	}

	if v.opts.AutoRefresh {
		if ferr := v.SetAutoRefresh(true); ferr != nil {
			return ferr
		}
	}
	return err
}

// Refresh runs one fetch-group-update cycle. It returns ErrRefreshInFlight
// without fetching when another cycle is running.
func (v *View) Refresh(ctx context.Context) error {
	return v.refresh(ctx, false)
}

// Reload is a full reload: like Refresh, but it also re-derives the pointer
// from the most recently expanded group.
func (v *View) Reload(ctx context.Context) error {
	return v.refresh(ctx, true)
}

func (v *View) refresh(ctx context.Context, full bool) error {
	if !v.refreshing.CompareAndSwap(false, true) {
		return ErrRefreshInFlight
	}
	defer v.refreshing.Store(false)

	if v.isClosed() {
		return ErrClosed
	}

	ctx, span := tracer.Start(ctx, "timeline.refresh")
	defer span.End()
	span.SetAttributes(attribute.String("client.id", v.clientID), attribute.Bool("refresh.full", full))

	sessions, err := v.fetchSessions(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return err
	}

	position, perr := v.svc.GetPosition(ctx, v.clientID, v.trajectoryLimit())
	if perr != nil {
		v.log.Warn(logModule, "Aggregate position fetch failed", map[string]interface{}{"client_id": v.clientID, "error": perr.Error()})
		position = nil
	}

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	v.applyLocked(sessions, position, full)
	state := v.stateLocked()
	v.mu.Unlock()

	span.SetAttributes(attribute.Int("timeline.messages", state.MessageCount))
	v.notify(state)
	return nil
}

func (v *View) fetchSessions(ctx context.Context) ([]SessionTimeline, error) {
	raw, err := v.svc.ListSessions(ctx, v.clientID)
	if err != nil {
		return nil, fmt.Errorf("list sessions for client %s: %w", v.clientID, err)
	}
	sessions := SortSessions(raw)

	out := make([]SessionTimeline, len(sessions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i, s := range sessions {
		if !s.ProVisible {
			out[i] = BuildSessionTimeline(s, nil, nil)
			continue
		}
		g.Go(func() error {
			msgs, err := v.svc.ListMessages(gctx, s.ID)
			if err != nil {
				return fmt.Errorf("list messages for session %s: %w", s.ID, err)
			}
			subs, err := v.svc.ListSubSessions(gctx, s.ID)
			if err != nil {
				return fmt.Errorf("list sub-sessions for session %s: %w", s.ID, err)
			}
			out[i] = BuildSessionTimeline(s, msgs, subs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (v *View) applyLocked(sessions []SessionTimeline, position *Position, full bool) {
	v.sessions = sessions
	v.index = IndexMessages(sessions)

	if position != nil {
		current := position.Current
		v.aggregate = &current
		v.indicator.SetFromAggregate(current)
		v.trajectory.Replace(position.Trajectory)
	}
	if id, ok := v.indicator.BoundTo(); ok {
		if msg, found := v.index[id]; found {
			v.indicator.Reapply(msg)
		} else {
			v.indicator.Unbind(v.aggregate)
		}
	}

	count := 0
	for _, st := range sessions {
		count += st.MessageCount()
	}

	if !v.loaded {
		v.loaded = true
		v.lastCount = count
		v.bootstrapLocked()
	} else {
		if count > v.lastCount {
			v.hasNew = true
			for _, st := range sessions {
				if g, ok := st.LastGroup(); ok {
					key := ExpansionKey(st.Session.ID, g.GroupID)
					v.expansion.Add(key)
					v.lastExpanded = key
				}
			}
			v.log.Info(logModule, "New messages detected", map[string]interface{}{"client_id": v.clientID, "previous": v.lastCount, "current": count})
		}
		// A decrease (a session turned hidden) leaves the flag and the
		// expansion set alone.
		v.lastCount = count
		if full {
			v.deriveFromExpandedLocked()
		}
	}

	now := time.Now()
	v.lastRefreshAt = &now
	v.version++
}

// bootstrapLocked runs after the first successful load: it seeds the
// expansion set, binds the pointer and issues the single automatic scroll.
func (v *View) bootstrapLocked() {
	v.expansion.Reset()
	if key, ok := lastGroupKey(v.sessions); ok {
		v.expansion.Seed(key)
		v.lastExpanded = key
	}
	v.deriveFromExpandedLocked()

	v.mode = ModeBootstrapping
	v.issueScrollLocked(ScrollBottom, true)
	if v.opts.SettleDelay > 0 {
		v.settleTimer = time.AfterFunc(v.opts.SettleDelay, v.ScrollSettled)
	}
}

func (v *View) deriveFromExpandedLocked() {
	if v.lastExpanded == "" || !v.expansion.Contains(v.lastExpanded) {
		return
	}
	g, ok := v.findGroupLocked(v.lastExpanded)
	if !ok {
		return
	}
	if msg, ok := g.LatestUserMessage(); ok {
		v.indicator.SetFromMessage(msg, SourceLatestInGroup)
	}
}

func (v *View) issueScrollLocked(target string, automatic bool) {
	v.scrollSeq++
	v.scroll = &ScrollCommand{Seq: v.scrollSeq, Target: target, Automatic: automatic}
}

// ScrollSettled ends the bootstrap window so that scroll events drive the
// indicator again. It is called by the settle timer or by the host once the
// automatic scroll has finished.
func (v *View) ScrollSettled() {
	v.mu.Lock()
	if v.closed || !v.loaded || v.mode != ModeBootstrapping {
		v.mu.Unlock()
		return
	}
	v.mode = ModeInteractive
	if v.settleTimer != nil {
		v.settleTimer.Stop()
		v.settleTimer = nil
	}
	v.version++
	state := v.stateLocked()
	v.mu.Unlock()
	v.notify(state)
}

// OnScroll maps the reported viewport to the indicator. It returns the new
// pointer and true only when the pointer changed.
func (v *View) OnScroll(vp Viewport) (Pointer, bool) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return Pointer{}, false
	}
	snapshot := vp
	v.viewport = &snapshot

	if v.mode != ModeInteractive {
		p := v.indicator.Current()
		v.mu.Unlock()
		return p, false
	}

	current := v.indicator.Current()
	if current.Source == SourceClick && current.MessageID != nil && IsVisible(vp, *current.MessageID) {
		v.mu.Unlock()
		return current, false
	}

	msg, ok := PickVisible(vp, v.index)
	if !ok || (current.MessageID != nil && *current.MessageID == msg.ID && current.Source == SourceScroll) {
		v.mu.Unlock()
		return current, false
	}
	if !v.indicator.SetFromMessage(msg, SourceScroll) {
		v.mu.Unlock()
		return current, false
	}
	v.version++
	state := v.stateLocked()
	v.mu.Unlock()

	v.notify(state)
	return state.Pointer, true
}

// Select binds the indicator to a message the practitioner clicked.
func (v *View) Select(messageID string) (Pointer, error) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return Pointer{}, ErrClosed
	}
	msg, ok := v.index[messageID]
	if !ok {
		v.mu.Unlock()
		return Pointer{}, fmt.Errorf("%w: %s", ErrUnknownMessage, messageID)
	}
	if msg.Role != RoleUser || !v.indicator.SetFromMessage(msg, SourceClick) {
		v.mu.Unlock()
		return Pointer{}, fmt.Errorf("%w: %s", ErrNotSelectable, messageID)
	}
	v.version++
	state := v.stateLocked()
	v.mu.Unlock()

	v.notify(state)
	return state.Pointer, nil
}

// ToggleGroup flips a group's expansion. Expanding re-derives the pointer
// from the group's latest user message, overriding a scroll selection.
func (v *View) ToggleGroup(sessionID, groupID string) (bool, error) {
	key := ExpansionKey(sessionID, groupID)

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return false, ErrClosed
	}
	g, ok := v.findGroupLocked(key)
	if !ok {
		v.mu.Unlock()
		return false, fmt.Errorf("%w: %s", ErrUnknownGroup, key)
	}
	expanded := v.expansion.Toggle(key)
	if expanded {
		v.lastExpanded = key
		if msg, ok := g.LatestUserMessage(); ok {
			v.indicator.SetFromMessage(msg, SourceExpand)
		}
	}
	v.version++
	state := v.stateLocked()
	v.mu.Unlock()

	v.notify(state)
	return expanded, nil
}

// AcknowledgeNewMessages clears the new-messages flag and asks the host to
// scroll to the new content. It reports whether there was anything new.
func (v *View) AcknowledgeNewMessages() bool {
	v.mu.Lock()
	if v.closed || !v.hasNew {
		v.mu.Unlock()
		return false
	}
	v.hasNew = false
	v.issueScrollLocked(ScrollNewMessages, false)
	v.version++
	state := v.stateLocked()
	v.mu.Unlock()

	v.notify(state)
	return true
}

// SetAutoRefresh toggles between Idle and Polling.
func (v *View) SetAutoRefresh(enabled bool) error {
	trigger := triggerDisable
	if enabled {
		trigger = triggerEnable
	}

	v.lifeMu.Lock()
	err := v.lifecycle.Fire(trigger)
	v.lifeMu.Unlock()
	if err != nil {
		return fmt.Errorf("toggle auto-refresh: %w", err)
	}

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	v.version++
	state := v.stateLocked()
	v.mu.Unlock()
	v.notify(state)
	return nil
}

// Close stops polling and discards all derived state. It is idempotent.
func (v *View) Close() {
	v.lifeMu.Lock()
	if err := v.lifecycle.Fire(triggerClose); err != nil {
		v.log.Error(logModule, "Close transition failed", map[string]interface{}{"client_id": v.clientID, "error": err.Error()})
	}
	v.lifeMu.Unlock()
}

func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stateLocked()
}

// LifecycleState reports Idle, Polling or Closed.
func (v *View) LifecycleState() string {
	v.lifeMu.Lock()
	defer v.lifeMu.Unlock()
	return string(v.lifecycle.MustState().(refreshState))
}

func (v *View) startPolling() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	v.cancelPoll = cancel
	v.pollDone = done

	v.mu.Lock()
	v.polling = true
	v.mu.Unlock()

	go v.poll(ctx, done)
	v.log.Info(logModule, "Auto-refresh started", map[string]interface{}{"client_id": v.clientID, "interval": v.opts.PollInterval.String()})
}

func (v *View) stopPolling() {
	if v.cancelPoll != nil {
		v.cancelPoll()
		<-v.pollDone
		v.cancelPoll = nil
		v.pollDone = nil
	}

	v.mu.Lock()
	v.polling = false
	v.mu.Unlock()
	v.log.Info(logModule, "Auto-refresh stopped", map[string]interface{}{"client_id": v.clientID})
}

// poll refreshes on every tick. Refreshes run inline, so one slow cycle
// delays the next tick instead of overlapping it.
func (v *View) poll(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(v.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := v.Refresh(ctx)
			switch {
			case err == nil, errors.Is(err, ErrRefreshInFlight):
			case errors.Is(err, ErrClosed), ctx.Err() != nil:
				return
			default:
				v.log.Warn(logModule, "Polling refresh failed, keeping previous state", map[string]interface{}{"client_id": v.clientID, "error": err.Error()})
			}
		}
	}
}

func (v *View) discard() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.resetLocked()
	v.closed = true
	v.version++
}

func (v *View) resetLocked() {
	if v.settleTimer != nil {
		v.settleTimer.Stop()
		v.settleTimer = nil
	}
	v.sessions = []SessionTimeline{}
	v.index = MessageIndex{}
	v.indicator = NewIndicator()
	v.trajectory = NewTrajectory(v.opts.TrajectoryLimit)
	v.expansion = NewExpansion()
	v.lastExpanded = ""
	v.aggregate = nil
	v.lastCount = 0
	v.loaded = false
	v.hasNew = false
	v.mode = ModeBootstrapping
	v.scroll = nil
	v.viewport = nil
	v.lastRefreshAt = nil
}

func (v *View) stateLocked() State {
	count := 0
	for _, st := range v.sessions {
		count += st.MessageCount()
	}
	var scroll *ScrollCommand
	if v.scroll != nil {
		s := *v.scroll
		scroll = &s
	}
	var aggregate *Snapshot
	if v.aggregate != nil {
		a := *v.aggregate
		aggregate = &a
	}
	sessions := make([]SessionTimeline, len(v.sessions))
	copy(sessions, v.sessions)

	return State{
		ClientID:       v.clientID,
		Version:        v.version,
		Loaded:         v.loaded,
		Sessions:       sessions,
		Pointer:        v.indicator.Current(),
		Aggregate:      aggregate,
		Trajectory:     v.trajectory.Points(),
		Expanded:       v.expansion.Keys(),
		HasNewMessages: v.hasNew,
		AutoRefresh:    v.polling,
		Mode:           v.mode,
		Scroll:         scroll,
		MessageCount:   count,
		LastRefreshAt:  v.lastRefreshAt,
		Closed:         v.closed,
	}
}

func (v *View) findGroupLocked(key string) (Group, bool) {
	for _, st := range v.sessions {
		for _, g := range st.Groups {
			if ExpansionKey(st.Session.ID, g.GroupID) == key {
				return g, true
			}
		}
	}
	return Group{}, false
}

func (v *View) isClosed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}

func (v *View) trajectoryLimit() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.trajectory.Limit()
}

func (v *View) notify(state State) {
	if v.opts.OnChange != nil {
		v.opts.OnChange(state)
	}
}

// lastGroupKey finds the last group of the chronologically last visible
// session that has any groups.
func lastGroupKey(sessions []SessionTimeline) (string, bool) {
	for i := len(sessions) - 1; i >= 0; i-- {
		if g, ok := sessions[i].LastGroup(); ok {
			return ExpansionKey(sessions[i].Session.ID, g.GroupID), true
		}
	}
	return "", false
}
