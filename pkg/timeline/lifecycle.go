package timeline

import (
	"context"

	"github.com/qmuntal/stateless"
)

type refreshState string

const (
	StateIdle    refreshState = "Idle"
	StatePolling refreshState = "Polling"
	StateClosed  refreshState = "Closed"
)

type refreshTrigger string

const (
	triggerEnable  refreshTrigger = "EnableAutoRefresh"
	triggerDisable refreshTrigger = "DisableAutoRefresh"
	triggerClose   refreshTrigger = "Close"
)

// newLifecycle wires the auto-refresh state machine of a view. Idle and
// Polling only change on an explicit toggle; Closed is terminal.
func newLifecycle(v *View) *stateless.StateMachine {
	sm := stateless.NewStateMachine(StateIdle)

	sm.Configure(StateIdle).
		Permit(triggerEnable, StatePolling).
		Permit(triggerClose, StateClosed).
		Ignore(triggerDisable)

	sm.Configure(StatePolling).
		OnEntry(func(_ context.Context, _ ...any) error {
			v.startPolling()
			return nil
		}).
		OnExit(func(_ context.Context, _ ...any) error {
			v.stopPolling()
			return nil
		}).
		Permit(triggerDisable, StateIdle).
		Permit(triggerClose, StateClosed).
		Ignore(triggerEnable)

	sm.Configure(StateClosed).
		OnEntry(func(_ context.Context, _ ...any) error {
			v.discard()
			return nil
		}).
		Ignore(triggerEnable).
		Ignore(triggerDisable).
		Ignore(triggerClose)

	return sm
}
