package timeline

import "context"

// DataService is the remote data service the timeline reads from.
type DataService interface {
	ListSessions(ctx context.Context, clientID string) ([]Session, error)
	ListMessages(ctx context.Context, sessionID string) ([]Message, error)
	ListSubSessions(ctx context.Context, sessionID string) ([]SubSession, error)
	GetPosition(ctx context.Context, clientID string, trajectoryLimit int) (*Position, error)
	SubmitFeedback(ctx context.Context, feedback Feedback) error
}

// Logger matches the structured logger used across the service.
type Logger interface {
	Debug(module, message string, details map[string]interface{})
	Info(module, message string, details map[string]interface{})
	Warn(module, message string, details map[string]interface{})
	Error(module, message string, details map[string]interface{})
}

type nopLogger struct{}

func (nopLogger) Debug(string, string, map[string]interface{}) {}
func (nopLogger) Info(string, string, map[string]interface{})  {}
func (nopLogger) Warn(string, string, map[string]interface{})  {}
func (nopLogger) Error(string, string, map[string]interface{}) {}

// NopLogger discards everything.
var NopLogger Logger = nopLogger{}
