package dto

import (
	"encoding/json"
	"time"

	"psvs-console-be/pkg/timeline"
)

type OpenTimelineRequest struct {
	ClientId    string `json:"client_id" validate:"required"`
	AutoRefresh *bool  `json:"auto_refresh"`
}

// TimelineStateResponse is the full view state plus the refresh lifecycle.
type TimelineStateResponse struct {
	timeline.State
	PractitionerId string `json:"practitioner_id"`
	Lifecycle      string `json:"lifecycle"`
}

type SetAutoRefreshRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

type ToggleGroupRequest struct {
	SessionId string `json:"session_id" validate:"required"`
	GroupId   string `json:"group_id" validate:"required"`
}

type ToggleGroupResponse struct {
	SessionId string           `json:"session_id"`
	GroupId   string           `json:"group_id"`
	Expanded  bool             `json:"expanded"`
	Pointer   timeline.Pointer `json:"pointer"`
}

type SelectMessageRequest struct {
	MessageId string `json:"message_id" validate:"required"`
}

type ScrollRequest struct {
	Height   float64            `json:"height" validate:"gt=0"`
	Elements []timeline.Element `json:"elements" validate:"dive"`
}

func (r ScrollRequest) Viewport() timeline.Viewport {
	return timeline.Viewport{Height: r.Height, Elements: r.Elements}
}

type PointerResponse struct {
	Pointer timeline.Pointer `json:"pointer"`
	Changed bool             `json:"changed"`
}

type AcknowledgeNewMessagesResponse struct {
	Acknowledged bool                    `json:"acknowledged"`
	Scroll       *timeline.ScrollCommand `json:"scroll,omitempty"`
}

type SubmitFeedbackRequest struct {
	SessionId string  `json:"session_id" validate:"required"`
	MessageId *string `json:"message_id"`
	Rating    int     `json:"rating" validate:"min=1,max=5"`
	Comment   string  `json:"comment" validate:"max=4000"`
}

type SubmitFeedbackResponse struct {
	Id       string    `json:"id"`
	QueuedAt time.Time `json:"queued_at"`
}

// FeedbackMessage is the payload on the feedback topic.
type FeedbackMessage struct {
	Id             string    `json:"id"`
	SessionId      string    `json:"session_id"`
	MessageId      *string   `json:"message_id,omitempty"`
	PractitionerId string    `json:"practitioner_id"`
	Rating         int       `json:"rating"`
	Comment        string    `json:"comment"`
	CreatedAt      time.Time `json:"created_at"`
}

// InboundFrame is a message from the console over the websocket.
type InboundFrame struct {
	Type string `json:"type"`
	// Data is decoded per Type.
	Data json.RawMessage `json:"data"`
}
