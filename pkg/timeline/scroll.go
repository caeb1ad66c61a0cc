package timeline

import "math"

// Element is the geometry of one rendered message, relative to the top of
// the viewport.
type Element struct {
	MessageID string  `json:"message_id" validate:"required"`
	Role      Role    `json:"role"`
	Top       float64 `json:"top"`
	Height    float64 `json:"height" validate:"gte=0"`
}

type Viewport struct {
	Height   float64   `json:"height" validate:"gt=0"`
	Elements []Element `json:"elements" validate:"dive"`
}

func (e Element) visibleIn(vp Viewport) bool {
	return e.Top >= -e.Height && e.Top <= vp.Height
}

// MessageIndex resolves message ids of the current timeline.
type MessageIndex map[string]Message

func IndexMessages(sessions []SessionTimeline) MessageIndex {
	idx := make(MessageIndex)
	for _, st := range sessions {
		for _, g := range st.Groups {
			for _, m := range g.Messages {
				idx[m.ID] = m
			}
		}
	}
	return idx
}

// PickVisible selects the user message whose element sits closest to the top
// of the viewport while still at least partially visible. Assistant messages
// and messages without a snapshot never qualify. When the chosen message's
// snapshot is malformed nothing is returned.
func PickVisible(vp Viewport, idx MessageIndex) (Message, bool) {
	var (
		best     Message
		bestDist = math.Inf(1)
		found    bool
	)
	for _, el := range vp.Elements {
		if el.Role != RoleUser || !el.visibleIn(vp) {
			continue
		}
		msg, ok := idx[el.MessageID]
		if !ok || msg.Role != RoleUser || msg.Snapshot == nil {
			continue
		}
		if d := math.Abs(el.Top); d < bestDist {
			best, bestDist, found = msg, d, true
		}
	}
	if !found || !best.Snapshot.Valid() {
		return Message{}, false
	}
	return best, true
}

// IsVisible reports whether the message's element is inside the visible band.
func IsVisible(vp Viewport, messageID string) bool {
	for _, el := range vp.Elements {
		if el.MessageID == messageID {
			return el.visibleIn(vp)
		}
	}
	return false
}
