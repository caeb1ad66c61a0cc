package dataservice

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"psvs-console-be/pkg/timeline"
)

// The data service has shipped several field spellings over time. Every
// payload passes through here once; the timeline core only sees canonical
// types.
var (
	messageIDKeys  = []string{"id", "_id", "message_id"}
	sessionIDKeys  = []string{"id", "_id", "session_id"}
	subIDKeys      = []string{"id", "_id", "mini_session_id", "sub_session_id"}
	roleKeys       = []string{"role", "sender", "author"}
	contentKeys    = []string{"content", "text", "message", "body"}
	timestampKeys  = []string{"timestamp", "created_at", "createdAt", "sent_at"}
	subSessionKeys = []string{"sub_session_id", "subSessionId", "mini_session_id", "miniSessionId"}
	snapshotKeys   = []string{"psvs_snapshot", "psvsSnapshot", "psvs", "snapshot"}
	stressKeys     = []string{"stress_level", "stressLevel", "stress"}
	energyKeys     = []string{"energy_state", "energyState", "energy"}
	distanceKeys   = []string{"distance", "distance_from_center", "distanceFromCenter"}
	startedKeys    = []string{"started_at", "startedAt", "start_time", "created_at", "createdAt"}
	endedKeys      = []string{"ended_at", "endedAt", "end_time"}
	activeKeys     = []string{"is_active", "isActive", "active"}
	clientKeys     = []string{"client_id", "clientId", "user_id"}
	visibleKeys    = []string{"pro_visible", "proVisible", "visible_to_pro", "shared_with_pro"}
	listKeys       = []string{"data", "items", "results", "sessions", "messages", "mini_sessions", "miniSessions"}
	currentKeys    = []string{"current", "current_position", "currentPosition", "position"}
	trajectoryKeys = []string{"trajectory", "history", "points"}
)

type object = map[string]interface{}

// DecodeSessions accepts a bare array or an envelope around one.
func DecodeSessions(body []byte) ([]timeline.Session, error) {
	items, err := decodeList(body)
	if err != nil {
		return nil, fmt.Errorf("decode sessions: %w", err)
	}
	out := make([]timeline.Session, 0, len(items))
	for _, item := range items {
		s, ok := NormalizeSession(item)
		if !ok {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// DecodeMessages keeps the service's order for messages whose timestamp is
// missing or unparsable: they borrow the timestamp of the message before
// them (or, at the head of the list, of the first dated one) so the stable
// sort leaves them where the service put them.
func DecodeMessages(body []byte) ([]timeline.Message, error) {
	items, err := decodeList(body)
	if err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	out := make([]timeline.Message, 0, len(items))
	for _, item := range items {
		m, ok := NormalizeMessage(item)
		if !ok {
			continue
		}
		out = append(out, m)
	}
	fillMissingTimestamps(out)
	return out, nil
}

func fillMissingTimestamps(msgs []timeline.Message) {
	var last time.Time
	for i := range msgs {
		if msgs[i].Timestamp.IsZero() {
			msgs[i].Timestamp = last
			continue
		}
		last = msgs[i].Timestamp
	}

	first := -1
	for i := range msgs {
		if !msgs[i].Timestamp.IsZero() {
			first = i
			break
		}
	}
	for i := 0; i < first; i++ {
		msgs[i].Timestamp = msgs[first].Timestamp
	}
}

func DecodeSubSessions(body []byte) ([]timeline.SubSession, error) {
	items, err := decodeList(body)
	if err != nil {
		return nil, fmt.Errorf("decode sub-sessions: %w", err)
	}
	out := make([]timeline.SubSession, 0, len(items))
	for _, item := range items {
		s, ok := NormalizeSubSession(item)
		if !ok {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// DecodePosition reads the aggregate position. A body with no usable current
// reading yields (nil, nil): the caller keeps whatever it had.
func DecodePosition(body []byte) (*timeline.Position, error) {
	var raw interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode position: %w", err)
	}
	obj, ok := raw.(object)
	if !ok {
		return nil, fmt.Errorf("decode position: expected object, got %T", raw)
	}
	if inner, ok := obj["data"].(object); ok {
		obj = inner
	}

	current := obj
	if c, ok := pick(obj, currentKeys).(object); ok {
		current = c
	}
	snap := NormalizeSnapshot(current)
	if snap == nil {
		return nil, nil
	}

	pos := &timeline.Position{Current: *snap}
	if points, ok := pick(obj, trajectoryKeys).([]interface{}); ok {
		for _, p := range points {
			po, ok := p.(object)
			if !ok {
				continue
			}
			tp, ok := NormalizeTrajectoryPoint(po)
			if !ok {
				continue
			}
			pos.Trajectory = append(pos.Trajectory, tp)
		}
	}
	return pos, nil
}

func NormalizeSession(obj object) (timeline.Session, bool) {
	id := str(pick(obj, sessionIDKeys))
	if id == "" {
		return timeline.Session{}, false
	}
	started, _ := timeOf(pick(obj, startedKeys))
	visible := true
	if v := pick(obj, visibleKeys); v != nil {
		visible = boolean(v)
	}
	return timeline.Session{
		ID:         id,
		ClientID:   str(pick(obj, clientKeys)),
		StartedAt:  started,
		ProVisible: visible,
	}, true
}

func NormalizeMessage(obj object) (timeline.Message, bool) {
	id := str(pick(obj, messageIDKeys))
	if id == "" {
		return timeline.Message{}, false
	}
	ts, _ := timeOf(pick(obj, timestampKeys))

	msg := timeline.Message{
		ID:        id,
		Role:      NormalizeRole(str(pick(obj, roleKeys))),
		Content:   str(pick(obj, contentKeys)),
		Timestamp: ts,
	}
	if sub := str(pick(obj, subSessionKeys)); sub != "" {
		msg.SubSessionID = &sub
	}
	if snap, ok := pick(obj, snapshotKeys).(object); ok {
		msg.Snapshot = NormalizeSnapshot(snap)
	}
	return msg, true
}

func NormalizeSubSession(obj object) (timeline.SubSession, bool) {
	id := str(pick(obj, subIDKeys))
	if id == "" {
		return timeline.SubSession{}, false
	}
	started, _ := timeOf(pick(obj, startedKeys))
	sub := timeline.SubSession{
		ID:        id,
		StartedAt: started,
		IsActive:  boolean(pick(obj, activeKeys)),
	}
	if ended, ok := timeOf(pick(obj, endedKeys)); ok {
		sub.EndedAt = &ended
	}
	return sub, true
}

// NormalizeSnapshot returns nil for anything that cannot drive the
// indicator: missing fields, non-finite numbers, stress outside [0,10],
// unknown energy state.
func NormalizeSnapshot(obj object) *timeline.Snapshot {
	if obj == nil {
		return nil
	}
	stress, ok := number(pick(obj, stressKeys))
	if !ok {
		return nil
	}
	var distance float64
	if raw := pick(obj, distanceKeys); raw != nil {
		if distance, ok = number(raw); !ok {
			return nil
		}
	}
	snap := &timeline.Snapshot{
		StressLevel: stress,
		EnergyState: timeline.EnergyState(strings.ToLower(str(pick(obj, energyKeys)))),
		Distance:    distance,
	}
	if !snap.Valid() {
		return nil
	}
	return snap
}

// NormalizeSnapshotJSON decodes a stored snapshot column.
func NormalizeSnapshotJSON(raw []byte) *timeline.Snapshot {
	if len(raw) == 0 {
		return nil
	}
	var obj object
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil
	}
	return NormalizeSnapshot(obj)
}

func NormalizeTrajectoryPoint(obj object) (timeline.TrajectoryPoint, bool) {
	stress, ok := number(pick(obj, stressKeys))
	if !ok {
		return timeline.TrajectoryPoint{}, false
	}
	ts, ok := timeOf(pick(obj, timestampKeys))
	if !ok {
		return timeline.TrajectoryPoint{}, false
	}
	return timeline.TrajectoryPoint{
		StressLevel: stress,
		EnergyState: timeline.EnergyState(strings.ToLower(str(pick(obj, energyKeys)))),
		Timestamp:   ts,
	}, true
}

// NormalizeRole maps every client spelling to RoleUser. Anything else,
// including a missing role, is treated as the assistant so that it can never
// drive the indicator.
func NormalizeRole(role string) timeline.Role {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "user", "client", "human", "patient":
		return timeline.RoleUser
	default:
		return timeline.RoleAssistant
	}
}

func decodeList(body []byte) ([]object, error) {
	var raw interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}

	var list []interface{}
	switch v := raw.(type) {
	case []interface{}:
		list = v
	case object:
		inner, ok := pick(v, listKeys).([]interface{})
		if !ok {
			return nil, fmt.Errorf("no list found in object with keys %v", keysOf(v))
		}
		list = inner
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("expected list, got %T", raw)
	}

	out := make([]object, 0, len(list))
	for _, item := range list {
		if obj, ok := item.(object); ok {
			out = append(out, obj)
		}
	}
	return out, nil
}

func pick(obj object, keys []string) interface{} {
	for _, k := range keys {
		if v, ok := obj[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func str(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

// number accepts finite values only; ParseFloat would let "NaN" and "Inf"
// through.
func number(v interface{}) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func boolean(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, _ := strconv.ParseBool(t)
		return b
	case float64:
		return t != 0
	default:
		return false
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999-07:00",
	"2006-01-02 15:04:05",
}

func timeOf(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed.UTC(), true
			}
		}
	case float64:
		// Epoch seconds or milliseconds.
		if t > 1e12 {
			return time.UnixMilli(int64(t)).UTC(), true
		}
		return time.Unix(int64(t), 0).UTC(), true
	}
	return time.Time{}, false
}

func keysOf(obj object) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	return keys
}
