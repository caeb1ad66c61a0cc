package timeline

import (
	"sort"
	"time"
)

// GroupMessages assembles one session's messages and sub-sessions into ordered
// timeline groups. It never fails: unknown sub-session references fall into
// the orphan bucket and an empty message list yields no groups.
func GroupMessages(session Session, messages []Message, subSessions []SubSession) []Group {
	msgs := sortMessages(messages)

	if len(subSessions) == 0 {
		if len(msgs) == 0 {
			return []Group{}
		}
		return []Group{newGroup(GroupLegacy, session.StartedAt, nil, false, msgs)}
	}

	subs := make([]SubSession, len(subSessions))
	copy(subs, subSessions)
	sort.SliceStable(subs, func(i, j int) bool {
		return subs[i].StartedAt.Before(subs[j].StartedAt)
	})

	known := make(map[string]struct{}, len(subs))
	for _, s := range subs {
		known[s.ID] = struct{}{}
	}

	buckets := make(map[string][]Message, len(subs))
	var orphans []Message
	for _, m := range msgs {
		if m.SubSessionID == nil || *m.SubSessionID == "" {
			orphans = append(orphans, m)
			continue
		}
		if _, ok := known[*m.SubSessionID]; !ok {
			orphans = append(orphans, m)
			continue
		}
		buckets[*m.SubSessionID] = append(buckets[*m.SubSessionID], m)
	}

	groups := make([]Group, 0, len(subs)+1)
	if len(orphans) > 0 {
		groups = append(groups, newGroup(GroupOrphan, session.StartedAt, nil, false, orphans))
	}
	for _, s := range subs {
		groups = append(groups, newGroup(s.ID, s.StartedAt, s.EndedAt, s.IsActive, buckets[s.ID]))
	}
	return groups
}

// BuildSessionTimeline groups a session, or returns a hidden placeholder when
// the session is not visible to practitioners.
func BuildSessionTimeline(session Session, messages []Message, subSessions []SubSession) SessionTimeline {
	if !session.ProVisible {
		return SessionTimeline{Session: session, Hidden: true, Groups: []Group{}}
	}
	return SessionTimeline{Session: session, Groups: GroupMessages(session, messages, subSessions)}
}

// SortSessions orders sessions by start time, keeping service order on ties.
func SortSessions(sessions []Session) []Session {
	out := make([]Session, len(sessions))
	copy(out, sessions)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

func sortMessages(messages []Message) []Message {
	out := make([]Message, len(messages))
	copy(out, messages)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

func newGroup(id string, startedAt time.Time, endedAt *time.Time, active bool, msgs []Message) Group {
	if msgs == nil {
		msgs = []Message{}
	}
	users := 0
	for _, m := range msgs {
		if m.Role == RoleUser {
			users++
		}
	}
	return Group{
		GroupID:          id,
		StartedAt:        startedAt,
		EndedAt:          endedAt,
		IsActive:         active,
		UserMessageCount: users,
		Messages:         msgs,
	}
}
