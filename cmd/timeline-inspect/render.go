package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"psvs-console-be/pkg/timeline"

	"github.com/fatih/color"
)

const previewLen = 72

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	mutedColor  = color.New(color.FgHiBlack)
	hiddenColor = color.New(color.FgYellow)
)

func tierColor(tier timeline.StressTier) *color.Color {
	switch tier {
	case timeline.TierNeurotic:
		return color.New(color.FgRed, color.Bold)
	case timeline.TierCautionary:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgGreen)
	}
}

func render(w io.Writer, state timeline.State, all bool) {
	headerColor.Fprintf(w, "Client %s: %d sessions, %d messages\n", state.ClientID, len(state.Sessions), state.MessageCount)

	expanded := make(map[string]bool, len(state.Expanded))
	for _, key := range state.Expanded {
		expanded[key] = true
	}

	for _, st := range state.Sessions {
		fmt.Fprintf(w, "\nSession %s  %s\n", st.Session.ID, st.Session.StartedAt.Format(time.RFC822))
		if st.Hidden {
			hiddenColor.Fprintln(w, "  (not shared with the practitioner)")
			continue
		}
		for _, g := range st.Groups {
			open := expanded[timeline.ExpansionKey(st.Session.ID, g.GroupID)]
			marker := "▸"
			if open {
				marker = "▾"
			}
			status := ""
			if g.IsActive {
				status = " active"
			}
			fmt.Fprintf(w, "  %s %s  %d messages, %d from client%s\n", marker, g.GroupID, len(g.Messages), g.UserMessageCount, status)
			if !open && !all {
				continue
			}
			for _, m := range g.Messages {
				renderMessage(w, m, state.Pointer.MessageID)
			}
		}
	}

	fmt.Fprintln(w)
	renderPointer(w, state.Pointer)

	if len(state.Trajectory) > 0 {
		fmt.Fprintf(w, "Trajectory (%d points): ", len(state.Trajectory))
		levels := make([]string, 0, len(state.Trajectory))
		for _, p := range state.Trajectory {
			levels = append(levels, tierColor(timeline.ClassifyStress(p.StressLevel)).Sprintf("%.1f", p.StressLevel))
		}
		fmt.Fprintln(w, strings.Join(levels, " "))
	}
}

func renderMessage(w io.Writer, m timeline.Message, pointed *string) {
	mark := " "
	if pointed != nil && *pointed == m.ID {
		mark = "●"
	}
	line := fmt.Sprintf("    %s %s %-9s %s", mark, m.Timestamp.Format("15:04:05"), m.Role, preview(m.Content))
	if m.Role == timeline.RoleAssistant {
		mutedColor.Fprintln(w, line)
		return
	}
	fmt.Fprint(w, line)
	if m.Snapshot != nil {
		tierColor(timeline.ClassifyStress(m.Snapshot.StressLevel)).Fprintf(w, "  [%.1f %s]", m.Snapshot.StressLevel, m.Snapshot.EnergyState)
	}
	fmt.Fprintln(w)
}

func renderPointer(w io.Writer, p timeline.Pointer) {
	c := tierColor(p.StressTier)
	fmt.Fprint(w, "Indicator: ")
	c.Fprintf(w, "stress %.1f (%s)", p.StressLevel, p.StressTier)
	fmt.Fprintf(w, ", energy %s, distance %.1f, source %s", p.EnergyState, p.Distance, p.Source)
	if p.MessageID != nil {
		fmt.Fprintf(w, ", message %s", *p.MessageID)
	}
	fmt.Fprintln(w)
}

func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > previewLen {
		return string(r[:previewLen-1]) + "…"
	}
	return s
}

// watcher prints a line whenever the indicator or the new-messages flag
// changes.
type watcher struct {
	out io.Writer

	mu      sync.Mutex
	seen    bool
	pointer timeline.Pointer
	hasNew  bool
	count   int
}

func (w *watcher) observe(state timeline.State) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !state.Loaded {
		return
	}
	stamp := mutedColor.Sprint(time.Now().Format("15:04:05"))

	if !w.seen || !samePointer(w.pointer, state.Pointer) {
		fmt.Fprintf(w.out, "%s ", stamp)
		renderPointer(w.out, state.Pointer)
	}
	if w.seen && state.MessageCount != w.count {
		fmt.Fprintf(w.out, "%s messages: %d -> %d\n", stamp, w.count, state.MessageCount)
	}
	if state.HasNewMessages && !w.hasNew {
		hiddenColor.Fprintf(w.out, "%s new messages available\n", stamp)
	}

	w.seen = true
	w.pointer = state.Pointer
	w.hasNew = state.HasNewMessages
	w.count = state.MessageCount
}

func samePointer(a, b timeline.Pointer) bool {
	if (a.MessageID == nil) != (b.MessageID == nil) {
		return false
	}
	if a.MessageID != nil && *a.MessageID != *b.MessageID {
		return false
	}
	return a.StressLevel == b.StressLevel && a.EnergyState == b.EnergyState && a.Distance == b.Distance && a.Source == b.Source
}
