package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPickVisible(t *testing.T) {
	u1 := withSnapshot(msg("u1", RoleUser, at(9, 0), ""), 3, EnergyPositive)
	u2 := withSnapshot(msg("u2", RoleUser, at(9, 1), ""), 6, EnergyNegative)
	a1 := withSnapshot(msg("a1", RoleAssistant, at(9, 2), ""), 9, EnergyNeurotic)
	bare := msg("bare", RoleUser, at(9, 3), "")
	broken := msg("broken", RoleUser, at(9, 4), "")
	broken.Snapshot = &Snapshot{StressLevel: 42, EnergyState: EnergyPositive}

	idx := MessageIndex{"u1": u1, "u2": u2, "a1": a1, "bare": bare, "broken": broken}

	tests := []struct {
		name     string
		elements []Element
		wantID   string
		wantOK   bool
	}{
		{
			name: "closest to the top wins",
			elements: []Element{
				{MessageID: "u1", Role: RoleUser, Top: -40, Height: 100},
				{MessageID: "u2", Role: RoleUser, Top: 300, Height: 100},
			},
			wantID: "u1",
			wantOK: true,
		},
		{
			name: "fully scrolled past is ignored",
			elements: []Element{
				{MessageID: "u1", Role: RoleUser, Top: -150, Height: 100},
				{MessageID: "u2", Role: RoleUser, Top: 300, Height: 100},
			},
			wantID: "u2",
			wantOK: true,
		},
		{
			name: "below the viewport is ignored",
			elements: []Element{
				{MessageID: "u2", Role: RoleUser, Top: 801, Height: 100},
			},
			wantOK: false,
		},
		{
			name: "assistant messages never drive the indicator",
			elements: []Element{
				{MessageID: "a1", Role: RoleAssistant, Top: 0, Height: 100},
				{MessageID: "u2", Role: RoleUser, Top: 500, Height: 100},
			},
			wantID: "u2",
			wantOK: true,
		},
		{
			name: "messages without a snapshot are skipped",
			elements: []Element{
				{MessageID: "bare", Role: RoleUser, Top: 0, Height: 100},
				{MessageID: "u1", Role: RoleUser, Top: 200, Height: 100},
			},
			wantID: "u1",
			wantOK: true,
		},
		{
			name: "malformed snapshot on the chosen candidate yields nothing",
			elements: []Element{
				{MessageID: "broken", Role: RoleUser, Top: 0, Height: 100},
				{MessageID: "u1", Role: RoleUser, Top: 200, Height: 100},
			},
			wantOK: false,
		},
		{
			name: "unknown elements are skipped",
			elements: []Element{
				{MessageID: "ghost", Role: RoleUser, Top: 0, Height: 100},
			},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PickVisible(Viewport{Height: 800, Elements: tt.elements}, idx)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantID, got.ID)
			}
		})
	}
}

func TestIsVisible(t *testing.T) {
	vp := Viewport{Height: 500, Elements: []Element{
		{MessageID: "in", Role: RoleUser, Top: 10, Height: 50},
		{MessageID: "out", Role: RoleUser, Top: -60, Height: 50},
	}}

	assert.True(t, IsVisible(vp, "in"))
	assert.False(t, IsVisible(vp, "out"))
	assert.False(t, IsVisible(vp, "missing"))
}

func TestExpansion(t *testing.T) {
	e := NewExpansion()
	e.Seed("s1/A")
	assert.Equal(t, []string{"s1/A"}, e.Keys())

	assert.True(t, e.Toggle("s1/B"))
	assert.False(t, e.Toggle("s1/A"))
	assert.Equal(t, []string{"s1/B"}, e.Keys())

	e.Add("s2/LEGACY")
	e.Add("s2/LEGACY")
	assert.Equal(t, 2, e.Len())

	e.Seed("s3/ORPHAN")
	assert.Equal(t, []string{"s3/ORPHAN"}, e.Keys())

	e.Reset()
	assert.Equal(t, 0, e.Len())
}

func TestTrajectory_ReplaceTrimsToLimit(t *testing.T) {
	tr := NewTrajectory(2)
	tr.Replace([]TrajectoryPoint{
		{StressLevel: 3, Timestamp: at(11, 0)},
		{StressLevel: 1, Timestamp: at(9, 0)},
		{StressLevel: 2, Timestamp: at(10, 0)},
	})

	points := tr.Points()
	if assert.Len(t, points, 2) {
		assert.Equal(t, 2.0, points[0].StressLevel)
		assert.Equal(t, 3.0, points[1].StressLevel)
	}
	assert.Equal(t, DefaultTrajectoryLimit, NewTrajectory(0).Limit())
}
