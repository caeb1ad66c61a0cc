package timeline

import "sort"

const DefaultTrajectoryLimit = 30

// Trajectory keeps the last N aggregate readings for charting. It is
// independent of the indicator.
type Trajectory struct {
	limit  int
	points []TrajectoryPoint
}

func NewTrajectory(limit int) *Trajectory {
	if limit <= 0 {
		limit = DefaultTrajectoryLimit
	}
	return &Trajectory{limit: limit, points: []TrajectoryPoint{}}
}

// Replace swaps in the series reported by the service, ordered by time and
// trimmed to the limit. Non-finite readings are dropped.
func (t *Trajectory) Replace(points []TrajectoryPoint) {
	out := make([]TrajectoryPoint, 0, len(points))
	for _, p := range points {
		if finite(p.StressLevel) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	if len(out) > t.limit {
		out = out[len(out)-t.limit:]
	}
	t.points = out
}

func (t *Trajectory) Points() []TrajectoryPoint {
	out := make([]TrajectoryPoint, len(t.points))
	copy(out, t.points)
	return out
}

func (t *Trajectory) Limit() int {
	return t.limit
}
