package timeline

// Source records which trigger last wrote the indicator. Higher values take
// precedence over lower ones for automatic writers.
type Source int

const (
	SourceNone Source = iota
	SourceAggregate
	SourceLatestInGroup
	SourceExpand
	SourceScroll
	SourceClick
)

func (s Source) String() string {
	switch s {
	case SourceAggregate:
		return "aggregate"
	case SourceLatestInGroup:
		return "latest_in_group"
	case SourceExpand:
		return "expand"
	case SourceScroll:
		return "scroll"
	case SourceClick:
		return "click"
	}
	return "none"
}

func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type StressTier string

const (
	TierCalm       StressTier = "calm"
	TierCautionary StressTier = "cautionary"
	TierNeurotic   StressTier = "neurotic"
)

// ClassifyStress maps a stress level to its display tier. The tier is
// independent of the reported energy state.
func ClassifyStress(level float64) StressTier {
	switch {
	case level >= 7:
		return TierNeurotic
	case level >= 4:
		return TierCautionary
	default:
		return TierCalm
	}
}

// Pointer is the currently displayed psychological reading and the user
// message it is attributed to, if any.
type Pointer struct {
	StressLevel float64     `json:"stress_level"`
	EnergyState EnergyState `json:"energy_state"`
	Distance    float64     `json:"distance"`
	MessageID   *string     `json:"message_id"`
	Source      Source      `json:"source"`
	StressTier  StressTier  `json:"stress_tier"`
}

// Indicator owns the pointer. It is not safe for concurrent use; the view
// serializes access.
type Indicator struct {
	current Pointer
}

func NewIndicator() *Indicator {
	return &Indicator{current: Pointer{StressTier: ClassifyStress(0)}}
}

func (in *Indicator) Current() Pointer {
	p := in.current
	if p.MessageID != nil {
		id := *p.MessageID
		p.MessageID = &id
	}
	return p
}

// SetFromAggregate overwrites the reading with the client's aggregate
// position. An existing message binding is kept. An unusable position is
// ignored and reported as false.
func (in *Indicator) SetFromAggregate(position Snapshot) bool {
	if !position.Valid() {
		return false
	}
	in.current.StressLevel = position.StressLevel
	in.current.EnergyState = position.EnergyState
	in.current.Distance = position.Distance
	in.current.StressTier = ClassifyStress(position.StressLevel)
	if in.current.MessageID == nil {
		in.current.Source = SourceAggregate
	}
	return true
}

// SetFromMessage binds the pointer to a message. It reports false and leaves
// the pointer untouched when the message has no usable snapshot, or when an
// automatic writer would replace a higher-ranked binding.
func (in *Indicator) SetFromMessage(msg Message, source Source) bool {
	if !msg.Snapshot.Valid() {
		return false
	}
	if !in.accepts(source) {
		return false
	}
	id := msg.ID
	in.current = Pointer{
		StressLevel: msg.Snapshot.StressLevel,
		EnergyState: msg.Snapshot.EnergyState,
		Distance:    msg.Snapshot.Distance,
		MessageID:   &id,
		Source:      source,
		StressTier:  ClassifyStress(msg.Snapshot.StressLevel),
	}
	return true
}

// Reapply restores the reading of the bound message after an aggregate
// refresh overwrote it. The source is preserved.
func (in *Indicator) Reapply(msg Message) bool {
	if in.current.MessageID == nil || *in.current.MessageID != msg.ID || !msg.Snapshot.Valid() {
		return false
	}
	in.current.StressLevel = msg.Snapshot.StressLevel
	in.current.EnergyState = msg.Snapshot.EnergyState
	in.current.Distance = msg.Snapshot.Distance
	in.current.StressTier = ClassifyStress(msg.Snapshot.StressLevel)
	return true
}

// Unbind drops the message binding. The reading falls back to the aggregate
// when one is known and to the empty reading otherwise.
func (in *Indicator) Unbind(aggregate *Snapshot) {
	in.current = Pointer{StressTier: ClassifyStress(0)}
	if aggregate != nil {
		in.SetFromAggregate(*aggregate)
	}
}

// BoundTo returns the id of the bound message.
func (in *Indicator) BoundTo() (string, bool) {
	if in.current.MessageID == nil {
		return "", false
	}
	return *in.current.MessageID, true
}

// accepts applies the precedence rule. Click, scroll and expand are user
// intent and always land; the view decides when a scroll may displace a
// click. LatestInGroup is automatic and never displaces a user binding.
func (in *Indicator) accepts(source Source) bool {
	if source == SourceLatestInGroup {
		return in.current.Source <= SourceLatestInGroup
	}
	return true
}
