// Package mood implements the companion's bounded emotional state and the rules that move it.
package mood

import (
	"fmt"
	"strings"
)

// State is the mood value, always within [Min, Max].
type State int

const (
	Min     State = 0
	Max     State = 100
	Default State = 100
)

// Clamp bounds any integer into a valid State. Out-of-range values are never rejected.
func Clamp(n int) State {
	if n < int(Min) {
		return Min
	}
	if n > int(Max) {
		return Max
	}
	return State(n)
}

// Tier is an emotional bucket derived from State.
type Tier int

const (
	Angry Tier = iota
	Neutral
	Happy
	Loving
)

var tierNames = map[Tier]string{
	Angry:   "angry",
	Neutral: "neutral",
	Happy:   "happy",
	Loving:  "loving",
}

func (t Tier) String() string {
	if n, ok := tierNames[t]; ok {
		return n
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// MarshalText encodes the tier by name.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// ParseTier resolves a tier name.
func ParseTier(s string) (Tier, error) {
	for t, n := range tierNames {
		if strings.EqualFold(s, n) {
			return t, nil
		}
	}
	return Angry, fmt.Errorf("unknown tier %q", s)
}

// Threshold maps every state >= From to Tier, until the next threshold.
type Threshold struct {
	From State
	Tier Tier
}

// TierTable is an ascending list of thresholds. The first entry must start at Min.
type TierTable struct {
	Name       string
	Thresholds []Threshold
}

var (
	// FourTier is the default table: Angry <30, Neutral [30,50), Happy [50,70), Loving >=70.
	FourTier = TierTable{
		Name: "four",
		Thresholds: []Threshold{
			{From: 0, Tier: Angry},
			{From: 30, Tier: Neutral},
			{From: 50, Tier: Happy},
			{From: 70, Tier: Loving},
		},
	}

	// ThreeTier: Angry <30, Neutral [30,70), Happy >=70.
	ThreeTier = TierTable{
		Name: "three",
		Thresholds: []Threshold{
			{From: 0, Tier: Angry},
			{From: 30, Tier: Neutral},
			{From: 70, Tier: Happy},
		},
	}
)

// TableFor resolves a configured table name. Empty means the four-tier table.
func TableFor(name string) (TierTable, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "four":
		return FourTier, nil
	case "three":
		return ThreeTier, nil
	default:
		return TierTable{}, fmt.Errorf("unknown tier table %q (valid: four, three)", name)
	}
}

// Of returns the tier for a state. The state is clamped first, so Of is total.
func (tt TierTable) Of(s State) Tier {
	s = Clamp(int(s))
	tier := Angry
	for _, th := range tt.Thresholds {
		if s < th.From {
			break
		}
		tier = th.Tier
	}
	return tier
}

// Tiers lists the tiers the table can produce, ascending.
func (tt TierTable) Tiers() []Tier {
	out := make([]Tier, 0, len(tt.Thresholds))
	for _, th := range tt.Thresholds {
		out = append(out, th.Tier)
	}
	return out
}
