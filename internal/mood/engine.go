package mood

import (
	"regexp"
	"strings"
	"time"
)

// DecayRule lowers the mood when the gap since the last interaction exceeds After.
type DecayRule struct {
	After time.Duration
	Delta int
}

// Rule is a weighted trigger matched against the lowercased input.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Weight  int
}

const (
	negativeWeight = -15
	positiveWeight = 8
	frequencyBonus = 5
	frequencyEvery = 10
	angryBelow     = 30
	floorStep      = 5
	floorMin       = 10
)

// DefaultDecay is checked in order; the first rule that matches applies.
var DefaultDecay = []DecayRule{
	{After: 10 * time.Minute, Delta: -15},
	{After: 5 * time.Minute, Delta: -5},
}

// DefaultRules are the built-in negative and positive triggers.
var DefaultRules = []Rule{
	{Name: "ignore", Pattern: regexp.MustCompile(`ignore`), Weight: negativeWeight},
	{Name: "busy", Pattern: regexp.MustCompile(`busy`), Weight: negativeWeight},
	{Name: "tired", Pattern: regexp.MustCompile(`tired`), Weight: negativeWeight},
	{Name: "later", Pattern: regexp.MustCompile(`later`), Weight: negativeWeight},
	{Name: "no", Pattern: regexp.MustCompile(`\bno\b`), Weight: negativeWeight},
	{Name: "not now", Pattern: regexp.MustCompile(`not now`), Weight: negativeWeight},
	{Name: "leave", Pattern: regexp.MustCompile(`leave`), Weight: negativeWeight},
	{Name: "stop", Pattern: regexp.MustCompile(`stop`), Weight: negativeWeight},
	{Name: "farewell", Pattern: regexp.MustCompile(`\b(bye|goodbye|gtg|g2g)\b`), Weight: negativeWeight},
	{Name: "profanity", Pattern: regexp.MustCompile(`fuck|shit|damn`), Weight: negativeWeight},

	{Name: "love", Pattern: regexp.MustCompile(`love`), Weight: positiveWeight},
	{Name: "miss", Pattern: regexp.MustCompile(`miss`), Weight: positiveWeight},
	{Name: "want", Pattern: regexp.MustCompile(`want`), Weight: positiveWeight},
	{Name: "good", Pattern: regexp.MustCompile(`good`), Weight: positiveWeight},
	{Name: "nice", Pattern: regexp.MustCompile(`nice`), Weight: positiveWeight},
	{Name: "beautiful", Pattern: regexp.MustCompile(`beautiful`), Weight: positiveWeight},
	{Name: "cute", Pattern: regexp.MustCompile(`cute`), Weight: positiveWeight},
	{Name: "sweet", Pattern: regexp.MustCompile(`sweet`), Weight: positiveWeight},
	{Name: "thanks", Pattern: regexp.MustCompile(`thanks|thank you|appreciate`), Weight: positiveWeight},
	{Name: "sorry", Pattern: regexp.MustCompile(`sorry|apologize`), Weight: positiveWeight},
}

// Engine computes mood transitions. It holds no state of its own.
type Engine struct {
	Decay []DecayRule
	Rules []Rule
	Tiers TierTable
}

// NewEngine returns an engine with the built-in rules and the given tier table.
func NewEngine(tiers TierTable) Engine {
	return Engine{Decay: DefaultDecay, Rules: DefaultRules, Tiers: tiers}
}

// Outcome explains a single transition.
type Outcome struct {
	Previous State         `json:"previous"`
	Next     State         `json:"next"`
	Delta    int           `json:"delta"`
	Decay    int           `json:"decay"`
	Matched  []string      `json:"matched,omitempty"`
	Bonus    int           `json:"bonus"`
	Elapsed  time.Duration `json:"elapsed_ns"`
	Floored  bool          `json:"floored"`
	Tier     Tier          `json:"tier"`
}

// Transition returns the next state for the given inputs.
func (e Engine) Transition(current State, elapsed time.Duration, input string, count int) State {
	return e.Evaluate(current, elapsed, input, count).Next
}

// Evaluate runs a transition and reports how each rule contributed.
func (e Engine) Evaluate(current State, elapsed time.Duration, input string, count int) Outcome {
	out := Outcome{Previous: current, Elapsed: elapsed}

	for _, d := range e.Decay {
		if elapsed > d.After {
			out.Decay = d.Delta
			break
		}
	}

	text := strings.ToLower(input)
	triggered := 0
	for _, r := range e.Rules {
		if r.Pattern.MatchString(text) {
			triggered += r.Weight
			out.Matched = append(out.Matched, r.Name)
		}
	}

	if count > 0 && count%frequencyEvery == 0 {
		out.Bonus = frequencyBonus
	}

	out.Delta = out.Decay + triggered + out.Bonus
	next := Clamp(int(current) + out.Delta)
	if next < angryBelow {
		floored := int(next) - floorStep
		if floored < floorMin {
			floored = floorMin
		}
		next = State(floored)
		out.Floored = true
	}
	out.Next = next
	out.Tier = e.TierOf(next)
	return out
}

// TierOf projects a state through the engine's tier table.
func (e Engine) TierOf(s State) Tier {
	if len(e.Tiers.Thresholds) == 0 {
		return FourTier.Of(s)
	}
	return e.Tiers.Of(s)
}
