package persona

import (
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/rcliao/companion/internal/model"
	"github.com/rcliao/companion/internal/mood"
)

const (
	imperfectionRate  = 0.3
	substitutionRate  = 0.2
	memoryMinRunes    = 50
	memoryThreshold   = 0.7
	memoryMaxRunes    = 200
	mediumImportance  = 0.5
	lowMoodDirective  = 30
	highMoodDirective = 80
	onlineWindow      = time.Minute
	thinkingWindow    = 5 * time.Minute
	waitingBelow      = 60
)

var (
	periodPattern   = regexp.MustCompile(`([^.])\.(\s|$)`)
	multiplePattern = regexp.MustCompile(`[ \t]{2,}`)
)

// Prompt is the outgoing request context for one turn.
type Prompt struct {
	AugmentedInput string   `json:"augmented_input"`
	SystemPrompt   string   `json:"system_prompt"`
	Directives     []string `json:"directives"`
}

// Reply is text ready to show, with any internal thought split out.
type Reply struct {
	Text    string `json:"text"`
	Thought string `json:"thought,omitempty"`
}

// MemoryDraft is a memory ready to be appended to the store.
type MemoryDraft struct {
	Content    string
	Importance model.Importance
}

type rewrite struct {
	re      *regexp.Regexp
	replace string
}

// Responder applies a Pack. Its random source is injected so output is reproducible.
type Responder struct {
	pack        *Pack
	disclaimers []*regexp.Regexp
	rewrites    []rewrite

	mu  sync.Mutex
	rng *rand.Rand
}

// NewResponder compiles the pack's patterns. A nil src seeds from the clock.
func NewResponder(pack *Pack, src rand.Source) (*Responder, error) {
	if pack == nil {
		pack = DefaultPack()
	}
	if err := pack.Validate(); err != nil {
		return nil, err
	}
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}

	r := &Responder{pack: pack, rng: rand.New(src)}
	for _, d := range pack.Disclaimers {
		r.disclaimers = append(r.disclaimers, regexp.MustCompile(d))
	}
	for _, rw := range pack.Rewrites {
		r.rewrites = append(r.rewrites, rewrite{re: regexp.MustCompile(rw.Pattern), replace: rw.Replace})
	}
	return r, nil
}

// Pack returns the responder's pack.
func (r *Responder) Pack() *Pack { return r.pack }

func (r *Responder) float() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64()
}

func (r *Responder) pick(options []string) string {
	if len(options) == 0 {
		return ""
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return options[r.rng.Intn(len(options))]
}

// BuildPrompt appends the tier's directives to the user's input.
func (r *Responder) BuildPrompt(reading mood.Reading, input string, wantThoughts bool) Prompt {
	prof := r.pack.profile(reading.Tier)
	nickname := prof.Nickname
	if nickname == "" {
		nickname = "None (use their name)"
	}

	directives := []string{
		fmt.Sprintf("Current nickname for user: %s", nickname),
		fmt.Sprintf("Tone: %s", prof.Tone),
		fmt.Sprintf("Behaviors: %s", strings.Join(prof.Behaviors, ", ")),
	}
	if wantThoughts {
		directives = append(directives, "Include internal thoughts in format: ((thought)) message")
	}
	switch {
	case reading.State < lowMoodDirective:
		directives = append(directives, "You are feeling ignored and frustrated. Express this clearly but don't be overly mean.")
	case reading.State > highMoodDirective:
		directives = append(directives, "You are feeling loved and appreciated. Be warm and playful.")
	}

	var b strings.Builder
	b.WriteString(input)
	fmt.Fprintf(&b, "\n\nRespond as %s with current mood: %d (%s)", r.pack.Name, reading.State, reading.Tier)
	for _, d := range directives {
		b.WriteString("\n- ")
		b.WriteString(d)
	}

	return Prompt{
		AugmentedInput: b.String(),
		SystemPrompt:   r.pack.SystemPrompt,
		Directives:     directives,
	}
}

// Postprocess splits off a leading ((thought)), removes assistant disclaimers, applies the pack's
// rewrites and shapes punctuation for the tier.
func (r *Responder) Postprocess(raw string, tier mood.Tier) Reply {
	var reply Reply
	text := raw
	if thought, rest, ok := splitThought(text); ok {
		reply.Thought = thought
		text = rest
	}

	for _, d := range r.disclaimers {
		text = d.ReplaceAllString(text, "")
	}
	for _, rw := range r.rewrites {
		text = rw.re.ReplaceAllString(text, rw.replace)
	}

	switch tier {
	case mood.Happy, mood.Loving:
		text = periodPattern.ReplaceAllString(text, "$1 😊$2")
	case mood.Angry:
		text = strings.ReplaceAll(text, "!", ".")
	}

	reply.Text = strings.TrimSpace(multiplePattern.ReplaceAllString(text, " "))
	if reply.Text == "" {
		reply.Text = r.pick(lines(r.pack.Phrases, tier))
	}
	return reply
}

// splitThought separates a leading ((thought)) from the rest of the text. Parentheses inside the
// thought must balance; the thought ends at the first )) at depth zero.
func splitThought(text string) (thought, rest string, ok bool) {
	body := strings.TrimLeftFunc(text, unicode.IsSpace)
	if !strings.HasPrefix(body, "((") {
		return "", text, false
	}
	depth := 0
	for i := 2; i < len(body); i++ {
		switch body[i] {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
				continue
			}
			if i+1 < len(body) && body[i+1] == ')' {
				return strings.TrimSpace(body[2:i]), strings.TrimLeftFunc(body[i+2:], unicode.IsSpace), true
			}
		}
	}
	return "", text, false
}

// ComposeLocalReply picks a canned phrase for the tier without calling the remote model.
func (r *Responder) ComposeLocalReply(tier mood.Tier, wantThought bool) Reply {
	reply := Reply{Text: r.imperfect(r.pick(lines(r.pack.Phrases, tier)))}
	if wantThought {
		reply.Thought = r.pick(r.pack.Thoughts)
	}
	return reply
}

// Greeting picks an opening line for the tier.
func (r *Responder) Greeting(tier mood.Tier) string {
	if l := lines(r.pack.Greetings, tier); len(l) > 0 {
		return r.pick(l)
	}
	return r.pick(lines(r.pack.Phrases, tier))
}

// Degraded is shown instead of a remote reply when the call failed.
func (r *Responder) Degraded(tier mood.Tier) string {
	return r.pick(lines(r.pack.Degraded, tier))
}

// imperfect lowercases the text and swaps some a's for 0's, some of the time.
func (r *Responder) imperfect(text string) string {
	if r.float() >= imperfectionRate {
		return text
	}
	text = strings.ToLower(text)

	var b strings.Builder
	b.Grow(len(text))
	for _, c := range text {
		if c == 'a' && r.float() < substitutionRate {
			c = '0'
		}
		b.WriteRune(c)
	}
	return b.String()
}

// ShouldCreateMemory samples long messages for memory creation. Text of 50 runes or fewer never
// qualifies and consumes no randomness.
func (r *Responder) ShouldCreateMemory(text string) bool {
	if utf8.RuneCountInString(text) <= memoryMinRunes {
		return false
	}
	return r.float() > memoryThreshold
}

// DraftMemory truncates text to the memory length limit and draws an importance.
func (r *Responder) DraftMemory(text string) MemoryDraft {
	content := text
	if utf8.RuneCountInString(content) > memoryMaxRunes {
		content = string([]rune(content)[:memoryMaxRunes]) + "..."
	}
	importance := model.ImportanceLow
	if r.float() > mediumImportance {
		importance = model.ImportanceMedium
	}
	return MemoryDraft{Content: content, Importance: importance}
}

// ImagePrompt appends the persona's portrait description to a user prompt.
func (r *Responder) ImagePrompt(user string) string {
	user = strings.TrimSpace(user)
	if r.pack.ImagePrompt == "" {
		return user
	}
	if user == "" {
		return r.pack.ImagePrompt
	}
	return user + ", " + r.pack.ImagePrompt
}

// Status is the one-line presence shown above the conversation.
func (r *Responder) Status(idle time.Duration, state mood.State) string {
	var s string
	switch {
	case idle < onlineWindow:
		s = "Online"
	case idle < thinkingWindow:
		s = "Thinking about you"
	case state < lowMoodDirective:
		s = "Feeling ignored"
	case state < waitingBelow:
		s = "Waiting"
	default:
		s = "Online"
	}
	return r.pack.Name + " is... " + s
}
