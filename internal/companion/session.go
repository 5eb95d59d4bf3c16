// Package companion runs conversation turns: it feeds user input through the mood tracker, asks
// the remote model through the scheduler and records everything in the store.
package companion

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/rcliao/companion/internal/chunker"
	"github.com/rcliao/companion/internal/gateway"
	"github.com/rcliao/companion/internal/model"
	"github.com/rcliao/companion/internal/mood"
	"github.com/rcliao/companion/internal/persona"
	"github.com/rcliao/companion/internal/scheduler"
	"github.com/rcliao/companion/internal/store"
)

// Preference keys.
const (
	PrefMood             = "currentMood"
	PrefShowThoughts     = "showThoughts"
	PrefInteractionCount = "interactionCount"
	PrefLastInteraction  = "lastInteraction"
)

// ErrEmptyInput is returned for blank messages and prompts.
var ErrEmptyInput = errors.New("input is empty")

// Options tunes a Session. Zero values take defaults.
type Options struct {
	HistoryLimit     int
	MemoryBudget     int
	ImageSeed        int64
	SpeechMaxSegment int
	Voice            string
}

// Deps are the collaborators a Session drives. The session takes ownership of Store and
// Scheduler and closes them in Close.
type Deps struct {
	Store     store.Store
	Gateway   gateway.Gateway
	Scheduler *scheduler.Scheduler
	Responder *persona.Responder
	Tracker   *mood.Tracker
	Logger    *zap.Logger
	Options   Options
}

// Session is one user's ongoing conversation.
type Session struct {
	store     store.Store
	gw        gateway.Gateway
	sched     *scheduler.Scheduler
	responder *persona.Responder
	tracker   *mood.Tracker
	log       *zap.Logger
	opts      Options

	mu           sync.RWMutex
	showThoughts bool
}

// Turn is the result of one exchange.
type Turn struct {
	ID       string             `json:"turn"`
	User     *model.ChatMessage `json:"user"`
	Reply    *model.ChatMessage `json:"reply"`
	Mood     mood.Outcome       `json:"mood"`
	Reading  mood.Reading       `json:"reading"`
	Degraded bool               `json:"degraded,omitempty"`
	Usage    *gateway.Usage     `json:"usage,omitempty"`
	Memory   *model.Memory      `json:"memory,omitempty"`
}

// Status is the presence shown above the conversation.
type Status struct {
	Line         string           `json:"status"`
	Reading      mood.Reading     `json:"reading"`
	Idle         time.Duration    `json:"idle_ns"`
	Interactions int              `json:"interactions"`
	ShowThoughts bool             `json:"show_thoughts"`
	Queue        scheduler.Status `json:"queue"`
}

// Open builds a session and restores mood, interaction history and the thoughts toggle from the
// store's preferences.
func Open(ctx context.Context, d Deps) (*Session, error) {
	if d.Store == nil {
		return nil, store.ErrStoreUnavailable
	}
	if d.Gateway == nil || d.Scheduler == nil || d.Responder == nil || d.Tracker == nil {
		return nil, fmt.Errorf("companion: gateway, scheduler, responder and tracker are required")
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Options.HistoryLimit <= 0 {
		d.Options.HistoryLimit = 6
	}
	if d.Options.MemoryBudget <= 0 {
		d.Options.MemoryBudget = 1200
	}
	if d.Options.SpeechMaxSegment <= 0 {
		d.Options.SpeechMaxSegment = chunker.DefaultMaxSize
	}

	s := &Session{
		store:     d.Store,
		gw:        d.Gateway,
		sched:     d.Scheduler,
		responder: d.Responder,
		tracker:   d.Tracker,
		log:       d.Logger,
		opts:      d.Options,
	}
	if err := s.restore(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) restore(ctx context.Context) error {
	snap := mood.Snapshot{State: mood.Default}

	if v, ok, err := s.store.GetPreference(ctx, PrefMood); err != nil {
		return fmt.Errorf("load mood: %w", err)
	} else if ok {
		if n, err := strconv.Atoi(v); err == nil {
			snap.State = mood.Clamp(n)
		} else {
			s.log.Warn("ignoring malformed preference", zap.String("key", PrefMood), zap.String("value", v))
		}
	}

	if v, ok, err := s.store.GetPreference(ctx, PrefInteractionCount); err != nil {
		return fmt.Errorf("load interaction count: %w", err)
	} else if ok {
		if n, err := strconv.Atoi(v); err == nil {
			snap.InteractionCount = n
		}
	}

	if v, ok, err := s.store.GetPreference(ctx, PrefLastInteraction); err != nil {
		return fmt.Errorf("load last interaction: %w", err)
	} else if ok {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil && ms > 0 {
			snap.LastInteraction = time.UnixMilli(ms)
		}
	}
	s.tracker.Restore(snap)

	v, ok, err := s.store.GetPreference(ctx, PrefShowThoughts)
	if err != nil {
		return fmt.Errorf("load thoughts toggle: %w", err)
	}
	if ok {
		s.showThoughts, _ = strconv.ParseBool(v)
	}
	return nil
}

// persistMood writes the tracker's state under the reserved preference keys.
func (s *Session) persistMood(ctx context.Context) error {
	snap := s.tracker.Snapshot()
	last := ""
	if !snap.LastInteraction.IsZero() {
		last = strconv.FormatInt(snap.LastInteraction.UnixMilli(), 10)
	}
	for _, kv := range [][2]string{
		{PrefMood, strconv.Itoa(int(snap.State))},
		{PrefInteractionCount, strconv.Itoa(snap.InteractionCount)},
		{PrefLastInteraction, last},
	} {
		if err := s.store.SetPreference(ctx, kv[0], kv[1]); err != nil {
			return fmt.Errorf("save %s: %w", kv[0], err)
		}
	}
	return nil
}

// Send runs one turn against the remote model. When the remote call fails the reply is a
// tier-appropriate canned line and Turn.Degraded is set; the error is not returned.
func (s *Session) Send(ctx context.Context, text string) (*Turn, error) {
	return s.turn(ctx, text, true)
}

// SendLocal runs one turn without the remote model, answering from the persona's phrase table.
func (s *Session) SendLocal(ctx context.Context, text string) (*Turn, error) {
	return s.turn(ctx, text, false)
}

func (s *Session) turn(ctx context.Context, text string, remote bool) (*Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyInput
	}

	t := &Turn{ID: ulid.Make().String()}
	log := s.log.With(zap.String("turn", t.ID))

	user, err := s.store.AppendMessage(ctx, store.AppendMessageParams{Role: model.RoleUser, Content: text})
	if err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}
	t.User = user

	t.Mood = s.tracker.Observe(text)
	if err := s.persistMood(ctx); err != nil {
		return nil, err
	}
	t.Reading = s.tracker.Current()
	log.Debug("mood transition",
		zap.Int("previous", int(t.Mood.Previous)),
		zap.Int("next", int(t.Mood.Next)),
		zap.Int("delta", t.Mood.Delta),
		zap.Strings("matched", t.Mood.Matched),
		zap.Stringer("tier", t.Reading.Tier))

	thoughts := s.ShowThoughts()
	var reply persona.Reply
	if remote {
		reply, err = s.ask(ctx, log, t, text, thoughts)
		if err != nil {
			return nil, err
		}
	} else {
		reply = s.responder.ComposeLocalReply(t.Reading.Tier, thoughts)
	}

	t.Reply, err = s.store.AppendMessage(ctx, store.AppendMessageParams{
		Role:    model.RoleAssistant,
		Content: reply.Text,
		Thought: reply.Thought,
	})
	if err != nil {
		return nil, fmt.Errorf("save reply: %w", err)
	}

	if s.responder.ShouldCreateMemory(text) {
		draft := s.responder.DraftMemory(text)
		mem, err := s.store.AppendMemory(ctx, store.AppendMemoryParams{
			Content:    draft.Content,
			Importance: draft.Importance,
		})
		if err != nil {
			log.Warn("failed to save memory", zap.Error(err))
		} else {
			t.Memory = mem
		}
	}

	return t, nil
}

// ask sends the prompt through the scheduler. Remote failures and cleared requests degrade to a
// canned line; only cancellation and a closed scheduler are returned as errors.
func (s *Session) ask(ctx context.Context, log *zap.Logger, t *Turn, text string, thoughts bool) (persona.Reply, error) {
	prompt := s.responder.BuildPrompt(t.Reading, text, thoughts)

	cctx, err := store.BuildContext(ctx, s.store, store.ContextParams{
		HistoryLimit: s.opts.HistoryLimit + 1,
		Budget:       s.opts.MemoryBudget,
	})
	if err != nil {
		return persona.Reply{}, fmt.Errorf("build context: %w", err)
	}

	history := make([]gateway.Message, 0, len(cctx.History))
	for _, m := range cctx.History {
		if m.ID == t.User.ID {
			continue
		}
		history = append(history, gateway.Message{Role: string(m.Role), Content: m.Content})
	}
	if len(history) > s.opts.HistoryLimit {
		history = history[len(history)-s.opts.HistoryLimit:]
	}

	req := gateway.Request{
		Capability: gateway.CapabilityText,
		Text: &gateway.TextPayload{
			System:  withMemories(prompt.SystemPrompt, cctx.Memories),
			History: history,
			Input:   prompt.AugmentedInput,
		},
	}

	resp, err := scheduler.Submit(s.sched, func(ctx context.Context) (*gateway.Response, error) {
		return s.gw.Call(ctx, req)
	}).Await(ctx)
	if err == nil && (resp == nil || resp.Text == nil) {
		err = &gateway.RemoteCallError{Capability: gateway.CapabilityText, Err: errors.New("no text in response")}
	}

	switch {
	case err == nil:
		t.Usage = resp.Text.Usage
		return s.responder.Postprocess(resp.Text.Text, t.Reading.Tier), nil
	case errors.Is(err, gateway.ErrRemoteCallFailed),
		errors.Is(err, scheduler.ErrQueueCleared),
		errors.Is(err, scheduler.ErrTaskPanicked):
		log.Warn("reply degraded", zap.Error(err))
		t.Degraded = true
		return persona.Reply{Text: s.responder.Degraded(t.Reading.Tier)}, nil
	default:
		return persona.Reply{}, err
	}
}

func withMemories(system string, memories []store.ContextMemory) string {
	if len(memories) == 0 {
		return system
	}
	var b strings.Builder
	b.WriteString(system)
	b.WriteString("\n\nThings you remember from earlier conversations:")
	for _, m := range memories {
		b.WriteString("\n- ")
		b.WriteString(m.Content)
	}
	return b.String()
}

// Greet records an opening line chosen for the current tier.
func (s *Session) Greet(ctx context.Context) (*model.ChatMessage, error) {
	reading := s.tracker.Current()
	return s.store.AppendMessage(ctx, store.AppendMessageParams{
		Role:    model.RoleAssistant,
		Content: s.responder.Greeting(reading.Tier),
	})
}

// Imagine generates an image of the persona and adds it to the gallery.
func (s *Session) Imagine(ctx context.Context, prompt string) (*model.GalleryItem, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyInput
	}

	req := gateway.Request{
		Capability: gateway.CapabilityImage,
		Image:      &gateway.ImagePayload{Prompt: s.responder.ImagePrompt(prompt), Seed: s.opts.ImageSeed},
	}
	resp, err := scheduler.Submit(s.sched, func(ctx context.Context) (*gateway.Response, error) {
		return s.gw.Call(ctx, req)
	}).Await(ctx)
	if err == nil && (resp == nil || resp.Image == nil) {
		err = &gateway.RemoteCallError{Capability: gateway.CapabilityImage, Err: errors.New("no image in response")}
	}
	if err != nil {
		return nil, fmt.Errorf("generate image: %w", err)
	}

	return s.store.AppendGalleryItem(ctx, store.AppendGalleryParams{
		Prompt:   prompt,
		MediaURL: resp.Image.URL,
		Seed:     resp.Image.Seed,
	})
}

// Speak synthesizes text as audio. Long text is split into segments that are queued together and
// concatenated in order.
func (s *Session) Speak(ctx context.Context, text string) ([]byte, error) {
	segments := chunker.Segments(text, chunker.Options{MaxSize: s.opts.SpeechMaxSegment})
	if len(segments) == 0 {
		return nil, ErrEmptyInput
	}

	futures := make([]*scheduler.Future[*gateway.Response], len(segments))
	for i, seg := range segments {
		req := gateway.Request{
			Capability: gateway.CapabilityAudio,
			Audio:      &gateway.AudioPayload{Input: seg, Voice: s.opts.Voice},
		}
		futures[i] = scheduler.Submit(s.sched, func(ctx context.Context) (*gateway.Response, error) {
			return s.gw.Call(ctx, req)
		})
	}

	var audio []byte
	for i, f := range futures {
		resp, err := f.Await(ctx)
		if err == nil && (resp == nil || resp.Audio == nil) {
			err = &gateway.RemoteCallError{Capability: gateway.CapabilityAudio, Err: errors.New("no audio in response")}
		}
		if err != nil {
			return nil, fmt.Errorf("synthesize segment %d/%d: %w", i+1, len(futures), err)
		}
		audio = append(audio, resp.Audio.Data...)
	}
	return audio, nil
}

// Mood returns the current reading.
func (s *Session) Mood() mood.Reading { return s.tracker.Current() }

// Explain shows how text would move the mood, without recording anything.
func (s *Session) Explain(text string) mood.Outcome { return s.tracker.Explain(text) }

// SetMood overrides the mood. Out-of-range values are clamped.
func (s *Session) SetMood(ctx context.Context, n int) (mood.Reading, error) {
	s.tracker.Set(n)
	if err := s.persistMood(ctx); err != nil {
		return mood.Reading{}, err
	}
	return s.tracker.Current(), nil
}

func (s *Session) ShowThoughts() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.showThoughts
}

// SetShowThoughts toggles asking for internal thoughts and persists the choice.
func (s *Session) SetShowThoughts(ctx context.Context, on bool) error {
	if err := s.store.SetPreference(ctx, PrefShowThoughts, strconv.FormatBool(on)); err != nil {
		return err
	}
	s.mu.Lock()
	s.showThoughts = on
	s.mu.Unlock()
	return nil
}

// Status reports presence, mood and queue state.
func (s *Session) Status() Status {
	reading := s.tracker.Current()
	idle := s.tracker.Idle()
	return Status{
		Line:         s.responder.Status(idle, reading.State),
		Reading:      reading,
		Idle:         idle,
		Interactions: s.tracker.Snapshot().InteractionCount,
		ShowThoughts: s.ShowThoughts(),
		Queue:        s.sched.Status(),
	}
}

// ClearChat deletes the conversation and resets the mood. Memories and gallery are kept.
func (s *Session) ClearChat(ctx context.Context) error {
	if err := s.store.ClearTable(ctx, store.TableMessages); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}
	s.tracker.Reset()
	return s.persistMood(ctx)
}

// HardReset drops queued requests and deletes every record, including preferences.
func (s *Session) HardReset(ctx context.Context) error {
	if n := s.sched.Clear(); n > 0 {
		s.log.Info("dropped queued requests", zap.Int("count", n))
	}
	if err := s.store.HardReset(ctx); err != nil {
		return fmt.Errorf("hard reset: %w", err)
	}
	s.tracker.Reset()
	s.mu.Lock()
	s.showThoughts = false
	s.mu.Unlock()
	return nil
}

// Close stops the scheduler, then closes the store.
func (s *Session) Close() error {
	s.sched.Close()
	return s.store.Close()
}
