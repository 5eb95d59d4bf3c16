// Package gateway is the companion's only path to the remote model. Every failure, whatever its
// cause, surfaces as ErrRemoteCallFailed.
package gateway

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrRemoteCallFailed matches every error returned by a Gateway.
	ErrRemoteCallFailed = errors.New("remote call failed")
	// ErrUnsupportedCapability is wrapped when a request names an unknown capability or lacks its payload.
	ErrUnsupportedCapability = errors.New("unsupported capability")
)

// Capability selects what the remote model is asked to produce.
type Capability string

const (
	CapabilityText  Capability = "text"
	CapabilityImage Capability = "image"
	CapabilityAudio Capability = "audio"
)

// Message is one prior turn sent as conversation history.
type Message struct {
	Role    string
	Content string
}

type TextPayload struct {
	System  string
	History []Message // oldest first
	Input   string
}

type ImagePayload struct {
	Prompt string
	Seed   int64
}

type AudioPayload struct {
	Input string
	Voice string // empty uses the gateway default
}

// Request carries exactly one payload, matching Capability.
type Request struct {
	Capability Capability
	Text       *TextPayload
	Image      *ImagePayload
	Audio      *AudioPayload
}

// Usage is token accounting reported by the backend, when it reports any.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type TextResult struct {
	Text  string `json:"text"`
	Usage *Usage `json:"usage,omitempty"`
}

type ImageResult struct {
	URL  string `json:"url"`
	Seed int64  `json:"seed"`
}

type AudioResult struct {
	Data   []byte `json:"-"`
	Format string `json:"format"`
}

// Response holds the result for the requested capability.
type Response struct {
	Capability Capability   `json:"capability"`
	Text       *TextResult  `json:"text,omitempty"`
	Image      *ImageResult `json:"image,omitempty"`
	Audio      *AudioResult `json:"audio,omitempty"`
}

// Gateway performs one remote call. Implementations must not retry.
type Gateway interface {
	Call(ctx context.Context, req Request) (*Response, error)
}

// RemoteCallError describes a failed call. StatusCode is zero when no HTTP response was received.
type RemoteCallError struct {
	Capability Capability
	StatusCode int
	Body       string
	Err        error
}

func (e *RemoteCallError) Error() string {
	msg := fmt.Sprintf("%s call failed", e.Capability)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Body != "" {
		msg += ": " + e.Body
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RemoteCallError) Unwrap() error { return e.Err }

// Is reports true for ErrRemoteCallFailed regardless of the underlying cause.
func (e *RemoteCallError) Is(target error) bool { return target == ErrRemoteCallFailed }

func validate(req Request) error {
	var ok bool
	switch req.Capability {
	case CapabilityText:
		ok = req.Text != nil
	case CapabilityImage:
		ok = req.Image != nil
	case CapabilityAudio:
		ok = req.Audio != nil
	}
	if !ok {
		return &RemoteCallError{
			Capability: req.Capability,
			Err:        fmt.Errorf("%w: %q", ErrUnsupportedCapability, req.Capability),
		}
	}
	return nil
}
