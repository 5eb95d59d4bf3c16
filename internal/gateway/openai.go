package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Options configures the OpenAI-compatible gateway.
type Options struct {
	BaseURL     string
	APIKey      string
	TextModel   string
	ImageModel  string
	AudioModel  string
	Voice       string
	MaxTokens   int
	Temperature float32
	ImageSize   string
	Timeout     time.Duration // per HTTP request
	Logger      *zap.Logger
}

// DefaultOptions returns the standard model settings.
func DefaultOptions() Options {
	return Options{
		BaseURL:     "https://api.openai.com/v1",
		TextModel:   openai.GPT4oMini,
		ImageModel:  openai.CreateImageModelDallE2,
		AudioModel:  string(openai.TTSModel1),
		Voice:       string(openai.VoiceAlloy),
		MaxTokens:   150,
		Temperature: 0.8,
		ImageSize:   openai.CreateImageSize512x512,
		Timeout:     60 * time.Second,
	}
}

// OpenAI implements Gateway against any OpenAI-compatible API.
type OpenAI struct {
	client *openai.Client
	opts   Options
	log    *zap.Logger
}

// NewOpenAI creates a gateway. Unset options take their defaults.
func NewOpenAI(opts Options) *OpenAI {
	def := DefaultOptions()
	if opts.BaseURL == "" {
		opts.BaseURL = def.BaseURL
	}
	if opts.TextModel == "" {
		opts.TextModel = def.TextModel
	}
	if opts.ImageModel == "" {
		opts.ImageModel = def.ImageModel
	}
	if opts.AudioModel == "" {
		opts.AudioModel = def.AudioModel
	}
	if opts.Voice == "" {
		opts.Voice = def.Voice
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = def.MaxTokens
	}
	if opts.Temperature == 0 {
		opts.Temperature = def.Temperature
	}
	if opts.ImageSize == "" {
		opts.ImageSize = def.ImageSize
	}
	if opts.Timeout == 0 {
		opts.Timeout = def.Timeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	clientConfig := openai.DefaultConfig(opts.APIKey)
	clientConfig.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	clientConfig.HTTPClient = &http.Client{Timeout: opts.Timeout}

	return &OpenAI{
		client: openai.NewClientWithConfig(clientConfig),
		opts:   opts,
		log:    opts.Logger,
	}
}

// Call performs one request. It never retries.
func (g *OpenAI) Call(ctx context.Context, req Request) (*Response, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	start := time.Now()
	var resp *Response
	var err error
	switch req.Capability {
	case CapabilityText:
		resp, err = g.text(ctx, req.Text)
	case CapabilityImage:
		resp, err = g.image(ctx, req.Image)
	case CapabilityAudio:
		resp, err = g.audio(ctx, req.Audio)
	}
	if err != nil {
		rerr := remoteError(req.Capability, err)
		g.log.Warn("remote call failed",
			zap.String("capability", string(req.Capability)),
			zap.Int("status", rerr.StatusCode),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, rerr
	}

	g.log.Debug("remote call",
		zap.String("capability", string(req.Capability)),
		zap.Duration("elapsed", time.Since(start)))
	return resp, nil
}

func (g *OpenAI) text(ctx context.Context, p *TextPayload) (*Response, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(p.History)+2)
	if p.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: p.System})
	}
	for _, m := range p.History {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: p.Input})

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.opts.TextModel,
		Messages:    messages,
		MaxTokens:   g.opts.MaxTokens,
		Temperature: g.opts.Temperature,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("invalid response format: no choices")
	}

	result := &TextResult{Text: strings.TrimSpace(resp.Choices[0].Message.Content)}
	if resp.Usage.TotalTokens > 0 {
		result.Usage = &Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return &Response{Capability: CapabilityText, Text: result}, nil
}

func (g *OpenAI) image(ctx context.Context, p *ImagePayload) (*Response, error) {
	resp, err := g.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         p.Prompt,
		Model:          g.opts.ImageModel,
		N:              1,
		Size:           g.opts.ImageSize,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return nil, fmt.Errorf("invalid response format: no image url")
	}
	return &Response{
		Capability: CapabilityImage,
		Image:      &ImageResult{URL: resp.Data[0].URL, Seed: p.Seed},
	}, nil
}

func (g *OpenAI) audio(ctx context.Context, p *AudioPayload) (*Response, error) {
	voice := p.Voice
	if voice == "" {
		voice = g.opts.Voice
	}
	raw, err := g.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(g.opts.AudioModel),
		Input:          p.Input,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
		Speed:          1.0,
	})
	if err != nil {
		return nil, err
	}
	defer raw.Close()

	data, err := io.ReadAll(raw)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("invalid response format: empty audio")
	}
	return &Response{
		Capability: CapabilityAudio,
		Audio:      &AudioResult{Data: data, Format: string(openai.SpeechResponseFormatMp3)},
	}, nil
}

// Ping checks that the backend answers an authenticated request.
func (g *OpenAI) Ping(ctx context.Context) error {
	if _, err := g.client.ListModels(ctx); err != nil {
		return remoteError("models", err)
	}
	return nil
}

// remoteError folds any failure into a RemoteCallError, keeping the HTTP status when known.
func remoteError(c Capability, err error) *RemoteCallError {
	rerr := &RemoteCallError{Capability: c, Err: err}

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		rerr.StatusCode = apiErr.HTTPStatusCode
		rerr.Body = apiErr.Message
	case errors.As(err, &reqErr):
		rerr.StatusCode = reqErr.HTTPStatusCode
		if reqErr.Err != nil {
			rerr.Body = reqErr.Err.Error()
		}
	}
	return rerr
}
