// Package session holds per-user in-memory state and sequences the
// select/prompt/generate/reset transitions.
package session

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"mohaweel/internal/domain"
	"mohaweel/internal/infra"
)

// ErrStale is returned by Generate when the session moved on (new image,
// reset, or a newer generation) before the response arrived. The response
// is discarded.
var ErrStale = errors.New("session: generation superseded")

// Transformer is the remote image transformation service.
type Transformer interface {
	Transform(ctx context.Context, img domain.EncodedImage, prompt string) (domain.EncodedImage, error)
}

// Controller owns one session's State. The lock is never held across the
// call to the Transformer.
type Controller struct {
	mu          sync.Mutex
	state       State
	token       uint64
	transformer Transformer
	logger      *infra.Logger
	now         func() time.Time
}

// Option customizes a Controller.
type Option func(*Controller)

// WithLogger sets the logger used for generation outcomes.
func WithLogger(l *infra.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides time.Now for result timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

func NewController(t Transformer, opts ...Option) *Controller {
	discard := zerolog.New(io.Discard)
	c := &Controller{
		state:       State{Phase: Ready{}},
		transformer: t,
		logger:      &discard,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SelectImage replaces the selected image and clears any result or error.
// An in-flight generation is invalidated.
func (c *Controller) SelectImage(img domain.EncodedImage) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	selected := img
	c.state.Image = &selected
	c.state.Phase = Ready{}
	c.token++
	return c.state
}

// ClearImage removes the selected image, keeping the prompt.
func (c *Controller) ClearImage() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Image = nil
	c.state.Phase = Ready{}
	c.token++
	return c.state
}

// SetPrompt updates the prompt and nothing else.
func (c *Controller) SetPrompt(text string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Prompt = text
	return c.state
}

// Reset returns the session to its initial state. An in-flight generation is
// invalidated, so the loading phase is cleared too.
func (c *Controller) Reset() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = State{Phase: Ready{}}
	c.token++
	return c.state
}

// Generate validates the session, calls the Transformer with the image and
// prompt in effect at call time, and records the outcome. Validation
// failures never reach the Transformer. The returned error is the recorded
// failure, or ErrStale when the outcome was discarded.
func (c *Controller) Generate(ctx context.Context) error {
	token, img, prompt, err := c.begin()
	if err != nil {
		return err
	}

	generated, err := c.transformer.Transform(ctx, img, prompt)
	return c.finish(token, img, prompt, generated, err)
}

// Start is Generate split for callers that answer before the model does:
// it enters the loading phase synchronously and returns a function that
// performs the call. Validation failures are returned directly.
func (c *Controller) Start() (func(ctx context.Context) error, error) {
	token, img, prompt, err := c.begin()
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) error {
		generated, err := c.transformer.Transform(ctx, img, prompt)
		return c.finish(token, img, prompt, generated, err)
	}, nil
}

func (c *Controller) begin() (uint64, domain.EncodedImage, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Image == nil || c.state.Image.IsZero() {
		verr := domain.Validation(domain.CodeNoImage)
		c.state.Phase = Failed{Err: verr}
		c.token++
		return 0, domain.EncodedImage{}, "", verr
	}
	if strings.TrimSpace(c.state.Prompt) == "" {
		verr := domain.Validation(domain.CodeNoPrompt)
		c.state.Phase = Failed{Err: verr}
		c.token++
		return 0, domain.EncodedImage{}, "", verr
	}

	c.token++
	c.state.Phase = Loading{Token: c.token}
	return c.token, *c.state.Image, c.state.Prompt, nil
}

func (c *Controller) finish(token uint64, original domain.EncodedImage, prompt string, generated domain.EncodedImage, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if token != c.token {
		c.logger.Info().
			Uint64("token", token).
			Uint64("current", c.token).
			Bool("failed", err != nil).
			Msg("session: discarding stale generation")
		return ErrStale
	}

	if err != nil {
		derr := domain.AsError(err)
		c.state.Phase = Failed{Err: derr}
		c.logger.Debug().
			Str("kind", string(derr.Kind)).
			Str("code", derr.Code).
			Msg("session: generation failed")
		return derr
	}

	c.state.Phase = Completed{Result: domain.TransformationResult{
		Original:  original,
		Generated: generated,
		Prompt:    prompt,
		CreatedAt: c.now(),
	}}
	return nil
}
