package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Breaker defaults.
const (
	defaultMaxFailures uint32 = 5
	defaultOpenTimeout        = 30 * time.Second
	defaultInterval           = 60 * time.Second
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("ai: provider circuit open")

// BreakerConfig configures NewBreaker. Zero fields take defaults.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the circuit.
	MaxFailures uint32 `toml:"max_failures"`
	// Timeout is how long the circuit stays open before one probe call.
	Timeout time.Duration `toml:"timeout"`
	// Interval clears the failure counts while closed.
	Interval time.Duration `toml:"interval"`
}

// Breaker wraps a Provider so repeated failures fail fast instead of
// reaching the backend. It is a Provider itself.
type Breaker struct {
	inner Provider
	cb    *gobreaker.CircuitBreaker[string]
}

// NewBreaker wraps inner. onChange, if not nil, is told about state changes.
func NewBreaker(inner Provider, cfg BreakerConfig, onChange func(from, to string)) *Breaker {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = defaultMaxFailures
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultOpenTimeout
	}
	if cfg.Interval == 0 {
		cfg.Interval = defaultInterval
	}

	settings := gobreaker.Settings{
		Name:        fmt.Sprintf("ai:%T", inner),
		MaxRequests: 1,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		// A cancelled call says nothing about the backend.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}
	if onChange != nil {
		settings.OnStateChange = func(_ string, from, to gobreaker.State) {
			onChange(from.String(), to.String())
		}
	}
	return &Breaker{inner: inner, cb: gobreaker.NewCircuitBreaker[string](settings)}
}

// Chat implements Provider.
func (b *Breaker) Chat(ctx context.Context, messages []Message) (string, error) {
	return b.run(func() (string, error) { return b.inner.Chat(ctx, messages) })
}

// Summarize implements Provider.
func (b *Breaker) Summarize(ctx context.Context, text string) (string, error) {
	return b.run(func() (string, error) { return b.inner.Summarize(ctx, text) })
}

// Translate implements Provider.
func (b *Breaker) Translate(ctx context.Context, text, lang string) (string, error) {
	return b.run(func() (string, error) { return b.inner.Translate(ctx, text, lang) })
}

// State returns "closed", "half-open" or "open".
func (b *Breaker) State() string {
	return b.cb.State().String()
}

func (b *Breaker) run(call func() (string, error)) (string, error) {
	out, err := b.cb.Execute(call)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}
	return out, err
}

var _ Provider = (*Breaker)(nil)
