// Package resilience provides fault tolerance patterns for calls into the
// Git, Warehouse, LLM, and webhook collaborators: circuit breaking backed by
// github.com/sony/gobreaker and retry with exponential backoff backed by
// github.com/cenkalti/backoff/v4.
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/ironlayer/ironlayer/internal/logging"
)

// State mirrors gobreaker.State so callers don't need to import gobreaker
// directly.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateClosed:
		return StateClosed
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateOpen
	}
}

// ErrCircuitOpen is returned (wrapped) when a call is rejected because the
// breaker is open.
var ErrCircuitOpen = gobreaker.ErrOpenState

// Config configures a Breaker.
type Config struct {
	// Name identifies the collaborator this breaker guards, e.g. "git",
	// "warehouse", "llm", "webhook".
	Name string
	// MaxFailures is the number of consecutive failures before the breaker opens.
	MaxFailures uint32
	// Timeout is how long the breaker stays open before probing half-open.
	Timeout time.Duration
	// HalfOpenMax is the number of trial requests allowed while half-open.
	HalfOpenMax uint32
	// Logger receives state-change notifications. Optional.
	Logger *logging.Logger
}

// DefaultConfig returns a breaker configuration suitable for most outbound
// collaborator calls.
func DefaultConfig(name string) Config {
	return Config{
		Name:        name,
		MaxFailures: 5,
		Timeout:     30 * time.Second,
		HalfOpenMax: 3,
	}
}

// Breaker wraps a gobreaker.CircuitBreaker with the collaborator error
// taxonomy used throughout ironlayer.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// New constructs a Breaker from cfg.
func New(cfg Config) *Breaker {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.HalfOpenMax == 0 {
		cfg.HalfOpenMax = 3
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenMax,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
	}
	if cfg.Logger != nil {
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			cfg.Logger.WithFields(map[string]interface{}{
				"collaborator": name,
				"from_state":   fromGobreaker(from).String(),
				"to_state":     fromGobreaker(to).String(),
			}).Warn("circuit breaker state changed")
		}
	}

	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// State returns the breaker's current state.
func (b *Breaker) State() State {
	return fromGobreaker(b.cb.State())
}

// Execute runs fn guarded by the breaker. If the breaker is open, fn is not
// called and ErrCircuitOpen is returned.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}
