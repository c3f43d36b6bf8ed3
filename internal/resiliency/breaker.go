// Package resiliency wraps the transient-I/O boundaries this service
// depends on (outbound HTTP to HomeKit/push-notification endpoints, MQTT
// publishes to z2m/Tasmota) in a circuit breaker so a wedged downstream
// doesn't pile up goroutines retrying it forever.
package resiliency

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned by Execute without even attempting op while the
// breaker is open and still inside ResetTimeout.
var ErrOpen = errors.New("circuit breaker open, fast-failing")

// Config holds the breaker's tunables.
type Config struct {
	// MaxFailures: consecutive failures in Closed before opening.
	MaxFailures int
	// ResetTimeout: how long Open lasts before a probe attempt is allowed.
	ResetTimeout time.Duration
	// SuccessesToClose: consecutive successes required in HalfOpen before
	// fully closing again; a failure at any point reopens immediately.
	SuccessesToClose int
}

// DefaultConfig mirrors the teacher's hardcoded defaults.
func DefaultConfig() Config {
	return Config{MaxFailures: 5, ResetTimeout: 30 * time.Second, SuccessesToClose: 1}
}

// Breaker is a per-dependency circuit breaker: Closed lets calls through
// and counts failures, Open fast-fails until ResetTimeout elapses, then
// HalfOpen lets a trickle of calls through to decide whether to close.
type Breaker struct {
	name string
	cfg  Config
	log  *slog.Logger

	// probe, if set, runs once before the first HalfOpen op and must
	// itself succeed before that op is even attempted.
	probe func(ctx context.Context) error

	mu                   sync.Mutex
	state                State
	consecutiveFailures  int
	consecutiveSuccesses int
	openedAt             time.Time
}

func New(name string, cfg Config, log *slog.Logger, probe func(ctx context.Context) error) *Breaker {
	b := &Breaker{
		name:  name,
		cfg:   cfg,
		log:   log.With(slog.String("breaker", name)),
		probe: probe,
		state: Closed,
	}
	b.log.Info("breaker created", slog.Int("max_failures", cfg.MaxFailures), slog.Duration("reset_timeout", cfg.ResetTimeout))
	return b
}

// Execute runs op if the breaker allows it, updating breaker state from
// the outcome. The first call after ResetTimeout elapses runs probe (if
// configured) before op; a failed probe reopens the breaker without
// even attempting op.
func (b *Breaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	proceed, shouldProbe, err := b.admit()
	if !proceed {
		return err
	}

	if shouldProbe && b.probe != nil {
		if perr := b.probe(ctx); perr != nil {
			b.mu.Lock()
			b.open()
			b.mu.Unlock()
			b.log.Warn("probe failed, reopening without attempting operation", slog.Any("error", perr))
			return ErrOpen
		}
	}

	opErr := op(ctx)
	b.record(opErr)
	return opErr
}

// admit decides whether a call may proceed, transitioning Open -> HalfOpen
// once ResetTimeout has elapsed. shouldProbe is true only for the call
// that performs that transition.
func (b *Breaker) admit() (proceed, shouldProbe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed, HalfOpen:
		return true, false, nil
	case Open:
		if time.Since(b.openedAt) < b.cfg.ResetTimeout {
			b.log.Warn("fast failing while open", slog.Duration("since_open", time.Since(b.openedAt)))
			return false, false, ErrOpen
		}
		b.log.Info("reset timeout elapsed, probing")
		b.state = HalfOpen
		b.consecutiveSuccesses = 0
		return true, true, nil
	default:
		return true, false, nil
	}
}

func (b *Breaker) record(opErr error) {
	if opErr == nil {
		b.onSuccess()
		return
	}
	b.onFailure(opErr)
}

func (b *Breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures = 0
	switch b.state {
	case HalfOpen:
		b.consecutiveSuccesses++
		if b.consecutiveSuccesses >= b.cfg.SuccessesToClose {
			b.state = Closed
			b.log.Info("breaker closed after successful probes", slog.Int("successes", b.consecutiveSuccesses))
		}
	case Open:
		// shouldn't happen: admit() never lets a call through while Open.
	default:
	}
}

func (b *Breaker) onFailure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == HalfOpen {
		b.log.Warn("probe failed in half-open, reopening", slog.Any("error", err))
		b.open()
		return
	}

	b.consecutiveFailures++
	b.log.Warn("operation failed", slog.Int("consecutive_failures", b.consecutiveFailures), slog.Any("error", err))
	if b.consecutiveFailures >= b.cfg.MaxFailures {
		b.open()
	}
}

// open must be called with mu held.
func (b *Breaker) open() {
	b.state = Open
	b.openedAt = time.Now()
	b.consecutiveSuccesses = 0
	b.log.Error("breaker opened", slog.Int("max_failures", b.cfg.MaxFailures))
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
