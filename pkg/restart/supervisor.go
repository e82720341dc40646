package restart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrTooManyRestarts wraps the last session error once MaxRestarts is
// exhausted.
var ErrTooManyRestarts = errors.New("too many restarts")

// DefaultStableAfter is how long a session must run before the backoff
// resets.
const DefaultStableAfter = 10 * time.Second

// State is the supervisor's phase.
type State uint8

const (
	// StateIdle is the state before Run.
	StateIdle State = iota

	// StateRunning indicates a session is running.
	StateRunning

	// StateWaiting indicates the supervisor is backing off before a restart.
	StateWaiting

	// StateStopped indicates Run has returned.
	StateStopped
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateWaiting:
		return "WAITING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Session is one supervised run.
type Session interface {
	Run(ctx context.Context) error
	Close() error
}

// StartFunc creates the next session. attempt is 0 for the first session.
type StartFunc func(ctx context.Context, attempt int) (Session, error)

// Config configures a Supervisor.
type Config struct {
	Backoff BackoffConfig

	// Retry reports whether a session error warrants a restart. Nil retries
	// every error.
	Retry func(err error) bool

	// MaxRestarts bounds restarts. Zero means unlimited.
	MaxRestarts int

	// StableAfter resets the backoff when a session ran at least this long.
	// Zero uses DefaultStableAfter.
	StableAfter time.Duration

	Logger *slog.Logger
}

// Supervisor runs sessions and restarts them with backoff.
type Supervisor struct {
	mu sync.RWMutex

	start   StartFunc
	cfg     Config
	backoff *Backoff
	logger  *slog.Logger

	state    State
	restarts int

	onStateChange func(oldState, newState State)
	onRestarting  func(attempt int, delay time.Duration, cause error)
}

// New creates a supervisor.
func New(start StartFunc, cfg Config) *Supervisor {
	if cfg.StableAfter <= 0 {
		cfg.StableAfter = DefaultStableAfter
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Supervisor{
		start:   start,
		cfg:     cfg,
		backoff: NewBackoff(cfg.Backoff),
		logger:  logger,
	}
}

// State returns the current state.
func (s *Supervisor) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Restarts returns how many sessions were started after the first.
func (s *Supervisor) Restarts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.restarts
}

// OnStateChange sets a callback for state changes.
func (s *Supervisor) OnStateChange(fn func(oldState, newState State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStateChange = fn
}

// OnRestarting sets a callback invoked before each backoff wait.
func (s *Supervisor) OnRestarting(fn func(attempt int, delay time.Duration, cause error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRestarting = fn
}

// Run starts sessions until one ends without a retryable error, the
// restart limit is reached, or ctx is done. A session ending because ctx
// was cancelled returns ctx.Err().
func (s *Supervisor) Run(ctx context.Context) error {
	defer s.setState(StateStopped)

	for attempt := 0; ; attempt++ {
		sess, err := s.start(ctx, attempt)
		if err != nil {
			return fmt.Errorf("start session: %w", err)
		}

		s.setState(StateRunning)
		started := time.Now()
		err = sess.Run(ctx)
		_ = sess.Close()

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err == nil || !s.retryable(err) {
			return err
		}

		s.mu.Lock()
		if s.cfg.MaxRestarts > 0 && s.restarts >= s.cfg.MaxRestarts {
			s.mu.Unlock()
			return fmt.Errorf("%w: %w", ErrTooManyRestarts, err)
		}
		s.restarts++
		restarts := s.restarts
		cb := s.onRestarting
		s.mu.Unlock()

		if time.Since(started) >= s.cfg.StableAfter {
			s.backoff.Reset()
		}
		delay := s.backoff.Next()

		s.setState(StateWaiting)
		s.logger.Warn("session halted, restarting",
			"error", err,
			"restart", restarts,
			"delay", delay)
		if cb != nil {
			cb(restarts, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (s *Supervisor) retryable(err error) bool {
	if s.cfg.Retry == nil {
		return true
	}
	return s.cfg.Retry(err)
}

func (s *Supervisor) setState(state State) {
	s.mu.Lock()
	old := s.state
	if old == state {
		s.mu.Unlock()
		return
	}
	s.state = state
	cb := s.onStateChange
	s.mu.Unlock()

	if cb != nil {
		cb(old, state)
	}
}
