// Package breaker implements a rolling-window circuit breaker per upstream,
// tripping when the error rate over a recent window crosses a threshold and
// permitting a single trial request once its cooldown elapses.
package breaker

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State is the breaker's current posture.
type State int64

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned by Execute when the breaker is open and rejecting calls.
var ErrOpen = errors.New("circuit breaker is open")

// Config tunes one breaker instance.
type Config struct {
	ErrorThresholdPercentage float64       `yaml:"error_threshold_percentage"` // e.g. 50.0
	VolumeThreshold          int           `yaml:"volume_threshold"`           // min requests in window before tripping
	RollingCountTimeout      time.Duration `yaml:"rolling_count_timeout"`      // window width
	ResetTimeout             time.Duration `yaml:"reset_timeout"`              // cooldown before half-open trial
}

// OnStateChange is invoked whenever the breaker transitions, for metrics
// and trace wiring.
type OnStateChange func(name string, from, to State)

// Breaker is a single upstream's circuit breaker.
type Breaker struct {
	name   string
	config Config
	logger *logrus.Logger
	onChange OnStateChange

	mu            sync.Mutex
	state         State
	windowStart   time.Time
	successes     int
	failures      int
	openedAt      time.Time
	halfOpenTrial bool
}

// New builds a Breaker named for logging/metrics labels.
func New(name string, config Config, logger *logrus.Logger, onChange OnStateChange) *Breaker {
	if config.RollingCountTimeout == 0 {
		config.RollingCountTimeout = 10 * time.Second
	}
	if config.ResetTimeout == 0 {
		config.ResetTimeout = 30 * time.Second
	}
	if config.ErrorThresholdPercentage == 0 {
		config.ErrorThresholdPercentage = 50
	}
	if config.VolumeThreshold == 0 {
		config.VolumeThreshold = 10
	}

	return &Breaker{
		name:        name,
		config:      config,
		logger:      logger,
		onChange:    onChange,
		state:       StateClosed,
		windowStart: time.Now(),
	}
}

// State reports the breaker's current state, rolling the window or
// transitioning out of a timed-out open state as a side effect.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	b.rollLocked(now)
	if b.state == StateOpen && now.Sub(b.openedAt) >= b.config.ResetTimeout {
		b.transitionLocked(StateHalfOpen, now)
	}
	return b.state
}

// Allow reports whether a call may proceed without executing anything.
// Callers that just want a pre-flight check (e.g. routing candidate
// filtering) use this instead of Execute.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.allowLocked(time.Now())
}

func (b *Breaker) allowLocked(now time.Time) bool {
	b.rollLocked(now)

	switch b.state {
	case StateOpen:
		if now.Sub(b.openedAt) >= b.config.ResetTimeout {
			b.transitionLocked(StateHalfOpen, now)
			b.halfOpenTrial = true
			return true
		}
		return false
	case StateHalfOpen:
		if b.halfOpenTrial {
			return false // a trial is already in flight
		}
		b.halfOpenTrial = true
		return true
	default:
		return true
	}
}

// Execute runs fn only if the breaker currently permits it, and records the
// outcome. Returns ErrOpen without calling fn when the breaker rejects.
func (b *Breaker) Execute(fn func() error) error {
	b.mu.Lock()
	if !b.allowLocked(time.Now()) {
		state := b.state
		b.mu.Unlock()
		b.logger.WithFields(logrus.Fields{"upstream": b.name, "state": state.String()}).
			Debug("circuit breaker rejected call")
		return ErrOpen
	}
	b.mu.Unlock()

	err := fn()
	b.RecordResult(err == nil)
	return err
}

// RecordResult lets callers that manage their own control flow (e.g. the
// fallback executor) report an outcome observed outside Execute.
func (b *Breaker) RecordResult(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.rollLocked(now)

	switch b.state {
	case StateHalfOpen:
		b.halfOpenTrial = false
		if success {
			b.transitionLocked(StateClosed, now)
		} else {
			b.transitionLocked(StateOpen, now)
		}
		return
	default:
		if success {
			b.successes++
		} else {
			b.failures++
		}
		b.evaluateLocked(now)
	}
}

// evaluateLocked trips the breaker once volume and error-rate thresholds
// are both exceeded. b.mu must be held.
func (b *Breaker) evaluateLocked(now time.Time) {
	total := b.successes + b.failures
	if total < b.config.VolumeThreshold {
		return
	}
	errorRate := float64(b.failures) / float64(total) * 100
	if errorRate >= b.config.ErrorThresholdPercentage {
		b.transitionLocked(StateOpen, now)
	}
}

// rollLocked resets the rolling window's counters once it has expired.
// b.mu must be held.
func (b *Breaker) rollLocked(now time.Time) {
	if b.state != StateClosed {
		return
	}
	if now.Sub(b.windowStart) >= b.config.RollingCountTimeout {
		b.windowStart = now
		b.successes = 0
		b.failures = 0
	}
}

func (b *Breaker) transitionLocked(to State, now time.Time) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	switch to {
	case StateOpen:
		b.openedAt = now
	case StateClosed:
		b.windowStart = now
		b.successes = 0
		b.failures = 0
	case StateHalfOpen:
	}

	b.logger.WithFields(logrus.Fields{
		"upstream": b.name,
		"from":     from.String(),
		"to":       to.String(),
	}).Info("circuit breaker state changed")

	if b.onChange != nil {
		b.onChange(b.name, from, to)
	}
}

// Registry owns one Breaker per upstream name.
type Registry struct {
	mu       sync.Mutex
	config   Config
	logger   *logrus.Logger
	onChange OnStateChange
	breakers map[string]*Breaker
}

// NewRegistry builds a Registry applying config to every breaker it creates.
func NewRegistry(config Config, logger *logrus.Logger, onChange OnStateChange) *Registry {
	return &Registry{
		config:   config,
		logger:   logger,
		onChange: onChange,
		breakers: make(map[string]*Breaker),
	}
}

// Get returns the named breaker, creating it on first use.
func (r *Registry) Get(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.breakers[name]
	if !ok {
		b = New(name, r.config, r.logger, r.onChange)
		r.breakers[name] = b
	}
	return b
}

// States returns a snapshot of every breaker's current state, for the
// inspector and health endpoints.
func (r *Registry) States() map[string]State {
	r.mu.Lock()
	names := make([]string, 0, len(r.breakers))
	breakers := make([]*Breaker, 0, len(r.breakers))
	for name, b := range r.breakers {
		names = append(names, name)
		breakers = append(breakers, b)
	}
	r.mu.Unlock()

	out := make(map[string]State, len(names))
	for i, name := range names {
		out[name] = breakers[i].State()
	}
	return out
}
