package reconnect

import (
	"math/rand"
	"sync"
	"time"
)

// Backoff defaults.
const (
	// InitialBackoff is the initial reconnection delay.
	InitialBackoff = 1 * time.Second

	// MaxBackoff is the maximum reconnection delay.
	MaxBackoff = 60 * time.Second

	// BackoffMultiplier is the factor by which backoff increases.
	BackoffMultiplier = 2.0

	// JitterFactor is the maximum jitter as a fraction of base delay.
	JitterFactor = 0.25
)

// BackoffConfig allows customizing backoff parameters.
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
}

// Backoff calculates exponential backoff delays with jitter.
// Delays are a pure function of the attempt number, so a Backoff can be
// shared by policies without carrying per-session state.
type Backoff struct {
	initial    time.Duration
	max        time.Duration
	multiplier float64
	jitter     float64

	// Random source for jitter
	mu  sync.Mutex
	rng *rand.Rand
}

// NewBackoff creates a backoff calculator with default settings.
func NewBackoff() *Backoff {
	return NewBackoffWithConfig(BackoffConfig{})
}

// NewBackoffWithConfig creates a backoff calculator with custom settings.
func NewBackoffWithConfig(cfg BackoffConfig) *Backoff {
	if cfg.Initial <= 0 {
		cfg.Initial = InitialBackoff
	}
	if cfg.Max <= 0 {
		cfg.Max = MaxBackoff
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = BackoffMultiplier
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	}

	return &Backoff{
		initial:    cfg.Initial,
		max:        cfg.Max,
		multiplier: cfg.Multiplier,
		jitter:     cfg.Jitter,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Delay returns the jittered delay for the given attempt number.
// Attempt numbers start at 1; values below 1 are treated as 1.
func (b *Backoff) Delay(attempt int) time.Duration {
	return b.addJitter(b.Base(attempt))
}

// Base returns the delay for the given attempt number without jitter.
func (b *Backoff) Base(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := float64(b.initial)
	limit := float64(b.max)
	for i := 1; i < attempt; i++ {
		delay *= b.multiplier
		if delay >= limit {
			return b.max
		}
	}
	return time.Duration(delay)
}

// addJitter adds random jitter to a delay.
func (b *Backoff) addJitter(d time.Duration) time.Duration {
	if b.jitter <= 0 {
		return d
	}
	b.mu.Lock()
	f := b.rng.Float64()
	b.mu.Unlock()
	return d + time.Duration(float64(d)*b.jitter*f)
}

// Sequence returns the base delays (without jitter) for attempts 1..n.
func (b *Backoff) Sequence(n int) []time.Duration {
	seq := make([]time.Duration, 0, n)
	for i := 1; i <= n; i++ {
		seq = append(seq, b.Base(i))
	}
	return seq
}
