package client

import (
	"sync"
	"sync/atomic"
	"time"
)

// Keep-alive defaults.
const (
	// DefaultPingInterval is the default interval between pings.
	DefaultPingInterval = 30 * time.Second

	// DefaultPongTimeout is the default timeout waiting for a pong.
	DefaultPongTimeout = 5 * time.Second

	// DefaultMaxMissedPongs is the number of missed pongs before the
	// channel is considered dead.
	DefaultMaxMissedPongs = 3
)

// KeepAliveConfig configures per-channel liveness monitoring.
// Keep-alive is off unless Enabled is set.
type KeepAliveConfig struct {
	Enabled        bool          `yaml:"enabled"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	PongTimeout    time.Duration `yaml:"pong_timeout"`
	MaxMissedPongs int           `yaml:"max_missed_pongs"`
}

// DefaultKeepAliveConfig returns an enabled configuration with default
// timings.
func DefaultKeepAliveConfig() KeepAliveConfig {
	return KeepAliveConfig{
		Enabled:        true,
		PingInterval:   DefaultPingInterval,
		PongTimeout:    DefaultPongTimeout,
		MaxMissedPongs: DefaultMaxMissedPongs,
	}
}

// DetectionDelay is the worst-case time to detect a dead peer:
// PingInterval * MaxMissedPongs + PongTimeout.
func (c KeepAliveConfig) DetectionDelay() time.Duration {
	return c.PingInterval*time.Duration(c.MaxMissedPongs) + c.PongTimeout
}

func (c KeepAliveConfig) withDefaults() KeepAliveConfig {
	if c.PingInterval == 0 {
		c.PingInterval = DefaultPingInterval
	}
	if c.PongTimeout == 0 {
		c.PongTimeout = DefaultPongTimeout
	}
	if c.MaxMissedPongs == 0 {
		c.MaxMissedPongs = DefaultMaxMissedPongs
	}
	return c
}

// keepAlive pings the peer at a fixed interval and declares the channel
// dead after too many missed pongs. The channel's read loop feeds pongs
// in via pongReceived; onTimeout fires at most once, from the
// monitoring goroutine.
type keepAlive struct {
	config KeepAliveConfig

	sendPing  func(seq uint32) error
	onTimeout func()

	sequence atomic.Uint32

	mu           sync.Mutex
	running      bool
	missedPongs  int
	lastPingTime time.Time
	pendingSeq   uint32
	hasPending   bool

	stopCh chan struct{}
	pongCh chan uint32
}

func newKeepAlive(config KeepAliveConfig, sendPing func(seq uint32) error, onTimeout func()) *keepAlive {
	return &keepAlive{
		config:    config.withDefaults(),
		sendPing:  sendPing,
		onTimeout: onTimeout,
		stopCh:    make(chan struct{}),
		pongCh:    make(chan uint32, 1),
	}
}

func (ka *keepAlive) start() {
	ka.mu.Lock()
	if ka.running {
		ka.mu.Unlock()
		return
	}
	ka.running = true
	ka.mu.Unlock()

	go ka.loop()
}

func (ka *keepAlive) stop() {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	if !ka.running {
		return
	}
	ka.running = false
	close(ka.stopCh)
}

// pongReceived records a pong from the peer.
func (ka *keepAlive) pongReceived(seq uint32) {
	select {
	case ka.pongCh <- seq:
	default:
	}
}

func (ka *keepAlive) loop() {
	ticker := time.NewTicker(ka.config.PingInterval)
	defer ticker.Stop()

	ka.ping()

	for {
		select {
		case <-ka.stopCh:
			return
		case <-ticker.C:
			if !ka.tick() {
				return
			}
		case seq := <-ka.pongCh:
			ka.handlePong(seq)
		}
	}
}

func (ka *keepAlive) ping() {
	seq := ka.sequence.Add(1)

	ka.mu.Lock()
	ka.lastPingTime = time.Now()
	ka.pendingSeq = seq
	ka.hasPending = true
	ka.mu.Unlock()

	if err := ka.sendPing(seq); err != nil {
		// Connection is likely dead; the missed pong will count.
		ka.mu.Lock()
		ka.hasPending = false
		ka.missedPongs++
		ka.mu.Unlock()
	}
}

// tick handles a ping interval. It returns false once the miss
// threshold is reached and onTimeout has fired.
func (ka *keepAlive) tick() bool {
	ka.mu.Lock()
	if ka.hasPending && time.Since(ka.lastPingTime) >= ka.config.PongTimeout {
		ka.missedPongs++
		ka.hasPending = false
	}
	dead := ka.missedPongs >= ka.config.MaxMissedPongs
	ka.mu.Unlock()

	if dead {
		if ka.onTimeout != nil {
			ka.onTimeout()
		}
		return false
	}

	ka.ping()
	return true
}

func (ka *keepAlive) handlePong(seq uint32) {
	ka.mu.Lock()
	defer ka.mu.Unlock()

	// A pong with a stale sequence may be a delayed response to an
	// earlier ping; ignore it.
	if ka.hasPending && seq == ka.pendingSeq {
		ka.hasPending = false
		ka.missedPongs = 0
	}
}
