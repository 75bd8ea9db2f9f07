package client

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestKeepAliveTimesOutWithoutPongs(t *testing.T) {
	var pings, timeouts atomic.Int32

	ka := newKeepAlive(KeepAliveConfig{
		PingInterval:   10 * time.Millisecond,
		PongTimeout:    5 * time.Millisecond,
		MaxMissedPongs: 3,
	},
		func(uint32) error { pings.Add(1); return nil },
		func() { timeouts.Add(1) },
	)
	ka.start()
	defer ka.stop()

	deadline := time.Now().Add(2 * time.Second)
	for timeouts.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if n := timeouts.Load(); n != 1 {
		t.Fatalf("onTimeout fired %d times, want 1", n)
	}
	if pings.Load() < 3 {
		t.Errorf("only %d pings sent before timeout", pings.Load())
	}

	// The loop exits after the timeout; no further pings.
	sent := pings.Load()
	time.Sleep(50 * time.Millisecond)
	if pings.Load() != sent {
		t.Error("keep-alive kept pinging after declaring the peer dead")
	}
}

func TestKeepAlivePongsPreventTimeout(t *testing.T) {
	var timeouts atomic.Int32

	var ka *keepAlive
	ka = newKeepAlive(KeepAliveConfig{
		PingInterval:   10 * time.Millisecond,
		PongTimeout:    5 * time.Millisecond,
		MaxMissedPongs: 2,
	},
		func(seq uint32) error {
			// Immediate pong, as a healthy peer would.
			ka.pongReceived(seq)
			return nil
		},
		func() { timeouts.Add(1) },
	)
	ka.start()
	defer ka.stop()

	time.Sleep(100 * time.Millisecond)
	if n := timeouts.Load(); n != 0 {
		t.Fatalf("onTimeout fired %d times despite pongs", n)
	}
}

func TestKeepAliveSendFailureCountsAsMiss(t *testing.T) {
	var timeouts atomic.Int32

	ka := newKeepAlive(KeepAliveConfig{
		PingInterval:   10 * time.Millisecond,
		PongTimeout:    5 * time.Millisecond,
		MaxMissedPongs: 2,
	},
		func(uint32) error { return errors.New("broken pipe") },
		func() { timeouts.Add(1) },
	)
	ka.start()
	defer ka.stop()

	deadline := time.Now().Add(2 * time.Second)
	for timeouts.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if timeouts.Load() != 1 {
		t.Fatal("send failures should eventually trigger the timeout")
	}
}

func TestKeepAliveConfigDefaults(t *testing.T) {
	cfg := KeepAliveConfig{Enabled: true}.withDefaults()
	if cfg.PingInterval != DefaultPingInterval {
		t.Errorf("PingInterval = %v, want %v", cfg.PingInterval, DefaultPingInterval)
	}
	if cfg.PongTimeout != DefaultPongTimeout {
		t.Errorf("PongTimeout = %v, want %v", cfg.PongTimeout, DefaultPongTimeout)
	}
	if cfg.MaxMissedPongs != DefaultMaxMissedPongs {
		t.Errorf("MaxMissedPongs = %v, want %v", cfg.MaxMissedPongs, DefaultMaxMissedPongs)
	}
}

func TestKeepAliveDetectionDelay(t *testing.T) {
	cfg := DefaultKeepAliveConfig()
	want := DefaultPingInterval*DefaultMaxMissedPongs + DefaultPongTimeout
	if got := cfg.DetectionDelay(); got != want {
		t.Errorf("DetectionDelay() = %v, want %v", got, want)
	}
}
