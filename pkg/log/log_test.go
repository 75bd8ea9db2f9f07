package log

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestEncodeDecodeEvent(t *testing.T) {
	event := Event{
		Timestamp:    time.Now().UTC(),
		ConnectionID: "c0ffee",
		SessionID:    "sess-1",
		Layer:        LayerSession,
		Category:     CategoryAttempt,
		RemoteAddr:   "127.0.0.1:9000",
		Attempt: &AttemptEvent{
			Attempt:  3,
			Endpoint: "127.0.0.1:9001",
			Delay:    250 * time.Millisecond,
		},
	}

	data, err := EncodeEvent(event)
	if err != nil {
		t.Fatalf("EncodeEvent() error = %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent() error = %v", err)
	}

	if decoded.ConnectionID != event.ConnectionID {
		t.Errorf("ConnectionID = %q, want %q", decoded.ConnectionID, event.ConnectionID)
	}
	if decoded.Attempt == nil {
		t.Fatal("Attempt payload lost in round-trip")
	}
	if decoded.Attempt.Attempt != 3 {
		t.Errorf("Attempt = %d, want 3", decoded.Attempt.Attempt)
	}
	if decoded.Attempt.Delay != 250*time.Millisecond {
		t.Errorf("Delay = %v, want 250ms", decoded.Attempt.Delay)
	}
}

func TestSlogAdapter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	adapter := NewSlogAdapter(logger)

	adapter.Log(Event{
		Timestamp:    time.Now(),
		ConnectionID: "abc",
		Layer:        LayerTransport,
		Category:     CategoryState,
		StateChange: &StateChangeEvent{
			Entity:   StateEntityConnection,
			OldState: "CONNECTING",
			NewState: "CONNECTED",
		},
	})

	out := buf.String()
	for _, want := range []string{"conn_id=abc", "old_state=CONNECTING", "new_state=CONNECTED"} {
		if !strings.Contains(out, want) {
			t.Errorf("slog output missing %q:\n%s", want, out)
		}
	}
}

func TestFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.cbl")

	fl, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}

	fl.Log(Event{
		Timestamp: time.Now(),
		Layer:     LayerSession,
		Category:  CategoryError,
		Error: &ErrorEventData{
			Layer:   LayerTransport,
			Message: "dial failed",
			Context: "connect",
		},
	})

	if err := fl.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Log after close must be a no-op
	fl.Log(Event{Timestamp: time.Now()})
	if err := fl.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer f.Close()

	dec := NewDecoder(f)
	var event Event
	if err := dec.Decode(&event); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if event.Error == nil || event.Error.Message != "dial failed" {
		t.Errorf("decoded event = %+v, want error payload", event)
	}

	// Only one event should be present
	var extra Event
	if err := dec.Decode(&extra); err == nil {
		t.Error("expected exactly one event in file, got more")
	}
}

// recordingLogger collects events for assertions.
type recordingLogger struct {
	events []Event
}

func (r *recordingLogger) Log(event Event) {
	r.events = append(r.events, event)
}

func TestMultiLoggerFansOut(t *testing.T) {
	first := &recordingLogger{}
	second := &recordingLogger{}
	ml := NewMultiLogger(first, nil, second)

	event := Event{
		Timestamp:    time.Now(),
		ConnectionID: "fan-out",
		Layer:        LayerTransport,
		Category:     CategoryState,
		StateChange: &StateChangeEvent{
			Entity:   StateEntityConnection,
			NewState: "OPEN",
		},
	}
	ml.Log(event)
	ml.Log(event)

	for i, rl := range []*recordingLogger{first, second} {
		if len(rl.events) != 2 {
			t.Fatalf("logger %d received %d events, want 2", i, len(rl.events))
		}
		if rl.events[0].ConnectionID != "fan-out" {
			t.Errorf("logger %d event = %+v, want ConnectionID fan-out", i, rl.events[0])
		}
	}
}

func TestEnumStrings(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{DirectionIn.String(), "IN"},
		{DirectionOut.String(), "OUT"},
		{LayerTransport.String(), "TRANSPORT"},
		{LayerSession.String(), "SESSION"},
		{CategoryFrame.String(), "FRAME"},
		{CategoryState.String(), "STATE"},
		{CategoryAttempt.String(), "ATTEMPT"},
		{CategoryError.String(), "ERROR"},
		{StateEntityConnection.String(), "CONNECTION"},
		{StateEntitySession.String(), "SESSION"},
		{Direction(9).String(), "UNKNOWN"},
		{Layer(9).String(), "UNKNOWN"},
		{Category(9).String(), "UNKNOWN"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("String() = %q, want %q", tt.got, tt.want)
		}
	}
}
