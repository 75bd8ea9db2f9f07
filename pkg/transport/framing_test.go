package transport

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/wcfb/reactor/pkg/log"
)

func TestFramerRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	framer := NewFramer(&buf)

	payload := []byte("hello, frame")
	if err := framer.WriteFrame(payload); err != nil {
		t.Fatalf("WriteFrame() error = %v", err)
	}

	got, err := framer.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("ReadFrame() = %q, want %q", got, payload)
	}
}

func TestWriteFrameRejectsEmpty(t *testing.T) {
	framer := NewFramer(&bytes.Buffer{})
	if err := framer.WriteFrame(nil); !errors.Is(err, ErrMessageEmpty) {
		t.Errorf("WriteFrame(nil) error = %v, want ErrMessageEmpty", err)
	}
}

func TestFrameSizeLimits(t *testing.T) {
	var buf bytes.Buffer
	framer := NewFramerWithMaxSize(&buf, 16)

	big := make([]byte, 17)
	if err := framer.WriteFrame(big); !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("WriteFrame(17 bytes) error = %v, want ErrMessageTooLarge", err)
	}

	// A frame claiming a length beyond the limit must be rejected on read
	writer := NewFrameWriterWithMaxSize(&buf, 1024)
	if err := writer.WriteFrame(big); err != nil {
		t.Fatalf("WriteFrame() error = %v", err)
	}
	if _, err := framer.ReadFrame(); !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("ReadFrame() error = %v, want ErrMessageTooLarge", err)
	}
}

func TestReadFrameTruncated(t *testing.T) {
	var buf bytes.Buffer
	framer := NewFramer(&buf)
	if err := framer.WriteFrame([]byte("truncate me")); err != nil {
		t.Fatalf("WriteFrame() error = %v", err)
	}

	// Cut the frame short
	short := bytes.NewReader(buf.Bytes()[:buf.Len()-3])
	reader := NewFrameReader(short)
	if _, err := reader.ReadFrame(); !errors.Is(err, ErrFrameTruncated) {
		t.Errorf("ReadFrame() error = %v, want ErrFrameTruncated", err)
	}
}

func TestReadFrameEOF(t *testing.T) {
	reader := NewFrameReader(bytes.NewReader(nil))
	if _, err := reader.ReadFrame(); err != io.EOF {
		t.Errorf("ReadFrame() on empty input error = %v, want io.EOF", err)
	}
}

// collectLogger records events for inspection in tests.
type collectLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (c *collectLogger) Log(event log.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *collectLogger) all() []log.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]log.Event(nil), c.events...)
}

func TestFramerLogsFrames(t *testing.T) {
	var buf bytes.Buffer
	framer := NewFramer(&buf)

	logger := &collectLogger{}
	framer.SetLogger(logger, "conn-1")

	payload := []byte("logged")
	if err := framer.WriteFrame(payload); err != nil {
		t.Fatalf("WriteFrame() error = %v", err)
	}
	if _, err := framer.ReadFrame(); err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}

	events := logger.all()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}

	out, in := events[0], events[1]
	if out.Direction != log.DirectionOut || in.Direction != log.DirectionIn {
		t.Errorf("directions = %v/%v, want OUT/IN", out.Direction, in.Direction)
	}
	for _, e := range events {
		if e.ConnectionID != "conn-1" {
			t.Errorf("ConnectionID = %q, want conn-1", e.ConnectionID)
		}
		if e.Frame == nil {
			t.Fatal("frame payload missing")
		}
		if e.Frame.Size != FrameSize(len(payload)) {
			t.Errorf("frame size = %d, want %d", e.Frame.Size, FrameSize(len(payload)))
		}
		if e.Frame.Truncated {
			t.Error("small frame should not be truncated in log")
		}
	}
}

func TestFrameLogTruncation(t *testing.T) {
	var buf bytes.Buffer
	framer := NewFramerWithMaxSize(&buf, MaxLogFrameDataSize*2)

	logger := &collectLogger{}
	framer.SetLogger(logger, "conn-2")

	big := make([]byte, MaxLogFrameDataSize+1)
	if err := framer.WriteFrame(big); err != nil {
		t.Fatalf("WriteFrame() error = %v", err)
	}

	events := logger.all()
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if !events[0].Frame.Truncated {
		t.Error("oversized frame should be truncated in log event")
	}
	if len(events[0].Frame.Data) != MaxLogFrameDataSize {
		t.Errorf("logged data length = %d, want %d", len(events[0].Frame.Data), MaxLogFrameDataSize)
	}
}
