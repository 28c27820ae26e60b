package metering

import (
	"context"
	"encoding/json"
	"os"
	"sync"
)

// FileSink appends each flushed batch as newline-delimited JSON, the local
// development mode described for the metering sink.
type FileSink struct {
	mu   sync.Mutex
	path string
}

// NewFileSink returns a sink for path. The file is not touched here: each
// Write opens it for append, creating it if necessary.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

// Write appends events to the sink's file, one JSON object per line.
func (s *FileSink) Write(_ context.Context, events []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, e := range events {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	return nil
}

// MemorySink accumulates every flushed batch in-process, used by tests and
// as a building block for a batch-insert production sink.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

// NewMemorySink constructs an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Write appends events to the sink's buffer.
func (s *MemorySink) Write(_ context.Context, events []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

// Events returns a copy of everything written so far.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}
