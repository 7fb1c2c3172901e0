// Package sse writes server-sent event streams: one JSON object per
// "data:" line and a comment heartbeat while the producer is quiet.
package sse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/platform/logger"
)

var ErrStreamingUnsupported = errors.New("sse: response writer cannot flush")

const DefaultHeartbeat = 15 * time.Second

// Stream decouples producers from the connection. Producers call Send and
// finally Close; Serve owns the writer and is the only goroutine writing.
type Stream struct {
	w         http.ResponseWriter
	flusher   http.Flusher
	log       *logger.Logger
	heartbeat time.Duration

	outbound chan any
}

// Open sets the event-stream headers and flushes them.
func Open(w http.ResponseWriter, heartbeat time.Duration, log *logger.Logger) (*Stream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	if log == nil {
		log = logger.Nop()
	}
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &Stream{
		w:         w,
		flusher:   flusher,
		log:       log.With("component", "SSEStream"),
		heartbeat: heartbeat,
		outbound:  make(chan any, 16),
	}, nil
}

// Send queues v, blocking while the buffer is full. It reports false when
// ctx ended first.
func (s *Stream) Send(ctx context.Context, v any) bool {
	select {
	case s.outbound <- v:
		return true
	case <-ctx.Done():
		return false
	}
}

// Close tells Serve no more events follow. Call it once, after the last Send.
func (s *Stream) Close() { close(s.outbound) }

// Serve writes queued events and heartbeats until Close has been called
// and the queue is drained, or ctx ends.
func (s *Stream) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := fmt.Fprint(s.w, ": ping\n\n"); err != nil {
				return err
			}
			s.flusher.Flush()
		case v, ok := <-s.outbound:
			if !ok {
				return nil
			}
			if err := s.write(v); err != nil {
				return err
			}
		}
	}
}

func (s *Stream) write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Warn("failed to marshal event", "error", err.Error())
		return nil
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", b); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
