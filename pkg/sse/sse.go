// Package sse streams Server-Sent Events to a client.
//
//	stream, err := sse.New(w, r)
//	if err != nil { return }
//	defer stream.Close()
//	for snap := range updates {
//	    if err := stream.Send("cart", snap); err != nil { return }
//	}
package sse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

// ErrUnsupported is returned when the response cannot be flushed.
var ErrUnsupported = errors.New("sse: streaming not supported")

// Stream is an open event stream to one client.
type Stream struct {
	w      http.ResponseWriter
	rc     *http.ResponseController
	ctx    context.Context
	cancel context.CancelFunc
	nextID atomic.Uint64
}

// New sets the event-stream headers, lifts the server write deadline and
// sends the headers. The stream ends when the request context is done or
// the server starts draining (see WithDrain).
func New(w http.ResponseWriter, r *http.Request) (*Stream, error) {
	rc := http.NewResponseController(w)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no") // disable nginx buffering

	// Not every writer supports deadlines; a stream cut by WriteTimeout is
	// still better than none.
	_ = rc.SetWriteDeadline(time.Time{})

	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}

	ctx, cancel := context.WithCancel(r.Context())
	if drain := drainFrom(r.Context()); drain != nil {
		go func() {
			select {
			case <-drain:
				cancel()
			case <-ctx.Done():
			}
		}()
	}
	return &Stream{w: w, rc: rc, ctx: ctx, cancel: cancel}, nil
}

// Close ends the stream. Handlers should defer it.
func (s *Stream) Close() { s.cancel() }

// Done is closed once the client is gone or the server is draining.
func (s *Stream) Done() <-chan struct{} { return s.ctx.Done() }

// Send writes a named event with a JSON payload and a sequential id.
func (s *Stream) Send(event string, data any) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("sse: marshal: %w", err)
	}
	id := strconv.FormatUint(s.nextID.Add(1), 10)
	if _, err := fmt.Fprintf(s.w, "id: %s\nevent: %s\ndata: %s\n\n", id, event, payload); err != nil {
		return err
	}
	return s.rc.Flush()
}

// Comment writes an SSE comment, used as a keepalive.
func (s *Stream) Comment(msg string) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, ": %s\n\n", msg); err != nil {
		return err
	}
	return s.rc.Flush()
}

type drainKey struct{}

// WithDrain marks ctx so streams opened under it end when drain is closed.
// Use it as an http.Server BaseContext so long-lived streams let a graceful
// shutdown finish.
func WithDrain(ctx context.Context, drain <-chan struct{}) context.Context {
	return context.WithValue(ctx, drainKey{}, drain)
}

func drainFrom(ctx context.Context) <-chan struct{} {
	ch, _ := ctx.Value(drainKey{}).(<-chan struct{})
	return ch
}
