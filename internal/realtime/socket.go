// Package realtime owns both live-event surfaces: the socket client that
// follows the fleet backend, and the hub that relays state to connected
// dashboard clients.
package realtime

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wanfrev/machinehub-agent/internal/event"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// frame is one live-channel message: a named event with an opaque payload.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Socket is the auto-reconnecting client for the backend's live channel. It
// emits raw events in arrival order on a single channel; normalization happens
// downstream.
type Socket struct {
	url    string
	header http.Header
	dialer *websocket.Dialer
	events chan event.RawEvent
}

func NewSocket(wsURL, token string) *Socket {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	return &Socket{
		url:    wsURL,
		header: header,
		dialer: websocket.DefaultDialer,
		events: make(chan event.RawEvent, 256),
	}
}

func (s *Socket) Events() <-chan event.RawEvent {
	return s.events
}

// Run connects and reads until ctx is cancelled, reconnecting with capped
// exponential backoff. It closes the events channel on exit.
func (s *Socket) Run(ctx context.Context) {
	defer close(s.events)

	backoff := initialBackoff
	for {
		conn, _, err := s.dialer.DialContext(ctx, s.url, s.header)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("live channel: dial failed, retrying in %s: %v", backoff, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff *= 2; backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		backoff = initialBackoff
		s.readLoop(ctx, conn)
		if ctx.Err() != nil {
			return
		}
	}
}

func (s *Socket) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	// The watcher is tied to this connection: it unblocks the read on
	// cancellation and exits when the loop returns, so reconnects do not
	// accumulate parked goroutines.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("live channel: read error, reconnecting: %v", err)
			}
			return
		}

		var f frame
		if err := json.Unmarshal(msg, &f); err != nil {
			log.Printf("live channel: dropping malformed frame: %v", err)
			continue
		}

		var raw event.RawEvent
		if len(f.Data) > 0 {
			if err := json.Unmarshal(f.Data, &raw); err != nil {
				log.Printf("live channel: dropping malformed %q payload: %v", f.Event, err)
				continue
			}
		}
		if raw.Type == "" && raw.Event == "" && raw.EventType == "" {
			raw.Type = f.Event
		}

		select {
		case s.events <- raw:
		case <-ctx.Done():
			return
		}
	}
}
