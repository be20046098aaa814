// Package worker is the background notifier: it turns push webhook deliveries
// into rendered platform notifications and relays them toward the dashboard
// runtime. It never touches dashboard state directly.
package worker

import (
	"context"
	"log"
	"time"

	"github.com/wanfrev/machinehub-agent/internal/domain"
	"github.com/wanfrev/machinehub-agent/internal/event"
	"github.com/wanfrev/machinehub-agent/internal/notify"
)

// LatestEventFetcher is the single bounded fallback the worker may use when a
// push arrives without a usable payload.
type LatestEventFetcher interface {
	LatestEvent(ctx context.Context) (*event.RawEvent, error)
}

// Relay broadcasts worker messages to dashboard clients.
type Relay interface {
	Broadcast(msg domain.RelayMessage)
}

// Renderer is the platform render primitive.
type Renderer interface {
	Show(ctx context.Context, r notify.Rendered) error
}

type Worker struct {
	backend      LatestEventFetcher
	relay        Relay
	renderer     Renderer
	foreground   chan<- domain.Notification
	fetchTimeout time.Duration
	now          func() time.Time
}

// New wires the worker. foreground may be nil when no dashboard runtime is
// attached; relayed records are then only broadcast to clients.
func New(backend LatestEventFetcher, relay Relay, renderer Renderer, foreground chan<- domain.Notification) *Worker {
	return &Worker{
		backend:      backend,
		relay:        relay,
		renderer:     renderer,
		foreground:   foreground,
		fetchTimeout: 5 * time.Second,
		now:          time.Now,
	}
}

// HandlePush runs the per-delivery state machine:
// Received → Parsing → {Parsed | FallbackFetch} → Rendering → Done.
// Every failure path degrades to "no notification shown"; nothing here
// surfaces an error to the caller.
func (w *Worker) HandlePush(ctx context.Context, body []byte) {
	payload, err := event.ParsePush(body)
	if err != nil {
		log.Printf("push worker: unparseable payload, using fallback: %v", err)
		payload = nil
	}

	// Parsed: the payload already carries display text.
	if payload != nil && (payload.Title != "" || payload.Body != "") {
		var record domain.Notification
		var ok bool
		if payload.Data != nil {
			record, ok = event.Normalize(*payload.Data, w.now())
		}
		if ok {
			w.relayRecord(record)
		}
		w.show(ctx, notify.Decorate(payload.Title, payload.Body, record))
		return
	}

	// Parsed: structured data without display text renders from the record.
	if payload != nil && payload.Data != nil {
		w.renderRecord(ctx, *payload.Data)
		return
	}

	// FallbackFetch: one bounded request for the most recent event. On
	// failure or empty result the delivery terminates silently.
	fetchCtx, cancel := context.WithTimeout(ctx, w.fetchTimeout)
	defer cancel()

	latest, err := w.backend.LatestEvent(fetchCtx)
	if err != nil {
		log.Printf("push worker: fallback fetch failed: %v", err)
		return
	}
	if latest == nil {
		return
	}
	w.renderRecord(ctx, *latest)
}

func (w *Worker) renderRecord(ctx context.Context, raw event.RawEvent) {
	record, ok := event.Normalize(raw, w.now())
	if !ok {
		return
	}

	rendered, ok := notify.Render(record)
	if !ok {
		// Unknown event type: suppressed, never shown generically.
		return
	}

	w.relayRecord(record)
	w.show(ctx, rendered)
}

// relayRecord broadcasts the canonical record to open dashboard clients and
// hands it to the dashboard runtime. This is the only path by which push
// events reach foreground state.
func (w *Worker) relayRecord(record domain.Notification) {
	if record.Type == domain.NotifCoinInserted {
		w.relay.Broadcast(domain.RelayMessage{
			Type:      domain.RelayCoinNotification,
			MachineID: record.MachineID,
			Payload:   record,
		})
	}
	w.relay.Broadcast(domain.RelayMessage{
		Type:      domain.RelayEventNotification,
		MachineID: record.MachineID,
		Payload:   record,
	})

	if w.foreground == nil {
		return
	}
	select {
	case w.foreground <- record:
	default:
		log.Printf("push worker: foreground queue full, dropping relay for machine %s", record.MachineID)
	}
}

func (w *Worker) show(ctx context.Context, r notify.Rendered) {
	if err := w.renderer.Show(ctx, r); err != nil {
		log.Printf("push worker: render failed: %v", err)
	}
}
