package realtime

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/wanfrev/machinehub-agent/internal/access"
	"github.com/wanfrev/machinehub-agent/internal/domain"
	"github.com/wanfrev/machinehub-agent/internal/notify"
)

const textMessage = 1

// Conn is the slice of a websocket connection the hub needs. Both the fiber
// websocket conn and test fakes satisfy it.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type hubClient struct {
	id       string
	identity domain.Identity
	conn     Conn
	send     chan []byte
}

// outbound pairs an encoded frame with the machine it concerns, so delivery
// can honor each client's assignment scope.
type outbound struct {
	machineID string
	data      []byte
}

// Hub fans relay messages out to connected dashboard clients. It is the only
// channel by which worker and orchestrator state reaches the UI. Messages
// bound to a machine are withheld from clients whose identity may not see it.
type Hub struct {
	mu         sync.RWMutex
	clients    map[string]*hubClient
	register   chan *hubClient
	unregister chan *hubClient
	broadcast  chan outbound
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*hubClient),
		register:   make(chan *hubClient),
		unregister: make(chan *hubClient),
		broadcast:  make(chan outbound, 64),
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				close(client.send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			log.Printf("relay hub: client %s connected, total %d", client.id, h.ClientCount())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				close(client.send)
				delete(h.clients, client.id)
			}
			h.mu.Unlock()
			log.Printf("relay hub: client %s disconnected, total %d", client.id, h.ClientCount())

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) deliver(out outbound) {
	h.mu.RLock()
	stalled := make([]*hubClient, 0)
	for _, client := range h.clients {
		if out.machineID != "" &&
			!access.CanAccessMachine(client.identity.Role, client.identity.AssignedMachineIDs, out.machineID) {
			continue
		}
		select {
		case client.send <- out.data:
		default:
			// Send buffer full: the client is not draining, drop it.
			stalled = append(stalled, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range stalled {
		go func(c *hubClient) { h.unregister <- c }(client)
	}
}

// Broadcast sends a relay message to the connected clients allowed to see it.
// Marshal failures are logged and swallowed: the relay never propagates errors
// upward.
func (h *Hub) Broadcast(msg domain.RelayMessage) {
	encoded, err := json.Marshal(msg)
	if err != nil {
		log.Printf("relay hub: cannot encode %s message: %v", msg.Type, err)
		return
	}
	h.broadcast <- outbound{machineID: msg.MachineID, data: encoded}
}

// Show implements the worker's render primitive: the platform notification is
// delivered to clients, which hand it to the OS notification surface.
func (h *Hub) Show(_ context.Context, r notify.Rendered) error {
	h.Broadcast(domain.RelayMessage{
		Type:      domain.RelaySystemNotification,
		MachineID: r.MachineID,
		Payload:   r,
	})
	return nil
}

// Toast, Sound and Badge relay the foreground store's UI side effects to
// connected clients. Together they satisfy the store's listener contract.
func (h *Hub) Toast(title, body string, kind domain.NotificationType, machineID string) {
	h.Broadcast(domain.RelayMessage{
		Type:      domain.RelayToast,
		MachineID: machineID,
		Payload:   domain.ToastPayload{Title: title, Body: body, Kind: kind},
	})
}

func (h *Hub) Sound(kind domain.NotificationType, machineID string) {
	h.Broadcast(domain.RelayMessage{Type: domain.RelaySound, MachineID: machineID, Payload: kind})
}

func (h *Hub) Badge(unread int) {
	h.Broadcast(domain.RelayMessage{
		Type:    domain.RelayBadge,
		Payload: domain.BadgePayload{Unread: unread},
	})
}

// Attach registers a connection under the identity its token carried and
// starts its pumps. It returns when the connection is gone.
func (h *Hub) Attach(conn Conn, identity domain.Identity) {
	client := &hubClient{
		id:       uuid.New().String(),
		identity: identity,
		conn:     conn,
		send:     make(chan []byte, 64),
	}
	h.register <- client

	go client.writePump()
	client.readPump(h)
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *hubClient) writePump() {
	for msg := range c.send {
		if err := c.conn.WriteMessage(textMessage, msg); err != nil {
			return
		}
	}
}

// readPump drains inbound frames only to detect the close; dashboard clients
// talk to the agent over its HTTP API, not the socket.
func (c *hubClient) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		_ = c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
