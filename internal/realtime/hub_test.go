package realtime_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanfrev/machinehub-agent/internal/domain"
	"github.com/wanfrev/machinehub-agent/internal/realtime"
)

// fakeConn blocks reads until closed and records written frames.
type fakeConn struct {
	written chan []byte
	closed  chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		written: make(chan []byte, 16),
		closed:  make(chan struct{}),
	}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	<-f.closed
	return 0, nil, context.Canceled
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	f.written <- data
	return nil
}

func (f *fakeConn) Close() error {
	select {
	case <-f.closed:
	default:
		close(f.closed)
	}
	return nil
}

func adminIdentity() domain.Identity {
	return domain.Identity{Name: "Admin", Role: domain.RoleAdmin}
}

func TestHub_BroadcastReachesEveryClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := realtime.NewHub()
	go hub.Run(ctx)

	first := newFakeConn()
	second := newFakeConn()
	go hub.Attach(first, adminIdentity())
	go hub.Attach(second, adminIdentity())

	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	hub.Broadcast(domain.RelayMessage{
		Type:      domain.RelayEventNotification,
		MachineID: "5",
		Payload:   domain.Notification{Type: domain.NotifCoinInserted, MachineID: "5", Amount: 1},
	})

	for _, conn := range []*fakeConn{first, second} {
		select {
		case raw := <-conn.written:
			var msg struct {
				Type    domain.RelayMessageType `json:"type"`
				Payload domain.Notification     `json:"payload"`
			}
			require.NoError(t, json.Unmarshal(raw, &msg))
			assert.Equal(t, domain.RelayEventNotification, msg.Type)
			assert.Equal(t, "5", msg.Payload.MachineID)
		case <-time.After(time.Second):
			t.Fatal("client did not receive broadcast")
		}
	}
}

func TestHub_MachineBoundMessagesHonorAssignment(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := realtime.NewHub()
	go hub.Run(ctx)

	operatorConn := newFakeConn()
	adminConn := newFakeConn()
	operator := domain.Identity{
		Role:               domain.RoleOperator,
		AssignedMachineIDs: []string{"5"},
	}
	go hub.Attach(operatorConn, operator)
	go hub.Attach(adminConn, adminIdentity())

	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	hub.Broadcast(domain.RelayMessage{
		Type:      domain.RelayEventNotification,
		MachineID: "9",
		Payload:   domain.Notification{Type: domain.NotifCoinInserted, MachineID: "9"},
	})
	hub.Broadcast(domain.RelayMessage{
		Type:      domain.RelayEventNotification,
		MachineID: "5",
		Payload:   domain.Notification{Type: domain.NotifCoinInserted, MachineID: "5"},
	})

	// The admin client receives both; the operator only the assigned machine.
	for _, want := range []string{"9", "5"} {
		select {
		case raw := <-adminConn.written:
			var msg struct {
				Payload domain.Notification `json:"payload"`
			}
			require.NoError(t, json.Unmarshal(raw, &msg))
			assert.Equal(t, want, msg.Payload.MachineID)
		case <-time.After(time.Second):
			t.Fatal("admin client did not receive broadcast")
		}
	}

	select {
	case raw := <-operatorConn.written:
		var msg struct {
			Payload domain.Notification `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, "5", msg.Payload.MachineID)
	case <-time.After(time.Second):
		t.Fatal("operator client did not receive in-scope broadcast")
	}

	select {
	case raw := <-operatorConn.written:
		t.Fatalf("operator client received out-of-scope frame: %s", raw)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_UnboundMessagesReachScopedClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := realtime.NewHub()
	go hub.Run(ctx)

	conn := newFakeConn()
	operator := domain.Identity{Role: domain.RoleOperator, AssignedMachineIDs: []string{"5"}}
	go hub.Attach(conn, operator)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.Badge(3)

	select {
	case raw := <-conn.written:
		var msg struct {
			Type    domain.RelayMessageType `json:"type"`
			Payload domain.BadgePayload     `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, domain.RelayBadge, msg.Type)
		assert.Equal(t, 3, msg.Payload.Unread)
	case <-time.After(time.Second):
		t.Fatal("scoped client did not receive unbound broadcast")
	}
}

func TestHub_DisconnectedClientIsRemoved(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := realtime.NewHub()
	go hub.Run(ctx)

	conn := newFakeConn()
	go hub.Attach(conn, adminIdentity())
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	_ = conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}
