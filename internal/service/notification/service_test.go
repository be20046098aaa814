package notification

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanfrev/machinehub-agent/internal/access"
	"github.com/wanfrev/machinehub-agent/internal/backend"
	"github.com/wanfrev/machinehub-agent/internal/domain"
	"github.com/wanfrev/machinehub-agent/internal/event"
)

type fakeBackend struct {
	page  *backend.EventsPage
	err   error
	calls int
}

func (f *fakeBackend) Events(_ context.Context, _ backend.EventsQuery) (*backend.EventsPage, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.page == nil {
		return &backend.EventsPage{Page: 1, TotalPages: 1}, nil
	}
	return f.page, nil
}

type fakeDirectory struct {
	machines map[string]domain.Machine
}

func (f *fakeDirectory) Lookup(machineID string) (domain.Machine, bool) {
	m, ok := f.machines[machineID]
	return m, ok
}

type fakePrefs struct {
	mu       sync.Mutex
	lastSeen time.Time
	prefs    domain.NotificationPreferences
	hasPrefs bool
}

func (f *fakePrefs) LastSeen(_ context.Context) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSeen, nil
}

func (f *fakePrefs) SetLastSeen(_ context.Context, ts time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastSeen = ts
	return nil
}

func (f *fakePrefs) Preferences(_ context.Context) (domain.NotificationPreferences, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.hasPrefs {
		return domain.DefaultNotificationPreferences(), nil
	}
	return f.prefs, nil
}

func (f *fakePrefs) SetPreferences(_ context.Context, prefs domain.NotificationPreferences) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefs = prefs
	f.hasPrefs = true
	return nil
}

type fakeUI struct {
	mu     sync.Mutex
	toasts []string
	sounds []domain.NotificationType
	badges []int
}

func (f *fakeUI) Toast(title, _ string, _ domain.NotificationType, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toasts = append(f.toasts, title)
}

func (f *fakeUI) Sound(kind domain.NotificationType, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sounds = append(f.sounds, kind)
}

func (f *fakeUI) Badge(unread int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.badges = append(f.badges, unread)
}

func (f *fakeUI) lastBadge() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.badges) == 0 {
		return -1
	}
	return f.badges[len(f.badges)-1]
}

func adminIdentity() domain.Identity {
	return domain.Identity{Name: "Admin", Role: domain.RoleAdmin}
}

func operatorFor(machineIDs ...string) domain.Identity {
	return domain.Identity{
		Name:               "Operadora",
		Role:               domain.RoleOperator,
		AssignedMachineIDs: machineIDs,
	}
}

func newTestService(t *testing.T, be *fakeBackend, identity domain.Identity) (*service, *fakeUI, *fakePrefs) {
	t.Helper()
	ui := &fakeUI{}
	prefs := &fakePrefs{}
	dir := &fakeDirectory{machines: map[string]domain.Machine{
		"5": {ID: "5", Name: "Grúa Entrada", Location: "Pasillo A"},
	}}
	svc := NewService(be, dir, prefs, identity, ui).(*service)
	return svc, ui, prefs
}

func TestAddIncrementsUnreadAndNotifiesUI(t *testing.T) {
	svc, ui, _ := newTestService(t, &fakeBackend{}, adminIdentity())

	svc.Add(context.Background(), domain.Notification{
		Type:      domain.NotifCoinInserted,
		MachineID: "5",
		Amount:    2,
	})

	assert.Equal(t, 1, svc.UnreadCount(adminIdentity()))
	assert.Equal(t, []string{"Moneda ingresada"}, ui.toasts)
	assert.Equal(t, []domain.NotificationType{domain.NotifCoinInserted}, ui.sounds)
	assert.Equal(t, 1, ui.lastBadge())

	page := svc.List(adminIdentity(), 1)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "Grúa Entrada", page.Data[0].MachineName)
	assert.Equal(t, "Pasillo A", page.Data[0].Location)
}

func TestAddWhileViewingDoesNotIncrementUnread(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeBackend{}, adminIdentity())
	svc.SetViewing(true)

	svc.Add(context.Background(), domain.Notification{
		Type:      domain.NotifMachineOn,
		MachineID: "5",
	})

	assert.Zero(t, svc.UnreadCount(adminIdentity()))
	assert.Len(t, svc.List(adminIdentity(), 1).Data, 1)
}

func TestAddDropsOutOfScopeMachine(t *testing.T) {
	operator := operatorFor("5")
	svc, ui, _ := newTestService(t, &fakeBackend{}, operator)

	svc.Add(context.Background(), domain.Notification{
		Type:      domain.NotifCoinInserted,
		MachineID: "9",
	})

	assert.Empty(t, svc.List(operator, 1).Data)
	assert.Zero(t, svc.UnreadCount(operator))
	assert.Empty(t, ui.toasts)
}

func TestListNarrowsToCallerAssignment(t *testing.T) {
	// The station runs unscoped and holds records for the whole fleet; a
	// caller assigned to one machine must only see that machine's records.
	svc, _, _ := newTestService(t, &fakeBackend{}, adminIdentity())

	svc.Add(context.Background(), domain.Notification{Type: domain.NotifCoinInserted, MachineID: "9"})
	svc.Add(context.Background(), domain.Notification{Type: domain.NotifCoinInserted, MachineID: "5",
		Timestamp: time.Now().Add(10 * time.Second)})

	operator := operatorFor("5")
	page := svc.List(operator, 1)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "5", page.Data[0].MachineID)

	admin := svc.List(adminIdentity(), 1)
	assert.Len(t, admin.Data, 2)
}

func TestListNarrowsServerPageToCaller(t *testing.T) {
	be := &fakeBackend{page: &backend.EventsPage{
		Events: []event.RawEvent{
			rawCoin("5", time.Now()),
			rawCoin("9", time.Now().Add(10*time.Second)),
		},
		Total: 2, Page: 1, TotalPages: 1,
	}}
	svc, _, _ := newTestService(t, be, adminIdentity())
	require.NoError(t, svc.LoadFromServer(context.Background(), 1))

	operator := operatorFor("9")
	page := svc.List(operator, 1)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "9", page.Data[0].MachineID)
}

func TestUnreadCountNarrowsToCallerAssignment(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeBackend{}, adminIdentity())
	require.NoError(t, svc.MarkSeen(context.Background()))

	later := time.Now().Add(time.Minute)
	svc.Add(context.Background(), domain.Notification{
		Type: domain.NotifCoinInserted, MachineID: "5", Timestamp: later,
	})
	svc.Add(context.Background(), domain.Notification{
		Type: domain.NotifCoinInserted, MachineID: "9", Timestamp: later.Add(10 * time.Second),
	})

	assert.Equal(t, 2, svc.UnreadCount(adminIdentity()))
	assert.Equal(t, 1, svc.UnreadCount(operatorFor("5")))
	assert.Zero(t, svc.UnreadCount(operatorFor("3")))
}

func TestDuplicateDeliveryCollapsesToOneRecord(t *testing.T) {
	svc, ui, _ := newTestService(t, &fakeBackend{}, adminIdentity())

	ts := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	// The same physical event arriving once over the socket and once via the
	// push relay.
	fromSocket := domain.Notification{
		Type:      domain.NotifCoinInserted,
		MachineID: "5",
		Amount:    1,
		Timestamp: ts,
	}
	fromPush := fromSocket
	fromPush.Timestamp = ts.Add(300 * time.Millisecond)

	svc.Add(context.Background(), fromSocket)
	svc.Add(context.Background(), fromPush)

	assert.Len(t, svc.List(adminIdentity(), 1).Data, 1)
	assert.Equal(t, 1, svc.UnreadCount(adminIdentity()))
	assert.Len(t, ui.toasts, 1)
}

func TestDistinctEventsOutsideWindowBothKept(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeBackend{}, adminIdentity())

	ts := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	first := domain.Notification{Type: domain.NotifCoinInserted, MachineID: "5", Timestamp: ts}
	second := first
	second.Timestamp = ts.Add(10 * time.Second)

	svc.Add(context.Background(), first)
	svc.Add(context.Background(), second)

	assert.Len(t, svc.List(adminIdentity(), 1).Data, 2)
}

func TestMarkSeenPersistsCursorAndZeroesUnread(t *testing.T) {
	svc, ui, prefs := newTestService(t, &fakeBackend{}, adminIdentity())

	svc.Add(context.Background(), domain.Notification{Type: domain.NotifMachineOff, MachineID: "5"})
	require.Equal(t, 1, svc.UnreadCount(adminIdentity()))

	require.NoError(t, svc.MarkSeen(context.Background()))

	assert.Zero(t, svc.UnreadCount(adminIdentity()))
	assert.Equal(t, 0, ui.lastBadge())
	assert.False(t, prefs.lastSeen.IsZero())
}

func TestLoadFromServerRecalculatesUnreadFromCursor(t *testing.T) {
	cursor := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	be := &fakeBackend{page: &backend.EventsPage{
		Events: []event.RawEvent{
			rawCoin("5", cursor.Add(time.Hour)),
			rawCoin("5", cursor.Add(2*time.Hour)),
			rawCoin("5", cursor.Add(-time.Hour)),
		},
		Total: 3, Page: 1, TotalPages: 1,
	}}
	svc, _, prefs := newTestService(t, be, adminIdentity())
	prefs.lastSeen = cursor

	svc.Init(context.Background())

	assert.Equal(t, 2, svc.UnreadCount(adminIdentity()))
	assert.Len(t, svc.List(adminIdentity(), 1).Data, 3)
}

func TestLoadFromServerIsIdempotent(t *testing.T) {
	be := &fakeBackend{page: &backend.EventsPage{
		Events: []event.RawEvent{rawCoin("5", time.Now())},
		Total:  1, Page: 1, TotalPages: 1,
	}}
	svc, _, _ := newTestService(t, be, adminIdentity())

	require.NoError(t, svc.LoadFromServer(context.Background(), 1))
	require.NoError(t, svc.LoadFromServer(context.Background(), 1))

	assert.Len(t, svc.List(adminIdentity(), 1).Data, 1)
	assert.Equal(t, 2, be.calls)
}

func TestLoadFromServerFiltersScope(t *testing.T) {
	operator := operatorFor("5")
	be := &fakeBackend{page: &backend.EventsPage{
		Events: []event.RawEvent{
			rawCoin("5", time.Now()),
			rawCoin("9", time.Now()),
		},
		Total: 2, Page: 1, TotalPages: 1,
	}}
	svc, _, _ := newTestService(t, be, operator)

	require.NoError(t, svc.LoadFromServer(context.Background(), 1))

	page := svc.List(operator, 1)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "5", page.Data[0].MachineID)
}

func TestScopeDecisionConsistentAcrossCallSites(t *testing.T) {
	identity := domain.Identity{
		Role:               domain.RoleSupervisor,
		AssignedMachineIDs: []string{"5", "7"},
	}
	be := &fakeBackend{page: &backend.EventsPage{
		Events: []event.RawEvent{rawCoin("9", time.Now())},
		Total:  1, Page: 1, TotalPages: 1,
	}}
	svc, _, _ := newTestService(t, be, identity)

	direct := access.CanAccessMachine(identity.Role, identity.AssignedMachineIDs, "9")

	svc.Add(context.Background(), domain.Notification{Type: domain.NotifCoinInserted, MachineID: "9"})
	require.NoError(t, svc.LoadFromServer(context.Background(), 1))

	assert.False(t, direct)
	assert.Empty(t, svc.List(identity, 1).Data)
}

func TestLiveIDsNeverCollideWithServerIDs(t *testing.T) {
	be := &fakeBackend{page: &backend.EventsPage{
		Events: []event.RawEvent{
			rawCoinWithID(41, "5", time.Now()),
			rawCoinWithID(7, "5", time.Now()),
		},
		Total: 2, Page: 1, TotalPages: 1,
	}}
	svc, _, _ := newTestService(t, be, adminIdentity())

	require.NoError(t, svc.LoadFromServer(context.Background(), 1))
	svc.Add(context.Background(), domain.Notification{Type: domain.NotifMachineOn, MachineID: "5"})

	page := svc.List(adminIdentity(), 1)
	require.NotEmpty(t, page.Data)
	assert.Equal(t, int64(42), page.Data[0].ID)
}

func TestListPaginatesLocallyBeforeFirstLoad(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeBackend{}, adminIdentity())

	ts := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		svc.Add(context.Background(), domain.Notification{
			Type:      domain.NotifCoinInserted,
			MachineID: "5",
			Timestamp: ts.Add(time.Duration(i) * time.Minute),
		})
	}

	first := svc.List(adminIdentity(), 1)
	second := svc.List(adminIdentity(), 2)
	assert.Len(t, first.Data, 20)
	assert.Len(t, second.Data, 5)
	assert.Equal(t, 2, first.TotalPages)
	assert.True(t, first.HasNext)
	assert.False(t, second.HasNext)
}

func TestListReflectsServerPaginationAfterLoad(t *testing.T) {
	be := &fakeBackend{page: &backend.EventsPage{
		Events: []event.RawEvent{rawCoin("5", time.Now())},
		Total:  55, Page: 2, TotalPages: 3,
	}}
	svc, _, _ := newTestService(t, be, adminIdentity())

	require.NoError(t, svc.LoadFromServer(context.Background(), 2))

	page := svc.List(adminIdentity(), 2)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, int64(55), page.TotalItems)
	assert.True(t, page.HasNext)
	assert.True(t, page.HasPrev)
}

func TestSetPreferencesPersistsAndReloads(t *testing.T) {
	be := &fakeBackend{}
	svc, _, prefs := newTestService(t, be, adminIdentity())

	newPrefs := domain.NotificationPreferences{
		TodayOnly: false,
		From:      "2026-03-01",
		To:        "2026-03-09",
	}
	require.NoError(t, svc.SetPreferences(context.Background(), newPrefs))

	assert.Equal(t, newPrefs, svc.Preferences())
	assert.Equal(t, newPrefs, prefs.prefs)
	assert.Equal(t, 1, be.calls)
}

func rawCoin(machineID string, ts time.Time) event.RawEvent {
	return rawCoinWithID(0, machineID, ts)
}

func rawCoinWithID(id int64, machineID string, ts time.Time) event.RawEvent {
	raw := event.RawEvent{}
	raw.Type = string(domain.NotifCoinInserted)
	raw.MachineID = event.FlexString(machineID)
	raw.Timestamp = ts.Format(time.RFC3339)
	if id != 0 {
		raw.ID = event.FlexInt(id)
	}
	return raw
}
