// Package notification is the foreground store: the ordered, scoped,
// deduplicated notification list behind the dashboard, with unread tracking
// against a persisted cursor.
package notification

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/wanfrev/machinehub-agent/internal/access"
	"github.com/wanfrev/machinehub-agent/internal/backend"
	"github.com/wanfrev/machinehub-agent/internal/domain"
	"github.com/wanfrev/machinehub-agent/internal/event"
	"github.com/wanfrev/machinehub-agent/internal/notify"
	"github.com/wanfrev/machinehub-agent/internal/repository"
)

const (
	pageSize      = domain.DefaultPageSize
	dedupWindow   = 2 * time.Second
	maxRecentKeys = 512
)

// EventsFetcher is the slice of the backend client the store needs.
type EventsFetcher interface {
	Events(ctx context.Context, q backend.EventsQuery) (*backend.EventsPage, error)
}

// MachineDirectory resolves display defaults for records that arrive without
// a machine name or location.
type MachineDirectory interface {
	Lookup(machineID string) (domain.Machine, bool)
}

// UIListener receives the side effects of an accepted record. The hub
// implements it; tests fake it. The machine id lets the hub route the side
// effect only to clients allowed to see that machine.
type UIListener interface {
	Toast(title, body string, kind domain.NotificationType, machineID string)
	Sound(kind domain.NotificationType, machineID string)
	Badge(unread int)
}

type Service interface {
	Init(ctx context.Context)
	Add(ctx context.Context, input domain.Notification)
	LoadFromServer(ctx context.Context, page int) error
	List(identity domain.Identity, page int) domain.PaginatedResponse[domain.Notification]
	UnreadCount(identity domain.Identity) int
	MarkSeen(ctx context.Context) error
	Preferences() domain.NotificationPreferences
	SetPreferences(ctx context.Context, prefs domain.NotificationPreferences) error
	SetViewing(viewing bool)
}

type service struct {
	backend  EventsFetcher
	machines MachineDirectory
	prefs    repository.PreferenceRepository
	identity domain.Identity
	ui       UIListener
	now      func() time.Time

	mu               sync.Mutex
	records          []domain.Notification
	counter          int64
	unread           int
	lastSeen         time.Time
	preferences      domain.NotificationPreferences
	serverTotalPages int // 0 means "unknown, paginate locally"
	serverTotal      int64
	serverPage       int
	viewing          bool
	recent           map[string]time.Time
	recentOrder      []string
}

func NewService(
	backendClient EventsFetcher,
	machines MachineDirectory,
	prefs repository.PreferenceRepository,
	identity domain.Identity,
	ui UIListener,
) Service {
	return &service{
		backend:     backendClient,
		machines:    machines,
		prefs:       prefs,
		identity:    identity,
		ui:          ui,
		now:         time.Now,
		preferences: domain.DefaultNotificationPreferences(),
		recent:      make(map[string]time.Time),
	}
}

// Init restores the persisted cursor and preferences and loads the first
// server page. Failures degrade to an empty list; the live channel still
// populates it.
func (s *service) Init(ctx context.Context) {
	if cursor, err := s.prefs.LastSeen(ctx); err == nil {
		s.mu.Lock()
		s.lastSeen = cursor
		s.mu.Unlock()
	}
	if prefs, err := s.prefs.Preferences(ctx); err == nil {
		s.mu.Lock()
		s.preferences = prefs
		s.mu.Unlock()
	}
	if err := s.LoadFromServer(ctx, 1); err != nil {
		log.Printf("notifications: initial load failed: %v", err)
	}
}

// Add appends a record arriving from the live channel or the worker relay.
// Records for machines outside the station's scope are dropped without a
// trace; List and UnreadCount narrow further to the calling identity. Repeats
// of the same physical event within the dedup window collapse to one record.
func (s *service) Add(ctx context.Context, input domain.Notification) {
	if !access.CanAccessMachine(s.identity.Role, s.identity.AssignedMachineIDs, input.MachineID) {
		return
	}

	s.mu.Lock()
	now := s.now()
	if input.Timestamp.IsZero() {
		input.Timestamp = now
	}

	key := input.DedupKey(dedupWindow)
	if _, seen := s.recent[key]; seen {
		s.mu.Unlock()
		return
	}
	s.remember(key, now)

	if input.ID == 0 {
		s.counter++
		input.ID = s.counter
	}
	if input.MachineName == "" || input.Location == "" {
		if m, ok := s.machines.Lookup(input.MachineID); ok {
			if input.MachineName == "" {
				input.MachineName = m.Name
			}
			if input.Location == "" {
				input.Location = m.Location
			}
		}
	}
	if input.MachineName == "" {
		input.MachineName = fmt.Sprintf("Máquina %s", input.MachineID)
	}

	s.records = append([]domain.Notification{input}, s.records...)

	if !s.viewing {
		s.unread++
	}
	unread := s.unread
	s.mu.Unlock()

	s.ui.Toast(notify.Title(input.Type), notify.ToastBody(input), input.Type, input.MachineID)
	s.ui.Sound(input.Type, input.MachineID)
	s.ui.Badge(unread)
}

// LoadFromServer replaces the in-memory page with a server-paginated window
// of history, re-applying the scope filter client-side. The local id counter
// advances past the largest server id so live records never collide.
func (s *service) LoadFromServer(ctx context.Context, page int) error {
	if page < 1 {
		page = 1
	}

	query := backend.EventsQuery{Page: page, PageSize: pageSize}
	query.StartDate, query.EndDate = s.dateRange()

	resp, err := s.backend.Events(ctx, query)
	if err != nil {
		return fmt.Errorf("load notifications: %w", err)
	}

	now := s.now()
	loaded := make([]domain.Notification, 0, len(resp.Events))
	for _, raw := range resp.Events {
		n, ok := event.Normalize(raw, now)
		if !ok {
			continue
		}
		if !access.CanAccessMachine(s.identity.Role, s.identity.AssignedMachineIDs, n.MachineID) {
			continue
		}
		if n.MachineName == "" {
			if m, ok := s.machines.Lookup(n.MachineID); ok {
				n.MachineName = m.Name
				if n.Location == "" {
					n.Location = m.Location
				}
			} else {
				n.MachineName = fmt.Sprintf("Máquina %s", n.MachineID)
			}
		}
		loaded = append(loaded, n)
	}

	s.mu.Lock()
	s.records = loaded
	s.serverTotal = resp.Total
	s.serverTotalPages = resp.TotalPages
	if s.serverTotalPages < 1 {
		s.serverTotalPages = 1
	}
	s.serverPage = resp.Page
	if s.serverPage < 1 {
		s.serverPage = page
	}
	for _, n := range loaded {
		if n.ID > s.counter {
			s.counter = n.ID
		}
	}
	s.recalcUnreadLocked()
	unread := s.unread
	s.mu.Unlock()

	s.ui.Badge(unread)
	return nil
}

// List serves one page of the view for the calling identity. The station
// holds records for its own scope; callers with a narrower assignment only
// see their machines, whichever path a record arrived by.
func (s *service) List(identity domain.Identity, page int) domain.PaginatedResponse[domain.Notification] {
	s.mu.Lock()
	defer s.mu.Unlock()

	visible := s.visibleLocked(identity)

	if s.serverTotalPages > 0 {
		// Server-side paging: the in-memory list already is the page.
		return domain.PaginatedResponse[domain.Notification]{
			Data:       visible,
			Page:       s.serverPage,
			PageSize:   pageSize,
			TotalItems: s.serverTotal,
			TotalPages: s.serverTotalPages,
			HasNext:    s.serverPage < s.serverTotalPages,
			HasPrev:    s.serverPage > 1,
		}
	}

	if page < 1 {
		page = 1
	}
	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(visible) {
		start = len(visible)
	}
	if end > len(visible) {
		end = len(visible)
	}
	return domain.NewPaginatedResponse(
		visible[start:end], page, pageSize, int64(len(visible)),
	)
}

// UnreadCount reports unread records visible to the calling identity. The
// running counter tracks the station view with its viewing suppression;
// narrower identities get a recount of their visible records against the
// cursor.
func (s *service) UnreadCount(identity domain.Identity) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if identity.Role == domain.RoleAdmin {
		return s.unread
	}

	if s.lastSeen.IsZero() {
		return 0
	}
	count := 0
	for _, n := range s.records {
		if !access.CanAccessMachine(identity.Role, identity.AssignedMachineIDs, n.MachineID) {
			continue
		}
		if n.Timestamp.After(s.lastSeen) {
			count++
		}
	}
	return count
}

// visibleLocked copies the records the identity may see, preserving order.
// Caller holds the lock.
func (s *service) visibleLocked(identity domain.Identity) []domain.Notification {
	visible := make([]domain.Notification, 0, len(s.records))
	for _, n := range s.records {
		if access.CanAccessMachine(identity.Role, identity.AssignedMachineIDs, n.MachineID) {
			visible = append(visible, n)
		}
	}
	return visible
}

// MarkSeen moves the cursor to now and zeroes the unread count.
func (s *service) MarkSeen(ctx context.Context) error {
	now := s.now()
	if err := s.prefs.SetLastSeen(ctx, now); err != nil {
		return err
	}

	s.mu.Lock()
	s.lastSeen = now
	s.unread = 0
	s.mu.Unlock()

	s.ui.Badge(0)
	return nil
}

func (s *service) Preferences() domain.NotificationPreferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preferences
}

func (s *service) SetPreferences(ctx context.Context, prefs domain.NotificationPreferences) error {
	if err := s.prefs.SetPreferences(ctx, prefs); err != nil {
		return err
	}

	s.mu.Lock()
	s.preferences = prefs
	s.mu.Unlock()

	return s.LoadFromServer(ctx, 1)
}

// SetViewing marks whether the notification panel is open; records arriving
// while it is open are implicitly seen.
func (s *service) SetViewing(viewing bool) {
	s.mu.Lock()
	s.viewing = viewing
	s.mu.Unlock()
}

func (s *service) recalcUnreadLocked() {
	if s.lastSeen.IsZero() {
		s.unread = 0
		return
	}
	count := 0
	for _, n := range s.records {
		if n.Timestamp.After(s.lastSeen) {
			count++
		}
	}
	s.unread = count
}

// remember records a dedup key, evicting the oldest entries beyond the cap.
// Caller holds the lock.
func (s *service) remember(key string, now time.Time) {
	s.recent[key] = now
	s.recentOrder = append(s.recentOrder, key)
	for len(s.recentOrder) > maxRecentKeys {
		oldest := s.recentOrder[0]
		s.recentOrder = s.recentOrder[1:]
		delete(s.recent, oldest)
	}
}

// dateRange resolves the preference selection to concrete bounds in the fleet
// timezone. Caller must not hold the lock (it is taken here).
func (s *service) dateRange() (time.Time, time.Time) {
	s.mu.Lock()
	prefs := s.preferences
	s.mu.Unlock()

	zone := notify.FleetZone()
	now := s.now().In(zone)

	if prefs.TodayOnly {
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, zone)
		return start, now
	}

	var start, end time.Time
	if day, err := time.ParseInLocation("2006-01-02", prefs.From, zone); err == nil {
		start = day
	}
	if day, err := time.ParseInLocation("2006-01-02", prefs.To, zone); err == nil {
		end = day.Add(24*time.Hour - time.Millisecond)
	}
	return start, end
}
