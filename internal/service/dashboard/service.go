// Package dashboard is the runtime that ties the pipeline together: it owns
// the event loop consuming the live socket and the worker relay, keeps the
// day's counters, and schedules the periodic jobs.
package dashboard

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wanfrev/machinehub-agent/internal/domain"
	"github.com/wanfrev/machinehub-agent/internal/event"
	"github.com/wanfrev/machinehub-agent/internal/notify"
	"github.com/wanfrev/machinehub-agent/internal/service/notification"
)

const defaultRefreshInterval = 15 * time.Second

// LiveSource is the upstream socket: a channel of raw events plus the
// reconnecting read loop that feeds it.
type LiveSource interface {
	Events() <-chan event.RawEvent
	Run(ctx context.Context)
}

// Pricing converts a machine type to the value of one coin.
type Pricing interface {
	ValueFor(machineType string) float64
	Refresh(ctx context.Context) error
}

// ClientCounter reports how many dashboard clients are attached to the relay.
type ClientCounter interface {
	ClientCount() int
}

// Fleet is the slice of the machine directory the runtime drives.
type Fleet interface {
	Refresh(ctx context.Context) error
	Lookup(machineID string) (domain.Machine, bool)
	List(identity domain.Identity) []domain.Machine
	ApplyPowerEvent(machineID string, t domain.NotificationType, ts time.Time)
}

// CoinArchive records accepted coin events and prunes old ones.
type CoinArchive interface {
	Record(ctx context.Context, n domain.Notification) error
	Prune(ctx context.Context) (int64, error)
}

// Escalator handles out-of-band escalation of machine-down events.
type Escalator interface {
	MachineDown(ctx context.Context, n domain.Notification)
}

// Summary is the aggregate the dashboard endpoint serves.
type Summary struct {
	Day              string           `json:"day"`
	Machines         []domain.Machine `json:"machines"`
	CoinsByMachine   map[string]int   `json:"coins_by_machine"`
	TotalCoins       int              `json:"total_coins"`
	RevenueToday     float64          `json:"revenue_today"`
	Unread           int              `json:"unread"`
	ConnectedClients int              `json:"connected_clients"`
}

type Service interface {
	Start(ctx context.Context)
	Stop()
	Summary(identity domain.Identity) Summary
}

type service struct {
	source     LiveSource
	foreground <-chan domain.Notification
	store      notification.Service
	machines   Fleet
	sales      CoinArchive
	pricing    Pricing
	alerts     Escalator
	clients    ClientCounter

	refreshInterval time.Duration
	now             func() time.Time

	mu         sync.Mutex
	day        string
	dailyCoins map[string]int

	cron   *cron.Cron
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewService(
	source LiveSource,
	foreground <-chan domain.Notification,
	store notification.Service,
	machines Fleet,
	salesSvc CoinArchive,
	pricing Pricing,
	alerts Escalator,
	clients ClientCounter,
	refreshInterval time.Duration,
) Service {
	if refreshInterval <= 0 {
		refreshInterval = defaultRefreshInterval
	}
	return &service{
		source:          source,
		foreground:      foreground,
		store:           store,
		machines:        machines,
		sales:           salesSvc,
		pricing:         pricing,
		alerts:          alerts,
		clients:         clients,
		refreshInterval: refreshInterval,
		now:             time.Now,
		dailyCoins:      make(map[string]int),
	}
}

// Start launches the socket reader, the event loop and the cron schedule.
func (s *service) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.mu.Lock()
	s.day = notify.LocalDay(s.now())
	s.mu.Unlock()

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.source.Run(ctx)
	}()
	go func() {
		defer s.wg.Done()
		s.loop(ctx)
	}()

	s.cron = cron.New(cron.WithLocation(notify.FleetZone()))
	s.cron.AddFunc("0 0 * * *", func() { s.rollover(ctx) })
	s.cron.AddFunc("30 3 * * *", func() {
		if removed, err := s.sales.Prune(ctx); err != nil {
			log.Printf("dashboard: sales prune failed: %v", err)
		} else if removed > 0 {
			log.Printf("dashboard: pruned %d archived sales", removed)
		}
	})
	s.cron.AddFunc("0 * * * *", func() {
		if err := s.pricing.Refresh(ctx); err != nil {
			log.Printf("dashboard: coin value refresh failed: %v", err)
		}
	})
	s.cron.Start()
}

func (s *service) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *service) loop(ctx context.Context) {
	ticker := time.NewTicker(s.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case raw, ok := <-s.source.Events():
			if !ok {
				return
			}
			s.handleLive(ctx, raw)

		case n, ok := <-s.foreground:
			if !ok {
				return
			}
			// The worker already rendered the platform notification; here the
			// record only enters the store (which dedups against the socket
			// copy of the same event).
			s.store.Add(ctx, n)

		case <-ticker.C:
			if err := s.machines.Refresh(ctx); err != nil {
				log.Printf("dashboard: machine refresh failed: %v", err)
			}
		}
	}
}

// handleLive processes one socket event in arrival order.
func (s *service) handleLive(ctx context.Context, raw event.RawEvent) {
	n, ok := event.Normalize(raw, s.now())
	if !ok {
		return
	}

	switch n.Type {
	case domain.NotifCoinInserted:
		s.store.Add(ctx, n)
		if err := s.sales.Record(ctx, n); err != nil {
			log.Printf("dashboard: archiving coin event for %s failed: %v", n.MachineID, err)
		}
		s.countCoins(n)

	case domain.NotifMachineOn:
		s.machines.ApplyPowerEvent(n.MachineID, n.Type, n.Timestamp)
		s.store.Add(ctx, n)

	case domain.NotifMachineOff:
		s.machines.ApplyPowerEvent(n.MachineID, n.Type, n.Timestamp)
		s.store.Add(ctx, n)
		s.alerts.MachineDown(ctx, n)

	default:
		// Unknown types never surface.
	}
}

func (s *service) countCoins(n domain.Notification) {
	if m, ok := s.machines.Lookup(n.MachineID); ok && m.TestMode {
		return
	}
	amount := n.Amount
	if amount <= 0 {
		amount = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A coin after fleet midnight rolls the counters even if cron has not
	// fired yet.
	if day := notify.LocalDay(n.Timestamp); day > s.day {
		s.day = day
		s.dailyCoins = make(map[string]int)
	}
	s.dailyCoins[n.MachineID] += amount
}

// rollover resets the daily counters at fleet midnight and refreshes the
// store when it is pinned to "today".
func (s *service) rollover(ctx context.Context) {
	s.mu.Lock()
	s.day = notify.LocalDay(s.now())
	s.dailyCoins = make(map[string]int)
	s.mu.Unlock()

	if s.store.Preferences().TodayOnly {
		if err := s.store.LoadFromServer(ctx, 1); err != nil {
			log.Printf("dashboard: rollover reload failed: %v", err)
		}
	}
	log.Printf("dashboard: daily counters rolled over")
}

// Summary aggregates the day for one identity; coins and machines are scoped
// to what that identity may see.
func (s *service) Summary(identity domain.Identity) Summary {
	machines := s.machines.List(identity)

	s.mu.Lock()
	day := s.day
	coins := make(map[string]int, len(machines))
	for _, m := range machines {
		if c, ok := s.dailyCoins[m.ID]; ok {
			coins[m.ID] = c
		}
	}
	s.mu.Unlock()

	summary := Summary{
		Day:              day,
		Machines:         machines,
		CoinsByMachine:   coins,
		Unread:           s.store.UnreadCount(identity),
		ConnectedClients: s.clients.ClientCount(),
	}
	for _, m := range machines {
		c := coins[m.ID]
		summary.TotalCoins += c
		summary.RevenueToday += float64(c) * s.pricing.ValueFor(m.Type)
	}
	return summary
}
