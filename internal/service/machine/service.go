// Package machine keeps the fleet directory: the list of machines the backend
// reports, their live status as events move them, and usage derived from
// power logs.
package machine

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/wanfrev/machinehub-agent/internal/access"
	"github.com/wanfrev/machinehub-agent/internal/domain"
	"github.com/wanfrev/machinehub-agent/internal/notify"
)

const usageFreshness = 60 * time.Second

// Backend is the slice of the fleet client the directory uses.
type Backend interface {
	Machines(ctx context.Context) ([]domain.Machine, error)
	PowerLogs(ctx context.Context, machineID, startDate, endDate string) ([]domain.PowerLog, error)
}

type Service interface {
	Refresh(ctx context.Context) error
	Lookup(machineID string) (domain.Machine, bool)
	List(identity domain.Identity) []domain.Machine
	ApplyPowerEvent(machineID string, t domain.NotificationType, ts time.Time)
	UsageToday(ctx context.Context, machineID string) (domain.MachineUsage, error)
}

type service struct {
	backend Backend
	now     func() time.Time

	mu          sync.RWMutex
	machines    map[string]domain.Machine
	order       []string
	lastRefresh time.Time

	usageMu    sync.Mutex
	usageCache map[string]cachedUsage
}

type cachedUsage struct {
	usage     domain.MachineUsage
	fetchedAt time.Time
	day       string
}

func NewService(backend Backend) Service {
	return &service{
		backend:    backend,
		now:        time.Now,
		machines:   make(map[string]domain.Machine),
		usageCache: make(map[string]cachedUsage),
	}
}

// Refresh replaces the directory with the backend's current machine list,
// preserving fresher live status for machines already tracked.
func (s *service) Refresh(ctx context.Context) error {
	machines, err := s.backend.Machines(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]domain.Machine, len(machines))
	order := make([]string, 0, len(machines))
	for _, m := range machines {
		if m.ID == "" {
			continue
		}
		if prev, ok := s.machines[m.ID]; ok {
			// A live power event seen after the backend snapshot wins.
			if lastSeen(prev).After(lastSeen(m)) {
				m.Status = prev.Status
				m.LastOn = prev.LastOn
				m.LastOff = prev.LastOff
			}
		}
		next[m.ID] = m
		order = append(order, m.ID)
	}
	s.machines = next
	s.order = order
	s.lastRefresh = s.now()
	return nil
}

func (s *service) Lookup(machineID string) (domain.Machine, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.machines[machineID]
	return m, ok
}

// List returns the machines visible to the given identity, in backend order.
func (s *service) List(identity domain.Identity) []domain.Machine {
	s.mu.RLock()
	all := make([]domain.Machine, 0, len(s.order))
	for _, id := range s.order {
		all = append(all, s.machines[id])
	}
	s.mu.RUnlock()

	return access.FilterMachines(all, identity)
}

// ApplyPowerEvent moves a machine's status in response to a live on/off
// event. Events for machines not in the directory are ignored until the next
// refresh picks them up.
func (s *service) ApplyPowerEvent(machineID string, t domain.NotificationType, ts time.Time) {
	if ts.IsZero() {
		ts = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.machines[machineID]
	if !ok {
		return
	}

	switch t {
	case domain.NotifMachineOn:
		m.Status = domain.MachineActive
		m.LastOn = &ts
	case domain.NotifMachineOff:
		m.Status = domain.MachineInactive
		m.LastOff = &ts
	default:
		return
	}
	s.machines[machineID] = m
}

// UsageToday sums today's active minutes from the machine's power logs.
// Results are cached briefly so a dashboard with many tiles does not hammer
// the backend.
func (s *service) UsageToday(ctx context.Context, machineID string) (domain.MachineUsage, error) {
	day := notify.LocalDay(s.now())

	s.usageMu.Lock()
	cached, ok := s.usageCache[machineID]
	s.usageMu.Unlock()
	if ok && cached.day == day && s.now().Sub(cached.fetchedAt) < usageFreshness {
		return cached.usage, nil
	}

	logs, err := s.backend.PowerLogs(ctx, machineID, day, day)
	if err != nil {
		if ok && cached.day == day {
			// Stale beats empty during a backend hiccup.
			log.Printf("machines: power logs for %s unavailable, serving cached usage: %v", machineID, err)
			return cached.usage, nil
		}
		return domain.MachineUsage{MachineID: machineID}, err
	}

	usage := usageFromLogs(machineID, logs)

	s.usageMu.Lock()
	s.usageCache[machineID] = cachedUsage{usage: usage, fetchedAt: s.now(), day: day}
	s.usageMu.Unlock()

	return usage, nil
}

func usageFromLogs(machineID string, logs []domain.PowerLog) domain.MachineUsage {
	usage := domain.MachineUsage{MachineID: machineID}
	for _, row := range logs {
		if row.Event != domain.PowerLogOn {
			continue
		}
		usage.ActiveMinutes += int(row.Dur)
		if usage.FirstOn == "" || row.TS < usage.FirstOn {
			usage.FirstOn = row.TS
		}
	}
	return usage
}

func lastSeen(m domain.Machine) time.Time {
	var ts time.Time
	if m.LastOn != nil && m.LastOn.After(ts) {
		ts = *m.LastOn
	}
	if m.LastOff != nil && m.LastOff.After(ts) {
		ts = *m.LastOff
	}
	return ts
}
