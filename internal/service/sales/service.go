// Package sales archives accepted coin events and produces daily reports,
// priced through the coin-value service.
package sales

import (
	"context"
	"time"

	"github.com/wanfrev/machinehub-agent/internal/domain"
	"github.com/wanfrev/machinehub-agent/internal/notify"
	"github.com/wanfrev/machinehub-agent/internal/repository"
)

const defaultRetention = 90 * 24 * time.Hour

// Pricing resolves a machine type to the value of one coin.
type Pricing interface {
	ValueFor(machineType string) float64
}

// Directory resolves machine metadata for pricing and test-mode checks.
type Directory interface {
	Lookup(machineID string) (domain.Machine, bool)
}

// DailyReportRow is one line of the revenue report.
type DailyReportRow struct {
	Day       string  `json:"day"`
	MachineID string  `json:"machine_id"`
	Machine   string  `json:"machine,omitempty"`
	Coins     int     `json:"coins"`
	Revenue   float64 `json:"revenue"`
}

type Service interface {
	Record(ctx context.Context, n domain.Notification) error
	DailyReport(ctx context.Context, fromDay, toDay string) ([]DailyReportRow, error)
	MachineTotalToday(ctx context.Context, machineID string) (int, error)
	Prune(ctx context.Context) (int64, error)
}

type service struct {
	repo      repository.SalesRepository
	pricing   Pricing
	directory Directory
	retention time.Duration
	now       func() time.Time
}

func NewService(repo repository.SalesRepository, pricing Pricing, directory Directory) Service {
	return &service{
		repo:      repo,
		pricing:   pricing,
		directory: directory,
		retention: defaultRetention,
		now:       time.Now,
	}
}

// Record archives a coin event. Machines in test mode are excluded: their
// coins are calibration, not revenue. Non-coin records are ignored.
func (s *service) Record(ctx context.Context, n domain.Notification) error {
	if n.Type != domain.NotifCoinInserted {
		return nil
	}
	if m, ok := s.directory.Lookup(n.MachineID); ok && m.TestMode {
		return nil
	}

	amount := n.Amount
	if amount <= 0 {
		amount = 1
	}
	ts := n.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}

	sale := &domain.SaleRecord{
		MachineID: n.MachineID,
		Amount:    amount,
		Day:       notify.LocalDay(ts),
		Timestamp: ts,
	}
	return s.repo.Create(ctx, sale)
}

// DailyReport aggregates the archive for an inclusive day range and prices
// each row through the machine's type. Defaults to today when no range is
// given.
func (s *service) DailyReport(ctx context.Context, fromDay, toDay string) ([]DailyReportRow, error) {
	today := notify.LocalDay(s.now())
	if fromDay == "" {
		fromDay = today
	}
	if toDay == "" {
		toDay = today
	}

	totals, err := s.repo.DailyTotals(ctx, fromDay, toDay)
	if err != nil {
		return nil, err
	}

	rows := make([]DailyReportRow, 0, len(totals))
	for _, t := range totals {
		row := DailyReportRow{
			Day:       t.Day,
			MachineID: t.MachineID,
			Coins:     t.Coins,
		}
		if m, ok := s.directory.Lookup(t.MachineID); ok {
			row.Machine = m.Name
			row.Revenue = float64(t.Coins) * s.pricing.ValueFor(m.Type)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *service) MachineTotalToday(ctx context.Context, machineID string) (int, error) {
	return s.repo.MachineTotal(ctx, machineID, notify.LocalDay(s.now()))
}

// Prune drops archive rows past the retention horizon.
func (s *service) Prune(ctx context.Context) (int64, error) {
	return s.repo.PruneOlderThan(ctx, s.retention)
}
