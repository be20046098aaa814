package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/wanfrev/machinehub-agent/internal/domain"
)

// SalesRepository is the local coin-event archive. Every accepted coin event
// is recorded so daily reports survive backend outages.
type SalesRepository interface {
	EnsureSchema(ctx context.Context) error
	Create(ctx context.Context, sale *domain.SaleRecord) error
	DailyTotals(ctx context.Context, fromDay, toDay string) ([]domain.DailySales, error)
	MachineTotal(ctx context.Context, machineID, day string) (int, error)
	PruneOlderThan(ctx context.Context, retention time.Duration) (int64, error)
}

type salesRepository struct {
	db *sqlx.DB
}

func NewSalesRepository(db *sqlx.DB) SalesRepository {
	return &salesRepository{db: db}
}

func (r *salesRepository) EnsureSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS sales_history (
			id         BIGSERIAL PRIMARY KEY,
			machine_id TEXT        NOT NULL,
			amount     INTEGER     NOT NULL,
			day        TEXT        NOT NULL,
			ts         TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_sales_history_day ON sales_history (day, machine_id);`

	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure sales schema: %w", err)
	}
	return nil
}

func (r *salesRepository) Create(ctx context.Context, sale *domain.SaleRecord) error {
	query := `
		INSERT INTO sales_history (machine_id, amount, day, ts)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	return r.db.QueryRowxContext(ctx, query,
		sale.MachineID, sale.Amount, sale.Day, sale.Timestamp,
	).Scan(&sale.ID, &sale.CreatedAt)
}

func (r *salesRepository) DailyTotals(ctx context.Context, fromDay, toDay string) ([]domain.DailySales, error) {
	var totals []domain.DailySales
	query := `
		SELECT day, machine_id, SUM(amount) AS coins
		FROM sales_history
		WHERE day >= $1 AND day <= $2
		GROUP BY day, machine_id
		ORDER BY day DESC, machine_id`

	if err := r.db.SelectContext(ctx, &totals, query, fromDay, toDay); err != nil {
		return nil, err
	}
	return totals, nil
}

func (r *salesRepository) MachineTotal(ctx context.Context, machineID, day string) (int, error) {
	var total int
	query := `SELECT COALESCE(SUM(amount), 0) FROM sales_history WHERE machine_id = $1 AND day = $2`

	if err := r.db.GetContext(ctx, &total, query, machineID, day); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *salesRepository) PruneOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	query := `DELETE FROM sales_history WHERE ts < $1`

	res, err := r.db.ExecContext(ctx, query, time.Now().Add(-retention))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
