package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
)

const keyCoinValues = "coin_values_by_type"

// CoinValueRepository caches the per-type coin pricing fetched from the
// backend, so a backend outage does not blank out revenue math.
type CoinValueRepository interface {
	Get(ctx context.Context) (map[string]float64, error)
	Set(ctx context.Context, values map[string]float64) error
}

type coinValueRepository struct {
	rdb *redis.Client
}

func NewCoinValueRepository(rdb *redis.Client) CoinValueRepository {
	return &coinValueRepository{rdb: rdb}
}

func (r *coinValueRepository) Get(ctx context.Context) (map[string]float64, error) {
	raw, err := r.rdb.Get(ctx, keyCoinValues).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var values map[string]float64
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, nil
	}
	return values, nil
}

func (r *coinValueRepository) Set(ctx context.Context, values map[string]float64) error {
	encoded, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, keyCoinValues, encoded, 0).Err()
}
