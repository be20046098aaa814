package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/wanfrev/machinehub-agent/internal/domain"
)

const keyPushSubscription = "push_subscription"

// SubscriptionRepository remembers the push registration the agent holds with
// the backend, so restarts re-use it instead of piling up registrations.
type SubscriptionRepository interface {
	Get(ctx context.Context) (*domain.PushSubscription, error)
	Save(ctx context.Context, sub domain.PushSubscription) error
	Clear(ctx context.Context) error
}

type subscriptionRepository struct {
	rdb *redis.Client
}

func NewSubscriptionRepository(rdb *redis.Client) SubscriptionRepository {
	return &subscriptionRepository{rdb: rdb}
}

func (r *subscriptionRepository) Get(ctx context.Context) (*domain.PushSubscription, error) {
	raw, err := r.rdb.Get(ctx, keyPushSubscription).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var sub domain.PushSubscription
	if err := json.Unmarshal([]byte(raw), &sub); err != nil {
		return nil, nil
	}
	return &sub, nil
}

func (r *subscriptionRepository) Save(ctx context.Context, sub domain.PushSubscription) error {
	encoded, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, keyPushSubscription, encoded, 0).Err()
}

func (r *subscriptionRepository) Clear(ctx context.Context) error {
	return r.rdb.Del(ctx, keyPushSubscription).Err()
}
