package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wanfrev/machinehub-agent/internal/domain"
)

// Storage keys match the names the dashboard historically used on the client
// side, so operators can reason about them across both.
const (
	keyLastSeen           = "notifications_last_seen"
	keyNotificationsToday = "notifications_today"
	keyNotificationsFrom  = "notifications_from"
	keyNotificationsTo    = "notifications_to"
)

// PreferenceRepository persists the unread cursor and the date-range
// preferences of the notification view. Only the dashboard runtime writes
// here; the worker never touches persisted state.
type PreferenceRepository interface {
	LastSeen(ctx context.Context) (time.Time, error)
	SetLastSeen(ctx context.Context, ts time.Time) error
	Preferences(ctx context.Context) (domain.NotificationPreferences, error)
	SetPreferences(ctx context.Context, prefs domain.NotificationPreferences) error
}

type preferenceRepository struct {
	rdb *redis.Client
}

func NewPreferenceRepository(rdb *redis.Client) PreferenceRepository {
	return &preferenceRepository{rdb: rdb}
}

// LastSeen returns the zero time when no cursor has been persisted yet.
func (r *preferenceRepository) LastSeen(ctx context.Context) (time.Time, error) {
	raw, err := r.rdb.Get(ctx, keyLastSeen).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}

	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		// A corrupt cursor is treated as unset, matching the tolerant
		// handling everywhere else in the pipeline.
		return time.Time{}, nil
	}
	return ts, nil
}

func (r *preferenceRepository) SetLastSeen(ctx context.Context, ts time.Time) error {
	return r.rdb.Set(ctx, keyLastSeen, ts.UTC().Format(time.RFC3339Nano), 0).Err()
}

func (r *preferenceRepository) Preferences(ctx context.Context) (domain.NotificationPreferences, error) {
	prefs := domain.DefaultNotificationPreferences()

	today, err := r.rdb.Get(ctx, keyNotificationsToday).Result()
	if errors.Is(err, redis.Nil) {
		return prefs, nil
	}
	if err != nil {
		return prefs, err
	}

	if today == "true" {
		return prefs, nil
	}

	prefs.TodayOnly = false
	if from, err := r.rdb.Get(ctx, keyNotificationsFrom).Result(); err == nil {
		prefs.From = from
	}
	if to, err := r.rdb.Get(ctx, keyNotificationsTo).Result(); err == nil {
		prefs.To = to
	}
	return prefs, nil
}

func (r *preferenceRepository) SetPreferences(ctx context.Context, prefs domain.NotificationPreferences) error {
	if prefs.TodayOnly {
		if err := r.rdb.Set(ctx, keyNotificationsToday, "true", 0).Err(); err != nil {
			return err
		}
		return r.rdb.Del(ctx, keyNotificationsFrom, keyNotificationsTo).Err()
	}

	if err := r.rdb.Set(ctx, keyNotificationsToday, "false", 0).Err(); err != nil {
		return err
	}
	if prefs.From != "" {
		if err := r.rdb.Set(ctx, keyNotificationsFrom, prefs.From, 0).Err(); err != nil {
			return err
		}
	} else if err := r.rdb.Del(ctx, keyNotificationsFrom).Err(); err != nil {
		return err
	}
	if prefs.To != "" {
		return r.rdb.Set(ctx, keyNotificationsTo, prefs.To, 0).Err()
	}
	return r.rdb.Del(ctx, keyNotificationsTo).Err()
}
