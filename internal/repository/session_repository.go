package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wanfrev/machinehub-agent/internal/domain"
)

const sessionKeyPrefix = "session:"

// SessionRepository keeps a ledger of recently seen staff sessions: which
// identity last presented which token, keyed by token hash. Purely
// observational; tokens are validated by the auth service, never looked up
// here.
type SessionRepository interface {
	Touch(ctx context.Context, token string, identity domain.Identity, ttl time.Duration) error
	ActiveCount(ctx context.Context) (int64, error)
}

type sessionRepository struct {
	rdb *redis.Client
}

func NewSessionRepository(rdb *redis.Client) SessionRepository {
	return &sessionRepository{rdb: rdb}
}

func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (r *sessionRepository) Touch(ctx context.Context, token string, identity domain.Identity, ttl time.Duration) error {
	encoded, err := json.Marshal(identity)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, sessionKeyPrefix+HashToken(token), encoded, ttl).Err()
}

func (r *sessionRepository) ActiveCount(ctx context.Context) (int64, error) {
	var cursor uint64
	var count int64
	for {
		keys, next, err := r.rdb.Scan(ctx, cursor, sessionKeyPrefix+"*", 100).Result()
		if err != nil {
			return 0, err
		}
		count += int64(len(keys))
		if next == 0 {
			return count, nil
		}
		cursor = next
	}
}
