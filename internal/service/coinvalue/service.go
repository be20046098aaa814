// Package coinvalue manages the per-machine-type coin pricing used to turn
// coin counts into revenue. Values come from the backend and are cached
// locally so reports keep working through outages.
package coinvalue

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"

	"github.com/wanfrev/machinehub-agent/internal/repository"
)

var ErrInvalidValue = errors.New("coin value must be a finite non-negative number")

// Backend is the slice of the fleet client pricing uses.
type Backend interface {
	CoinValues(ctx context.Context) (map[string]float64, error)
	SetCoinValue(ctx context.Context, coinType string, value float64) error
}

type Service interface {
	Load(ctx context.Context) error
	Refresh(ctx context.Context) error
	Values() map[string]float64
	ValueFor(machineType string) float64
	Set(ctx context.Context, machineType string, value float64) error
}

type service struct {
	backend Backend
	repo    repository.CoinValueRepository

	mu     sync.RWMutex
	values map[string]float64
}

func NewService(backend Backend, repo repository.CoinValueRepository) Service {
	return &service{
		backend: backend,
		repo:    repo,
		values:  make(map[string]float64),
	}
}

// Load primes pricing at startup: cache first for instant availability, then
// the backend as the source of truth.
func (s *service) Load(ctx context.Context) error {
	if cached, err := s.repo.Get(ctx); err == nil && len(cached) > 0 {
		s.replace(cached)
	}
	return s.Refresh(ctx)
}

// Refresh pulls current pricing from the backend and re-caches it. On error
// the previously loaded values stay in effect.
func (s *service) Refresh(ctx context.Context) error {
	fetched, err := s.backend.CoinValues(ctx)
	if err != nil {
		return err
	}

	clean := normalize(fetched)
	s.replace(clean)
	return s.repo.Set(ctx, clean)
}

func (s *service) Values() map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]float64, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// ValueFor returns the price of one coin for a machine type, zero when the
// type is unpriced.
func (s *service) ValueFor(machineType string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[strings.ToLower(strings.TrimSpace(machineType))]
}

// Set updates one type's price on the backend, then locally and in the cache.
func (s *service) Set(ctx context.Context, machineType string, value float64) error {
	key := strings.ToLower(strings.TrimSpace(machineType))
	if key == "" {
		return ErrInvalidValue
	}
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return ErrInvalidValue
	}

	if err := s.backend.SetCoinValue(ctx, key, value); err != nil {
		return err
	}

	s.mu.Lock()
	s.values[key] = value
	snapshot := make(map[string]float64, len(s.values))
	for k, v := range s.values {
		snapshot[k] = v
	}
	s.mu.Unlock()

	return s.repo.Set(ctx, snapshot)
}

func (s *service) replace(values map[string]float64) {
	s.mu.Lock()
	s.values = values
	s.mu.Unlock()
}

// normalize lowercases keys and drops non-finite or negative entries the
// backend should never send but occasionally has.
func normalize(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		key := strings.ToLower(strings.TrimSpace(k))
		if key == "" || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			continue
		}
		out[key] = v
	}
	return out
}
