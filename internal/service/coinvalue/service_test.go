package coinvalue

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	values   map[string]float64
	err      error
	setCalls []string
}

func (f *fakeBackend) CoinValues(_ context.Context) (map[string]float64, error) {
	return f.values, f.err
}

func (f *fakeBackend) SetCoinValue(_ context.Context, coinType string, _ float64) error {
	if f.err != nil {
		return f.err
	}
	f.setCalls = append(f.setCalls, coinType)
	return nil
}

type fakeRepo struct {
	mu     sync.Mutex
	stored map[string]float64
}

func (f *fakeRepo) Get(_ context.Context) (map[string]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stored, nil
}

func (f *fakeRepo) Set(_ context.Context, values map[string]float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored = values
	return nil
}

func TestLoadPrefersBackendOverCache(t *testing.T) {
	be := &fakeBackend{values: map[string]float64{"grua": 0.5}}
	repo := &fakeRepo{stored: map[string]float64{"grua": 0.25}}
	svc := NewService(be, repo)

	require.NoError(t, svc.Load(context.Background()))

	assert.Equal(t, 0.5, svc.ValueFor("grua"))
	assert.Equal(t, map[string]float64{"grua": 0.5}, repo.stored)
}

func TestLoadFallsBackToCacheWhenBackendDown(t *testing.T) {
	be := &fakeBackend{err: errors.New("unreachable")}
	repo := &fakeRepo{stored: map[string]float64{"boxeo": 1.0}}
	svc := NewService(be, repo)

	err := svc.Load(context.Background())
	require.Error(t, err)

	// Cached pricing still serves.
	assert.Equal(t, 1.0, svc.ValueFor("boxeo"))
}

func TestRefreshNormalizesKeysAndDropsGarbage(t *testing.T) {
	be := &fakeBackend{values: map[string]float64{
		" Grua ":  0.5,
		"boxeo":   math.NaN(),
		"pinball": -2,
		"":        3,
	}}
	svc := NewService(be, &fakeRepo{})

	require.NoError(t, svc.Refresh(context.Background()))

	assert.Equal(t, map[string]float64{"grua": 0.5}, svc.Values())
	assert.Equal(t, 0.5, svc.ValueFor("GRUA"))
}

func TestSetValidatesAndPropagates(t *testing.T) {
	be := &fakeBackend{}
	repo := &fakeRepo{}
	svc := NewService(be, repo)

	require.NoError(t, svc.Set(context.Background(), "Grua", 0.75))
	assert.Equal(t, []string{"grua"}, be.setCalls)
	assert.Equal(t, 0.75, svc.ValueFor("grua"))
	assert.Equal(t, map[string]float64{"grua": 0.75}, repo.stored)

	assert.ErrorIs(t, svc.Set(context.Background(), "grua", math.Inf(1)), ErrInvalidValue)
	assert.ErrorIs(t, svc.Set(context.Background(), "grua", -1), ErrInvalidValue)
	assert.ErrorIs(t, svc.Set(context.Background(), "  ", 1), ErrInvalidValue)
}

func TestSetDoesNotCacheOnBackendFailure(t *testing.T) {
	be := &fakeBackend{err: errors.New("boom")}
	svc := NewService(be, &fakeRepo{})

	require.Error(t, svc.Set(context.Background(), "grua", 0.5))
	assert.Zero(t, svc.ValueFor("grua"))
}
