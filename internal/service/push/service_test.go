package push

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanfrev/machinehub-agent/internal/domain"
)

type fakeBackend struct {
	vapidErr error
	saveErr  error
	saved    []domain.PushSubscription
	deleted  []domain.PushSubscription
}

func (f *fakeBackend) VapidPublicKey(_ context.Context) (string, error) {
	return "key", f.vapidErr
}

func (f *fakeBackend) SaveSubscription(_ context.Context, sub domain.PushSubscription) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, sub)
	return nil
}

func (f *fakeBackend) DeleteSubscription(_ context.Context, sub domain.PushSubscription) error {
	f.deleted = append(f.deleted, sub)
	return nil
}

type fakeRepo struct {
	stored *domain.PushSubscription
}

func (f *fakeRepo) Get(_ context.Context) (*domain.PushSubscription, error) { return f.stored, nil }

func (f *fakeRepo) Save(_ context.Context, sub domain.PushSubscription) error {
	f.stored = &sub
	return nil
}

func (f *fakeRepo) Clear(_ context.Context) error {
	f.stored = nil
	return nil
}

func TestEnsureSubscribedRegistersEndpoint(t *testing.T) {
	be := &fakeBackend{}
	repo := &fakeRepo{}
	svc := NewService(be, repo, "https://agent.sala.local/")

	require.NoError(t, svc.EnsureSubscribed(context.Background()))

	require.Len(t, be.saved, 1)
	assert.Equal(t, "https://agent.sala.local/api/push/events", be.saved[0].Endpoint)
	require.NotNil(t, repo.stored)
	assert.Equal(t, be.saved[0].ID, repo.stored.ID)
}

func TestEnsureSubscribedIsIdempotent(t *testing.T) {
	be := &fakeBackend{}
	repo := &fakeRepo{}
	svc := NewService(be, repo, "https://agent.sala.local")

	require.NoError(t, svc.EnsureSubscribed(context.Background()))
	require.NoError(t, svc.EnsureSubscribed(context.Background()))

	assert.Len(t, be.saved, 1)
}

func TestEnsureSubscribedSurvivesVapidOutage(t *testing.T) {
	be := &fakeBackend{vapidErr: errors.New("boom")}
	svc := NewService(be, &fakeRepo{}, "https://agent.sala.local")

	require.NoError(t, svc.EnsureSubscribed(context.Background()))
	assert.Len(t, be.saved, 1)
}

func TestEnsureSubscribedRequiresPublicURL(t *testing.T) {
	svc := NewService(&fakeBackend{}, &fakeRepo{}, "")
	assert.Error(t, svc.EnsureSubscribed(context.Background()))
}

func TestUnsubscribeClearsRegistration(t *testing.T) {
	be := &fakeBackend{}
	repo := &fakeRepo{stored: &domain.PushSubscription{Endpoint: "https://x/api/push/events"}}
	svc := NewService(be, repo, "https://x")

	require.NoError(t, svc.Unsubscribe(context.Background()))
	assert.Len(t, be.deleted, 1)
	assert.Nil(t, repo.stored)

	// No registration: nothing to do.
	require.NoError(t, svc.Unsubscribe(context.Background()))
	assert.Len(t, be.deleted, 1)
}
