// Package push manages the agent's webhook registration with the backend: the
// endpoint the backend calls when it has an event worth pushing.
package push

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/wanfrev/machinehub-agent/internal/domain"
	"github.com/wanfrev/machinehub-agent/internal/repository"
)

// Backend is the slice of the fleet client subscriptions use.
type Backend interface {
	VapidPublicKey(ctx context.Context) (string, error)
	SaveSubscription(ctx context.Context, sub domain.PushSubscription) error
	DeleteSubscription(ctx context.Context, sub domain.PushSubscription) error
}

type Service interface {
	EnsureSubscribed(ctx context.Context) error
	Unsubscribe(ctx context.Context) error
	Subscription(ctx context.Context) (*domain.PushSubscription, error)
}

type service struct {
	backend   Backend
	repo      repository.SubscriptionRepository
	publicURL string
}

func NewService(backend Backend, repo repository.SubscriptionRepository, publicURL string) Service {
	return &service{
		backend:   backend,
		repo:      repo,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

// EnsureSubscribed registers the agent's push endpoint with the backend,
// re-using the stored registration when one exists for the current endpoint.
func (s *service) EnsureSubscribed(ctx context.Context) error {
	if s.publicURL == "" {
		return fmt.Errorf("public URL not configured, cannot register push endpoint")
	}
	endpoint := s.publicURL + "/api/push/events"

	if existing, err := s.repo.Get(ctx); err == nil && existing != nil && existing.Endpoint == endpoint {
		return nil
	}

	// The key is informational for webhook mode; fetching it also proves the
	// backend's push surface is up before we register.
	if _, err := s.backend.VapidPublicKey(ctx); err != nil {
		log.Printf("push: vapid key unavailable, registering anyway: %v", err)
	}

	sub := domain.PushSubscription{
		ID:       uuid.New(),
		Endpoint: endpoint,
	}
	if err := s.backend.SaveSubscription(ctx, sub); err != nil {
		return fmt.Errorf("register push endpoint: %w", err)
	}
	return s.repo.Save(ctx, sub)
}

// Unsubscribe removes the registration from the backend and forgets it
// locally. A missing local registration is not an error.
func (s *service) Unsubscribe(ctx context.Context) error {
	sub, err := s.repo.Get(ctx)
	if err != nil {
		return err
	}
	if sub == nil {
		return nil
	}
	if err := s.backend.DeleteSubscription(ctx, *sub); err != nil {
		return err
	}
	return s.repo.Clear(ctx)
}

func (s *service) Subscription(ctx context.Context) (*domain.PushSubscription, error) {
	return s.repo.Get(ctx)
}
