// Package auth validates the staff tokens the fleet backend issues. The agent
// never mints tokens itself; it only verifies them and extracts the identity
// the rest of the pipeline filters by.
package auth

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/wanfrev/machinehub-agent/internal/domain"
	"github.com/wanfrev/machinehub-agent/internal/repository"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrUnknownRole  = errors.New("token carries no recognized role")
)

const sessionTTL = 24 * time.Hour

type Service interface {
	ValidateAccessToken(ctx context.Context, token string) (*domain.Identity, error)
	ActiveSessions(ctx context.Context) (int64, error)
}

type Claims struct {
	UserID             uuid.UUID `json:"user_id"`
	Name               string    `json:"name,omitempty"`
	Role               string    `json:"role"`
	AssignedMachineIDs []string  `json:"assigned_machine_ids,omitempty"`
	jwt.RegisteredClaims
}

type service struct {
	secret      []byte
	sessionRepo repository.SessionRepository
}

func NewService(jwtSecret string, sessionRepo repository.SessionRepository) Service {
	return &service{
		secret:      []byte(jwtSecret),
		sessionRepo: sessionRepo,
	}
}

// ValidateAccessToken verifies the signature and expiry and maps the claims to
// an identity. The session ledger is touched best-effort; a redis hiccup never
// blocks a valid token.
func (s *service) ValidateAccessToken(ctx context.Context, tokenString string) (*domain.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	identity, err := IdentityFromClaims(claims)
	if err != nil {
		return nil, err
	}

	if err := s.sessionRepo.Touch(ctx, tokenString, *identity, sessionTTL); err != nil {
		log.Printf("auth: session touch failed: %v", err)
	}

	return identity, nil
}

func (s *service) ActiveSessions(ctx context.Context) (int64, error) {
	return s.sessionRepo.ActiveCount(ctx)
}

// IdentityFromClaims maps validated claims to the domain identity. Exposed so
// the station identity can be derived from the configured backend token at
// startup.
func IdentityFromClaims(claims *Claims) (*domain.Identity, error) {
	switch claims.Role {
	case domain.RoleAdmin, domain.RoleSupervisor, domain.RoleOperator:
	default:
		return nil, ErrUnknownRole
	}

	return &domain.Identity{
		UserID:             claims.UserID,
		Name:               claims.Name,
		Role:               claims.Role,
		AssignedMachineIDs: claims.AssignedMachineIDs,
	}, nil
}

// ParseUnverified extracts the identity from a token without checking the
// signature. Used only for the agent's own configured backend token, whose
// integrity is the deployment's responsibility, to learn the station identity.
func ParseUnverified(tokenString string) (*domain.Identity, error) {
	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(tokenString, &Claims{})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return IdentityFromClaims(claims)
}
