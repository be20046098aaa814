package service

import (
	"log"

	"github.com/wanfrev/machinehub-agent/internal/backend"
	"github.com/wanfrev/machinehub-agent/internal/config"
	"github.com/wanfrev/machinehub-agent/internal/domain"
	"github.com/wanfrev/machinehub-agent/internal/realtime"
	"github.com/wanfrev/machinehub-agent/internal/repository"
	"github.com/wanfrev/machinehub-agent/internal/service/alert"
	"github.com/wanfrev/machinehub-agent/internal/service/auth"
	"github.com/wanfrev/machinehub-agent/internal/service/coinvalue"
	"github.com/wanfrev/machinehub-agent/internal/service/dashboard"
	"github.com/wanfrev/machinehub-agent/internal/service/machine"
	"github.com/wanfrev/machinehub-agent/internal/service/notification"
	"github.com/wanfrev/machinehub-agent/internal/service/push"
	"github.com/wanfrev/machinehub-agent/internal/service/sales"
)

// foregroundBuffer sizes the worker-to-runtime queue; overflow drops the
// relay copy, the socket copy still arrives.
const foregroundBuffer = 256

type Services struct {
	Auth          auth.Service
	Notifications notification.Service
	Machines      machine.Service
	CoinValues    coinvalue.Service
	Sales         sales.Service
	Alerts        alert.Service
	Push          push.Service
	Dashboard     dashboard.Service

	// Foreground is the channel the push worker relays records into and the
	// dashboard runtime consumes.
	Foreground chan domain.Notification
}

func NewServices(
	cfg *config.Config,
	repos *repository.Repositories,
	backendClient *backend.Client,
	hub *realtime.Hub,
	source dashboard.LiveSource,
) *Services {
	station := stationIdentity(cfg.BackendToken)
	foreground := make(chan domain.Notification, foregroundBuffer)

	authSvc := auth.NewService(cfg.JWTSecret, repos.Sessions)
	machineSvc := machine.NewService(backendClient)
	notifSvc := notification.NewService(backendClient, machineSvc, repos.Preferences, station, hub)
	coinSvc := coinvalue.NewService(backendClient, repos.CoinValues)
	salesSvc := sales.NewService(repos.Sales, coinSvc, machineSvc)
	alertSvc := alert.NewService(cfg.ResendAPIKey, cfg.FromEmail, cfg.AlertsEmail, cfg.SiteName)
	pushSvc := push.NewService(backendClient, repos.Subscription, cfg.PublicURL)
	dashboardSvc := dashboard.NewService(
		source, foreground, notifSvc, machineSvc, salesSvc, coinSvc, alertSvc, hub,
		cfg.MachineRefreshInterval,
	)

	return &Services{
		Auth:          authSvc,
		Notifications: notifSvc,
		Machines:      machineSvc,
		CoinValues:    coinSvc,
		Sales:         salesSvc,
		Alerts:        alertSvc,
		Push:          pushSvc,
		Dashboard:     dashboardSvc,
		Foreground:    foreground,
	}
}

// stationIdentity derives the scope the agent itself operates under from the
// configured backend token. Without a usable token the station runs as admin,
// which matches a backend token that sees the whole fleet anyway.
func stationIdentity(backendToken string) domain.Identity {
	if backendToken != "" {
		if identity, err := auth.ParseUnverified(backendToken); err == nil {
			return *identity
		}
		log.Printf("services: backend token carries no identity claims, station runs unscoped")
	}
	return domain.Identity{Name: "station", Role: domain.RoleAdmin}
}
