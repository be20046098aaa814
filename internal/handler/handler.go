package handler

import (
	"github.com/wanfrev/machinehub-agent/internal/config"
	"github.com/wanfrev/machinehub-agent/internal/realtime"
	"github.com/wanfrev/machinehub-agent/internal/service"
	"github.com/wanfrev/machinehub-agent/internal/worker"
)

type Handlers struct {
	Notification *NotificationHandler
	Machine      *MachineHandler
	Dashboard    *DashboardHandler
	CoinValue    *CoinValueHandler
	Sales        *SalesHandler
	Push         *PushHandler
	WS           *WSHandler
}

func NewHandlers(services *service.Services, pushWorker *worker.Worker, hub *realtime.Hub, cfg *config.Config) *Handlers {
	return &Handlers{
		Notification: NewNotificationHandler(services.Notifications),
		Machine:      NewMachineHandler(services.Machines),
		Dashboard:    NewDashboardHandler(services.Dashboard),
		CoinValue:    NewCoinValueHandler(services.CoinValues),
		Sales:        NewSalesHandler(services.Sales),
		Push:         NewPushHandler(pushWorker, cfg.PushWebhookToken),
		WS:           NewWSHandler(hub, services.Auth),
	}
}
