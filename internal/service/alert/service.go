// Package alert escalates operationally significant events by email. Today
// that is one case: a machine reporting itself powered off.
package alert

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/resend/resend-go/v3"

	"github.com/wanfrev/machinehub-agent/internal/domain"
	"github.com/wanfrev/machinehub-agent/internal/notify"
)

// One alert per machine per cooldown; a flapping machine must not flood the
// inbox.
const machineOffCooldown = 10 * time.Minute

type Service interface {
	MachineDown(ctx context.Context, n domain.Notification)
}

type service struct {
	emails    resend.EmailsSvc
	fromEmail string
	toEmail   string
	siteName  string

	mu       sync.Mutex
	lastSent map[string]time.Time
	now      func() time.Time
}

// NewService returns a no-op service when no alert recipient is configured.
func NewService(apiKey, fromEmail, toEmail, siteName string) Service {
	if apiKey == "" || toEmail == "" {
		return &noopService{}
	}
	client := resend.NewClient(apiKey)
	return &service{
		emails:    client.Emails,
		fromEmail: fromEmail,
		toEmail:   toEmail,
		siteName:  siteName,
		lastSent:  make(map[string]time.Time),
		now:       time.Now,
	}
}

// MachineDown sends the power-off escalation. Failures are logged and
// swallowed: alerting never disturbs the event pipeline.
func (s *service) MachineDown(ctx context.Context, n domain.Notification) {
	s.mu.Lock()
	if last, ok := s.lastSent[n.MachineID]; ok && s.now().Sub(last) < machineOffCooldown {
		s.mu.Unlock()
		return
	}
	s.lastSent[n.MachineID] = s.now()
	s.mu.Unlock()

	name := n.MachineName
	if name == "" {
		name = fmt.Sprintf("Máquina %s", n.MachineID)
	}
	reason := n.Detail
	if reason == "" {
		reason = "Sin motivo reportado"
	}
	stamp := n.Timestamp.In(notify.FleetZone()).Format("02/01/2006, 15:04:05")

	html := fmt.Sprintf(`
<!DOCTYPE html>
<html lang="es">
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<div style="background-color: #ef4444; padding: 20px; text-align: center; border-radius: 10px 10px 0 0;">
		<h1 style="color: #ffffff; margin: 0; font-size: 22px;">Máquina apagada</h1>
	</div>
	<div style="background-color: #ffffff; padding: 24px; border: 1px solid #e5e7eb; border-top: none; border-radius: 0 0 10px 10px;">
		<p><strong>%s</strong> reportó apagado.</p>
		<div style="background-color: #f3f4f6; padding: 16px; border-radius: 8px;">
			<div><strong>Máquina:</strong> %s (ID %s)</div>
			<div><strong>Ubicación:</strong> %s</div>
			<div><strong>Motivo:</strong> %s</div>
			<div><strong>Hora:</strong> %s</div>
		</div>
		<p style="font-size: 14px; color: #6b7280;">Revise la máquina o el panel para más detalle.</p>
	</div>
</body>
</html>`, s.siteName, name, n.MachineID, orDash(n.Location), reason, stamp)

	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", s.siteName, s.fromEmail),
		To:      []string{s.toEmail},
		Html:    html,
		Subject: fmt.Sprintf("Máquina apagada: %s", name),
	}

	if _, err := s.emails.SendWithContext(ctx, params); err != nil {
		log.Printf("alerts: machine-off email for %s failed: %v", n.MachineID, err)
	}
}

func orDash(s string) string {
	if s == "" {
		return "N/D"
	}
	return s
}

type noopService struct{}

func (noopService) MachineDown(context.Context, domain.Notification) {}
