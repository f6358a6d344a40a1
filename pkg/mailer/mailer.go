package mailer

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// Config holds SMTP settings
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	DevMode  bool
}

// TicketEmail carries everything the ticket template needs
type TicketEmail struct {
	TicketNumber  string
	From          string
	To            string
	SeatNumber    int
	DepartureTime time.Time
	Amount        float64
	Method        string
}

// Mailer sends transactional email over SMTP. In dev mode messages are
// logged instead of sent, so the register flow works without a mail
// account configured.
type Mailer struct {
	config Config
	dialer *gomail.Dialer
	logger *logrus.Logger
}

// New creates a new mailer
func New(cfg Config, logger *logrus.Logger) *Mailer {
	m := &Mailer{config: cfg, logger: logger}
	if !cfg.DevMode {
		m.dialer = gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	}
	return m
}

// SendOTP delivers a verification code
func (m *Mailer) SendOTP(to, name, code string) error {
	subject := "Your SmartBus verification code"
	body := fmt.Sprintf(`<p>Hi %s,</p>
<p>Your verification code is:</p>
<h2 style="letter-spacing: 4px;">%s</h2>
<p>The code expires in 10 minutes. If you did not request it, ignore this email.</p>
<p>- SmartBus</p>`, name, code)

	return m.send(to, subject, body, logrus.Fields{"type": "otp", "to": to, "code": code})
}

// SendTicket delivers the e-ticket for a confirmed booking
func (m *Mailer) SendTicket(to, name string, ticket TicketEmail) error {
	subject := fmt.Sprintf("Your ticket %s - %s to %s", ticket.TicketNumber, ticket.From, ticket.To)
	body := fmt.Sprintf(`<p>Hi %s,</p>
<p>Your booking is confirmed. Safe travels!</p>
<table cellpadding="6">
<tr><td><b>Ticket</b></td><td>%s</td></tr>
<tr><td><b>Route</b></td><td>%s → %s</td></tr>
<tr><td><b>Departure</b></td><td>%s</td></tr>
<tr><td><b>Seat</b></td><td>%d</td></tr>
<tr><td><b>Paid</b></td><td>TZS %.0f via %s</td></tr>
</table>
<p>Show this email when boarding.</p>
<p>- SmartBus</p>`,
		name, ticket.TicketNumber, ticket.From, ticket.To,
		ticket.DepartureTime.Format("Mon, 02 Jan 2006 15:04"),
		ticket.SeatNumber, ticket.Amount, ticket.Method)

	return m.send(to, subject, body, logrus.Fields{"type": "ticket", "to": to, "ticket": ticket.TicketNumber})
}

func (m *Mailer) send(to, subject, body string, fields logrus.Fields) error {
	if m.dialer == nil {
		m.logger.WithFields(fields).Info("Dev mode, email logged instead of sent")
		return nil
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.config.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
