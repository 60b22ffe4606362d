package notify

import (
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/bookkeeping-service/internal/config"
	"github.com/Dan9191/bookkeeping-service/internal/models"
	"github.com/Dan9191/bookkeeping-service/internal/money"
)

// Sender handles sending emails via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
	send   func(e *email.Email) error
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	s := &Sender{
		cfg:    cfg,
		logger: logger,
	}
	s.send = s.smtpSend
	return s
}

func (s *Sender) smtpSend(e *email.Email) error {
	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	return e.Send(addr, auth)
}

// SendTransferNotice emails the owner a summary of a committed transfer
func (s *Sender) SendTransferNotice(res models.TransferResult, note string) error {
	var body strings.Builder
	fmt.Fprintf(&body, "A transfer of %s was recorded on %s.\n\n",
		money.Format(res.Amount), time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&body, "From: %s, balance now %s\n", res.FromAccount.Name, money.Format(res.FromAccount.Balance))
	fmt.Fprintf(&body, "To:   %s, balance now %s\n", res.ToAccount.Name, money.Format(res.ToAccount.Balance))
	if note != "" {
		fmt.Fprintf(&body, "Note: %s\n", note)
	}
	return s.deliver("Transfer recorded", body.String())
}

// SendAdjustmentNotice emails the owner a summary of a balance adjustment
func (s *Sender) SendAdjustmentNotice(res models.AdjustResult, note string) error {
	var body strings.Builder
	fmt.Fprintf(&body, "The balance of %s was adjusted on %s.\n\n",
		res.Account.Name, time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&body, "Old balance: %s\n", money.Format(res.OldBalance))
	fmt.Fprintf(&body, "New balance: %s\n", money.Format(res.NewBalance))
	fmt.Fprintf(&body, "Difference:  %s\n", money.Format(res.Difference))
	if note != "" {
		fmt.Fprintf(&body, "Note: %s\n", note)
	}
	return s.deliver("Balance adjusted", body.String())
}

func (s *Sender) deliver(subject, body string) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{s.cfg.NotifyEmail}
	e.Subject = subject
	e.Text = []byte(body + "\nBookkeeping Service\n")

	if err := s.send(e); err != nil {
		s.logger.Errorf("Failed to send %q to %s: %v", subject, s.cfg.NotifyEmail, err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", s.cfg.NotifyEmail, subject)
	return nil
}
