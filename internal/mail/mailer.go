// Package mail sends the account mails: confirmation, password reset and
// email change.
package mail

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	gomail "gopkg.in/mail.v2"

	"github.com/photoblog/photoblog/internal/models"
	"github.com/photoblog/photoblog/pkg/config"
	"github.com/photoblog/photoblog/pkg/logging"
)

// Notifier delivers account mails carrying signed tokens.
type Notifier interface {
	SendConfirmation(account *models.Account, token string)
	SendPasswordReset(account *models.Account, token string)
	SendEmailChange(account *models.Account, newEmail, token string)
}

// Sender is the transport. *gomail.Dialer satisfies it.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer sends mails in the background. Wait blocks until every queued
// mail has been handed to the transport.
type Mailer struct {
	cfg    config.MailConfig
	sender Sender
	wg     sync.WaitGroup
	logger *zap.Logger
}

// New builds a mailer from cfg. When mail is disabled messages are logged
// and dropped.
func New(cfg config.MailConfig) *Mailer {
	var sender Sender
	if cfg.Enabled {
		d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
		d.Timeout = 20 * time.Second
		d.StartTLSPolicy = gomail.OpportunisticStartTLS
		sender = d
	}
	return NewWithSender(cfg, sender)
}

// NewWithSender builds a mailer on an explicit transport
func NewWithSender(cfg config.MailConfig, sender Sender) *Mailer {
	return &Mailer{
		cfg:    cfg,
		sender: sender,
		logger: logging.WithComponent("mailer"),
	}
}

// SendConfirmation mails the account confirmation link.
func (m *Mailer) SendConfirmation(account *models.Account, token string) {
	link := m.link("/auth/confirm", token)
	body := fmt.Sprintf("Dear %s,\n\n"+
		"Welcome to Photoblog!\n\n"+
		"To confirm your account please click on the following link:\n\n%s\n\n"+
		"Sincerely,\n\nThe Photoblog Team\n", account.Username, link)
	m.sendAsync(account.Email, "Confirm Your Account", body)
}

// SendPasswordReset mails the password reset link.
func (m *Mailer) SendPasswordReset(account *models.Account, token string) {
	link := m.link("/auth/reset", token)
	body := fmt.Sprintf("Dear %s,\n\n"+
		"To reset your password click on the following link:\n\n%s\n\n"+
		"If you have not requested a password reset simply ignore this message.\n\n"+
		"Sincerely,\n\nThe Photoblog Team\n", account.Username, link)
	m.sendAsync(account.Email, "Reset Your Password", body)
}

// SendEmailChange mails the confirmation link to the new address.
func (m *Mailer) SendEmailChange(account *models.Account, newEmail, token string) {
	link := m.link("/auth/change-email", token)
	body := fmt.Sprintf("Dear %s,\n\n"+
		"To confirm your new email address click on the following link:\n\n%s\n\n"+
		"Sincerely,\n\nThe Photoblog Team\n", account.Username, link)
	m.sendAsync(newEmail, "Confirm your email address", body)
}

// Wait blocks until pending sends finish.
func (m *Mailer) Wait() {
	m.wg.Wait()
}

func (m *Mailer) link(path, token string) string {
	return strings.TrimRight(m.cfg.FrontendURL, "/") + path + "?token=" + url.QueryEscape(token)
}

func (m *Mailer) compose(to, subject, body string) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.Sender)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", strings.TrimSpace(m.cfg.SubjectPrefix+" "+subject))
	msg.SetBody("text/plain", body)
	return msg
}

func (m *Mailer) sendAsync(to, subject, body string) {
	if m.sender == nil {
		m.logger.Info("Mail disabled, dropping message",
			zap.String("to", to),
			zap.String("subject", subject))
		return
	}
	msg := m.compose(to, subject, body)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.sender.DialAndSend(msg); err != nil {
			m.logger.Error("Failed to send mail", zap.Error(err), zap.String("to", to))
			return
		}
		m.logger.Info("Mail sent", zap.String("to", to), zap.String("subject", subject))
	}()
}
