package mail

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomail "gopkg.in/mail.v2"

	"github.com/photoblog/photoblog/internal/models"
	"github.com/photoblog/photoblog/pkg/config"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []*gomail.Message
	err  error
}

func (f *fakeSender) DialAndSend(m ...*gomail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, m...)
	return f.err
}

func testConfig() config.MailConfig {
	return config.MailConfig{
		Enabled:       true,
		Sender:        "Photoblog Admin <photoblog@example.com>",
		SubjectPrefix: "[Photoblog]",
		FrontendURL:   "http://localhost:5000/",
	}
}

func render(t *testing.T, m *gomail.Message) string {
	t.Helper()
	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)
	return buf.String()
}

func TestSendConfirmation(t *testing.T) {
	sender := &fakeSender{}
	m := NewWithSender(testConfig(), sender)

	m.SendConfirmation(&models.Account{Email: "john@example.com", Username: "john"}, "tok.en")
	m.Wait()

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, []string{"john@example.com"}, msg.GetHeader("To"))
	assert.Equal(t, []string{"[Photoblog] Confirm Your Account"}, msg.GetHeader("Subject"))

	raw := render(t, msg)
	assert.Contains(t, raw, "Dear john")
	assert.Contains(t, raw, "http://localhost:5000/auth/confirm?token=")
	assert.Contains(t, raw, "tok.en")
}

func TestSendEmailChangeGoesToNewAddress(t *testing.T) {
	sender := &fakeSender{}
	m := NewWithSender(testConfig(), sender)

	m.SendEmailChange(&models.Account{Email: "old@example.com", Username: "john"}, "new@example.com", "t")
	m.SendPasswordReset(&models.Account{Email: "old@example.com", Username: "john"}, "t")
	m.Wait()

	require.Len(t, sender.sent, 2)
	var recipients []string
	for _, msg := range sender.sent {
		recipients = append(recipients, msg.GetHeader("To")...)
	}
	assert.ElementsMatch(t, []string{"new@example.com", "old@example.com"}, recipients)
}

func TestSendFailureIsSwallowed(t *testing.T) {
	sender := &fakeSender{err: errors.New("smtp down")}
	m := NewWithSender(testConfig(), sender)

	m.SendPasswordReset(&models.Account{Email: "a@example.com", Username: "a"}, "t")
	m.Wait()
	assert.Len(t, sender.sent, 1)
}

func TestDisabledMailerDropsMessages(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	m := New(cfg)

	m.SendConfirmation(&models.Account{Email: "a@example.com", Username: "a"}, "t")
	m.Wait()
	assert.Nil(t, m.sender)
}

func TestLinkEscapesToken(t *testing.T) {
	m := NewWithSender(testConfig(), &fakeSender{})
	link := m.link("/auth/reset", "a+b/c")
	assert.True(t, strings.HasSuffix(link, "/auth/reset?token=a%2Bb%2Fc"), link)
}
