package mail

import (
	"context"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSendDisabled(t *testing.T) {
	mailer, err := NewSMTPMailer(SMTPSettings{Enabled: false})
	require.NoError(t, err)

	err = mailer.Send(context.Background(), Message{To: []string{"user@example.com"}})
	require.ErrorIs(t, err, ErrSMTPDisabled)
}

func TestNewSMTPMailerRequiresHost(t *testing.T) {
	_, err := NewSMTPMailer(SMTPSettings{Enabled: true, Port: 587})
	require.Error(t, err)
}

func TestSendFormatsMessage(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte

	mailer := &smtpMailer{
		cfg: SMTPSettings{Enabled: true, Host: "mail.example.com", Port: 587, From: "noreply@example.com"},
		sendFn: func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
			gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
			return nil
		},
	}

	err := mailer.Send(context.Background(), Message{
		To:      []string{"user@example.com", "user@example.com"},
		Subject: "Hello\r\nInjected",
		Body:    "body text",
	})
	require.NoError(t, err)

	require.Equal(t, "mail.example.com:587", gotAddr)
	require.Equal(t, "noreply@example.com", gotFrom)
	require.Equal(t, []string{"user@example.com"}, gotTo)
	require.Contains(t, string(gotMsg), "Subject: Hello Injected")
	require.True(t, strings.HasSuffix(string(gotMsg), "body text"))
}

func TestSendRejectsInvalidRecipient(t *testing.T) {
	mailer := &smtpMailer{
		cfg: SMTPSettings{Enabled: true, Host: "mail.example.com", Port: 587, From: "noreply@example.com"},
		sendFn: func(string, smtp.Auth, string, []string, []byte) error {
			t.Fatal("send should not be reached")
			return nil
		},
	}

	err := mailer.Send(context.Background(), Message{To: []string{"not-an-address"}})
	require.Error(t, err)
}
