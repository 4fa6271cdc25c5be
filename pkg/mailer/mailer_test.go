package mailer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"mime/quotedprintable"
	"net/mail"
	"strings"
	"testing"

	"github.com/ds124wfegd/courseportal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomail "github.com/wneessen/go-mail"
)

type recordingSender struct {
	err  error
	sent []*gomail.Msg
}

func (s *recordingSender) DialAndSendWithContext(_ context.Context, messages ...*gomail.Msg) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, messages...)
	return nil
}

func newTestMailer(t *testing.T, sender Sender) *SMTPMailer {
	t.Helper()
	m, err := NewSMTPMailer(&config.EmailConfig{From: "portal@example.com", Host: "smtp.local", Port: 1025})
	require.NoError(t, err)
	return m.WithSender(sender)
}

// render writes msg out and parses it back the way a mail client would.
func render(t *testing.T, msg *gomail.Msg) (raw string, subject string, body string) {
	t.Helper()
	var buf bytes.Buffer
	_, err := msg.WriteTo(&buf)
	require.NoError(t, err)
	raw = buf.String()

	parsed, err := mail.ReadMessage(strings.NewReader(raw))
	require.NoError(t, err)

	subject, err = new(mime.WordDecoder).DecodeHeader(parsed.Header.Get("Subject"))
	require.NoError(t, err)

	var r io.Reader = parsed.Body
	if strings.EqualFold(parsed.Header.Get("Content-Transfer-Encoding"), "quoted-printable") {
		r = quotedprintable.NewReader(r)
	}
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	return raw, subject, string(b)
}

func TestSend(t *testing.T) {
	sender := &recordingSender{}
	m := newTestMailer(t, sender)

	require.NoError(t, m.Send(context.Background(), "ann@example.com", "Seat", "line one\nline two"))
	require.Len(t, sender.sent, 1)

	_, subject, body := render(t, sender.sent[0])
	assert.Equal(t, "Seat", subject)
	assert.Contains(t, body, "line one\r\nline two")
}

func TestSendEncodesNonASCIIAndKeepsCRLF(t *testing.T) {
	sender := &recordingSender{}
	m := newTestMailer(t, sender)

	require.NoError(t, m.Send(context.Background(), "ann@example.com", "You got a seat in Økologi", "line1\r\nline2"))
	require.Len(t, sender.sent, 1)

	raw, subject, body := render(t, sender.sent[0])
	end := strings.Index(raw, "\r\n\r\n")
	require.Positive(t, end)
	header := raw[:end]
	assert.NotContains(t, header, "Økologi")
	assert.Equal(t, "You got a seat in Økologi", subject)
	assert.NotContains(t, raw, "\r\r\n")
	assert.Contains(t, body, "line1\r\nline2")
}

func TestSendErrors(t *testing.T) {
	failing := newTestMailer(t, &recordingSender{err: errors.New("relay denied")})

	err := failing.Send(context.Background(), "ann@example.com", "Seat", "body")
	assert.ErrorContains(t, err, "relay denied")

	sender := &recordingSender{}
	m := newTestMailer(t, sender)
	err = m.Send(context.Background(), "ann@example.com\r\nBcc: x@y", "Seat", "body")
	assert.ErrorContains(t, err, "invalid recipient")
	assert.Empty(t, sender.sent)

	require.NoError(t, m.Send(context.Background(), "ann@example.com", "Seat\r\nBcc: x@y", "body"))
	raw, _, _ := render(t, sender.sent[0])
	assert.NotContains(t, raw, "\r\nBcc:")
}
