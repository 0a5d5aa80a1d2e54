package notify

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	"marpro/internal/config"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SMTPTransport sends multipart/alternative mail through an SMTP relay.
type SMTPTransport struct {
	cfg    config.MailConfig
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	now    func() time.Time
	logger *zerolog.Logger
}

func NewSMTPTransport(cfg config.MailConfig, logger *zerolog.Logger) *SMTPTransport {
	return &SMTPTransport{
		cfg:    cfg,
		send:   smtp.SendMail,
		now:    time.Now,
		logger: logger,
	}
}

func (t *SMTPTransport) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := t.build(msg)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(t.cfg.Host, strconv.Itoa(t.cfg.Port))
	var auth smtp.Auth
	if t.cfg.Username != "" {
		auth = smtp.PlainAuth("", t.cfg.Username, t.cfg.Password, t.cfg.Host)
	}

	if err := t.send(addr, auth, t.cfg.From, []string{msg.To}, raw); err != nil {
		return fmt.Errorf("smtp send to %s: %w", addr, err)
	}

	t.logger.Debug().Str("to", msg.To).Str("subject", msg.Subject).Msg("mail delivered to relay")
	return nil
}

// build renders the RFC 5322 message with a text and an HTML part.
func (t *SMTPTransport) build(msg Message) ([]byte, error) {
	to, err := mail.ParseAddress(msg.To)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}
	from := mail.Address{Name: t.cfg.FromName, Address: t.cfg.From}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	var buf bytes.Buffer
	buf.WriteString("From: " + from.String() + "\r\n")
	buf.WriteString("To: " + to.String() + "\r\n")
	if t.cfg.ReplyTo != "" {
		buf.WriteString("Reply-To: " + t.cfg.ReplyTo + "\r\n")
	}
	buf.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject) + "\r\n")
	buf.WriteString("Date: " + t.now().Format(time.RFC1123Z) + "\r\n")
	buf.WriteString("Message-ID: <" + uuid.NewString() + "@" + domainOf(t.cfg.From) + ">\r\n")
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: multipart/alternative; boundary=" + mw.Boundary() + "\r\n\r\n")

	for _, part := range []struct {
		contentType string
		content     string
	}{
		{"text/plain; charset=utf-8", msg.Text},
		{"text/html; charset=utf-8", msg.HTML},
	} {
		header := textproto.MIMEHeader{}
		header.Set("Content-Type", part.contentType)
		header.Set("Content-Transfer-Encoding", "quoted-printable")
		pw, err := mw.CreatePart(header)
		if err != nil {
			return nil, err
		}
		qp := quotedprintable.NewWriter(pw)
		if _, err := qp.Write([]byte(part.content)); err != nil {
			return nil, err
		}
		if err := qp.Close(); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	buf.Write(body.Bytes())
	return buf.Bytes(), nil
}

func domainOf(address string) string {
	for i := len(address) - 1; i >= 0; i-- {
		if address[i] == '@' {
			return address[i+1:]
		}
	}
	return "localhost"
}

// LogTransport only logs the message. Used when mail is disabled.
type LogTransport struct {
	logger *zerolog.Logger
}

func NewLogTransport(logger *zerolog.Logger) *LogTransport {
	return &LogTransport{logger: logger}
}

func (t *LogTransport) Send(_ context.Context, msg Message) error {
	t.logger.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Int("text_len", len(msg.Text)).
		Msg("mail disabled, message not sent")
	return nil
}
