package mailing

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime/quotedprintable"
	"net"
	"net/smtp"
	"time"

	"github.com/google/uuid"

	"github.com/salestroopz/outreach-engine/internal/domain"
	"github.com/salestroopz/outreach-engine/internal/pkg/logger"
)

// SMTPSender delivers mail through an organization's own SMTP server.
// Credentials arrive per-call from the organization's mail settings, so
// one sender instance serves every tenant.
type SMTPSender struct {
	dialTimeout time.Duration
}

// NewSMTPSender creates an SMTP sender.
func NewSMTPSender() *SMTPSender {
	return &SMTPSender{dialTimeout: 30 * time.Second}
}

// Send builds the MIME message and performs the SMTP transaction.
func (s *SMTPSender) Send(ctx context.Context, settings *domain.OrgMailSettings, msg *OutboundEmail) (*SendResult, error) {
	if settings.SMTPHost == "" || settings.SMTPPort == 0 {
		return nil, fmt.Errorf("SMTP transport not configured")
	}

	messageID := fmt.Sprintf("%s@%s", uuid.New().String(), messageIDDomain(msg.FromEmail))
	raw := buildMIMEMessage(msg, messageID)

	addr := fmt.Sprintf("%s:%d", settings.SMTPHost, settings.SMTPPort)
	if err := s.sendSMTP(ctx, settings, addr, msg.FromEmail, msg.To, raw); err != nil {
		return nil, fmt.Errorf("SMTP send failed: %w", err)
	}

	logger.Info("smtp send ok", "recipient", msg.To, "message_id", messageID)
	return &SendResult{Success: true, MessageID: messageID, Provider: "smtp", SentAt: time.Now().UTC()}, nil
}

func messageIDDomain(fromEmail string) string {
	for i := len(fromEmail) - 1; i >= 0; i-- {
		if fromEmail[i] == '@' {
			return fromEmail[i+1:]
		}
	}
	return "outreach.local"
}

// buildMIMEMessage assembles headers and the encoded body. With both
// bodies present the result is multipart/alternative with text/plain
// first and text/html last (clients prefer the last renderable
// alternative); with a single body the message is single-part, so a
// text-only send never carries an empty HTML alternative that would
// render blank.
func buildMIMEMessage(msg *OutboundEmail, messageID string) []byte {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("From: %s <%s>\r\n", msg.FromName, msg.FromEmail))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", msg.To))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", msg.Subject))
	buf.WriteString(fmt.Sprintf("Message-ID: <%s>\r\n", messageID))
	buf.WriteString(fmt.Sprintf("Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z)))
	buf.WriteString("MIME-Version: 1.0\r\n")

	for k, v := range msg.Headers {
		buf.WriteString(fmt.Sprintf("%s: %s\r\n", k, v))
	}

	if msg.TextBody != "" && msg.HTMLBody != "" {
		boundary := fmt.Sprintf("=_%s", uuid.New().String()[:16])
		buf.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=\"%s\"\r\n\r\n", boundary))
		buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
		writeBodyPart(&buf, "text/plain", msg.TextBody)
		buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
		writeBodyPart(&buf, "text/html", msg.HTMLBody)
		buf.WriteString(fmt.Sprintf("--%s--\r\n", boundary))
		return buf.Bytes()
	}

	contentType, body := "text/plain", msg.TextBody
	if msg.HTMLBody != "" {
		contentType, body = "text/html", msg.HTMLBody
	}
	writeBodyPart(&buf, contentType, body)
	return buf.Bytes()
}

// writeBodyPart writes one body with its content headers. The content
// is quoted-printable encoded to match the declared transfer encoding,
// which also keeps lines within SMTP limits and non-ASCII intact.
func writeBodyPart(buf *bytes.Buffer, contentType, body string) {
	buf.WriteString(fmt.Sprintf("Content-Type: %s; charset=UTF-8\r\n", contentType))
	buf.WriteString("Content-Transfer-Encoding: quoted-printable\r\n\r\n")
	qp := quotedprintable.NewWriter(buf)
	qp.Write([]byte(body))
	qp.Close()
	buf.WriteString("\r\n")
}

// sendSMTP performs the raw SMTP transaction. STARTTLS is attempted when
// offered; AUTH PLAIN when credentials are present.
func (s *SMTPSender) sendSMTP(ctx context.Context, settings *domain.OrgMailSettings, addr, from, to string, raw []byte) error {
	dialer := &net.Dialer{Timeout: s.dialTimeout}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("SMTP connect to %s: %w", addr, err)
	}
	client, err := smtp.NewClient(conn, settings.SMTPHost)
	if err != nil {
		conn.Close()
		return fmt.Errorf("SMTP client: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		tlsCfg := &tls.Config{ServerName: settings.SMTPHost}
		if tlsErr := client.StartTLS(tlsCfg); tlsErr != nil {
			return fmt.Errorf("STARTTLS: %w", tlsErr)
		}
	}

	if settings.SMTPUsername != "" && settings.SMTPPassword != "" {
		auth := smtp.PlainAuth("", settings.SMTPUsername, settings.SMTPPassword, settings.SMTPHost)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP auth: %w", err)
		}
	}

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("RCPT TO: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("DATA close: %w", err)
	}
	return client.Quit()
}
