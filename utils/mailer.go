package utils

import (
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vignan/diaries/config"
)

// Mailer delivers plain text mail.
type Mailer interface {
	Send(to, subject, body string) error
}

// NewMailer returns an SMTP mailer, or a log-only mailer when SMTP is not configured.
func NewMailer(cfg config.AppConfig) Mailer {
	if cfg.SMTPHost == "" || cfg.SMTPFrom == "" {
		return LogMailer{}
	}
	return SMTPMailer{cfg: cfg}
}

// LogMailer writes messages to the application log instead of sending them.
type LogMailer struct{}

// Send logs the envelope; the body is only logged at debug level.
func (LogMailer) Send(to, subject, body string) error {
	Logger.Info("smtp not configured, mail not sent", zap.String("to", to), zap.String("subject", subject))
	Logger.Debug("unsent mail body", zap.String("to", to), zap.String("body", body))
	return nil
}

// SMTPMailer sends through the configured SMTP relay, with STARTTLS when SMTPTLS is set.
type SMTPMailer struct {
	cfg config.AppConfig
}

// Send delivers one message.
func (m SMTPMailer) Send(to, subject, body string) error {
	cfg := m.cfg
	addr := net.JoinHostPort(cfg.SMTPHost, strconv.Itoa(cfg.SMTPPort))
	auth := smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPHost)
	msg := buildMessage(cfg, to, subject, body)

	if !cfg.SMTPTLS {
		return smtp.SendMail(addr, auth, cfg.SMTPFrom, []string{to}, msg)
	}

	d := net.Dialer{Timeout: 5 * time.Second}
	conn, err := d.Dial("tcp", addr)
	if err != nil {
		return err
	}
	_ = conn.SetDeadline(time.Now().Add(15 * time.Second))
	c, err := smtp.NewClient(conn, cfg.SMTPHost)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer c.Close()
	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: cfg.SMTPHost}); err != nil {
			return err
		}
	}
	if cfg.SMTPUsername != "" {
		if err := c.Auth(auth); err != nil {
			return err
		}
	}
	if err := c.Mail(cfg.SMTPFrom); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	wc, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := wc.Write(msg); err != nil {
		_ = wc.Close()
		return err
	}
	if err := wc.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func buildMessage(cfg config.AppConfig, to, subject, body string) []byte {
	fromName := cfg.SMTPFromName
	if fromName == "" {
		fromName = "Vignan Diaries"
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s <%s>\r\n", encodeRFC2047(fromName), cfg.SMTPFrom)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", encodeRFC2047(subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	msg.WriteString(body)
	return []byte(msg.String())
}

// encodeRFC2047 encodes a header value when it contains non-ASCII bytes.
func encodeRFC2047(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] >= 128 {
			return "=?UTF-8?B?" + base64.StdEncoding.EncodeToString([]byte(s)) + "?="
		}
	}
	return s
}
