package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/aussiebroadwan/admitgate/internal/auth/domain"
)

// SMTPNotifier sends codes by email. STARTTLS is used whenever the server
// offers it, and credentials are only sent over TLS (or to localhost).
type SMTPNotifier struct {
	Addr     string // host:port
	Username string
	Password string
	From     string
	Timeout  time.Duration // dial and session deadline, defaults to 15s

	// TLSConfig overrides the STARTTLS config; ServerName defaults to the
	// host part of Addr.
	TLSConfig *tls.Config
}

func (n *SMTPNotifier) Send(ctx context.Context, to domain.Identity, msg Message) error {
	if to.Kind != domain.KindEmail {
		return deliveryError("email", ErrNoChannel)
	}
	if err := n.send(ctx, to.Value, msg); err != nil {
		return deliveryError("email", err)
	}
	return nil
}

func (n *SMTPNotifier) send(ctx context.Context, rcpt string, msg Message) error {
	if n.Addr == "" || n.From == "" {
		return errors.New("smtp not configured")
	}
	host, _, err := net.SplitHostPort(n.Addr)
	if err != nil {
		return fmt.Errorf("smtp addr: %w", err)
	}

	timeout := n.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	dialer := net.Dialer{Deadline: deadline}
	conn, err := dialer.DialContext(ctx, "tcp", n.Addr)
	if err != nil {
		return err
	}
	_ = conn.SetDeadline(deadline)

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		cfg := n.TLSConfig
		if cfg == nil {
			cfg = &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
		}
		if err := c.StartTLS(cfg); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}

	if n.Username != "" {
		if err := c.Auth(smtp.PlainAuth("", n.Username, n.Password, host)); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := c.Mail(n.From); err != nil {
		return err
	}
	if err := c.Rcpt(rcpt); err != nil {
		return err
	}

	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(buildMail(n.From, rcpt, msg)); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	return c.Quit()
}

func buildMail(from, to string, msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	b.WriteString("\r\n")
	return []byte(b.String())
}
