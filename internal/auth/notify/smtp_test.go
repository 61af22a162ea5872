package notify

import (
	"bufio"
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/admitgate/internal/auth/domain"
	"github.com/stretchr/testify/require"
)

// fakeSMTP is a minimal plaintext SMTP server that accepts one message per
// connection and records the DATA section.
type fakeSMTP struct {
	ln   net.Listener
	mu   sync.Mutex
	rcpt []string
	data []string
}

func startFakeSMTP(t *testing.T) *fakeSMTP {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &fakeSMTP{ln: ln}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go s.serve(conn)
		}
	}()
	return s
}

func (s *fakeSMTP) serve(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	write := func(line string) { _, _ = conn.Write([]byte(line + "\r\n")) }

	write("220 fake ESMTP")
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.ToUpper(strings.TrimSpace(line))

		switch {
		case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
			write("250-fake")
			write("250 8BITMIME")
		case strings.HasPrefix(cmd, "MAIL FROM"):
			write("250 OK")
		case strings.HasPrefix(cmd, "RCPT TO"):
			s.mu.Lock()
			s.rcpt = append(s.rcpt, strings.TrimSpace(line[len("RCPT TO:"):]))
			s.mu.Unlock()
			write("250 OK")
		case cmd == "DATA":
			write("354 go ahead")
			var b strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				b.WriteString(l)
			}
			s.mu.Lock()
			s.data = append(s.data, b.String())
			s.mu.Unlock()
			write("250 queued")
		case cmd == "QUIT":
			write("221 bye")
			return
		default:
			write("250 OK")
		}
	}
}

func TestSMTPNotifier_Send(t *testing.T) {
	srv := startFakeSMTP(t)

	n := &SMTPNotifier{Addr: srv.ln.Addr().String(), From: "no-reply@admitgate.test", Timeout: 5 * time.Second}
	msg := Render(domain.PurposeRegistration, "654321", 3*time.Minute)
	require.NoError(t, n.Send(context.Background(), domain.MustParseIdentity(domain.KindEmail, "User@Example.com"), msg))

	srv.mu.Lock()
	defer srv.mu.Unlock()
	require.Len(t, srv.data, 1)
	require.Equal(t, []string{"<user@example.com>"}, srv.rcpt)
	require.Contains(t, srv.data[0], "Subject: Registration Code")
	require.Contains(t, srv.data[0], "654321")
}

func TestSMTPNotifier_Errors(t *testing.T) {
	email := domain.MustParseIdentity(domain.KindEmail, "user@example.com")

	t.Run("phone identity", func(t *testing.T) {
		err := (&SMTPNotifier{Addr: "127.0.0.1:25", From: "x@y.z"}).Send(context.Background(),
			domain.MustParseIdentity(domain.KindPhone, "+84901234567"), Message{})
		require.ErrorIs(t, err, ErrNoChannel)
	})

	t.Run("not configured", func(t *testing.T) {
		err := (&SMTPNotifier{}).Send(context.Background(), email, Message{})
		var de *DeliveryError
		require.ErrorAs(t, err, &de)
		require.Equal(t, "email", de.Channel)
	})

	t.Run("connection refused", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addr := ln.Addr().String()
		require.NoError(t, ln.Close())

		err = (&SMTPNotifier{Addr: addr, From: "x@y.z", Timeout: time.Second}).Send(context.Background(), email, Message{})
		require.Error(t, err)
	})
}
