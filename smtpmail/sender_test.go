package smtpmail

import (
	"context"
	"encoding/base64"
	"errors"
	"net"
	"net/mail"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/International-Combat-Archery-Alliance/email"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRelay speaks just enough SMTP for net/smtp: EHLO, AUTH PLAIN, MAIL,
// RCPT, DATA and QUIT, without STARTTLS.
type fakeRelay struct {
	listener net.Listener
	username string
	password string

	mu       sync.Mutex
	mailFrom string
	rcptTo   []string
	data     string
}

func newFakeRelay(t *testing.T, username, password string) *fakeRelay {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	r := &fakeRelay{listener: l, username: username, password: password}
	go r.serve()
	t.Cleanup(func() { l.Close() })

	return r
}

func (r *fakeRelay) port() string {
	_, port, _ := net.SplitHostPort(r.listener.Addr().String())
	return port
}

func (r *fakeRelay) serve() {
	for {
		conn, err := r.listener.Accept()
		if err != nil {
			return
		}
		go r.handle(conn)
	}
}

func (r *fakeRelay) handle(conn net.Conn) {
	defer conn.Close()
	tp := textproto.NewConn(conn)

	tp.PrintfLine("220 localhost ESMTP fake")
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}

		verb := strings.ToUpper(strings.SplitN(line, " ", 2)[0])
		switch verb {
		case "EHLO":
			tp.PrintfLine("250-localhost")
			tp.PrintfLine("250 AUTH PLAIN")
		case "AUTH":
			fields := strings.Fields(line)
			creds, _ := base64.StdEncoding.DecodeString(fields[len(fields)-1])
			if string(creds) == "\x00"+r.username+"\x00"+r.password {
				tp.PrintfLine("235 2.7.0 Accepted")
			} else {
				tp.PrintfLine("535 5.7.8 Username and Password not accepted")
			}
		case "MAIL":
			r.mu.Lock()
			r.mailFrom = line
			r.mu.Unlock()
			tp.PrintfLine("250 OK")
		case "RCPT":
			r.mu.Lock()
			r.rcptTo = append(r.rcptTo, line)
			r.mu.Unlock()
			tp.PrintfLine("250 OK")
		case "DATA":
			tp.PrintfLine("354 Go ahead")
			data, err := tp.ReadDotBytes()
			if err != nil {
				return
			}
			r.mu.Lock()
			r.data = string(data)
			r.mu.Unlock()
			tp.PrintfLine("250 Queued")
		case "QUIT":
			tp.PrintfLine("221 Bye")
			return
		default:
			tp.PrintfLine("501 Unrecognized")
		}
	}
}

func TestNewSender(t *testing.T) {
	_, err := NewSender(Config{Username: "u", Password: "p"})
	assert.Error(t, err)

	_, err = NewSender(Config{Host: "smtp.example.com"})
	assert.Error(t, err)

	s, err := NewSender(Config{Host: "smtp.example.com", Username: "u", Password: "p"})
	require.NoError(t, err)
	assert.Equal(t, "587", s.cfg.Port)
}

func TestSendEmail(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers a plain text message", func(t *testing.T) {
		relay := newFakeRelay(t, "org@example.com", "app-password")
		sender, err := NewSender(Config{Host: "127.0.0.1", Port: relay.port(), Username: "org@example.com", Password: "app-password"})
		require.NoError(t, err)

		err = sender.SendEmail(ctx, email.Email{
			FromAddress: "Moonlanding Org <org@example.com>",
			ToAddresses: []string{"ada@example.com"},
			Subject:     "Your OTP Code",
			TextBody:    "Your OTP code is: 123456\n",
		})
		require.NoError(t, err)

		relay.mu.Lock()
		defer relay.mu.Unlock()
		assert.Equal(t, "MAIL FROM:<org@example.com>", relay.mailFrom)
		assert.Equal(t, []string{"RCPT TO:<ada@example.com>"}, relay.rcptTo)
		assert.Contains(t, relay.data, "Subject: Your OTP Code")
		assert.Contains(t, relay.data, "Content-Type: text/plain; charset=UTF-8")
		assert.Contains(t, relay.data, "Your OTP code is: 123456")
	})

	t.Run("rejected credentials surface the relay reply", func(t *testing.T) {
		relay := newFakeRelay(t, "org@example.com", "app-password")
		sender, err := NewSender(Config{Host: "127.0.0.1", Port: relay.port(), Username: "org@example.com", Password: "wrong"})
		require.NoError(t, err)

		err = sender.SendEmail(ctx, email.Email{
			FromAddress: "org@example.com",
			ToAddresses: []string{"ada@example.com"},
			Subject:     "Your OTP Code",
			TextBody:    "Your OTP code is: 123456\n",
		})
		require.Error(t, err)

		var smtpErr *textproto.Error
		require.ErrorAs(t, err, &smtpErr)
		assert.Equal(t, 535, smtpErr.Code)
	})

	t.Run("refuses plaintext auth when TLS is required", func(t *testing.T) {
		relay := newFakeRelay(t, "org@example.com", "app-password")
		sender, err := NewSender(Config{Host: "127.0.0.1", Port: relay.port(), Username: "org@example.com", Password: "app-password", RequireTLS: true})
		require.NoError(t, err)

		err = sender.SendEmail(ctx, email.Email{
			FromAddress: "org@example.com",
			ToAddresses: []string{"ada@example.com"},
			TextBody:    "hi",
		})
		assert.ErrorContains(t, err, "does not offer STARTTLS")
	})

	t.Run("unreachable relay is a network error", func(t *testing.T) {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		_, port, _ := net.SplitHostPort(l.Addr().String())
		l.Close()

		sender, err := NewSender(Config{Host: "127.0.0.1", Port: port, Username: "u", Password: "p", Timeout: time.Second})
		require.NoError(t, err)

		err = sender.SendEmail(ctx, email.Email{
			FromAddress: "org@example.com",
			ToAddresses: []string{"ada@example.com"},
			TextBody:    "hi",
		})
		var netErr net.Error
		assert.True(t, errors.As(err, &netErr))
	})

	t.Run("invalid addresses fail before dialing", func(t *testing.T) {
		sender, err := NewSender(Config{Host: "127.0.0.1", Port: "1", Username: "u", Password: "p"})
		require.NoError(t, err)

		err = sender.SendEmail(ctx, email.Email{FromAddress: "not an address", ToAddresses: []string{"ada@example.com"}})
		assert.ErrorContains(t, err, "invalid from address")

		err = sender.SendEmail(ctx, email.Email{FromAddress: "org@example.com"})
		assert.ErrorContains(t, err, "no recipients")
	})
}

func TestBuildMessageWithHTML(t *testing.T) {
	from := &mail.Address{Name: "Moonlanding Org", Address: "org@example.com"}
	to := []*mail.Address{{Address: "ada@example.com"}}

	msg, err := buildMessage(from, to, email.Email{
		Subject:  "Registration confirmed",
		TextBody: "text version",
		HTMLBody: "<p>html version</p>",
	}, time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	s := string(msg)
	assert.Contains(t, s, `From: "Moonlanding Org" <org@example.com>`)
	assert.Contains(t, s, "Content-Type: multipart/alternative; boundary=")
	assert.Contains(t, s, "text version")
	assert.Contains(t, s, "<p>html version</p>")
}
