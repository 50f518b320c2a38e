package mailer

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessage(t *testing.T) {
	msg := buildMessage("nps@example.com", "anita@example.com", "Payment link", "line one\nline two")

	head, body, ok := strings.Cut(msg, "\r\n\r\n")
	require.True(t, ok)
	assert.Contains(t, head, "From: nps@example.com")
	assert.Contains(t, head, "To: anita@example.com")
	assert.Contains(t, head, "Subject: Payment link")
	assert.Contains(t, head, "Content-Type: text/plain")
	assert.Equal(t, "line one\r\nline two", body)
}

func TestNew_Defaults(t *testing.T) {
	m := New(Config{Host: "smtp.example.com", Port: 587, Username: "ops@example.com"})
	assert.Equal(t, "ops@example.com", m.cfg.From)
	assert.Equal(t, 10*time.Second, m.cfg.Timeout)
}

func TestSend_DialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	m := New(Config{Host: "127.0.0.1", Port: port, From: "nps@example.com", Timeout: time.Second})
	err = m.Send("anita@example.com", "s", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp dial")
}
