package services

import (
	"net/smtp"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cohortboard/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailServiceDisabledWithoutHost(t *testing.T) {
	s := NewMailService(config.MailConfig{}, t.TempDir(), "")
	assert.False(t, s.Enabled)
	s.SendWelcomeEmail("a@example.com", "홍길동") // no-op
}

func TestSendWelcomeEmail(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "email"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "email", "welcome.html"),
		[]byte(`<p>{{.Name}}님 환영합니다 <a href="{{.SiteURL}}">바로가기</a></p>`), 0o644))

	s := NewMailService(config.MailConfig{Host: "smtp.example.com", Port: "587", From: "noreply@example.com"}, dir, "https://board.example.com")
	require.True(t, s.Enabled)

	type sent struct {
		addr string
		to   []string
		msg  string
	}
	got := make(chan sent, 1)
	s.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		got <- sent{addr: addr, to: to, msg: string(msg)}
		return nil
	}

	s.SendWelcomeEmail("hong@example.com", "홍길동")
	select {
	case m := <-got:
		assert.Equal(t, "smtp.example.com:587", m.addr)
		assert.Equal(t, []string{"hong@example.com"}, m.to)
		assert.Contains(t, m.msg, "To: hong@example.com")
		assert.Contains(t, m.msg, "홍길동님 환영합니다")
		assert.Contains(t, m.msg, "https://board.example.com")
	case <-time.After(5 * time.Second):
		t.Fatal("welcome mail was not sent")
	}
}
