package services

import (
	"bytes"
	"fmt"
	"html/template"
	"log"
	"net/smtp"
	"path/filepath"
	"strings"

	"cohortboard/internal/config"
)

type MailService struct {
	Host        string
	Port        string
	Username    string
	Password    string
	From        string
	TemplateDir string
	SiteURL     string
	Enabled     bool

	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewMailService(cfg config.MailConfig, templateDir, siteURL string) *MailService {
	enabled := cfg.Host != "" && cfg.Port != "" && cfg.From != ""
	if !enabled {
		log.Println("MailService disabled: missing SMTP settings")
	}
	return &MailService{
		Host:        cfg.Host,
		Port:        cfg.Port,
		Username:    cfg.Username,
		Password:    cfg.Password,
		From:        cfg.From,
		TemplateDir: templateDir,
		SiteURL:     siteURL,
		Enabled:     enabled,
		send:        smtp.SendMail,
	}
}

func (s *MailService) buildMessage(to []string, subject, body string) []byte {
	mime := "MIME-version: 1.0;\nContent-Type: text/html; charset=\"UTF-8\";\n\n"
	return []byte(fmt.Sprintf("To: %s\r\n"+
		"From: 과제 게시판 <%s>\r\n"+
		"Subject: %s\r\n"+
		"%s\r\n%s", strings.Join(to, ","), s.From, subject, mime, body))
}

func (s *MailService) sendAsync(to []string, subject string, body string) {
	if !s.Enabled {
		return
	}

	go func() {
		var auth smtp.Auth
		if s.Username != "" {
			auth = smtp.PlainAuth("", s.Username, s.Password, s.Host)
		}
		addr := fmt.Sprintf("%s:%s", s.Host, s.Port)

		if err := s.send(addr, auth, s.From, to, s.buildMessage(to, subject, body)); err != nil {
			log.Printf("Failed to send email to %v: %v", to, err)
		} else {
			log.Printf("Email sent to %v: %s", to, subject)
		}
	}()
}

func (s *MailService) parseTemplate(templateName string, data any) (string, error) {
	path := filepath.Join(s.TemplateDir, "email", templateName)
	t, err := template.ParseFiles(path)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", templateName, err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", templateName, err)
	}
	return buf.String(), nil
}

// SendWelcomeEmail is sent once a participant finishes verification.
func (s *MailService) SendWelcomeEmail(email, name string) {
	if !s.Enabled {
		return
	}
	body, err := s.parseTemplate("welcome.html", map[string]string{
		"Name":    name,
		"SiteURL": s.SiteURL,
	})
	if err != nil {
		log.Printf("Error rendering welcome email: %v", err)
		return
	}
	s.sendAsync([]string{email}, "과제 게시판 인증이 완료되었습니다", body)
}

// SendReviewResult tells a participant how a homework week was judged.
func (s *MailService) SendReviewResult(email, name, week, result string) {
	if !s.Enabled {
		return
	}
	body, err := s.parseTemplate("review.html", map[string]string{
		"Name":    name,
		"Week":    week,
		"Result":  result,
		"SiteURL": s.SiteURL,
	})
	if err != nil {
		log.Printf("Error rendering review email: %v", err)
		return
	}
	s.sendAsync([]string{email}, fmt.Sprintf("[%s] 과제 평가 결과: %s", week, result), body)
}
