// Package mailer renders the service's transactional e-mails from embedded
// templates and hands them to a delivery driver (SMTP or console).
package mailer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltmpl "html/template"
	"net/mail"
	"strings"
	"sync"
	texttmpl "text/template"
)

// Template names, matching the files under templates/.
const (
	TemplateLoginOTP = "login_otp"
	TemplateResetOTP = "reset_otp"
	TemplateWelcome  = "welcome"
)

//go:embed templates/*
var templateFS embed.FS

// Sender delivers rendered messages.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// Message is one outbound e-mail. Either Template or both bodies must be set.
type Message struct {
	To       string
	Subject  string
	Template string
	Data     interface{}

	Text string
	HTML string
}

// TemplateData is what every template receives.
type TemplateData struct {
	AppName string
	Data    interface{}
}

// OTPData feeds the login and reset templates.
type OTPData struct {
	Code          string
	ValidForMins  int
	RequestedFrom string
}

// WelcomeData feeds the welcome template.
type WelcomeData struct {
	Name      string
	StudentID string
}

type templateSet struct {
	text *texttmpl.Template
	html *htmltmpl.Template
}

var (
	parsed    map[string]templateSet
	parseErr  error
	parseOnce sync.Once
)

func parseTemplates() {
	parsed = make(map[string]templateSet)
	for _, name := range []string{TemplateLoginOTP, TemplateResetOTP, TemplateWelcome} {
		txt, err := texttmpl.New(name+".txt").Option("missingkey=error").
			ParseFS(templateFS, "templates/_base.txt", "templates/"+name+".txt")
		if err != nil {
			parseErr = fmt.Errorf("parse %s.txt: %w", name, err)
			return
		}
		html, err := htmltmpl.New(name+".gohtml").Option("missingkey=error").
			ParseFS(templateFS, "templates/_base.gohtml", "templates/"+name+".gohtml")
		if err != nil {
			parseErr = fmt.Errorf("parse %s.gohtml: %w", name, err)
			return
		}
		parsed[name] = templateSet{text: txt, html: html}
	}
}

// Render fills Text and HTML from the template. Messages with explicit bodies
// are left untouched.
func (m *Message) Render(appName string) error {
	if _, err := mail.ParseAddress(m.To); err != nil {
		return fmt.Errorf("invalid recipient %q: %w", m.To, err)
	}
	if m.Template == "" {
		if m.Text == "" && m.HTML == "" {
			return fmt.Errorf("message to %s has no content", m.To)
		}
		return nil
	}

	parseOnce.Do(parseTemplates)
	if parseErr != nil {
		return parseErr
	}
	set, ok := parsed[m.Template]
	if !ok {
		return fmt.Errorf("unknown mail template %q", m.Template)
	}

	data := TemplateData{AppName: appName, Data: m.Data}
	var text, html bytes.Buffer
	if err := set.text.ExecuteTemplate(&text, "base", data); err != nil {
		return fmt.Errorf("render %s text: %w", m.Template, err)
	}
	if err := set.html.ExecuteTemplate(&html, "base", data); err != nil {
		return fmt.Errorf("render %s html: %w", m.Template, err)
	}
	m.Text = strings.TrimSpace(text.String())
	m.HTML = html.String()
	return nil
}

func subjectWithPrefix(appName, subject string) string {
	if appName == "" || strings.HasPrefix(subject, appName) {
		return subject
	}
	return appName + " - " + subject
}
