// Package notify delivers job completion and failure messages over email
// and webhooks. Delivery is best-effort: the worker logs failures and moves
// on, notification state never leaks into job state.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"os"
	"strings"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/notify"
)

// Service wraps configured senders and renders messages from templates
type Service struct {
	destinations []notify.Notifier
	fromEmail    string
	toEmail      []string
	webhookURLs  []string

	onError      bool
	onCompletion bool

	errorTemplate      *template.Template
	completionTemplate *template.Template

	hostname string
	timeout  time.Duration
}

// Params controls when notifications fire and which templates render them
type Params struct {
	EnabledError       bool
	EnabledCompletion  bool
	ErrorTemplate      string // path to custom error template, empty for default
	CompletionTemplate string // path to custom completion template
	Hostname           string
	Timeout            time.Duration
}

// SendersParams holds delivery configuration for all supported channels
type SendersParams struct {
	FromEmail    string
	ToEmails     []string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPTLS      bool
	SMTPStartTLS bool
	WebhookURLs  []string
}

// NewService creates the notification service. Returns nil when no
// destination is configured; callers treat a nil service as disabled.
func NewService(params Params, senders SendersParams) *Service {
	res := &Service{
		fromEmail:    senders.FromEmail,
		toEmail:      senders.ToEmails,
		webhookURLs:  senders.WebhookURLs,
		onError:      params.EnabledError,
		onCompletion: params.EnabledCompletion,
		hostname:     params.Hostname,
		timeout:      params.Timeout,
	}
	if res.timeout == 0 {
		res.timeout = 10 * time.Second
	}

	if len(senders.ToEmails) > 0 {
		res.destinations = append(res.destinations, notify.NewEmail(notify.SMTPParams{
			Host:     senders.SMTPHost,
			Port:     senders.SMTPPort,
			TLS:      senders.SMTPTLS,
			StartTLS: senders.SMTPStartTLS,
			Username: senders.SMTPUsername,
			Password: senders.SMTPPassword,
			TimeOut:  res.timeout,
		}))
	}
	if len(senders.WebhookURLs) > 0 {
		res.destinations = append(res.destinations, notify.NewWebhook(notify.WebhookParams{
			Timeout: res.timeout,
			Headers: []string{"Content-Type:text/html"},
		}))
	}
	if len(res.destinations) == 0 {
		return nil
	}

	res.errorTemplate = loadTemplate(params.ErrorTemplate, defaultErrorTemplate)
	res.completionTemplate = loadTemplate(params.CompletionTemplate, defaultCompletionTemplate)
	return res
}

// IsOnError reports whether failure notifications are enabled
func (s *Service) IsOnError() bool { return s.onError }

// IsOnCompletion reports whether completion notifications are enabled
func (s *Service) IsOnCompletion() bool { return s.onCompletion }

// Send delivers the message to every configured destination, collecting
// errors instead of failing fast
func (s *Service) Send(ctx context.Context, subj, text string) error {
	var errs []error
	for _, d := range s.destinations {
		switch d.Schema() {
		case "mailto":
			if err := d.Send(ctx, s.mailtoDestination(subj), text); err != nil {
				errs = append(errs, err)
			}
		default: // webhook sender accepts the URL as destination
			for _, u := range s.webhookURLs {
				if err := d.Send(ctx, u, text); err != nil {
					errs = append(errs, err)
				}
			}
		}
	}
	return errors.Join(errs...)
}

// mailtoDestination builds "mailto:to1,to2?from=...&subject=..." for the
// go-pkgz/notify email sender
func (s *Service) mailtoDestination(subj string) string {
	return fmt.Sprintf("mailto:%s?from=%s&subject=%s",
		strings.Join(s.toEmail, ","), s.fromEmail, url.QueryEscape(subj))
}

// templateData is passed to error and completion templates
type templateData struct {
	Host    string
	TS      time.Time
	Mode    string
	JobID   string
	Error   string
	Summary string
}

// MakeErrorHTML renders the failure message for a job
func (s *Service) MakeErrorHTML(mode, jobID, errorLog string) (string, error) {
	return renderTemplate(s.errorTemplate, templateData{
		Host: s.hostname, TS: time.Now(), Mode: mode, JobID: jobID, Error: errorLog})
}

// MakeCompletionHTML renders the success message for a job
func (s *Service) MakeCompletionHTML(mode, jobID, summary string) (string, error) {
	return renderTemplate(s.completionTemplate, templateData{
		Host: s.hostname, TS: time.Now(), Mode: mode, JobID: jobID, Summary: summary})
}

func renderTemplate(tmpl *template.Template, data templateData) (string, error) {
	buf := bytes.Buffer{}
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("can't execute notification template: %w", err)
	}
	return buf.String(), nil
}

// loadTemplate parses the custom template file, falling back to the
// built-in one if the file is missing or invalid
func loadTemplate(path, fallback string) *template.Template {
	def := template.Must(template.New("msg").Parse(fallback))
	if path == "" {
		return def
	}
	body, err := os.ReadFile(path) //nolint:gosec // operator-provided template path
	if err != nil {
		log.Printf("[WARN] can't read template %s, using default: %v", path, err)
		return def
	}
	tmpl, err := template.New("msg").Parse(string(body))
	if err != nil {
		log.Printf("[WARN] can't parse template %s, using default: %v", path, err)
		return def
	}
	return tmpl
}

var defaultErrorTemplate = `<!DOCTYPE html>
<html>
	<head>
		<meta name="viewport" content="width=device-width" />
		<meta http-equiv="Content-Type" content="text/html; charset=UTF-8" />
	</head>
	<body>
		<p>Migration job failed on <b>{{.Host}}</b> at {{.TS.Format "2006-01-02T15:04:05Z07:00"}}</p>
		<ul>
			<li>Mode: <b>{{.Mode}}</b></li>
			<li>Job: <b>{{.JobID}}</b></li>
		</ul>
		<pre>{{.Error}}</pre>
	</body>
</html>
`

var defaultCompletionTemplate = `<!DOCTYPE html>
<html>
	<head>
		<meta name="viewport" content="width=device-width" />
		<meta http-equiv="Content-Type" content="text/html; charset=UTF-8" />
	</head>
	<body>
		<p>Migration job completed on <b>{{.Host}}</b> at {{.TS.Format "2006-01-02T15:04:05Z07:00"}}</p>
		<ul>
			<li>Mode: <b>{{.Mode}}</b></li>
			<li>Job: <b>{{.JobID}}</b></li>
			<li>Result: <b>{{.Summary}}</b></li>
		</ul>
	</body>
</html>
`
