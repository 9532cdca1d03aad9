package notify

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewService(t *testing.T) {
	t.Run("no destinations disables the service", func(t *testing.T) {
		svc := NewService(Params{EnabledError: true}, SendersParams{})
		assert.Nil(t, svc)
	})

	t.Run("email destination", func(t *testing.T) {
		svc := NewService(Params{EnabledError: true, Hostname: "host1"},
			SendersParams{FromEmail: "from@example.com", ToEmails: []string{"to@example.com"}, SMTPHost: "smtp", SMTPPort: 25})
		require.NotNil(t, svc)
		assert.Len(t, svc.destinations, 1)
		assert.True(t, svc.IsOnError())
		assert.False(t, svc.IsOnCompletion())
		assert.Equal(t, 10*time.Second, svc.timeout, "default timeout applied")
	})

	t.Run("email and webhook destinations", func(t *testing.T) {
		svc := NewService(Params{EnabledCompletion: true, Timeout: time.Second},
			SendersParams{ToEmails: []string{"to@example.com"}, WebhookURLs: []string{"https://hooks.example.com/x"}})
		require.NotNil(t, svc)
		assert.Len(t, svc.destinations, 2)
		assert.True(t, svc.IsOnCompletion())
		assert.Equal(t, time.Second, svc.timeout)
	})
}

func TestService_MailtoDestination(t *testing.T) {
	svc := NewService(Params{EnabledError: true},
		SendersParams{FromEmail: "sender@example.com", ToEmails: []string{"a@example.com", "b@example.com"}})
	require.NotNil(t, svc)

	dest := svc.mailtoDestination(`failed "google-takeout" on host1`)
	assert.Equal(t, "mailto:a@example.com,b@example.com?from=sender@example.com"+
		"&subject=failed+%22google-takeout%22+on+host1", dest)
}

func TestService_MakeErrorHTML(t *testing.T) {
	svc := NewService(Params{EnabledError: true, Hostname: "host1"},
		SendersParams{ToEmails: []string{"to@example.com"}})
	require.NotNil(t, svc)

	msg, err := svc.MakeErrorHTML("google-takeout", "abc-123", "disk full\nlast log line")
	require.NoError(t, err)
	assert.Contains(t, msg, "<b>host1</b>")
	assert.Contains(t, msg, "Mode: <b>google-takeout</b>")
	assert.Contains(t, msg, "Job: <b>abc-123</b>")
	assert.Contains(t, msg, "disk full")
	assert.Contains(t, msg, "last log line")
}

func TestService_MakeCompletionHTML(t *testing.T) {
	svc := NewService(Params{EnabledCompletion: true, Hostname: "host1"},
		SendersParams{ToEmails: []string{"to@example.com"}})
	require.NotNil(t, svc)

	msg, err := svc.MakeCompletionHTML("automatic-migration", "abc-123", "migrated 42 assets")
	require.NoError(t, err)
	assert.Contains(t, msg, "completed on <b>host1</b>")
	assert.Contains(t, msg, "Result: <b>migrated 42 assets</b>")
}

func TestService_CustomTemplate(t *testing.T) {
	dir := t.TempDir()
	custom := filepath.Join(dir, "err.tmpl")
	require.NoError(t, os.WriteFile(custom, []byte("FAIL {{.Mode}} job {{.JobID}}: {{.Error}}"), 0o600))

	svc := NewService(Params{EnabledError: true, ErrorTemplate: custom},
		SendersParams{ToEmails: []string{"to@example.com"}})
	require.NotNil(t, svc)

	msg, err := svc.MakeErrorHTML("google-takeout", "j1", "boom")
	require.NoError(t, err)
	assert.Equal(t, "FAIL google-takeout job j1: boom", msg)
}

func TestLoadTemplateFallbacks(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		tmpl := loadTemplate("/no/such/file.tmpl", "default {{.Mode}}")
		out, err := renderTemplate(tmpl, templateData{Mode: "google-takeout"})
		require.NoError(t, err)
		assert.Equal(t, "default google-takeout", out)
	})

	t.Run("broken template", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "bad.tmpl")
		require.NoError(t, os.WriteFile(path, []byte("{{.Unclosed"), 0o600))

		tmpl := loadTemplate(path, "default {{.Mode}}")
		out, err := renderTemplate(tmpl, templateData{Mode: "x"})
		require.NoError(t, err)
		assert.Equal(t, "default x", out)
	})
}
