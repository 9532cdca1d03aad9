package web

import (
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaimetur/photomigrator-web/app/config"
	"github.com/jaimetur/photomigrator-web/app/service"
	"github.com/jaimetur/photomigrator-web/app/store"
)

type fakeEnqueuer struct {
	mu   sync.Mutex
	reqs []service.Request
	err  error
}

func (f *fakeEnqueuer) Enqueue(req service.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.reqs = append(f.reqs, req)
	return nil
}

func (f *fakeEnqueuer) requests() []service.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]service.Request{}, f.reqs...)
}

func newTestServer(t *testing.T) (*Server, *store.Jobs, *fakeEnqueuer) {
	t.Helper()
	jobs := store.NewJobs()
	enq := &fakeEnqueuer{}
	cfgFile := config.NewFile(filepath.Join(t.TempDir(), "Config.ini"))
	srv, err := New(Config{Store: jobs, Worker: enq, ConfigFile: cfgFile, Version: "test", Hostname: "host1"})
	require.NoError(t, err)
	return srv, jobs, enq
}

func TestNew(t *testing.T) {
	jobs := store.NewJobs()
	enq := &fakeEnqueuer{}
	cfgFile := config.NewFile("/tmp/Config.ini")

	tbl := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"all set", Config{Store: jobs, Worker: enq, ConfigFile: cfgFile}, true},
		{"missing store", Config{Worker: enq, ConfigFile: cfgFile}, false},
		{"missing worker", Config{Store: jobs, ConfigFile: cfgFile}, false},
		{"missing config file", Config{Store: jobs, Worker: enq}, false},
	}

	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			srv, err := New(tt.cfg)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, srv.templates.Lookup("index.html"))
			assert.NotNil(t, srv.templates.Lookup("job.html"))
			assert.NotNil(t, srv.templates.Lookup("config.html"))
		})
	}
}

func TestServer_Index(t *testing.T) {
	srv, jobs, _ := newTestServer(t)
	job := jobs.Create("google-takeout")

	ts := httptest.NewServer(srv.routes())
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := readBody(t, resp)
	assert.Contains(t, body, "Google Takeout")
	assert.Contains(t, body, "Automatic Migration")
	assert.Contains(t, body, job.ID)
	assert.Contains(t, body, "pending")
}

func TestServer_Ping(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ts := httptest.NewServer(srv.routes())
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/ping")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pong", readBody(t, resp))
}

func TestServer_JobPage(t *testing.T) {
	srv, jobs, _ := newTestServer(t)
	job := jobs.Create("automatic-migration")
	jobs.AppendLog(job.ID, "2025/06/01 12:00:00 [INFO] started")

	ts := httptest.NewServer(srv.routes())
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/job/" + job.ID)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, job.ID)
	assert.Contains(t, body, "started")

	resp, err = ts.Client().Get(ts.URL + "/job/no-such-id")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_ConfigPage(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ts := httptest.NewServer(srv.routes())
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/config")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := readBody(t, resp)
	assert.Contains(t, body, `name="v||Synology_Photos||SYNOLOGY_URL"`)
	assert.Contains(t, body, `type="password" name="v||Synology_Photos||SYNOLOGY_PASSWORD_1"`)
	assert.Contains(t, body, `value="US/Central"`, "registry default shown")
}

func TestServer_StaticFiles(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ts := httptest.NewServer(srv.routes())
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/static/style.css")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "font-family")
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}
