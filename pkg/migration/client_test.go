package migration

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cloudshift-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(handler http.HandlerFunc) (Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	return NewClient(config.MigrationConfig{BaseURL: server.URL}), server
}

func TestHealth(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})
	defer server.Close()

	assert.True(t, client.Health(context.Background()))
}

func TestHealthBackendDown(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	defer server.Close()

	assert.False(t, client.Health(context.Background()))

	// 连接不上也按不可用处理
	server.Close()
	assert.False(t, client.Health(context.Background()))
}

func TestMigrateURLRequestShape(t *testing.T) {
	var gotBody string
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/migrate/url", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"workspace":"/tmp/ws","report":"OK"}`))
	})
	defer server.Close()

	result, err := client.MigrateURL(context.Background(), "https://github.com/acme/legacy", true)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/ws", result.Workspace)
	assert.Equal(t, "OK", result.Report)

	assert.JSONEq(t, `{"source_url":"https://github.com/acme/legacy","include_suggestions":true}`, gotBody)
}

func TestMigrateFileRequestShape(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/migrate/file", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		// include_suggestions 以字符串形式出现
		assert.Equal(t, "false", r.FormValue("include_suggestions"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "legacy.zip", header.Filename)
		content, _ := io.ReadAll(file)
		assert.Equal(t, "zip-bytes", string(content))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"workspace":"/tmp/ws","report":"migrated"}`))
	})
	defer server.Close()

	result, err := client.MigrateFile(context.Background(), "legacy.zip", strings.NewReader("zip-bytes"), false)
	require.NoError(t, err)
	assert.Equal(t, "migrated", result.Report)
}

func TestBackendFailureBecomesBackendError(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"detail":"backend not ready"}`))
	})
	defer server.Close()

	_, err := client.MigrateURL(context.Background(), "https://github.com/acme/legacy", false)
	require.Error(t, err)

	var backendErr *BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, http.StatusServiceUnavailable, backendErr.Status)
	assert.Equal(t, "Backend error: 503 backend not ready", backendErr.Error())
}

func TestBackendFailureWithoutDetail(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	defer server.Close()

	_, err := client.MigrateFile(context.Background(), "x.zip", strings.NewReader("z"), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Backend error: 503")
}
