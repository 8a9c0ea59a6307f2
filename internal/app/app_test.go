package app

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"findecoder/internal/infrastructure"
	"findecoder/pkg/contracts/domain"
)

// newApp builds one application per test binary; the prometheus exporter
// registers collectors globally, so everything shares this instance.
func newApp(t *testing.T) *Application {
	t.Helper()
	infrastructure.ResetLoggerForTesting()
	t.Setenv("PORT", "18080")
	t.Setenv("LOGGING_OUTPUT", "stdout")

	app, err := NewApplication(context.Background())
	require.NoError(t, err)
	app.Hub.Start()
	t.Cleanup(app.Hub.Stop)
	return app
}

func TestApplicationRoutes(t *testing.T) {
	app := newApp(t)

	t.Run("health", func(t *testing.T) {
		rec := httptest.NewRecorder()
		app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"ok"`)
	})

	t.Run("version", func(t *testing.T) {
		rec := httptest.NewRecorder()
		app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/version", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var info map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
		assert.NotEmpty(t, info["go_version"])
	})

	t.Run("liveness", func(t *testing.T) {
		rec := httptest.NewRecorder()
		app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health/live", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("metrics", func(t *testing.T) {
		rec := httptest.NewRecorder()
		app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unknown route is problem json", func(t *testing.T) {
		rec := httptest.NewRecorder()
		app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nope", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "application/problem+json")
	})

	t.Run("decode without api key yields degraded report", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		part, err := mw.CreateFormFile("file", "income.csv")
		require.NoError(t, err)
		_, err = part.Write([]byte("Quarter,Revenue,Expenses\nQ1,1000,700\nQ2,1500,900\n"))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/decode", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rec := httptest.NewRecorder()
		app.Router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var bundle domain.Bundle
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bundle))
		require.Len(t, bundle.Reports, 1)
		rep := bundle.Reports[0]
		assert.Equal(t, domain.StatementProfitAndLoss, rep.Statement)
		assert.False(t, rep.Analysis.Available())
		assert.True(t, strings.HasPrefix(rep.Analysis.Unavailable, "analysis unavailable: "))
		assert.NotEmpty(t, rep.Charts)

		// The assembled report is immediately retrievable.
		rec2 := httptest.NewRecorder()
		app.Router.ServeHTTP(rec2, httptest.NewRequest(http.MethodGet, "/api/reports/"+rep.ID, nil))
		assert.Equal(t, http.StatusOK, rec2.Code)
	})

	t.Run("unsupported upload is 415", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		part, err := mw.CreateFormFile("file", "notes.txt")
		require.NoError(t, err)
		_, err = part.Write([]byte("not a spreadsheet"))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/decode", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rec := httptest.NewRecorder()
		app.Router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://localhost:8080"})

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://localhost:8080", true},
		{"http://evil.example", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		assert.Equal(t, tt.want, check(req), "origin %q", tt.origin)
	}
}
