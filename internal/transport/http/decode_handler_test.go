package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "findecoder/internal/errors"
	"findecoder/internal/ingest"
	custommw "findecoder/internal/middleware"
	"findecoder/internal/report"
	"findecoder/internal/services"
	"findecoder/pkg/contracts/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// stubDecodeService scripts DecodeAll outcomes.
type stubDecodeService struct {
	bundle  domain.Bundle
	err     error
	gotLen  int
	gotName string
}

func (s *stubDecodeService) DecodeAll(ctx context.Context, requestID string, uploads []services.Upload) (domain.Bundle, error) {
	s.gotLen = len(uploads)
	if len(uploads) > 0 {
		s.gotName = uploads[0].Filename
	}
	return s.bundle, s.err
}

// stubReports serves a fixed set of reports.
type stubReports map[string]domain.Report

func (s stubReports) Get(id string) (domain.Report, error) {
	rep, ok := s[id]
	if !ok {
		return domain.Report{}, report.ErrReportNotFound
	}
	return rep, nil
}

func newTestHandler(svc DecodeServiceInterface, reports ReportReader) *DecodeHandler {
	logger := discardLogger()
	eh := apierrors.NewErrorHandler(logger, false)
	return NewDecodeHandler(svc, reports, custommw.NewValidationMiddleware(logger, eh), eh, 1<<20, logger)
}

func multipartBody(t *testing.T, depth string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, data := range files {
		part, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	if depth != "" {
		require.NoError(t, mw.WriteField("depth", depth))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestDecode_Success(t *testing.T) {
	svc := &stubDecodeService{bundle: domain.Bundle{
		ID:                "bundle-1",
		Reports:           []domain.Report{{ID: "rep-1", SourceName: "income.csv"}},
		DocumentsAnalyzed: 1,
		GeneratedAt:       time.Now().UTC(),
	}}
	h := newTestHandler(svc, stubReports{})

	body, contentType := multipartBody(t, "standard", map[string][]byte{
		"income.csv": []byte("Quarter,Revenue\nQ1,100\n"),
	})
	req := httptest.NewRequest(http.MethodPost, "/decode", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, svc.gotLen)
	assert.Equal(t, "income.csv", svc.gotName)

	var bundle domain.Bundle
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bundle))
	assert.Equal(t, "bundle-1", bundle.ID)
	assert.Equal(t, 1, bundle.DocumentsAnalyzed)
}

func TestDecode_MissingFile(t *testing.T) {
	h := newTestHandler(&stubDecodeService{}, stubReports{})

	body, contentType := multipartBody(t, "", map[string][]byte{})
	req := httptest.NewRequest(http.MethodPost, "/decode", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/problem+json")
}

func TestDecode_TooManyFiles(t *testing.T) {
	h := newTestHandler(&stubDecodeService{}, stubReports{})

	body, contentType := multipartBody(t, "", map[string][]byte{
		"a.csv": []byte("x,y\n1,2\n"),
		"b.csv": []byte("x,y\n1,2\n"),
		"c.csv": []byte("x,y\n1,2\n"),
		"d.csv": []byte("x,y\n1,2\n"),
	})
	req := httptest.NewRequest(http.MethodPost, "/decode", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDecode_InvalidDepth(t *testing.T) {
	h := newTestHandler(&stubDecodeService{}, stubReports{})

	body, contentType := multipartBody(t, "verbose", map[string][]byte{
		"income.csv": []byte("Quarter,Revenue\nQ1,100\n"),
	})
	req := httptest.NewRequest(http.MethodPost, "/decode", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "depth")
}

func TestDecode_RejectsSuspectFilename(t *testing.T) {
	svc := &stubDecodeService{}
	h := newTestHandler(svc, stubReports{})

	// Dot-dot segments survive the multipart parser's basename
	// normalization, so the name must be refused before the bytes are read.
	body, contentType := multipartBody(t, "", map[string][]byte{
		"income..csv": []byte("Quarter,Revenue\nQ1,100\n"),
	})
	req := httptest.NewRequest(http.MethodPost, "/decode", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/problem+json")
	assert.Contains(t, rec.Body.String(), "filename")
	assert.Equal(t, 0, svc.gotLen)
}

func TestDecode_RejectsNonMultipartContentType(t *testing.T) {
	svc := &stubDecodeService{}
	h := newTestHandler(svc, stubReports{})

	req := httptest.NewRequest(http.MethodPost, "/decode", bytes.NewBufferString(`{"depth":"standard"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/problem+json")
	assert.Equal(t, 0, svc.gotLen)
}

func TestDecode_ServiceErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"unsupported format", ingest.ErrUnsupportedFormat, http.StatusUnsupportedMediaType},
		{"oversize input", ingest.ErrOversizeInput, http.StatusRequestEntityTooLarge},
		{"malformed input", ingest.ErrMalformedInput, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(&stubDecodeService{err: tt.err}, stubReports{})

			body, contentType := multipartBody(t, "", map[string][]byte{
				"doc.csv": []byte("data"),
			})
			req := httptest.NewRequest(http.MethodPost, "/decode", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()

			h.Routes().ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Header().Get("Content-Type"), "application/problem+json")
		})
	}
}

func TestGetReportText(t *testing.T) {
	reports := stubReports{
		"rep-1": {
			ID:       "rep-1",
			Analysis: domain.Analysis{Text: "Revenue is trending upward."},
		},
		"rep-2": {
			ID:       "rep-2",
			Analysis: domain.Analysis{Unavailable: "analysis unavailable: upstream 503"},
		},
	}
	h := newTestHandler(&stubDecodeService{}, reports)
	router := chi.NewRouter()
	router.Mount("/", h.Routes())

	t.Run("available analysis", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/reports/rep-1/text", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "analysis_rep-1.txt")
		assert.Contains(t, rec.Body.String(), "Revenue is trending upward.")
	})

	t.Run("degraded analysis serves the marker", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/reports/rep-2/text", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "analysis unavailable: upstream 503")
	})

	t.Run("unknown report", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/reports/nope/text", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestGetReportCharts(t *testing.T) {
	reports := stubReports{
		"rep-1": {
			ID: "rep-1",
			Charts: []domain.ChartSpec{
				{Kind: domain.ChartLine, Title: "Revenue over Quarter"},
			},
		},
	}
	h := newTestHandler(&stubDecodeService{}, reports)

	req := httptest.NewRequest(http.MethodGet, "/reports/rep-1/charts", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		ReportID string             `json:"report_id"`
		Charts   []domain.ChartSpec `json:"charts"`
		Count    int                `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "rep-1", payload.ReportID)
	assert.Equal(t, 1, payload.Count)
	require.Len(t, payload.Charts, 1)
	assert.Equal(t, "Revenue over Quarter", payload.Charts[0].Title)
}

func TestGetReport(t *testing.T) {
	reports := stubReports{
		"rep-1": {ID: "rep-1", SourceName: "income.csv", Statement: domain.StatementProfitAndLoss},
	}
	h := newTestHandler(&stubDecodeService{}, reports)

	req := httptest.NewRequest(http.MethodGet, "/reports/rep-1", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var rep domain.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Equal(t, "income.csv", rep.SourceName)
	assert.Equal(t, domain.StatementProfitAndLoss, rep.Statement)
}
