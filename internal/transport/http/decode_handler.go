package http

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "findecoder/internal/errors"
	"findecoder/internal/ingest"
	custommw "findecoder/internal/middleware"
	"findecoder/internal/report"
	"findecoder/internal/services"
)

// uploadField is the repeatable multipart field carrying the documents.
const uploadField = "file"

// decodeRequest carries the optional form fields of a decode request.
type decodeRequest struct {
	Depth string `json:"depth" validate:"omitempty,oneof=standard detailed executive"`
}

// uploadName is validated per file before any upload bytes are read.
type uploadName struct {
	Filename string `json:"filename" validate:"required,filename"`
}

// DecodeHandler handles document uploads and report retrieval with
// RFC 7807 error responses.
type DecodeHandler struct {
	service      DecodeServiceInterface
	reports      ReportReader
	validator    *custommw.ValidationMiddleware
	errorHandler *apierrors.ErrorHandler
	maxBodyBytes int64
	logger       *slog.Logger
}

// NewDecodeHandler creates the decode handler. maxBodyBytes caps the whole
// multipart body before any file is read.
func NewDecodeHandler(
	service DecodeServiceInterface,
	reports ReportReader,
	validator *custommw.ValidationMiddleware,
	errorHandler *apierrors.ErrorHandler,
	maxBodyBytes int64,
	logger *slog.Logger,
) *DecodeHandler {
	return &DecodeHandler{
		service:      service,
		reports:      reports,
		validator:    validator,
		errorHandler: errorHandler,
		maxBodyBytes: maxBodyBytes,
		logger:       logger.With(slog.String("component", "decode_handler")),
	}
}

// Routes returns the decode routes, mounted under /api by the application.
func (h *DecodeHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(custommw.ContentTypeValidator("multipart/form-data")).Post("/decode", h.Decode)

	r.Route("/reports/{id}", func(r chi.Router) {
		r.Use(h.ReportCtx)
		r.Get("/", h.GetReport)
		r.Get("/text", h.GetReportText)
		r.Get("/charts", h.GetReportCharts)
	})

	return r
}

// ReportCtx validates the report ID parameter.
func (h *DecodeHandler) ReportCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "id") == "" {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("id", "Report ID is required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Decode handles POST /api/decode: up to three spreadsheet uploads, decoded
// concurrently into a report bundle.
func (h *DecodeHandler) Decode(w http.ResponseWriter, r *http.Request) {
	reqID := custommw.GetReqID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	if err := r.ParseMultipartForm(h.maxBodyBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.errorHandler.HandleError(w, r, apierrors.OversizeInputError("request body", h.maxBodyBytes))
			return
		}
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(
			fmt.Errorf("parsing multipart form: %w", err)))
		return
	}
	defer r.MultipartForm.RemoveAll()

	req := decodeRequest{Depth: r.FormValue("depth")}
	if err := h.validator.ValidateStruct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	headers := r.MultipartForm.File[uploadField]
	if len(headers) == 0 {
		h.errorHandler.HandleError(w, r, apierrors.ErrMissingFile)
		return
	}
	if len(headers) > services.MaxUploadsPerRequest {
		h.errorHandler.HandleError(w, r, apierrors.ErrTooManyFiles)
		return
	}

	uploads := make([]services.Upload, 0, len(headers))
	for _, fh := range headers {
		if err := h.validator.ValidateStruct(uploadName{Filename: fh.Filename}); err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		f, err := fh.Open()
		if err != nil {
			h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(
				fmt.Errorf("opening upload %q: %w", fh.Filename, err)))
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(
				fmt.Errorf("reading upload %q: %w", fh.Filename, err)))
			return
		}
		uploads = append(uploads, services.Upload{Filename: fh.Filename, Data: data})
	}

	h.logger.InfoContext(r.Context(), "decode request accepted",
		slog.String("request_id", reqID),
		slog.Int("files", len(uploads)),
		slog.String("depth", req.Depth),
	)

	bundle, err := h.service.DecodeAll(r.Context(), reqID, uploads)
	if err != nil {
		h.handleDecodeError(w, r, err, uploads)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, bundle)
}

// handleDecodeError maps pipeline errors to their RFC 7807 shapes.
func (h *DecodeHandler) handleDecodeError(w http.ResponseWriter, r *http.Request, err error, uploads []services.Upload) {
	name := "upload"
	if len(uploads) == 1 {
		name = uploads[0].Filename
	}

	switch {
	case errors.Is(err, services.ErrNoFilesProvided):
		h.errorHandler.HandleError(w, r, apierrors.ErrMissingFile)
	case errors.Is(err, services.ErrTooManyFiles):
		h.errorHandler.HandleError(w, r, apierrors.ErrTooManyFiles)
	case errors.Is(err, ingest.ErrUnsupportedFormat):
		h.errorHandler.HandleError(w, r, apierrors.UnsupportedFormatError(name))
	case errors.Is(err, ingest.ErrOversizeInput):
		h.errorHandler.HandleError(w, r, apierrors.OversizeInputError(name, h.maxBodyBytes))
	case errors.Is(err, ingest.ErrMalformedInput):
		h.errorHandler.HandleError(w, r, apierrors.MalformedDocumentError(name, err))
	default:
		h.errorHandler.HandleError(w, r, apierrors.DecodeFailedError(err))
	}
}

// GetReport handles GET /api/reports/{id}.
func (h *DecodeHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rep, err := h.reports.Get(id)
	if err != nil {
		h.handleLookupError(w, r, id, err)
		return
	}

	render.JSON(w, r, rep)
}

// GetReportText handles GET /api/reports/{id}/text, serving the analysis as
// a plain-text download. A degraded report serves its unavailability marker.
func (h *DecodeHandler) GetReportText(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rep, err := h.reports.Get(id)
	if err != nil {
		h.handleLookupError(w, r, id, err)
		return
	}

	body := rep.Analysis.Text
	if !rep.Analysis.Available() {
		body = rep.Analysis.Unavailable
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "analysis_"+rep.ID+".txt"))
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, body)
}

// GetReportCharts handles GET /api/reports/{id}/charts.
func (h *DecodeHandler) GetReportCharts(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rep, err := h.reports.Get(id)
	if err != nil {
		h.handleLookupError(w, r, id, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"report_id": rep.ID,
		"charts":    rep.Charts,
		"count":     len(rep.Charts),
	})
}

func (h *DecodeHandler) handleLookupError(w http.ResponseWriter, r *http.Request, id string, err error) {
	if errors.Is(err, report.ErrReportNotFound) {
		h.errorHandler.HandleError(w, r, apierrors.ReportNotFoundError(id))
		return
	}
	h.logger.ErrorContext(r.Context(), "report lookup failed",
		slog.String("report_id", id),
		slog.String("error", err.Error()))
	h.errorHandler.HandleError(w, r, err)
}
