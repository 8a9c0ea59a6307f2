package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"findecoder/internal/chart"
	"findecoder/internal/classify"
	"findecoder/internal/infrastructure"
	"findecoder/internal/ingest"
	"findecoder/internal/prompt"
	"findecoder/internal/report"
	"findecoder/pkg/contracts/domain"
)

// MaxUploadsPerRequest bounds how many documents one decode request may carry.
const MaxUploadsPerRequest = 3

// Analyzer produces the narrative analysis for a prompt. Satisfied by
// analysis.Client; narrowed to an interface so tests can script outcomes.
type Analyzer interface {
	Analyze(ctx context.Context, prompt string) (string, error)
}

// StageBroadcaster pushes pipeline progress to websocket subscribers.
// Satisfied by websocket.Hub.
type StageBroadcaster interface {
	BroadcastStage(event domain.StageEvent)
}

// Upload is one file received from the transport layer.
type Upload struct {
	Filename string
	Data     []byte
}

// DecodeService orchestrates the decode pipeline for uploaded statements:
// ingest, classify, prompt, then analysis and chart derivation in parallel,
// and finally report assembly. Analysis failure degrades the report; ingest
// failure is the only terminal error.
type DecodeService struct {
	ingestor  *ingest.Ingestor
	prompts   *prompt.Builder
	analyzer  Analyzer
	assembler *report.Assembler
	store     *report.Store
	hub       StageBroadcaster
	metrics   *infrastructure.PipelineMetrics
	logger    *slog.Logger
}

// NewDecodeService wires the pipeline components together. hub and metrics
// may be nil; both are optional observers.
func NewDecodeService(
	ingestor *ingest.Ingestor,
	prompts *prompt.Builder,
	analyzer Analyzer,
	assembler *report.Assembler,
	store *report.Store,
	hub StageBroadcaster,
	metrics *infrastructure.PipelineMetrics,
	logger *slog.Logger,
) *DecodeService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DecodeService{
		ingestor:  ingestor,
		prompts:   prompts,
		analyzer:  analyzer,
		assembler: assembler,
		store:     store,
		hub:       hub,
		metrics:   metrics,
		logger:    logger.With(slog.String("component", "decode_service")),
	}
}

// Decode runs the full pipeline for a single upload. The returned error is
// non-nil only when ingestion rejects the document; the analyzer is never
// called in that case. An analysis failure still yields a stored report
// whose analysis section is marked unavailable.
func (s *DecodeService) Decode(ctx context.Context, requestID string, up Upload) (domain.Report, error) {
	s.broadcast(requestID, up.Filename, domain.StageReceived, "")

	s.broadcast(requestID, up.Filename, domain.StageIngesting, "")
	doc, err := s.ingestor.Ingest(ctx, up.Filename, up.Data)
	if err != nil {
		if s.metrics != nil {
			s.metrics.IngestFailuresTotal.Add(ctx, 1)
		}
		s.broadcast(requestID, up.Filename, domain.StageIngestFailed, err.Error())
		s.logger.WarnContext(ctx, "upload rejected",
			slog.String("filename", up.Filename),
			slog.String("error", err.Error()))
		return domain.Report{}, err
	}
	if s.metrics != nil {
		s.metrics.UploadsTotal.Add(ctx, 1)
	}

	s.broadcast(requestID, up.Filename, domain.StageClassifying, "")
	statement := classify.Classify(doc)

	s.broadcast(requestID, up.Filename, domain.StagePrompting, "")
	p := s.prompts.Build(doc, statement)

	var (
		analysisText string
		analysisErr  error
		charts       []domain.ChartSpec
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.broadcast(requestID, up.Filename, domain.StageAnalyzing, "")
		start := time.Now()
		analysisText, analysisErr = s.analyzer.Analyze(gctx, p.Text)
		if s.metrics != nil {
			outcome := "ok"
			if analysisErr != nil {
				outcome = "error"
			}
			s.metrics.RecordAnalysis(ctx, time.Since(start), outcome)
		}
		// Degraded, not failed: the report is assembled either way.
		return nil
	})
	g.Go(func() error {
		s.broadcast(requestID, up.Filename, domain.StageCharting, "")
		charts = chart.BuildCharts(doc)
		if s.metrics != nil && len(charts) > 0 {
			s.metrics.ChartsBuiltTotal.Add(ctx, int64(len(charts)))
		}
		return nil
	})
	_ = g.Wait()

	if analysisErr != nil {
		s.broadcast(requestID, up.Filename, domain.StageAnalysisFailed, analysisErr.Error())
		s.logger.WarnContext(ctx, "analysis unavailable, assembling degraded report",
			slog.String("filename", up.Filename),
			slog.String("error", analysisErr.Error()))
	}

	rep := s.assembler.Assemble(doc, statement, analysisText, analysisErr, p.Truncated, charts)
	s.store.Put(rep)
	if s.metrics != nil {
		s.metrics.ReportsAssembled.Add(ctx, 1)
	}
	s.broadcast(requestID, up.Filename, domain.StageAssembled, rep.ID)

	s.logger.InfoContext(ctx, "report assembled",
		slog.String("report_id", rep.ID),
		slog.String("filename", up.Filename),
		slog.String("statement", string(rep.Statement)),
		slog.Int("charts", len(rep.Charts)),
		slog.Bool("analysis_available", rep.Analysis.Available()))
	return rep, nil
}

// DecodeAll decodes up to MaxUploadsPerRequest files concurrently. Each file
// is independent: one rejected upload does not abort the others. The bundle
// carries only the successful reports, in the order the files arrived. An
// error is returned when the request itself is invalid or when every upload
// was rejected, in which case it is the first file's error.
func (s *DecodeService) DecodeAll(ctx context.Context, requestID string, uploads []Upload) (domain.Bundle, error) {
	if len(uploads) == 0 {
		return domain.Bundle{}, ErrNoFilesProvided
	}
	if len(uploads) > MaxUploadsPerRequest {
		return domain.Bundle{}, fmt.Errorf("%w: got %d, limit %d", ErrTooManyFiles, len(uploads), MaxUploadsPerRequest)
	}

	reports := make([]domain.Report, len(uploads))
	errs := make([]error, len(uploads))

	var g errgroup.Group
	for i, up := range uploads {
		g.Go(func() error {
			reports[i], errs[i] = s.Decode(ctx, requestID, up)
			return nil
		})
	}
	_ = g.Wait()

	bundle := domain.Bundle{
		ID:          uuid.New().String(),
		GeneratedAt: time.Now().UTC(),
	}
	var firstErr error
	for i := range uploads {
		if errs[i] != nil {
			if firstErr == nil {
				firstErr = errs[i]
			}
			continue
		}
		bundle.Reports = append(bundle.Reports, reports[i])
		bundle.TotalDataPoints += reports[i].RowCount * reports[i].ColumnCount
	}
	bundle.DocumentsAnalyzed = len(bundle.Reports)

	if bundle.DocumentsAnalyzed == 0 {
		return domain.Bundle{}, firstErr
	}

	s.broadcast(requestID, "", domain.StageDelivered, bundle.ID)
	return bundle, nil
}

func (s *DecodeService) broadcast(requestID, source string, stage domain.Stage, detail string) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastStage(domain.StageEvent{
		RequestID: requestID,
		Source:    source,
		Stage:     stage,
		Detail:    detail,
	})
}
