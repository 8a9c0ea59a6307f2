package report

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"findecoder/pkg/contracts/domain"
)

// Assembler turns the outputs of the decode pipeline into a Report. The
// analysis leg may have failed; assembly still succeeds with a degraded
// analysis section.
type Assembler struct {
	logger *slog.Logger
}

// NewAssembler creates a report assembler.
func NewAssembler(logger *slog.Logger) *Assembler {
	return &Assembler{
		logger: logger.With(slog.String("component", "assembler")),
	}
}

// Assemble builds the final Report. When analysisErr is non-nil the
// analysis section carries "analysis unavailable: <reason>" instead of
// text; charts and table metadata are kept either way.
func (a *Assembler) Assemble(
	doc *domain.TabularDocument,
	statement domain.StatementType,
	analysisText string,
	analysisErr error,
	truncated bool,
	charts []domain.ChartSpec,
) domain.Report {
	analysis := domain.Analysis{
		Text:      analysisText,
		Truncated: truncated,
	}
	if analysisErr != nil {
		analysis = domain.Analysis{
			Unavailable: fmt.Sprintf("analysis unavailable: %s", analysisErr.Error()),
			Truncated:   truncated,
		}
	}

	report := domain.Report{
		ID:          uuid.New().String(),
		SourceName:  doc.SourceName,
		Statement:   statement,
		Analysis:    analysis,
		Charts:      charts,
		RowCount:    doc.RowCount(),
		ColumnCount: len(doc.Columns),
		AssembledAt: time.Now().UTC(),
	}

	a.logger.Info("report assembled",
		slog.String("report_id", report.ID),
		slog.String("source", report.SourceName),
		slog.String("statement", string(statement)),
		slog.Bool("analysis_available", analysis.Available()),
		slog.Int("charts", len(charts)))

	return report
}
