package report

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"findecoder/pkg/contracts/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func sampleDoc() *domain.TabularDocument {
	return &domain.TabularDocument{
		SourceName: "quarterly.csv",
		Columns:    []string{"Quarter", "Revenue"},
		Rows: []domain.Row{
			{
				"Quarter": {Kind: domain.CellText, Raw: "Q1"},
				"Revenue": {Kind: domain.CellNumber, Raw: "1000", Number: 1000},
			},
		},
	}
}

func TestAssemble_WithAnalysis(t *testing.T) {
	a := NewAssembler(discardLogger())

	charts := []domain.ChartSpec{{Kind: domain.ChartLine, Title: "Revenue over Quarter"}}
	report := a.Assemble(sampleDoc(), domain.StatementProfitAndLoss, "solid growth", nil, false, charts)

	assert.NotEmpty(t, report.ID)
	assert.Equal(t, "quarterly.csv", report.SourceName)
	assert.Equal(t, domain.StatementProfitAndLoss, report.Statement)
	assert.True(t, report.Analysis.Available())
	assert.Equal(t, "solid growth", report.Analysis.Text)
	assert.Len(t, report.Charts, 1)
	assert.Equal(t, 1, report.RowCount)
	assert.Equal(t, 2, report.ColumnCount)
	assert.False(t, report.AssembledAt.IsZero())
}

func TestAssemble_DegradedWhenAnalysisFails(t *testing.T) {
	a := NewAssembler(discardLogger())

	charts := []domain.ChartSpec{{Kind: domain.ChartLine}}
	report := a.Assemble(sampleDoc(), domain.StatementUnknown, "", errors.New("upstream unreachable"), true, charts)

	assert.False(t, report.Analysis.Available())
	assert.Equal(t, "analysis unavailable: upstream unreachable", report.Analysis.Unavailable)
	assert.Empty(t, report.Analysis.Text)
	assert.True(t, report.Analysis.Truncated)

	// Degradation never discards the rest of the report.
	assert.Len(t, report.Charts, 1)
	assert.Equal(t, 1, report.RowCount)
}

func TestStore_PutGet(t *testing.T) {
	store := NewStore(time.Minute, discardLogger())

	report := domain.Report{ID: "r1", SourceName: "a.csv"}
	store.Put(report)

	got, err := store.Get("r1")
	require.NoError(t, err)
	assert.Equal(t, "a.csv", got.SourceName)
}

func TestStore_UnknownID(t *testing.T) {
	store := NewStore(time.Minute, discardLogger())

	_, err := store.Get("missing")
	assert.ErrorIs(t, err, ErrReportNotFound)
}

func TestStore_TTLExpiry(t *testing.T) {
	store := NewStore(time.Minute, discardLogger())

	now := time.Now()
	store.clock = func() time.Time { return now }
	store.Put(domain.Report{ID: "r1"})

	_, err := store.Get("r1")
	require.NoError(t, err)

	store.clock = func() time.Time { return now.Add(2 * time.Minute) }

	_, err = store.Get("r1")
	assert.ErrorIs(t, err, ErrReportNotFound)
}

func TestStore_SweepEvicts(t *testing.T) {
	store := NewStore(time.Minute, discardLogger())

	now := time.Now()
	store.clock = func() time.Time { return now }
	store.Put(domain.Report{ID: "old"})

	store.clock = func() time.Time { return now.Add(30 * time.Second) }
	store.Put(domain.Report{ID: "fresh"})

	store.clock = func() time.Time { return now.Add(70 * time.Second) }

	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 1, store.Len())

	_, err := store.Get("fresh")
	assert.NoError(t, err)
}
