package domain

import "time"

// Analysis carries the text returned by the external analysis service, or an
// explicit unavailability marker when the call failed. A degraded analysis
// never discards the rest of the report.
type Analysis struct {
	Text        string `json:"text,omitempty"`
	Unavailable string `json:"unavailable,omitempty"`
	Truncated   bool   `json:"truncated"`
}

// Available reports whether the analysis text was produced.
func (a Analysis) Available() bool {
	return a.Unavailable == ""
}

// Report is the final aggregate for one decoded document. It is immutable
// once assembled and held only for the duration of the user session.
type Report struct {
	ID          string        `json:"id"`
	SourceName  string        `json:"source_name"`
	Statement   StatementType `json:"statement_type"`
	Analysis    Analysis      `json:"analysis"`
	Charts      []ChartSpec   `json:"charts"`
	RowCount    int           `json:"row_count"`
	ColumnCount int           `json:"column_count"`
	AssembledAt time.Time     `json:"assembled_at"`
}

// Bundle aggregates the reports of one decode request. Summary fields mirror
// the per-upload metrics the original UI showed when several statements were
// analyzed together.
type Bundle struct {
	ID                string    `json:"id"`
	Reports           []Report  `json:"reports"`
	DocumentsAnalyzed int       `json:"documents_analyzed"`
	TotalDataPoints   int       `json:"total_data_points"`
	GeneratedAt       time.Time `json:"generated_at"`
}
