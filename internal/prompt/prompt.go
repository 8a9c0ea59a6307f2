package prompt

import (
	"fmt"
	"strconv"
	"strings"

	"findecoder/pkg/contracts/domain"
)

// instructions carries the analyst framing for each statement type.
var instructions = map[domain.StatementType]string{
	domain.StatementBalanceSheet: `As a financial analyst, analyze the following balance sheet data and provide insights.

Please provide:
1. Key financial health indicators
2. Asset and liability analysis
3. Liquidity position
4. Capital structure insights
5. Notable trends or concerns

Format your response in clear, actionable insights.`,

	domain.StatementProfitAndLoss: `As a financial analyst, analyze the following profit and loss statement and provide insights.

Please provide:
1. Revenue performance analysis
2. Profitability metrics
3. Cost structure analysis
4. Operating efficiency insights
5. Key performance trends

Format your response in clear, actionable insights.`,

	domain.StatementCashFlow: `As a financial analyst, analyze the following cash flow statement and provide insights.

Please provide:
1. Operating cash flow analysis
2. Investment activities review
3. Financing activities assessment
4. Liquidity and cash management
5. Cash flow sustainability

Format your response in clear, actionable insights.`,

	domain.StatementUnknown: `As a financial analyst, analyze the following financial data and provide insights.

Please provide:
1. The nature of the data and what it likely represents
2. Key figures and their relationships
3. Notable trends or anomalies
4. Any concerns suggested by the numbers

Format your response in clear, actionable insights.`,
}

// Prompt is the bounded text handed to the analysis client.
type Prompt struct {
	Text         string
	Truncated    bool
	RowsIncluded int
}

// Builder renders documents into prompts, bounding the serialized table
// at a configured row limit so prompts cannot grow without bound.
type Builder struct {
	maxRows int
}

// NewBuilder creates a prompt builder. maxRows must be positive.
func NewBuilder(maxRows int) *Builder {
	return &Builder{maxRows: maxRows}
}

// Build renders a deterministic prompt for the document. The same document
// and statement type always produce byte-identical output.
func (b *Builder) Build(doc *domain.TabularDocument, statement domain.StatementType) Prompt {
	rowsIncluded := doc.RowCount()
	truncated := false
	if rowsIncluded > b.maxRows {
		rowsIncluded = b.maxRows
		truncated = true
	}

	var sb strings.Builder
	sb.WriteString(instructions[statement])
	sb.WriteString("\n\n")

	fmt.Fprintf(&sb, "Statement type: %s\n", statement.DisplayName())
	fmt.Fprintf(&sb, "Source: %s\n", doc.SourceName)
	fmt.Fprintf(&sb, "Shape: %d rows x %d columns\n", doc.RowCount(), len(doc.Columns))
	fmt.Fprintf(&sb, "Columns: %s\n\n", strings.Join(doc.Columns, ", "))

	sb.WriteString("Data:\n")
	writeTable(&sb, doc, rowsIncluded)
	if truncated {
		fmt.Fprintf(&sb, "(showing first %d of %d rows)\n", rowsIncluded, doc.RowCount())
	}

	writeSummaryStats(&sb, doc)

	return Prompt{
		Text:         sb.String(),
		Truncated:    truncated,
		RowsIncluded: rowsIncluded,
	}
}

// writeTable renders the first limit rows as an aligned text block.
func writeTable(sb *strings.Builder, doc *domain.TabularDocument, limit int) {
	widths := make([]int, len(doc.Columns))
	for i, column := range doc.Columns {
		widths[i] = len(column)
	}
	for _, row := range doc.Rows[:limit] {
		for i, column := range doc.Columns {
			if cell := row[column]; len(cell.Raw) > widths[i] {
				widths[i] = len(cell.Raw)
			}
		}
	}

	writeRow := func(values []string) {
		for i, value := range values {
			if i > 0 {
				sb.WriteString("  ")
			}
			sb.WriteString(value)
			sb.WriteString(strings.Repeat(" ", widths[i]-len(value)))
		}
		sb.WriteByte('\n')
	}

	writeRow(doc.Columns)
	for _, row := range doc.Rows[:limit] {
		values := make([]string, len(doc.Columns))
		for i, column := range doc.Columns {
			values[i] = row[column].Raw
		}
		writeRow(values)
	}
}

// writeSummaryStats appends min/max/mean per numeric column computed over
// the FULL document, so a truncated table still carries whole-series signal.
func writeSummaryStats(sb *strings.Builder, doc *domain.TabularDocument) {
	numeric := doc.NumericColumns()
	if len(numeric) == 0 {
		return
	}

	sb.WriteString("\nSummary statistics (full data):\n")
	for _, column := range numeric {
		var values []float64
		for _, cell := range doc.ColumnValues(column) {
			if cell.Kind == domain.CellNumber {
				values = append(values, cell.Number)
			}
		}
		if len(values) == 0 {
			continue
		}
		min, max, sum := values[0], values[0], 0.0
		for _, v := range values {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
			sum += v
		}
		mean := sum / float64(len(values))
		fmt.Fprintf(sb, "  %s: min=%s max=%s mean=%s\n",
			column, formatNumber(min), formatNumber(max), formatNumber(mean))
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
