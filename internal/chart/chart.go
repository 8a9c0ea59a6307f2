package chart

import (
	"fmt"
	"strconv"

	"findecoder/pkg/contracts/domain"
)

// BuildCharts derives one line chart per numeric column. The first textual
// column supplies the x-labels; when none exists, 1-based row indices stand
// in. Fewer than two numeric columns yields no charts, since a single series
// against synthetic labels carries no comparative signal.
//
// Every returned series has exactly len(XLabels) points.
func BuildCharts(doc *domain.TabularDocument) []domain.ChartSpec {
	numeric := doc.NumericColumns()
	if len(numeric) < 2 {
		return nil
	}

	labels := xLabels(doc)

	specs := make([]domain.ChartSpec, 0, len(numeric))
	for _, column := range numeric {
		values := make([]float64, 0, doc.RowCount())
		for _, cell := range doc.ColumnValues(column) {
			values = append(values, cell.Number)
		}

		specs = append(specs, domain.ChartSpec{
			Kind:    domain.ChartLine,
			Title:   fmt.Sprintf("%s over %s", column, labelAxisName(doc)),
			XLabels: labels,
			Series:  map[string][]float64{column: values},
		})
	}

	return specs
}

// xLabels returns one label per data row.
func xLabels(doc *domain.TabularDocument) []string {
	labels := make([]string, doc.RowCount())

	text := doc.TextColumns()
	if len(text) > 0 {
		column := text[0]
		for i, cell := range doc.ColumnValues(column) {
			labels[i] = cell.Raw
		}
		return labels
	}

	for i := range labels {
		labels[i] = strconv.Itoa(i + 1)
	}
	return labels
}

func labelAxisName(doc *domain.TabularDocument) string {
	if text := doc.TextColumns(); len(text) > 0 {
		return text[0]
	}
	return "row"
}
