package domain

// CellKind discriminates the value held by a Cell.
type CellKind string

const (
	CellEmpty  CellKind = "empty"
	CellText   CellKind = "text"
	CellNumber CellKind = "number"
)

// Cell is a single spreadsheet cell. Raw always carries the original text;
// Number is only meaningful when Kind is CellNumber.
type Cell struct {
	Kind   CellKind `json:"kind"`
	Raw    string   `json:"raw,omitempty"`
	Number float64  `json:"number,omitempty"`
}

// Row maps a column name to its cell for one record.
type Row map[string]Cell

// TabularDocument is the parsed, in-memory form of an uploaded spreadsheet.
// Columns preserves the header order; every Row carries exactly the header's
// column set. Documents are immutable after ingestion and live only for the
// duration of the request that created them.
type TabularDocument struct {
	SourceName string   `json:"source_name"`
	Columns    []string `json:"columns"`
	Rows       []Row    `json:"rows"`
}

// RowCount returns the number of data rows (header excluded).
func (d *TabularDocument) RowCount() int {
	return len(d.Rows)
}

// NumericColumns returns, in header order, the columns whose non-empty cells
// are all numbers and that contain at least one number.
func (d *TabularDocument) NumericColumns() []string {
	var cols []string
	for _, col := range d.Columns {
		numbers := 0
		numeric := true
		for _, row := range d.Rows {
			switch row[col].Kind {
			case CellNumber:
				numbers++
			case CellText:
				numeric = false
			}
			if !numeric {
				break
			}
		}
		if numeric && numbers > 0 {
			cols = append(cols, col)
		}
	}
	return cols
}

// TextColumns returns, in header order, the columns that contain at least
// one text cell.
func (d *TabularDocument) TextColumns() []string {
	var cols []string
	for _, col := range d.Columns {
		for _, row := range d.Rows {
			if row[col].Kind == CellText {
				cols = append(cols, col)
				break
			}
		}
	}
	return cols
}

// ColumnValues returns the cells of one column in row order.
func (d *TabularDocument) ColumnValues(col string) []Cell {
	cells := make([]Cell, 0, len(d.Rows))
	for _, row := range d.Rows {
		cells = append(cells, row[col])
	}
	return cells
}

// DataPoints returns rows times columns, the measure the UI surfaces as
// "total data points" for a bundle.
func (d *TabularDocument) DataPoints() int {
	return len(d.Rows) * len(d.Columns)
}
