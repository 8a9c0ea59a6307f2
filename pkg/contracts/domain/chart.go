package domain

// ChartKind is the kind of chart a ChartSpec describes.
type ChartKind string

const (
	ChartLine ChartKind = "line"
	ChartBar  ChartKind = "bar"
	ChartPie  ChartKind = "pie"
)

// ChartSpec is a declarative chart description, independent of any rendering
// library. Every series has exactly len(XLabels) points.
type ChartSpec struct {
	Kind    ChartKind            `json:"kind"`
	Title   string               `json:"title"`
	XLabels []string             `json:"x_labels"`
	Series  map[string][]float64 `json:"series"`
}

// Valid reports whether every series length matches the x-label count.
func (c *ChartSpec) Valid() bool {
	for _, values := range c.Series {
		if len(values) != len(c.XLabels) {
			return false
		}
	}
	return true
}
