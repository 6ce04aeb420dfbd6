package od

import (
	"sort"

	"github.com/samber/lo"

	"github.com/rmgsl/mapa-od/internal/survey"
)

// Matrix is a zero-filled cross tabulation. Cells[i][j] counts the records
// with row value Rows[i] and column value Cols[j].
type Matrix struct {
	RowLabel string   `json:"rowLabel"`
	ColLabel string   `json:"colLabel"`
	Rows     []string `json:"rows"`
	Cols     []string `json:"cols"`
	Cells    [][]int  `json:"cells"`
}

// Get returns the cell for (row, col), 0 when either label is absent
func (m Matrix) Get(row, col string) int {
	i := sort.SearchStrings(m.Rows, row)
	j := sort.SearchStrings(m.Cols, col)
	if i == len(m.Rows) || m.Rows[i] != row || j == len(m.Cols) || m.Cols[j] != col {
		return 0
	}
	return m.Cells[i][j]
}

// Total sums every cell
func (m Matrix) Total() int {
	return lo.SumBy(m.Cells, func(row []int) int { return lo.Sum(row) })
}

// Empty reports whether the matrix has no rows
func (m Matrix) Empty() bool {
	return len(m.Rows) == 0
}

// MatrixOptions controls BuildMatrix
type MatrixOptions struct {
	// Transpose puts destinations on rows and origins on columns
	Transpose bool
}

// BuildMatrix cross-tabulates origin by destination. It is always
// directional. Records with a missing end or a self-loop are excluded, and
// labels come only from the records that remain.
func BuildMatrix(records []survey.TripRecord, opts MatrixOptions) Matrix {
	kept := lo.Filter(records, func(r survey.TripRecord, _ int) bool { return resolvable(r) })
	if opts.Transpose {
		return tabulate(kept, survey.AttrDestination, survey.AttrOrigin)
	}
	return tabulate(kept, survey.AttrOrigin, survey.AttrDestination)
}

// CrossTab counts records per (rowAttr, colAttr) value pair. Records with an
// empty value on either attribute are skipped.
func CrossTab(records []survey.TripRecord, rowAttr, colAttr survey.Attribute) Matrix {
	kept := lo.Filter(records, func(r survey.TripRecord, _ int) bool {
		return r.Value(rowAttr) != "" && r.Value(colAttr) != ""
	})
	return tabulate(kept, rowAttr, colAttr)
}

func tabulate(records []survey.TripRecord, rowAttr, colAttr survey.Attribute) Matrix {
	rows := distinctSorted(records, rowAttr)
	cols := distinctSorted(records, colAttr)
	rowIdx := indexOf(rows)
	colIdx := indexOf(cols)

	cells := make([][]int, len(rows))
	for i := range cells {
		cells[i] = make([]int, len(cols))
	}
	for _, r := range records {
		cells[rowIdx[r.Value(rowAttr)]][colIdx[r.Value(colAttr)]]++
	}

	return Matrix{
		RowLabel: string(rowAttr),
		ColLabel: string(colAttr),
		Rows:     rows,
		Cols:     cols,
		Cells:    cells,
	}
}

func distinctSorted(records []survey.TripRecord, attr survey.Attribute) []string {
	values := lo.Uniq(lo.Map(records, func(r survey.TripRecord, _ int) string { return r.Value(attr) }))
	sort.Strings(values)
	return values
}

func indexOf(labels []string) map[string]int {
	idx := make(map[string]int, len(labels))
	for i, l := range labels {
		idx[l] = i
	}
	return idx
}

// HeatmapPair names the two attributes of a cross-tab
type HeatmapPair struct {
	Rows survey.Attribute `json:"rows"`
	Cols survey.Attribute `json:"cols"`
}

// DefaultHeatmaps is the cross-tab set shown next to the map
func DefaultHeatmaps() []HeatmapPair {
	return []HeatmapPair{
		{Rows: survey.AttrMotive, Cols: survey.AttrFrequency},
		{Rows: survey.AttrMotive, Cols: survey.AttrPeriod},
		{Rows: survey.AttrFrequency, Cols: survey.AttrPeriod},
		{Rows: survey.AttrMotive, Cols: survey.AttrMode},
		{Rows: survey.AttrMode, Cols: survey.AttrFrequency},
	}
}
