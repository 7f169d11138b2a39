// Package table reads column-oriented CSV tables and writes parameter tables
// as CSV and LaTeX.
package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var (
	// ErrNoColumn is returned when a requested column is absent.
	ErrNoColumn = errors.New("table: no such column")
	// ErrShape is returned when rows and columns disagree.
	ErrShape = errors.New("table: shape mismatch")
)

// Table is a CSV table keyed by column name. Values that do not parse as
// numbers are NaN in Float.
type Table struct {
	Names []string
	cols  map[string][]string
}

// ReadCSV reads a CSV file with a header row. Lines starting with '#' are
// ignored.
func ReadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("table: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a CSV table from r.
func Parse(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("table: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty table", ErrShape)
	}
	t := &Table{Names: rows[0], cols: make(map[string][]string, len(rows[0]))}
	for _, row := range rows[1:] {
		for i, name := range t.Names {
			t.cols[name] = append(t.cols[name], strings.TrimSpace(row[i]))
		}
	}
	return t, nil
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if len(t.Names) == 0 {
		return 0
	}
	return len(t.cols[t.Names[0]])
}

// Column returns the raw values of a column.
func (t *Table) Column(name string) ([]string, error) {
	c, ok := t.cols[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoColumn, name)
	}
	return c, nil
}

// Float returns a column parsed as float64.
func (t *Table) Float(name string) ([]float64, error) {
	c, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(c))
	for i, s := range c {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			v = math.NaN()
		}
		out[i] = v
	}
	return out, nil
}

// ParamTable is a labelled 2-D table of numbers.
type ParamTable struct {
	Index   []string
	Columns []string
	Values  [][]float64 // [row][column]
}

// NewParamTable allocates a NaN-filled table.
func NewParamTable(index, columns []string) *ParamTable {
	p := &ParamTable{Index: index, Columns: columns, Values: make([][]float64, len(index))}
	for i := range p.Values {
		p.Values[i] = make([]float64, len(columns))
		for j := range p.Values[i] {
			p.Values[i][j] = math.NaN()
		}
	}
	return p
}

// Set stores v at (row, col).
func (p *ParamTable) Set(row, col string, v float64) error {
	i := indexOf(p.Index, row)
	j := indexOf(p.Columns, col)
	if i < 0 || j < 0 {
		return fmt.Errorf("%w: (%q, %q)", ErrNoColumn, row, col)
	}
	p.Values[i][j] = v
	return nil
}

// Get returns the value at (row, col).
func (p *ParamTable) Get(row, col string) (float64, error) {
	i := indexOf(p.Index, row)
	j := indexOf(p.Columns, col)
	if i < 0 || j < 0 {
		return 0, fmt.Errorf("%w: (%q, %q)", ErrNoColumn, row, col)
	}
	return p.Values[i][j], nil
}

func (p *ParamTable) check() error {
	if len(p.Values) != len(p.Index) {
		return fmt.Errorf("%w: %d rows, %d index labels", ErrShape, len(p.Values), len(p.Index))
	}
	for i, row := range p.Values {
		if len(row) != len(p.Columns) {
			return fmt.Errorf("%w: row %d has %d values, want %d", ErrShape, i, len(row), len(p.Columns))
		}
	}
	return nil
}

// WriteCSV writes the table with an unnamed index column.
func (p *ParamTable) WriteCSV(w io.Writer) error {
	if err := p.check(); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{""}, p.Columns...)); err != nil {
		return err
	}
	for i, row := range p.Values {
		rec := make([]string, 0, len(row)+1)
		rec = append(rec, p.Index[i])
		for _, v := range row {
			rec = append(rec, formatFloat(v))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteLaTeX writes a booktabs tabular.
func (p *ParamTable) WriteLaTeX(w io.Writer) error {
	if err := p.check(); err != nil {
		return err
	}
	var b strings.Builder
	b.WriteString("\\begin{tabular}{l" + strings.Repeat("r", len(p.Columns)) + "}\n")
	b.WriteString("\\toprule\n")
	b.WriteString("{}")
	for _, c := range p.Columns {
		b.WriteString(" & " + escapeLaTeX(c))
	}
	b.WriteString(" \\\\\n\\midrule\n")
	for i, row := range p.Values {
		b.WriteString(escapeLaTeX(p.Index[i]))
		for _, v := range row {
			b.WriteString(" & " + strconv.FormatFloat(v, 'f', 6, 64))
		}
		b.WriteString(" \\\\\n")
	}
	b.WriteString("\\bottomrule\n\\end{tabular}\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// Save writes the table to a .csv or .tex file, creating the directory.
func (p *ParamTable) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("table: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("table: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tex":
		err = p.WriteLaTeX(f)
	default:
		err = p.WriteCSV(f)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("table: write %s: %w", path, err)
	}
	return nil
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func escapeLaTeX(s string) string {
	return strings.NewReplacer("_", "\\_", "%", "\\%", "&", "\\&").Replace(s)
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}
