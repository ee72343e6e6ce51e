package dataset

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Kind is the storage type of a column
type Kind int

const (
	Numeric Kind = iota
	Categorical
)

func (k Kind) String() string {
	if k == Numeric {
		return "numeric"
	}
	return "categorical"
}

// naTokens are the cell values read as missing, mirroring the pandas defaults
var naTokens = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

// IsMissingToken reports whether a raw cell should be treated as missing
func IsMissingToken(s string) bool {
	_, ok := naTokens[strings.TrimSpace(s)]
	return ok
}

// Column is a named, typed column. Numeric cells use NaN for missing,
// categorical cells use the empty string.
type Column struct {
	Name    string
	Kind    Kind
	Numbers []float64
	Strings []string
}

// Len returns the number of cells
func (c *Column) Len() int {
	if c.Kind == Numeric {
		return len(c.Numbers)
	}
	return len(c.Strings)
}

// IsMissing reports whether cell i is missing
func (c *Column) IsMissing(i int) bool {
	if c.Kind == Numeric {
		return math.IsNaN(c.Numbers[i])
	}
	return c.Strings[i] == ""
}

// MissingCount returns the number of missing cells
func (c *Column) MissingCount() int {
	n := 0
	for i := 0; i < c.Len(); i++ {
		if c.IsMissing(i) {
			n++
		}
	}
	return n
}

// Cell renders cell i as text; missing cells render empty
func (c *Column) Cell(i int) string {
	if c.Kind == Numeric {
		return FormatNumber(c.Numbers[i])
	}
	return c.Strings[i]
}

func (c *Column) clone() *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	if c.Kind == Numeric {
		out.Numbers = append([]float64(nil), c.Numbers...)
	} else {
		out.Strings = append([]string(nil), c.Strings...)
	}
	return out
}

func (c *Column) pick(rows []int) *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	if c.Kind == Numeric {
		out.Numbers = make([]float64, len(rows))
		for i, r := range rows {
			out.Numbers[i] = c.Numbers[r]
		}
	} else {
		out.Strings = make([]string, len(rows))
		for i, r := range rows {
			out.Strings[i] = c.Strings[r]
		}
	}
	return out
}

// FormatNumber renders a float in its shortest exact decimal form
func FormatNumber(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Frame is an ordered set of equally long columns
type Frame struct {
	columns []*Column
	index   map[string]int
	rows    int
}

// NewFrame creates an empty frame
func NewFrame() *Frame {
	return &Frame{index: make(map[string]int)}
}

// NumRows returns the row count
func (f *Frame) NumRows() int { return f.rows }

// NumCols returns the column count
func (f *Frame) NumCols() int { return len(f.columns) }

// Names returns the column names in order
func (f *Frame) Names() []string {
	names := make([]string, len(f.columns))
	for i, c := range f.columns {
		names[i] = c.Name
	}
	return names
}

// Columns returns the columns in order. Callers must not resize them.
func (f *Frame) Columns() []*Column { return f.columns }

// Column looks up a column by name
func (f *Frame) Column(name string) (*Column, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.columns[i], true
}

// HasColumn reports whether the frame has the named column
func (f *Frame) HasColumn(name string) bool {
	_, ok := f.index[name]
	return ok
}

// AddNumeric adds a numeric column, replacing an existing one in place
func (f *Frame) AddNumeric(name string, values []float64) error {
	return f.set(&Column{Name: name, Kind: Numeric, Numbers: values})
}

// AddCategorical adds a categorical column, replacing an existing one in place
func (f *Frame) AddCategorical(name string, values []string) error {
	return f.set(&Column{Name: name, Kind: Categorical, Strings: values})
}

func (f *Frame) set(col *Column) error {
	if len(f.columns) > 0 && col.Len() != f.rows {
		return fmt.Errorf("column %q has %d rows, frame has %d", col.Name, col.Len(), f.rows)
	}
	if i, ok := f.index[col.Name]; ok {
		f.columns[i] = col
	} else {
		f.index[col.Name] = len(f.columns)
		f.columns = append(f.columns, col)
	}
	f.rows = col.Len()
	return nil
}

// Drop removes the named columns; unknown names are ignored
func (f *Frame) Drop(names ...string) {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	kept := f.columns[:0]
	for _, c := range f.columns {
		if !drop[c.Name] {
			kept = append(kept, c)
		}
	}
	f.columns = kept
	f.reindex()
}

func (f *Frame) reindex() {
	f.index = make(map[string]int, len(f.columns))
	for i, c := range f.columns {
		f.index[c.Name] = i
	}
	if len(f.columns) == 0 {
		f.rows = 0
	}
}

// Clone returns a deep copy
func (f *Frame) Clone() *Frame {
	out := &Frame{columns: make([]*Column, len(f.columns)), rows: f.rows}
	for i, c := range f.columns {
		out.columns[i] = c.clone()
	}
	out.reindex()
	out.rows = f.rows
	return out
}

// SelectRows returns a new frame holding the given rows in order
func (f *Frame) SelectRows(rows []int) *Frame {
	out := &Frame{columns: make([]*Column, len(f.columns))}
	for i, c := range f.columns {
		out.columns[i] = c.pick(rows)
	}
	out.reindex()
	out.rows = len(rows)
	return out
}

// Head returns the first n rows
func (f *Frame) Head(n int) *Frame {
	if n > f.rows {
		n = f.rows
	}
	if n < 0 {
		n = 0
	}
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return f.SelectRows(rows)
}

// Row renders row i as text cells
func (f *Frame) Row(i int) []string {
	cells := make([]string, len(f.columns))
	for j, c := range f.columns {
		cells[j] = c.Cell(i)
	}
	return cells
}

// DropDuplicates returns a frame without repeated rows, keeping first occurrences
func (f *Frame) DropDuplicates() *Frame {
	seen := make(map[string]struct{}, f.rows)
	keep := make([]int, 0, f.rows)
	for i := 0; i < f.rows; i++ {
		key := strings.Join(f.Row(i), "\x00")
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keep = append(keep, i)
	}
	return f.SelectRows(keep)
}

// Matrix returns the named numeric columns as a row-major matrix
func (f *Frame) Matrix(names []string) ([][]float64, error) {
	cols := make([]*Column, len(names))
	for j, name := range names {
		c, ok := f.Column(name)
		if !ok {
			return nil, fmt.Errorf("column %q not found", name)
		}
		if c.Kind != Numeric {
			return nil, fmt.Errorf("column %q is %s, not numeric", name, c.Kind)
		}
		cols[j] = c
	}

	X := make([][]float64, f.rows)
	for i := range X {
		row := make([]float64, len(cols))
		for j, c := range cols {
			row[j] = c.Numbers[i]
		}
		X[i] = row
	}
	return X, nil
}

// WriteCSV writes a header line followed by every row
func (f *Frame) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(f.Names()); err != nil {
		return err
	}
	for i := 0; i < f.rows; i++ {
		if err := cw.Write(f.Row(i)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveCSV writes the frame to path, creating parent directories
func (f *Frame) SaveCSV(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := f.WriteCSV(file); err != nil {
		file.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return file.Close()
}

// utf8BOM is the byte order mark spreadsheet exports put before the header
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadCSV parses CSV with a header row. A column is numeric when every
// non-missing cell parses as a float, categorical otherwise. A leading
// UTF-8 BOM is skipped.
func ReadCSV(r io.Reader) (*Frame, error) {
	br := bufio.NewReader(r)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(prefix, utf8BOM) {
		br.Discard(len(utf8BOM))
	}
	cr := csv.NewReader(br)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("CSV has no header")
	}

	header := records[0]
	body := records[1:]
	frame := NewFrame()
	for j, name := range header {
		name = strings.TrimSpace(name)
		if frame.HasColumn(name) {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		raw := make([]string, len(body))
		for i, rec := range body {
			raw[i] = rec[j]
		}
		if err := frame.set(inferColumn(name, raw)); err != nil {
			return nil, err
		}
	}
	frame.rows = len(body)
	return frame, nil
}

func inferColumn(name string, raw []string) *Column {
	numbers := make([]float64, len(raw))
	numeric := true
	for i, cell := range raw {
		if IsMissingToken(cell) {
			numbers[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
		if err != nil {
			numeric = false
			break
		}
		numbers[i] = v
	}
	if numeric {
		return &Column{Name: name, Kind: Numeric, Numbers: numbers}
	}

	strs := make([]string, len(raw))
	for i, cell := range raw {
		if !IsMissingToken(cell) {
			strs[i] = cell
		}
	}
	return &Column{Name: name, Kind: Categorical, Strings: strs}
}

// Concat stacks frames vertically. The result carries the union of columns
// in first-seen order; cells from frames lacking a column are missing. A
// column stored as categorical in any input is categorical in the output.
func Concat(frames ...*Frame) *Frame {
	var order []string
	kinds := make(map[string]Kind)
	total := 0
	for _, f := range frames {
		total += f.rows
		for _, c := range f.columns {
			k, seen := kinds[c.Name]
			if !seen {
				order = append(order, c.Name)
				kinds[c.Name] = c.Kind
				continue
			}
			if k == Numeric && c.Kind == Categorical {
				kinds[c.Name] = Categorical
			}
		}
	}

	out := NewFrame()
	for _, name := range order {
		col := &Column{Name: name, Kind: kinds[name]}
		for _, f := range frames {
			src, ok := f.Column(name)
			for i := 0; i < f.rows; i++ {
				switch {
				case col.Kind == Numeric && ok:
					col.Numbers = append(col.Numbers, src.Numbers[i])
				case col.Kind == Numeric:
					col.Numbers = append(col.Numbers, math.NaN())
				case ok:
					col.Strings = append(col.Strings, src.Cell(i))
				default:
					col.Strings = append(col.Strings, "")
				}
			}
		}
		out.index[name] = len(out.columns)
		out.columns = append(out.columns, col)
	}
	out.rows = total
	return out
}
