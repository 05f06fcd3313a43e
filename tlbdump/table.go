package tlbdump

import (
	"fmt"
	"io"
	"strings"
)

// DefaultFormat is the format verb used for columns registered without one.
const DefaultFormat = "%v"

// column is one registered table column. The title is stored already
// clipped or padded to the column width.
type column struct {
	title  string
	format string
}

// Table renders rows of values as fixed-width text columns.
//
// All columns must be added before the first call to PrintLine. The header is
// written once, right before the first row.
type Table struct {
	columns      []column
	printedTitle bool
	separator    string
}

// NewTable creates an empty table using a single space as column separator.
func NewTable() *Table {
	return &Table{separator: " "}
}

// FormatWidth clips s to limit characters, keeping the leading characters,
// or pads it on the right with spaces up to limit.
func FormatWidth(s string, limit int) string {
	if len(s) >= limit {
		return s[:limit]
	}
	return s + strings.Repeat(" ", limit-len(s))
}

// AddColumn registers a column. The effective width is the larger of the
// title length and width. An empty format selects DefaultFormat.
func (t *Table) AddColumn(title, format string, width int) {
	if t.printedTitle {
		panic("tlbdump: column added after the table header was printed")
	}
	if format == "" {
		format = DefaultFormat
	}
	width = max(len(title), width)
	t.columns = append(t.columns, column{
		title:  FormatWidth(title, width),
		format: format,
	})
}

// NumColumns returns the number of registered columns.
func (t *Table) NumColumns() int {
	return len(t.columns)
}

// Header returns the header line without the trailing newline.
func (t *Table) Header() string {
	titles := make([]string, len(t.columns))
	for i, c := range t.columns {
		titles[i] = c.title
	}
	return strings.Join(titles, t.separator)
}

// FormatLine renders one row without writing it.
func (t *Table) FormatLine(values ...any) (string, error) {
	if len(values) != len(t.columns) {
		return "", fmt.Errorf("%w: got %d values for %d columns",
			ErrShapeMismatch, len(values), len(t.columns))
	}

	cells := make([]string, len(values))
	for i, v := range values {
		c := t.columns[i]
		cells[i] = FormatWidth(fmt.Sprintf(c.format, v), len(c.title))
	}
	return strings.Join(cells, t.separator), nil
}

// PrintLine writes one row to w, preceded by the header on the first call.
// A row with the wrong number of values writes nothing.
func (t *Table) PrintLine(w io.Writer, values ...any) error {
	line, err := t.FormatLine(values...)
	if err != nil {
		return err
	}

	if !t.printedTitle {
		t.printedTitle = true
		if _, err := io.WriteString(w, t.Header()+"\n"); err != nil {
			return fmt.Errorf("failed to write table header: %w", err)
		}
	}

	if _, err := io.WriteString(w, line+"\n"); err != nil {
		return fmt.Errorf("failed to write table row: %w", err)
	}
	return nil
}
