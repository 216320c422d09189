// Package render turns classified payloads into presentation-ready values.
//
// Two strategies exist: [Table] for tabular collections and [Media] for file
// collections. Both are pure functions; neither ever fails. Cells or tiles
// that cannot be rendered fall back to placeholders.
package render

import (
	"strings"
	"time"

	"github.com/jpalmerr/resourceboard/internal/jsonvalue"
)

const (
	// MaxTableRows caps the rows produced by Table. The table is a preview.
	MaxTableRows = 10

	TrueLabel         = "TRUE"
	FalseLabel        = "FALSE"
	Placeholder       = "-"
	ObjectPlaceholder = "[Object]"

	// DateLayout is the short numeric date used for timestamp cells.
	DateLayout = "1/2/2006"

	StatusPublished = "Published"
	StatusDraft     = "Draft"
)

// CellKind tells the UI how a cell was produced.
type CellKind string

const (
	CellText    CellKind = "text"
	CellBool    CellKind = "boolean"
	CellDate    CellKind = "date"
	CellObject  CellKind = "object"
	CellMissing CellKind = "missing"
)

// Cell is one rendered table cell.
type Cell struct {
	Column string   `json:"column"`
	Text   string   `json:"text"`
	Kind   CellKind `json:"kind"`
}

// Row is one rendered table row. Status is the publication badge and is
// empty when the record carries no publication field.
type Row struct {
	Cells  []Cell `json:"cells"`
	Status string `json:"status,omitempty"`
}

// timestampLayouts are tried in order when parsing timestamp cells.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Table renders up to MaxTableRows items against columns. Every row has one
// cell per column, in column order; records missing a column get a
// placeholder cell. A nil loc renders dates in UTC.
func Table(items []jsonvalue.Value, columns []string, loc *time.Location) []Row {
	if loc == nil {
		loc = time.UTC
	}

	n := len(items)
	if n > MaxTableRows {
		n = MaxTableRows
	}

	rows := make([]Row, 0, n)
	for _, item := range items[:n] {
		fields := fieldIndex(item)
		cells := make([]Cell, len(columns))
		for i, col := range columns {
			v, ok := lookup(fields, col)
			cells[i] = FormatCell(col, v, ok, loc)
		}
		rows = append(rows, Row{Cells: cells, Status: PublicationStatus(item)})
	}
	return rows
}

// fieldIndex maps the members of a record by key, so rendering a wide record
// stays linear in its column count.
func fieldIndex(record jsonvalue.Value) map[string]jsonvalue.Value {
	members := record.Members()
	fields := make(map[string]jsonvalue.Value, len(members))
	for _, m := range members {
		fields[m.Key] = m.Value
	}
	return fields
}

// lookup finds the value for column, falling back to the snake_case spelling
// of camelCase timestamp columns (createdAt -> created_at).
func lookup(fields map[string]jsonvalue.Value, column string) (jsonvalue.Value, bool) {
	v, ok := fields[column]
	if ok && !v.IsNull() {
		return v, true
	}
	if base, found := strings.CutSuffix(column, "At"); found && base != "" {
		if altV, altOK := fields[base+"_at"]; altOK {
			return altV, true
		}
	}
	return v, ok
}

// FormatCell renders a single value. present is false when the record has no
// such field.
func FormatCell(column string, v jsonvalue.Value, present bool, loc *time.Location) Cell {
	cell := Cell{Column: column}

	if !present || v.IsNull() {
		cell.Text, cell.Kind = Placeholder, CellMissing
		return cell
	}

	if s, ok := v.AsString(); ok && IsTimestampColumn(column) {
		cell.Kind = CellDate
		if t, ok := ParseTimestamp(s, loc); ok {
			cell.Text = t.In(loc).Format(DateLayout)
		} else {
			cell.Text = Placeholder
		}
		return cell
	}

	switch v.Kind() {
	case jsonvalue.KindBool:
		b, _ := v.AsBool()
		cell.Kind = CellBool
		cell.Text = FalseLabel
		if b {
			cell.Text = TrueLabel
		}
	case jsonvalue.KindArray, jsonvalue.KindObject:
		cell.Text, cell.Kind = ObjectPlaceholder, CellObject
	default:
		cell.Text, cell.Kind = v.String(), CellText
	}
	return cell
}

// IsTimestampColumn reports whether a column name follows the createdAt or
// created_at naming convention.
func IsTimestampColumn(column string) bool {
	return strings.HasSuffix(column, "At") || strings.HasSuffix(column, "_at")
}

// ParseTimestamp parses common API timestamp spellings. Values without a zone
// are interpreted in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// PublicationStatus returns StatusPublished or StatusDraft for records that
// carry a publication timestamp field, and "" for records that do not.
func PublicationStatus(record jsonvalue.Value) string {
	found := false
	for _, key := range []string{"publishedAt", "published_at"} {
		v, ok := record.Field(key)
		if !ok {
			continue
		}
		found = true
		if v.Truthy() {
			return StatusPublished
		}
	}
	if found {
		return StatusDraft
	}
	return ""
}
