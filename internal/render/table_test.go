package render

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jpalmerr/resourceboard/internal/jsonvalue"
)

func parse(t *testing.T, s string) jsonvalue.Value {
	t.Helper()
	v, err := jsonvalue.Parse([]byte(s))
	if err != nil {
		t.Fatalf("Parse(%q) error = %v", s, err)
	}
	return v
}

func texts(row Row) []string {
	out := make([]string, len(row.Cells))
	for i, c := range row.Cells {
		out[i] = c.Text
	}
	return out
}

func TestTable_FormatsCells(t *testing.T) {
	items := parse(t, `[{
		"id": 1,
		"title": "Post",
		"featured": true,
		"hidden": false,
		"tags": ["a","b"],
		"meta": {"k":"v"},
		"score": 4.5,
		"note": null,
		"createdAt": "2024-01-15T10:30:00.000Z",
		"publishedAt": "not a date"
	}]`).Elements()
	columns := []string{"id", "title", "featured", "hidden", "tags", "meta", "score", "note", "missing", "createdAt", "publishedAt"}

	rows := Table(items, columns, nil)
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(rows))
	}

	want := []string{"1", "Post", "TRUE", "FALSE", "[Object]", "[Object]", "4.5", "-", "-", "1/15/2024", "-"}
	got := texts(rows[0])
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("cell %s = %q, want %q", columns[i], got[i], want[i])
		}
	}
}

func TestTable_CellKinds(t *testing.T) {
	items := parse(t, `[{"a":true,"b":{},"c":"x","createdAt":"2024-01-01"}]`).Elements()

	rows := Table(items, []string{"a", "b", "c", "d", "createdAt"}, nil)
	want := []CellKind{CellBool, CellObject, CellText, CellMissing, CellDate}
	for i, k := range want {
		if rows[0].Cells[i].Kind != k {
			t.Errorf("cell %d Kind = %v, want %v", i, rows[0].Cells[i].Kind, k)
		}
	}
}

func TestTable_OneCellPerColumn(t *testing.T) {
	items := parse(t, `[{"a":1},{"b":2},{}]`).Elements()
	columns := []string{"id", "a", "b", "createdAt", "publishedAt"}

	for i, row := range Table(items, columns, nil) {
		if len(row.Cells) != len(columns) {
			t.Errorf("row %d has %d cells, want %d", i, len(row.Cells), len(columns))
		}
		for j, c := range row.Cells {
			if c.Column != columns[j] {
				t.Errorf("row %d cell %d Column = %q, want %q", i, j, c.Column, columns[j])
			}
		}
	}
}

func TestTable_CapsRows(t *testing.T) {
	var items []jsonvalue.Value
	for i := 0; i < 25; i++ {
		items = append(items, jsonvalue.NewObject(jsonvalue.Member{Key: "id", Value: jsonvalue.NewFloat(float64(i))}))
	}

	rows := Table(items, []string{"id"}, nil)
	if len(rows) != MaxTableRows {
		t.Fatalf("len(rows) = %d, want %d", len(rows), MaxTableRows)
	}
	if rows[9].Cells[0].Text != "9" {
		t.Errorf("last row id = %q, want 9", rows[9].Cells[0].Text)
	}
}

func TestTable_Empty(t *testing.T) {
	rows := Table(nil, []string{"id"}, nil)
	if rows == nil || len(rows) != 0 {
		t.Errorf("Table(nil) = %v, want empty slice", rows)
	}
}

func TestTable_SnakeCaseTimestampFallback(t *testing.T) {
	items := parse(t, `[{"id":1,"created_at":"2023-12-31 08:00:00","published_at":null}]`).Elements()

	rows := Table(items, []string{"id", "createdAt", "publishedAt"}, nil)
	got := texts(rows[0])
	if got[1] != "12/31/2023" {
		t.Errorf("createdAt = %q, want 12/31/2023", got[1])
	}
	if got[2] != "-" {
		t.Errorf("publishedAt = %q, want -", got[2])
	}
	if rows[0].Status != StatusDraft {
		t.Errorf("Status = %q, want %q", rows[0].Status, StatusDraft)
	}
}

func TestTable_DateUsesLocation(t *testing.T) {
	items := parse(t, `[{"createdAt":"2024-01-15T02:00:00Z"}]`).Elements()
	loc := time.FixedZone("UTC-5", -5*60*60)

	if got := Table(items, []string{"createdAt"}, loc)[0].Cells[0].Text; got != "1/14/2024" {
		t.Errorf("createdAt in UTC-5 = %q, want 1/14/2024", got)
	}
	if got := Table(items, []string{"createdAt"}, nil)[0].Cells[0].Text; got != "1/15/2024" {
		t.Errorf("createdAt in UTC = %q, want 1/15/2024", got)
	}
}

func TestTable_NonStringTimestampIsPlainValue(t *testing.T) {
	items := parse(t, `[{"updatedAt":1700000000}]`).Elements()

	cell := Table(items, []string{"updatedAt"}, nil)[0].Cells[0]
	if cell.Text != "1700000000" || cell.Kind != CellText {
		t.Errorf("cell = %+v, want plain number", cell)
	}
}

func TestIsTimestampColumn(t *testing.T) {
	tests := map[string]bool{
		"createdAt":    true,
		"publishedAt":  true,
		"updated_at":   true,
		"expiresAt":    true,
		"title":        false,
		"Attachment":   false,
		"flat_amount":  false,
		"status":       false,
		"deleted_at_x": false,
	}

	for col, want := range tests {
		if got := IsTimestampColumn(col); got != want {
			t.Errorf("IsTimestampColumn(%q) = %v, want %v", col, got, want)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	valid := []string{
		"2024-01-15T10:30:00Z",
		"2024-01-15T10:30:00.123Z",
		"2024-01-15T10:30:00+02:00",
		"2024-01-15T10:30:00",
		"2024-01-15 10:30:00",
		"2024-01-15",
	}
	for _, s := range valid {
		if _, ok := ParseTimestamp(s, nil); !ok {
			t.Errorf("ParseTimestamp(%q) ok = false, want true", s)
		}
	}

	invalid := []string{"", "yesterday", "15/01/2024", "2024-13-45"}
	for _, s := range invalid {
		if _, ok := ParseTimestamp(s, nil); ok {
			t.Errorf("ParseTimestamp(%q) ok = true, want false", s)
		}
	}
}

func TestPublicationStatus(t *testing.T) {
	tests := []struct {
		record string
		want   string
	}{
		{`{"publishedAt":"2024-01-01T00:00:00Z"}`, StatusPublished},
		{`{"published_at":"2024-01-01"}`, StatusPublished},
		{`{"publishedAt":null}`, StatusDraft},
		{`{"publishedAt":""}`, StatusDraft},
		{`{"publishedAt":false}`, StatusDraft},
		{`{"title":"x"}`, ""},
		{`{"publishedAt":null,"published_at":"2024-01-01"}`, StatusPublished},
	}

	for _, tt := range tests {
		if got := PublicationStatus(parse(t, tt.record)); got != tt.want {
			t.Errorf("PublicationStatus(%s) = %q, want %q", tt.record, got, tt.want)
		}
	}
}

func TestTable_WideRecord(t *testing.T) {
	const n = 100_000

	var sb strings.Builder
	sb.WriteByte('{')
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, `"c%d":%d`, i, i)
	}
	sb.WriteByte('}')
	record := parse(t, sb.String())

	start := time.Now()
	rows := Table([]jsonvalue.Value{record}, record.Keys(), time.UTC)
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Table() of %d columns took %v", n, elapsed)
	}

	if len(rows) != 1 || len(rows[0].Cells) != n {
		t.Fatalf("got %d rows, want 1 row of %d cells", len(rows), n)
	}
	if last := rows[0].Cells[n-1]; last.Text != fmt.Sprint(n-1) {
		t.Errorf("last cell = %q, want %d", last.Text, n-1)
	}
}
