package reshape

import "github.com/vinodismyname/biofarmaka/internal/model"

// Table is an immutable long-form record set. Accessors return copies.
type Table struct {
	rows []model.Record
}

// NewTable snapshots records into a Table.
func NewTable(records []model.Record) Table {
	return Table{rows: append([]model.Record(nil), records...)}
}

// Len returns the number of records.
func (t Table) Len() int { return len(t.rows) }

// At returns the i-th record by value.
func (t Table) At(i int) model.Record { return t.rows[i] }

// Rows returns a copy of all records.
func (t Table) Rows() []model.Record {
	return append([]model.Record(nil), t.rows...)
}

// Filter returns the records matching keep, in table order.
func (t Table) Filter(keep func(model.Record) bool) []model.Record {
	var out []model.Record
	for _, r := range t.rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// Slice returns a copy of records in [off, off+n), clamped to the table.
func (t Table) Slice(off, n int) []model.Record {
	if off < 0 {
		off = 0
	}
	if off >= len(t.rows) || n <= 0 {
		return nil
	}
	end := off + n
	if end > len(t.rows) {
		end = len(t.rows)
	}
	return append([]model.Record(nil), t.rows[off:end]...)
}

// Crops returns distinct crop names in first-seen order.
func (t Table) Crops() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, r := range t.rows {
		if _, ok := seen[r.Crop]; ok {
			continue
		}
		seen[r.Crop] = struct{}{}
		out = append(out, r.Crop)
	}
	return out
}
