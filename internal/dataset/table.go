// Package dataset holds the historical survey table: one immutable record per
// respondent with country, education level, years of professional coding and
// yearly salary.
package dataset

import "sort"

// Record is a single survey respondent.
type Record struct {
	Country         string  `json:"country"`
	EducationLevel  string  `json:"education_level"`
	YearsExperience int     `json:"years_experience"`
	Salary          float64 `json:"salary"`
}

// Table is the immutable set of historical records. It is safe for
// concurrent readers.
type Table struct {
	records []Record
}

// NewTable copies records into a new Table.
func NewTable(records []Record) *Table {
	owned := make([]Record, len(records))
	copy(owned, records)
	return &Table{records: owned}
}

// Len returns the number of records.
func (t *Table) Len() int {
	return len(t.records)
}

// At returns the i-th record.
func (t *Table) At(i int) Record {
	return t.records[i]
}

// Each calls fn for every record in load order.
func (t *Table) Each(fn func(Record)) {
	for _, r := range t.records {
		fn(r)
	}
}

// Filter returns the records for which keep returns true.
func (t *Table) Filter(keep func(Record) bool) []Record {
	out := make([]Record, 0)
	for _, r := range t.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// Countries returns the distinct countries, sorted.
func (t *Table) Countries() []string {
	return t.distinct(func(r Record) string { return r.Country })
}

// EducationLevels returns the distinct education levels, sorted.
func (t *Table) EducationLevels() []string {
	return t.distinct(func(r Record) string { return r.EducationLevel })
}

func (t *Table) distinct(field func(Record) string) []string {
	seen := make(map[string]struct{})
	for _, r := range t.records {
		seen[field(r)] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
