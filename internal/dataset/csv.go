package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
)

// Column names of the survey export. ConvertedCompYearly is the raw survey
// name of the salary column.
const (
	colCountry      = "Country"
	colEdLevel      = "EdLevel"
	colYearsCodePro = "YearsCodePro"
	colSalary       = "Salary"
	colRawSalary    = "ConvertedCompYearly"
)

const (
	lessThanOneYear = "Less than 1 year"
	moreThanFifty   = "More than 50 years"
)

// LoadOptions controls row filtering while loading.
type LoadOptions struct {
	// MaxSalary drops records whose salary is >= MaxSalary when positive.
	MaxSalary float64
}

// LoadStats reports how many rows were read and kept.
type LoadStats struct {
	Rows    int `json:"rows"`
	Kept    int `json:"kept"`
	Skipped int `json:"skipped"`
}

// LoadCSVFile opens path and parses it with ParseCSV.
func LoadCSVFile(path string, opts LoadOptions) (*Table, LoadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, LoadStats{}, fmt.Errorf("opening dataset %s: %w", path, err)
	}
	defer f.Close()
	table, stats, err := ParseCSV(f, opts)
	if err != nil {
		return nil, stats, fmt.Errorf("parsing dataset %s: %w", path, err)
	}
	return table, stats, nil
}

// ParseCSV reads a survey CSV with a header row. Columns are matched by name;
// unrelated columns are ignored. Rows with a missing or unparseable value in
// any of the four fields are skipped.
func ParseCSV(r io.Reader, opts LoadOptions) (*Table, LoadStats, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, LoadStats{}, fmt.Errorf("reading CSV headers: %w", err)
	}
	idx, err := mapColumns(headers)
	if err != nil {
		return nil, LoadStats{}, err
	}

	var stats LoadStats
	records := make([]Record, 0, 1024)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		stats.Rows++
		if err != nil {
			stats.Skipped++
			continue
		}
		rec, ok := parseRow(row, idx)
		if !ok || (opts.MaxSalary > 0 && rec.Salary >= opts.MaxSalary) {
			stats.Skipped++
			continue
		}
		records = append(records, rec)
	}
	stats.Kept = len(records)
	if stats.Skipped > 0 {
		slog.Debug("dataset rows skipped", "skipped", stats.Skipped, "rows", stats.Rows)
	}
	return &Table{records: records}, stats, nil
}

type columnIndex struct {
	country, edLevel, years, salary int
}

func mapColumns(headers []string) (columnIndex, error) {
	idx := columnIndex{-1, -1, -1, -1}
	rawSalary := -1
	for i, h := range headers {
		switch strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) {
		case colCountry:
			idx.country = i
		case colEdLevel:
			idx.edLevel = i
		case colYearsCodePro:
			idx.years = i
		case colSalary:
			idx.salary = i
		case colRawSalary:
			rawSalary = i
		}
	}
	if idx.salary < 0 {
		idx.salary = rawSalary
	}
	var missing []string
	if idx.country < 0 {
		missing = append(missing, colCountry)
	}
	if idx.edLevel < 0 {
		missing = append(missing, colEdLevel)
	}
	if idx.years < 0 {
		missing = append(missing, colYearsCodePro)
	}
	if idx.salary < 0 {
		missing = append(missing, colSalary)
	}
	if len(missing) > 0 {
		return idx, fmt.Errorf("missing CSV columns: %s", strings.Join(missing, ", "))
	}
	return idx, nil
}

func parseRow(row []string, idx columnIndex) (Record, bool) {
	get := func(i int) (string, bool) {
		if i >= len(row) {
			return "", false
		}
		v := strings.TrimSpace(row[i])
		if v == "" || v == "NA" || v == "NaN" {
			return "", false
		}
		return v, true
	}

	country, ok := get(idx.country)
	if !ok {
		return Record{}, false
	}
	ed, ok := get(idx.edLevel)
	if !ok {
		return Record{}, false
	}
	yearsRaw, ok := get(idx.years)
	if !ok {
		return Record{}, false
	}
	years, ok := ParseYears(yearsRaw)
	if !ok {
		return Record{}, false
	}
	salaryRaw, ok := get(idx.salary)
	if !ok {
		return Record{}, false
	}
	salary, err := strconv.ParseFloat(salaryRaw, 64)
	if err != nil || salary < 0 {
		return Record{}, false
	}
	return Record{
		Country:         country,
		EducationLevel:  ed,
		YearsExperience: years,
		Salary:          salary,
	}, true
}

// ParseYears converts a YearsCodePro cell to whole years. The survey's
// textual buckets map to 0 and 50; decimal values are truncated.
func ParseYears(v string) (int, bool) {
	f, ok := parseYears(v)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// ParseWholeYears is ParseYears for user input: fractional values are
// rejected instead of truncated.
func ParseWholeYears(v string) (int, bool) {
	f, ok := parseYears(v)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

func parseYears(v string) (float64, bool) {
	switch v {
	case lessThanOneYear:
		return 0, true
	case moreThanFifty:
		return 50, true
	}
	if n, err := strconv.Atoi(v); err == nil {
		if n < 0 || n > math.MaxInt32 {
			return 0, false
		}
		return float64(n), true
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || f < 0 || f > math.MaxInt32 {
		return 0, false
	}
	return f, true
}
