package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/hrdatainsights/salary-platform/pkg/postgres"
	"github.com/lib/pq"
)

// PostgresSource loads the historical table from PostgreSQL.
//
// Records live in the survey_responses table; EnsureSchema creates it.
type PostgresSource struct {
	db     *postgres.Client
	logger *slog.Logger
}

// NewPostgresSource creates a source backed by db.
func NewPostgresSource(db *postgres.Client) *PostgresSource {
	return &PostgresSource{
		db:     db,
		logger: slog.Default().With("component", "dataset-postgres"),
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS survey_responses (
    id             BIGSERIAL PRIMARY KEY,
    country        TEXT NOT NULL,
    ed_level       TEXT NOT NULL,
    years_code_pro INTEGER NOT NULL CHECK (years_code_pro >= 0),
    salary         DOUBLE PRECISION NOT NULL CHECK (salary >= 0)
)`

// EnsureSchema creates survey_responses when it does not exist.
func (s *PostgresSource) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating survey_responses: %w", err)
	}
	return nil
}

// Load reads every survey response. When opts.MaxSalary is positive the
// filter is pushed into the query.
func (s *PostgresSource) Load(ctx context.Context, opts LoadOptions) (*Table, LoadStats, error) {
	query := `SELECT country, ed_level, years_code_pro, salary FROM survey_responses ORDER BY id`
	args := []any{}
	if opts.MaxSalary > 0 {
		query = `SELECT country, ed_level, years_code_pro, salary FROM survey_responses WHERE salary < $1 ORDER BY id`
		args = append(args, opts.MaxSalary)
	}
	rows, err := s.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, LoadStats{}, fmt.Errorf("querying survey responses: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0, 1024)
	var stats LoadStats
	for rows.Next() {
		stats.Rows++
		var rec Record
		if err := rows.Scan(&rec.Country, &rec.EducationLevel, &rec.YearsExperience, &rec.Salary); err != nil {
			return nil, stats, fmt.Errorf("scanning survey response: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, stats, fmt.Errorf("iterating survey responses: %w", err)
	}
	stats.Kept = len(records)
	s.logger.Info("survey responses loaded", "records", stats.Kept)
	return &Table{records: records}, stats, nil
}

// Replace truncates survey_responses and bulk-loads table with COPY inside a
// single transaction.
func (s *PostgresSource) Replace(ctx context.Context, table *Table) error {
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `TRUNCATE survey_responses`); err != nil {
			return fmt.Errorf("truncating survey responses: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, pq.CopyIn("survey_responses", "country", "ed_level", "years_code_pro", "salary"))
		if err != nil {
			return fmt.Errorf("preparing copy: %w", err)
		}
		for _, r := range table.records {
			if _, err := stmt.ExecContext(ctx, r.Country, r.EducationLevel, r.YearsExperience, r.Salary); err != nil {
				stmt.Close()
				return fmt.Errorf("copying record: %w", err)
			}
		}
		if _, err := stmt.ExecContext(ctx); err != nil {
			stmt.Close()
			return fmt.Errorf("flushing copy: %w", err)
		}
		if err := stmt.Close(); err != nil {
			return fmt.Errorf("closing copy: %w", err)
		}
		s.logger.Info("survey responses replaced", "records", len(table.records))
		return nil
	})
}
