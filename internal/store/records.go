package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/fortuna/cricstats/internal/records"
	"github.com/fortuna/cricstats/internal/sink"
)

// RecordRepository reads and writes scraped rows. Table and column names
// come from the fixed schema table, never from callers.
type RecordRepository struct {
	db *Database
}

// NewRecordRepository creates a new record repository
func NewRecordRepository(db *Database) *RecordRepository {
	return &RecordRepository{db: db}
}

func insertQuery(schema records.Schema) string {
	placeholders := make([]string, len(schema.Fields))
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		schema.Table, strings.Join(schema.Fields, ", "), strings.Join(placeholders, ", "))
}

func listQuery(schema records.Schema) string {
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY id LIMIT $1 OFFSET $2",
		strings.Join(schema.Fields, ", "), schema.Table)
}

// Insert appends one record with sentinels filled in
func (r *RecordRepository) Insert(ctx context.Context, rec records.Record) error {
	if err := records.Validate(rec); err != nil {
		return err
	}

	row := records.Row(rec)
	args := make([]interface{}, len(row))
	for i, v := range row {
		args[i] = v
	}

	if _, err := r.db.DB().ExecContext(ctx, insertQuery(rec.Schema()), args...); err != nil {
		return fmt.Errorf("inserting %s record: %w", rec.Schema().Name, err)
	}
	return nil
}

// List returns stored rows in insertion order, keyed by column name
func (r *RecordRepository) List(ctx context.Context, schema records.Schema, limit, offset int) ([]map[string]string, error) {
	rows, err := r.db.DB().QueryContext(ctx, listQuery(schema), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying %s records: %w", schema.Name, err)
	}
	defer rows.Close()

	out := []map[string]string{}
	for rows.Next() {
		values := make([]string, len(schema.Fields))
		dest := make([]interface{}, len(values))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning %s record: %w", schema.Name, err)
		}

		row := make(map[string]string, len(values))
		for i, col := range schema.Columns {
			row[col] = values[i]
		}
		out = append(out, row)
	}

	return out, rows.Err()
}

// Count returns the number of stored rows for a schema
func (r *RecordRepository) Count(ctx context.Context, schema records.Schema) (int, error) {
	var n int
	query := "SELECT COUNT(*) FROM " + schema.Table
	if err := r.db.DB().QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s records: %w", schema.Name, err)
	}
	return n, nil
}

// Sink adapts the repository to sink.Sink
type Sink struct {
	repo *RecordRepository
}

// NewSink creates a Postgres record sink
func NewSink(repo *RecordRepository) *Sink {
	return &Sink{repo: repo}
}

// Write inserts r
func (s *Sink) Write(ctx context.Context, r records.Record) error {
	if err := s.repo.Insert(ctx, r); err != nil {
		return &sink.WriteError{Target: "postgres table " + r.Schema().Table, Record: r, Err: err}
	}
	return nil
}

// Close is a no-op; the connection is owned by the caller
func (s *Sink) Close() error {
	return nil
}
