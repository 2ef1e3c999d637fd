package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fortuna/cricstats/internal/records"
)

// CSV appends records to one file per schema. The header is written only when
// the file is created or empty, so repeated runs keep appending to the same file.
type CSV struct {
	dir   string
	files map[string]string // schema name -> file name override
}

// NewCSV creates a CSV sink rooted at dir. files optionally overrides the file
// name used for a schema.
func NewCSV(dir string, files map[string]string) *CSV {
	return &CSV{dir: dir, files: files}
}

// Path returns the file a schema is written to
func (c *CSV) Path(schema records.Schema) string {
	name := schema.File
	if override, ok := c.files[schema.Name]; ok && override != "" {
		name = override
	}
	return filepath.Join(c.dir, name)
}

// Write appends one row, creating the directory and header when needed
func (c *CSV) Write(_ context.Context, r records.Record) error {
	path := c.Path(r.Schema())
	if err := c.append(path, r); err != nil {
		return &WriteError{Target: path, Record: r, Err: err}
	}
	return nil
}

func (c *CSV) append(path string, r records.Record) error {
	if err := records.Validate(r); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat file: %w", err)
	}

	w := csv.NewWriter(file)
	if info.Size() == 0 {
		if err := w.Write(r.Schema().Columns); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	if err := w.Write(records.Row(r)); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	return file.Close()
}

// Close is a no-op; files are opened per write
func (c *CSV) Close() error {
	return nil
}
