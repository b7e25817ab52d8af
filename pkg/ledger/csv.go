package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

var csvHeader = []string{"Name", "Date", "Time"}

// CSVStore keeps the ledger in a CSV file with a Name,Date,Time header.
// Every append rewrites the whole file through a temporary file and rename.
type CSVStore struct {
	path string
}

// NewCSVStore opens path, creating it with just the header if missing.
func NewCSVStore(path string) (*CSVStore, error) {
	s := &CSVStore{path: path}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := s.write(nil); err != nil {
			return nil, fmt.Errorf("failed to create attendance file: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat attendance file: %w", err)
	}

	return s, nil
}

// Path returns the file backing the store.
func (s *CSVStore) Path() string {
	return s.path
}

// Load reads all rows. A missing file is an empty ledger.
func (s *CSVStore) Load() ([]Record, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(csvHeader)

	var records []Record
	for first := true; ; first = false {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", s.path, err)
		}
		if first && row[0] == csvHeader[0] && row[1] == csvHeader[1] && row[2] == csvHeader[2] {
			continue
		}
		records = append(records, Record{Name: row[0], Date: row[1], Time: row[2]})
	}

	return records, nil
}

// Append adds rec and rewrites the file.
func (s *CSVStore) Append(rec Record) error {
	records, err := s.Load()
	if err != nil {
		return err
	}
	return s.write(append(records, rec))
}

// Close is a no-op; the file is not held open.
func (s *CSVStore) Close() error {
	return nil
}

func (s *CSVStore) write(records []Record) error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, csvHeader)
	for _, r := range records {
		rows = append(rows, []string{r.Name, r.Date, r.Time})
	}
	if err := w.WriteAll(rows); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), s.path)
}
