// Package ledger records attendance durably, at most once per person per day.
//
// The store is the only source of truth for deduplication: every Mark loads
// the stored records and checks (name, date) before appending. Marks are
// serialised so concurrent callers cannot interleave a load with an append.
package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrCodeEU/faceattend/pkg/logging"
)

const (
	// DateLayout is the stored date format (ISO 8601).
	DateLayout = "2006-01-02"
	// TimeLayout is the stored 24-hour local time format.
	TimeLayout = "15:04:05"
)

// ErrLedgerIO matches every storage failure returned by a Ledger.
var ErrLedgerIO = errors.New("attendance ledger I/O error")

// IOError is returned when the store fails twice in a row.
type IOError struct {
	Op   string
	Name string
	Err  error
}

func (e *IOError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("ledger %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("ledger %s for %s: %v", e.Op, e.Name, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Is reports ErrLedgerIO as a match.
func (e *IOError) Is(target error) bool {
	return target == ErrLedgerIO
}

// Record is one attendance row.
type Record struct {
	Name string
	Date string
	Time string
}

// Store persists records.
type Store interface {
	// Load returns every record in insertion order.
	Load() ([]Record, error)
	// Append persists one new record.
	Append(r Record) error
	Close() error
}

// Ledger enforces one record per (name, date) on top of a Store.
type Ledger struct {
	store Store
	now   func() time.Time
	mu    sync.Mutex
}

// New creates a ledger over store using the system clock.
func New(store Store) *Ledger {
	return &Ledger{store: store, now: time.Now}
}

// SetClock replaces the clock used to stamp records.
func (l *Ledger) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Mark records name as present today. It returns the record for today and
// whether it was written by this call; a second Mark on the same date is a
// no-op returning the existing record. Storage failures are retried once
// and then returned as *IOError.
func (l *Ledger) Mark(name string) (Record, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	rec := Record{
		Name: name,
		Date: now.Format(DateLayout),
		Time: now.Format(TimeLayout),
	}

	var records []Record
	err := retryOnce("load", name, func() error {
		var err error
		records, err = l.store.Load()
		return err
	})
	if err != nil {
		return Record{}, false, err
	}

	for _, r := range records {
		if r.Name == rec.Name && r.Date == rec.Date {
			return r, false, nil
		}
	}

	if err := retryOnce("append", name, func() error {
		return l.store.Append(rec)
	}); err != nil {
		return Record{}, false, err
	}

	logging.WithFields(logging.Fields{
		"name": rec.Name,
		"date": rec.Date,
		"at":   rec.Time,
	}).Info("Attendance marked")
	return rec, true, nil
}

// Records returns every stored record.
func (l *Ledger) Records() ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var records []Record
	err := retryOnce("load", "", func() error {
		var err error
		records, err = l.store.Load()
		return err
	})
	return records, err
}

// ForDate returns the records stored for date (YYYY-MM-DD).
func (l *Ledger) ForDate(date string) ([]Record, error) {
	records, err := l.Records()
	if err != nil {
		return nil, err
	}

	var out []Record
	for _, r := range records {
		if r.Date == date {
			out = append(out, r)
		}
	}
	return out, nil
}

// Today returns the records for the current date.
func (l *Ledger) Today() ([]Record, error) {
	l.mu.Lock()
	date := l.now().Format(DateLayout)
	l.mu.Unlock()
	return l.ForDate(date)
}

// Close closes the underlying store.
func (l *Ledger) Close() error {
	return l.store.Close()
}

func retryOnce(op, name string, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}

	logging.WithError(err).Warnf("Ledger %s failed, retrying once", op)
	if err := fn(); err != nil {
		return &IOError{Op: op, Name: name, Err: err}
	}
	return nil
}
