package room

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/beblucech/entry"
)

// Log is the append-only entry log, stored oldest first.
type Log struct {
	mu    sync.Mutex
	store entry.Store
}

func NewLog(store entry.Store) *Log {
	return &Log{store: store}
}

// Append adds rec as the newest record.
func (l *Log) Append(rec entry.EntryLogRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.load()
	if err != nil {
		return err
	}
	return storeJSON(l.store, entry.KeyLogs, append(records, rec))
}

// List returns every record, newest last.
func (l *Log) List() ([]entry.EntryLogRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load()
}

// Recent returns up to n records newest first. n <= 0 returns all of them.
func (l *Log) Recent(n int) ([]entry.EntryLogRecord, error) {
	records, err := l.List()
	if err != nil {
		return nil, err
	}

	if n <= 0 || n > len(records) {
		n = len(records)
	}
	out := make([]entry.EntryLogRecord, 0, n)
	for i := len(records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, records[i])
	}
	return out, nil
}

// must hold l.mu
func (l *Log) load() ([]entry.EntryLogRecord, error) {
	records := make([]entry.EntryLogRecord, 0)
	if _, err := loadJSON(l.store, entry.KeyLogs, &records); err != nil {
		return nil, errors.Wrap(err, "can't load entry log")
	}
	if records == nil {
		records = make([]entry.EntryLogRecord, 0)
	}
	return records, nil
}
