// Package dataset loads the Ayurvedic condition table and exposes it as an
// immutable, ordered sequence of records shared by every request.
package dataset

import (
	"log/slog"
	"sync"
)

// Dataset is an ordered, read-only sequence of Records.  A nil *Dataset is
// valid and holds no records.
type Dataset struct {
	records []Record
}

// New wraps records in a Dataset.  The slice is copied so later changes by
// the caller are not visible through the Dataset.
func New(records []Record) *Dataset {
	out := make([]Record, len(records))
	copy(out, records)
	return &Dataset{records: out}
}

// Len reports the number of records.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.records)
}

// At returns the i'th record.
func (d *Dataset) At(i int) Record { return d.records[i] }

// Records returns the records in dataset order.  Callers must not modify the
// returned slice.
func (d *Dataset) Records() []Record {
	if d == nil {
		return nil
	}
	return d.records
}

// Index owns the source path of the condition table and loads it at most
// once.
type Index struct {
	path string

	once sync.Once
	ds   *Dataset
	err  error
}

// NewIndex returns an Index reading from path.  Nothing is read until Load.
func NewIndex(path string) *Index {
	return &Index{path: path}
}

// Load parses the source on the first call and returns the same Dataset on
// every later call.  It never fails: an unreadable source yields an empty
// Dataset and the reason is kept for Err.
func (x *Index) Load() *Dataset {
	x.once.Do(func() {
		ds, err := Parse(x.path)
		if err != nil {
			slog.Warn("condition table not loaded, matching disabled", "path", x.path, "error", err)
			x.err = err
			x.ds = New(nil)
			return
		}
		slog.Info("condition table loaded", "path", x.path, "conditions", ds.Len())
		x.ds = ds
	})
	return x.ds
}

// Err returns the load failure, if any.  It is nil before Load is called.
func (x *Index) Err() error {
	return x.err
}

// Path returns the source path.
func (x *Index) Path() string { return x.path }
