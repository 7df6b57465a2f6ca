package registry

import (
	"time"

	"github.com/projectdiscovery/scanwatch/pkg/types"
	mapsutil "github.com/projectdiscovery/utils/maps"
)

// Registry is the in-memory set of active scans.
// It is not safe for concurrent use; the dashboard loop is its only caller.
type Registry struct {
	scans    *mapsutil.OrderedMap[string, types.ScanRecord]
	errorTTL time.Duration
	now      func() time.Time
}

// Option configures a Registry
type Option func(*Registry)

// WithErrorTTL removes records that received a scan_error but no completion
// after ttl. Zero keeps them until completion.
func WithErrorTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		r.errorTTL = ttl
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// New creates an empty registry
func New(opts ...Option) *Registry {
	scans := mapsutil.NewOrderedMap[string, types.ScanRecord]()
	r := &Registry{
		scans: &scans,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Started inserts a record for taskID. An existing record is overwritten
// (last write wins) and keeps its original position.
func (r *Registry) Started(taskID, target string, metadata map[string]string) types.ScanRecord {
	record := types.ScanRecord{
		TaskID:    taskID,
		Target:    target,
		Metadata:  metadata,
		StartedAt: r.now(),
	}
	r.scans.Set(taskID, record)
	return record
}

// Output never mutates the registry. It reports whether taskID is known.
func (r *Registry) Output(taskID, _ string) bool {
	return r.scans.Has(taskID)
}

// Complete removes taskID regardless of outcome and reports whether a
// record was removed. Unknown ids are ignored.
func (r *Registry) Complete(taskID string, _ bool, _ string) bool {
	return r.remove(taskID)
}

// Stopped removes taskID after the server cancelled the scan
func (r *Registry) Stopped(taskID string) bool {
	return r.remove(taskID)
}

// Errored replaces the record of taskID with a copy carrying the error.
// The record is not removed. Unknown ids are ignored.
func (r *Registry) Errored(taskID, errMsg string) bool {
	record, ok := r.scans.Get(taskID)
	if !ok {
		return false
	}
	record.ErroredAt = r.now()
	record.LastError = errMsg
	r.scans.Set(taskID, record)
	return true
}

// Expire removes errored records older than the configured TTL and returns
// them. It does nothing when no TTL is configured.
func (r *Registry) Expire(now time.Time) []types.ScanRecord {
	if r.errorTTL <= 0 {
		return nil
	}
	var expired []types.ScanRecord
	r.scans.Iterate(func(_ string, record types.ScanRecord) bool {
		if record.Errored() && now.Sub(record.ErroredAt) >= r.errorTTL {
			expired = append(expired, record)
		}
		return true
	})
	for _, record := range expired {
		r.remove(record.TaskID)
	}
	return expired
}

// Get returns the record for taskID
func (r *Registry) Get(taskID string) (types.ScanRecord, bool) {
	return r.scans.Get(taskID)
}

// Len returns the number of active scans
func (r *Registry) Len() int {
	return r.scans.Len()
}

// Snapshot returns the records in insertion order
func (r *Registry) Snapshot() []types.ScanRecord {
	records := make([]types.ScanRecord, 0, r.scans.Len())
	r.scans.Iterate(func(_ string, record types.ScanRecord) bool {
		records = append(records, record)
		return true
	})
	return records
}

func (r *Registry) remove(taskID string) bool {
	if !r.scans.Has(taskID) {
		return false
	}
	r.scans.Delete(taskID)
	return true
}
