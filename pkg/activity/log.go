package activity

import (
	"time"

	"github.com/projectdiscovery/scanwatch/pkg/types"
	"github.com/rs/xid"
)

// DefaultLimit is the number of entries kept by the activity log
const DefaultLimit = 100

// Recorder receives every entry added to the log
type Recorder interface {
	Record(entry types.ActivityEntry)
}

// Log is a bounded list of activity entries, newest first.
// It is not safe for concurrent use.
type Log struct {
	entries []types.ActivityEntry
	limit   int
	now     func() time.Time
	sink    Recorder
}

// New creates a log keeping at most limit entries
func New(limit int, sink Recorder) *Log {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Log{
		entries: make([]types.ActivityEntry, 0, limit),
		limit:   limit,
		now:     time.Now,
		sink:    sink,
	}
}

// Record prepends an entry and evicts the oldest ones above the limit
func (l *Log) Record(kind types.ActivityKind, taskID, message string) types.ActivityEntry {
	entry := types.ActivityEntry{
		ID:        xid.New().String(),
		Timestamp: l.now(),
		Kind:      kind,
		TaskID:    taskID,
		Message:   message,
	}

	l.entries = append(l.entries, types.ActivityEntry{})
	copy(l.entries[1:], l.entries)
	l.entries[0] = entry
	if len(l.entries) > l.limit {
		l.entries = l.entries[:l.limit]
	}

	if l.sink != nil {
		l.sink.Record(entry)
	}
	return entry
}

// Entries returns a copy of the log, newest first
func (l *Log) Entries() []types.ActivityEntry {
	out := make([]types.ActivityEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Head returns the newest entry
func (l *Log) Head() (types.ActivityEntry, bool) {
	if len(l.entries) == 0 {
		return types.ActivityEntry{}, false
	}
	return l.entries[0], true
}

// Len returns the number of entries
func (l *Log) Len() int {
	return len(l.entries)
}
