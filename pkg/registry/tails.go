package registry

import (
	"time"

	"github.com/projectdiscovery/gcache"
)

var (
	// DefaultTailLines is the number of output lines kept per task
	DefaultTailLines = 20
	// DefaultTailTasks is the number of tasks whose output is kept
	DefaultTailTasks = 256
	// DefaultTailExpiration drops output of tasks that stopped talking
	DefaultTailExpiration = time.Hour
)

// Tails keeps the most recent output lines of each task
type Tails struct {
	lines int
	cache gcache.Cache[string, []string]
}

// NewTails creates a tail store holding up to lines per task for at most
// tasks tasks. Entries expire after expiration without new output.
func NewTails(lines, tasks int, expiration time.Duration) *Tails {
	if lines <= 0 {
		lines = DefaultTailLines
	}
	if tasks <= 0 {
		tasks = DefaultTailTasks
	}
	if expiration <= 0 {
		expiration = DefaultTailExpiration
	}
	return &Tails{
		lines: lines,
		cache: gcache.New[string, []string](tasks).
			LRU().
			Expiration(expiration).
			Build(),
	}
}

// Append adds a line to the tail of taskID, dropping the oldest line once
// the tail is full
func (t *Tails) Append(taskID, line string) {
	if taskID == "" {
		return
	}
	current, _ := t.cache.Get(taskID)
	next := make([]string, 0, t.lines)
	if len(current) >= t.lines {
		current = current[len(current)-t.lines+1:]
	}
	next = append(next, current...)
	next = append(next, line)
	_ = t.cache.Set(taskID, next)
}

// Tail returns a copy of the buffered output of taskID, oldest first
func (t *Tails) Tail(taskID string) []string {
	current, err := t.cache.Get(taskID)
	if err != nil {
		return nil
	}
	out := make([]string, len(current))
	copy(out, current)
	return out
}

// Last returns the most recent output line of taskID
func (t *Tails) Last(taskID string) (string, bool) {
	current, err := t.cache.Get(taskID)
	if err != nil || len(current) == 0 {
		return "", false
	}
	return current[len(current)-1], true
}

// Forget drops the output of taskID
func (t *Tails) Forget(taskID string) {
	t.cache.Remove(taskID)
}
