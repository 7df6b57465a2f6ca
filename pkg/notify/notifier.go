package notify

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Severity of a notification
type Severity string

const (
	Success Severity = "success"
	Error   Severity = "error"
	Warning Severity = "warning"
	Info    Severity = "info"
)

// DefaultDuration is how long a toast stays visible
const DefaultDuration = 5 * time.Second

// ErrSurfaceUnavailable is returned by a Surface that cannot display toasts
var ErrSurfaceUnavailable = errors.New("notification surface unavailable")

// Toast is a transient notification
type Toast struct {
	Severity Severity
	Message  string
	Duration time.Duration
	ShownAt  time.Time

	seq uint64
}

// Surface displays toasts
type Surface interface {
	Show(toast Toast) error
	Dismiss(toast Toast)
}

// Notifier presents one toast at a time. A new notification replaces the
// visible one immediately, there is no queue.
type Notifier struct {
	mu      sync.Mutex
	surface Surface
	alert   io.Writer
	current *Toast
	timer   *time.Timer
	seq     uint64
}

// New creates a notifier. A nil surface makes every notification fall back
// to a synchronous alert on stderr.
func New(surface Surface) *Notifier {
	return &Notifier{surface: surface, alert: os.Stderr}
}

// SetAlertWriter overrides the fallback alert destination
func (n *Notifier) SetAlertWriter(w io.Writer) {
	n.mu.Lock()
	n.alert = w
	n.mu.Unlock()
}

// Notify shows message with the given severity. The optional duration
// overrides DefaultDuration.
func (n *Notifier) Notify(severity Severity, message string, duration ...time.Duration) {
	d := DefaultDuration
	if len(duration) > 0 && duration[0] > 0 {
		d = duration[0]
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	n.seq++
	toast := Toast{
		Severity: severity,
		Message:  message,
		Duration: d,
		ShownAt:  time.Now(),
		seq:      n.seq,
	}

	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}

	if n.surface == nil {
		n.current = nil
		n.fallback(toast)
		return
	}
	if err := n.surface.Show(toast); err != nil {
		n.current = nil
		n.fallback(toast)
		return
	}

	n.current = &toast
	n.timer = time.AfterFunc(d, func() {
		n.dismiss(toast.seq)
	})
}

// Current returns the visible toast
func (n *Notifier) Current() (Toast, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil {
		return Toast{}, false
	}
	return *n.current, true
}

// Close cancels the pending dismissal
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
}

func (n *Notifier) dismiss(seq uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	// a newer toast owns the slot
	if n.current == nil || n.current.seq != seq {
		return
	}
	toast := *n.current
	n.current = nil
	n.timer = nil
	n.surface.Dismiss(toast)
}

func (n *Notifier) fallback(toast Toast) {
	if n.alert == nil {
		return
	}
	_, _ = fmt.Fprintf(n.alert, "[ALERT] %s\n", toast.Message)
}
