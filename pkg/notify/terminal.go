package notify

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/logrusorgru/aurora/v4"
)

// Terminal writes toasts as single colored lines
type Terminal struct {
	mu sync.Mutex
	w  io.Writer
	au *aurora.Aurora
}

// NewTerminal creates a terminal surface writing to w
func NewTerminal(w io.Writer, noColor bool) *Terminal {
	return &Terminal{w: w, au: aurora.New(aurora.WithColors(!noColor))}
}

// Show implements Surface
func (t *Terminal) Show(toast Toast) error {
	if t == nil || t.w == nil {
		return ErrSurfaceUnavailable
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	_, err := fmt.Fprintf(t.w, "%s %s\n", Label(t.au, toast.Severity), toast.Message)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSurfaceUnavailable, err)
	}
	return nil
}

// Dismiss implements Surface. Lines already written stay on screen.
func (t *Terminal) Dismiss(Toast) {}

// Label renders "[SEVERITY]" in the severity color
func Label(au *aurora.Aurora, severity Severity) string {
	text := "[" + strings.ToUpper(string(severity)) + "]"
	switch severity {
	case Success:
		return au.Green(text).String()
	case Error:
		return au.Red(text).String()
	case Warning:
		return au.Yellow(text).String()
	case Info:
		return au.Cyan(text).String()
	default:
		return text
	}
}
