package notify

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeSurface struct {
	mu        sync.Mutex
	shown     []Toast
	dismissed []Toast
	err       error
}

func (f *fakeSurface) Show(toast Toast) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.shown = append(f.shown, toast)
	return nil
}

func (f *fakeSurface) Dismiss(toast Toast) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dismissed = append(f.dismissed, toast)
}

func (f *fakeSurface) dismissedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.dismissed)
}

func TestNotifySupersedesCurrent(t *testing.T) {
	surface := &fakeSurface{}
	n := New(surface)
	defer n.Close()

	n.Notify(Info, "Scan started: example.com")
	n.Notify(Success, "Scan completed: abc")

	current, ok := n.Current()
	if !ok {
		t.Fatal("expected a visible toast")
	}
	if current.Severity != Success || current.Message != "Scan completed: abc" {
		t.Errorf("unexpected current toast: %+v", current)
	}
	if current.Duration != DefaultDuration {
		t.Errorf("expected default duration, got %s", current.Duration)
	}
	if len(surface.shown) != 2 {
		t.Errorf("expected 2 toasts shown, got %d", len(surface.shown))
	}
}

func TestNotifyAutoDismiss(t *testing.T) {
	surface := &fakeSurface{}
	n := New(surface)
	defer n.Close()

	n.Notify(Warning, "Disconnected from server", 20*time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for surface.dismissedCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if surface.dismissedCount() != 1 {
		t.Fatalf("expected toast to be dismissed, got %d dismissals", surface.dismissedCount())
	}
	if _, ok := n.Current(); ok {
		t.Error("expected no visible toast after dismissal")
	}
}

func TestStaleTimerDoesNotDismissNewerToast(t *testing.T) {
	surface := &fakeSurface{}
	n := New(surface)
	defer n.Close()

	n.Notify(Info, "first", 10*time.Millisecond)
	n.Notify(Info, "second", time.Hour)
	time.Sleep(50 * time.Millisecond)

	current, ok := n.Current()
	if !ok || current.Message != "second" {
		t.Fatalf("expected second toast to remain visible, got %+v (%v)", current, ok)
	}
	if surface.dismissedCount() != 0 {
		t.Errorf("expected no dismissals, got %d", surface.dismissedCount())
	}
}

func TestNotifyFallsBackToAlert(t *testing.T) {
	tests := []struct {
		name    string
		surface Surface
	}{
		{name: "nil surface", surface: nil},
		{name: "failing surface", surface: &fakeSurface{err: ErrSurfaceUnavailable}},
		{name: "nil terminal", surface: (*Terminal)(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var alert bytes.Buffer
			n := New(tt.surface)
			n.SetAlertWriter(&alert)
			defer n.Close()

			n.Notify(Error, "Scan error: boom")

			if got := alert.String(); got != "[ALERT] Scan error: boom\n" {
				t.Errorf("unexpected alert output %q", got)
			}
			if _, ok := n.Current(); ok {
				t.Error("expected no toast when falling back")
			}
		})
	}
}

func TestTerminalLabels(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, true)

	if err := term.Show(Toast{Severity: Success, Message: "Connected to server"}); err != nil {
		t.Fatalf("Show() err=%v", err)
	}
	if got := buf.String(); got != "[SUCCESS] Connected to server\n" {
		t.Errorf("unexpected output %q", got)
	}

	buf.Reset()
	_ = NewTerminal(&buf, false).Show(Toast{Severity: Error, Message: "x"})
	if !strings.Contains(buf.String(), "\x1b[") {
		t.Errorf("expected ANSI colors, got %q", buf.String())
	}
}

func TestTerminalWriteFailure(t *testing.T) {
	term := NewTerminal(failingWriter{}, true)
	err := term.Show(Toast{Severity: Info, Message: "x"})
	if !errors.Is(err, ErrSurfaceUnavailable) {
		t.Errorf("expected ErrSurfaceUnavailable, got %v", err)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("closed")
}
