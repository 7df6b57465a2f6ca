package dashboard

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/logrusorgru/aurora/v4"
	"github.com/projectdiscovery/scanwatch/pkg/notify"
	"github.com/projectdiscovery/scanwatch/pkg/types"
)

const (
	gaugeWidth = 20
	// DefaultActivityRows is the number of activity lines drawn
	DefaultActivityRows = 15
	clearScreen         = "\033[H\033[2J"
)

// ScanView is one row of the active scans panel
type ScanView struct {
	Record     types.ScanRecord
	LastOutput string
}

// View is everything a presenter needs to draw the dashboard
type View struct {
	Connected bool
	Status    *types.StatusSnapshot
	Scans     []ScanView
	Activity  []types.ActivityEntry
	Now       time.Time
}

// Screen draws the dashboard as plain text panels. It is also a
// notification surface: the visible toast is drawn above the panels.
type Screen struct {
	mu    sync.Mutex
	w     io.Writer
	au    *aurora.Aurora
	clear bool
	rows  int
	last  *View
	toast *notify.Toast
}

// NewScreen creates a presenter writing to w. With clear set the terminal
// is wiped before every frame.
func NewScreen(w io.Writer, noColor, clear bool) *Screen {
	return &Screen{
		w:     w,
		au:    aurora.New(aurora.WithColors(!noColor)),
		clear: clear,
		rows:  DefaultActivityRows,
	}
}

// Render implements Presenter
func (s *Screen) Render(view View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = &view
	_ = s.draw()
}

// Show implements notify.Surface
func (s *Screen) Show(toast notify.Toast) error {
	if s == nil || s.w == nil {
		return notify.ErrSurfaceUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toast = &toast
	if !s.clear || s.last == nil {
		// frames are appended, a toast is a line of its own
		_, err := fmt.Fprintf(s.w, "%s %s\n", notify.Label(s.au, toast.Severity), toast.Message)
		return err
	}
	return s.draw()
}

// Dismiss implements notify.Surface
func (s *Screen) Dismiss(toast notify.Toast) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.toast == nil || s.toast.Message != toast.Message || !s.toast.ShownAt.Equal(toast.ShownAt) {
		return
	}
	s.toast = nil
	if s.clear && s.last != nil {
		_ = s.draw()
	}
}

func (s *Screen) draw() error {
	if s.last == nil {
		return nil
	}
	var sb strings.Builder
	if s.clear {
		sb.WriteString(clearScreen)
		if s.toast != nil {
			fmt.Fprintf(&sb, "%s %s\n\n", notify.Label(s.au, s.toast.Severity), s.toast.Message)
		}
	}
	sb.WriteString(RenderView(s.au, *s.last, s.rows))
	_, err := io.WriteString(s.w, sb.String())
	return err
}

// RenderView draws all panels
func RenderView(au *aurora.Aurora, view View, activityRows int) string {
	var sb strings.Builder
	sb.WriteString(RenderConnection(au, view.Connected))
	sb.WriteString("\n\n")
	sb.WriteString(RenderStatus(au, view.Status))
	sb.WriteString("\n")
	sb.WriteString(RenderScans(au, view.Scans, view.Now))
	sb.WriteString("\n")
	sb.WriteString(RenderActivity(au, view.Activity, activityRows))
	return sb.String()
}

// RenderConnection draws the connection badge
func RenderConnection(au *aurora.Aurora, connected bool) string {
	if connected {
		return au.Green("● Connected").String()
	}
	return au.Red("● Disconnected").String()
}

// RenderStatus draws the system status panel
func RenderStatus(au *aurora.Aurora, status *types.StatusSnapshot) string {
	var sb strings.Builder
	sb.WriteString(au.Bold("System Status").String())
	sb.WriteString("\n")
	if status == nil {
		sb.WriteString("  Loading...\n")
		return sb.String()
	}
	fmt.Fprintf(&sb, "  %-8s %s\n", "Status:", au.Green(status.Status))
	fmt.Fprintf(&sb, "  %-8s %s\n", "Version:", status.Version)
	fmt.Fprintf(&sb, "  %-8s %s\n", "Uptime:", FormatUptime(status.UptimeSeconds))
	fmt.Fprintf(&sb, "  %-8s %s %5.1f%%\n", "CPU:", bar(status.CPUPct, gaugeWidth), status.CPUPct)
	fmt.Fprintf(&sb, "  %-8s %s %5.1f%%%s\n", "Memory:", bar(status.MemPct, gaugeWidth), status.MemPct,
		usage(status.MemUsedBytes, status.MemTotalBytes))
	fmt.Fprintf(&sb, "  %-8s %s %5.1f%%%s\n", "Disk:", bar(status.DiskPct, gaugeWidth), status.DiskPct,
		usage(status.DiskUsedBytes, status.DiskTotalBytes))
	return sb.String()
}

func usage(used, total uint64) string {
	if total == 0 {
		return ""
	}
	return fmt.Sprintf(" (%s / %s)", FormatBytes(used), FormatBytes(total))
}

// RenderScans draws the active scans panel
func RenderScans(au *aurora.Aurora, scans []ScanView, now time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%d)\n", au.Bold("Active Scans"), len(scans))
	if len(scans) == 0 {
		sb.WriteString("  No active scans\n")
		return sb.String()
	}
	for _, scan := range scans {
		badge := au.Yellow("Running").String()
		if scan.Record.Errored() {
			badge = au.Red("Errored").String()
		}
		fmt.Fprintf(&sb, "  %s  %s", au.Bold(scan.Record.Target), badge)
		if !scan.Record.StartedAt.IsZero() && !now.IsZero() {
			fmt.Fprintf(&sb, "  %s", FormatDuration(now.Sub(scan.Record.StartedAt)))
		}
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "    ID: %s\n", scan.Record.TaskID)
		if scan.Record.Errored() {
			fmt.Fprintf(&sb, "    %s\n", au.Red(scan.Record.LastError))
		}
		if scan.LastOutput != "" {
			fmt.Fprintf(&sb, "    > %s\n", au.Gray(12, scan.LastOutput))
		}
	}
	return sb.String()
}

// RenderActivity draws up to rows entries, newest first
func RenderActivity(au *aurora.Aurora, entries []types.ActivityEntry, rows int) string {
	var sb strings.Builder
	sb.WriteString(au.Bold("Activity").String())
	sb.WriteString("\n")
	if len(entries) == 0 {
		sb.WriteString("  No activity yet\n")
		return sb.String()
	}
	if rows > 0 && len(entries) > rows {
		entries = entries[:rows]
	}
	for _, entry := range entries {
		stamp := "[" + entry.Timestamp.Format("15:04:05") + "]"
		fmt.Fprintf(&sb, "  %s %s\n", colorize(au, entry.Kind, stamp), entry.Message)
	}
	return sb.String()
}

func colorize(au *aurora.Aurora, kind types.ActivityKind, text string) string {
	switch kind {
	case types.ActivityStarted:
		return au.Cyan(text).String()
	case types.ActivityCompleted:
		return au.Green(text).String()
	case types.ActivityFailed, types.ActivityError:
		return au.Red(text).String()
	case types.ActivityStopped:
		return au.Yellow(text).String()
	default:
		return au.Gray(12, text).String()
	}
}
