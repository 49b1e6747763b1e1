package observability

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var startTime = time.Now()

var (
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	bannerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#00D7FF")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
)

var radarFrames = []string{"◜", "◝", "◞", "◟"}
var radarIdx = 0

// termMu serializes terminal output so status lines do not interleave.
var termMu sync.Mutex

func termWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	return w
}

// IsTerminal reports whether stdout is attached to a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

type termWriter struct{ w io.Writer }

func (tw termWriter) Write(p []byte) (n int, err error) {
	termMu.Lock()
	defer termMu.Unlock()
	return tw.w.Write(p)
}

// NewTermWriter returns an io.Writer suitable for log.SetOutput() that shares
// the terminal lock with PrintLiveStatus.
func NewTermWriter() io.Writer {
	return termWriter{w: os.Stderr}
}

// FormatStatus renders a status line prefixed by a level marker.
func FormatStatus(level Level, message string) string {
	var marker string
	var style lipgloss.Style
	switch level {
	case LevelSuccess:
		marker, style = "✔", successStyle
	case LevelWarning:
		marker, style = "!", warningStyle
	case LevelError:
		marker, style = "✘", errorStyle
	default:
		marker, style = "•", infoStyle
	}
	return style.Render(marker) + " " + message
}

func PrintBanner(w io.Writer) {
	banner := `
    __ __ ___    ______  __ ___
   / //_//   |  / __ \ \/ //   |
  / ,<  / /| | / /_/ /\  // /| |
 / /| |/ ___ |/ _, _/ / // ___ |
/_/ |_/_/  |_/_/ |_| /_//_/  |_|

   >> PLAN · EXECUTE · REFLECT <<
`
	width := termWidth()
	for _, l := range strings.Split(banner, "\n") {
		padding := (width - lipgloss.Width(l)) / 2
		if padding < 0 {
			padding = 0
		}
		fmt.Fprintf(w, "%s%s\n", strings.Repeat(" ", padding), bannerStyle.Render(l))
	}
}

// LiveStatus builds the one-line dashboard: heartbeat, phase, task, uptime, memory.
func LiveStatus() string {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(startTime).Round(time.Second)
	memMB := float64(m.Alloc) / 1024 / 1024

	phase, task, lastHB := GetStatus()

	pulse := successStyle.Render("HEALTHY")
	delta := time.Since(lastHB)
	if delta >= 90*time.Second {
		pulse = errorStyle.Render("OFFLINE")
	} else if delta >= 40*time.Second {
		pulse = warningStyle.Render("LAGGING")
	}

	radar := " "
	if phase != PhaseIdle {
		radar = radarFrames[radarIdx]
		radarIdx = (radarIdx + 1) % len(radarFrames)
	}

	displayTask := task
	if displayTask == "" {
		displayTask = "Waiting..."
	}
	if r := []rune(displayTask); len(r) > 40 {
		displayTask = string(r[:37]) + "..."
	}

	totalMB := float64(m.Sys) / 1024 / 1024
	memPercent := 0.0
	if totalMB > 0 {
		memPercent = memMB / totalMB
	}
	barWidth := 20
	filled := clamp(int(memPercent*float64(barWidth)), 0, barWidth)
	bar := strings.Repeat("█", filled) + strings.Repeat("▒", barWidth-filled)

	return fmt.Sprintf("[%s] %s | %-9s %s [%s] %s [%v] %s",
		lastHB.Format("15:04:05"),
		pulse,
		phase,
		radar,
		displayTask,
		dimStyle.Render("up"),
		uptime,
		dimStyle.Render(fmt.Sprintf("%s %.1fMB", bar, memMB)),
	)
}

// PrintLiveStatus redraws the dashboard line in place. No-op off a terminal.
func PrintLiveStatus() {
	if !IsTerminal() {
		return
	}
	line := LiveStatus()
	termMu.Lock()
	fmt.Fprint(os.Stdout, "\r\033[K"+line)
	termMu.Unlock()
}
