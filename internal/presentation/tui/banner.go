package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/vitrine/pkg/domain"
	"github.com/muesli/termenv"
)

// PrintBanner writes the vitrine banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	lines := []struct{ text, color string }{
		{`       _ _        _            `, "#818cf8"},
		{` __ __(_) |_ _ _(_)_ _  ___   `, "#a78bfa"},
		{` \ V /| |  _| '_| | ' \/ -_)  `, "#c084fc"},
		{`  \_/ |_|\__|_| |_|_||_\___|  `, "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}

var runColors = map[domain.ReportRunState]string{
	domain.RunNotRunning:       "#9ca3af",
	domain.RunRunning:          "#34d399",
	domain.RunRerunRequested:   "#fbbf24",
	domain.RunStopRequested:    "#fbbf24",
	domain.RunCompilationError: "#f87171",
}

// StatusLine summarizes connection and run state on one line.
func StatusLine(v domain.View) string {
	p := termenv.ColorProfile()

	run := termenv.String(string(v.RunState)).Foreground(p.Color(runColors[v.RunState])).Bold()
	conn := termenv.String(string(v.Connection))
	if !v.Connection.CanSend() {
		conn = conn.Foreground(p.Color("#f87171"))
	}

	parts := []string{
		"report " + string(v.ReportID),
		run.String(),
		conn.String(),
	}
	if v.Settings.RunOnSave {
		parts = append(parts, "run on save")
	}
	return strings.Join(parts, " · ")
}
