package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
)

// UI provides user-friendly output utilities.
type UI struct {
	out      io.Writer
	noColor  bool
	jsonMode bool
}

// NewUI creates a new UI instance writing to out.
func NewUI(out io.Writer, jsonMode, noColor bool) *UI {
	return &UI{out: out, noColor: noColor, jsonMode: jsonMode}
}

func (ui *UI) printf(c *color.Color, symbol, format string, args ...interface{}) {
	if ui.jsonMode {
		return
	}
	line := fmt.Sprintf("%s %s\n", symbol, fmt.Sprintf(format, args...))
	if ui.noColor {
		fmt.Fprint(ui.out, line)
		return
	}
	c.Fprint(ui.out, line)
}

// Success prints a success message.
func (ui *UI) Success(format string, args ...interface{}) {
	ui.printf(color.New(color.FgGreen), "✓", format, args...)
}

// Warning prints a warning message.
func (ui *UI) Warning(format string, args ...interface{}) {
	ui.printf(color.New(color.FgYellow), "⚠", format, args...)
}

// Info prints an info message.
func (ui *UI) Info(format string, args ...interface{}) {
	ui.printf(color.New(color.FgCyan), "ℹ", format, args...)
}

// Section prints a section header.
func (ui *UI) Section(title string) {
	if ui.jsonMode {
		return
	}
	header := fmt.Sprintf("\n━━━ %s ━━━\n", strings.ToUpper(title))
	if ui.noColor {
		fmt.Fprintln(ui.out, header)
		return
	}
	color.New(color.FgMagenta, color.Bold).Fprintln(ui.out, header)
}

// KeyValue prints a key-value pair.
func (ui *UI) KeyValue(key string, value interface{}) {
	if ui.jsonMode {
		return
	}
	if ui.noColor {
		fmt.Fprintf(ui.out, "  %s: %v\n", key, value)
		return
	}
	color.New(color.FgYellow).Fprintf(ui.out, "  %s: ", key)
	fmt.Fprintf(ui.out, "%v\n", value)
}

// Table prints rows under headers.
func (ui *UI) Table(headers []string, rows [][]string) {
	if ui.jsonMode || len(headers) == 0 {
		return
	}
	w := tabwriter.NewWriter(ui.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(headers, "\t"))
	sep := make([]string, len(headers))
	for i, h := range headers {
		sep[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(w, strings.Join(sep, "\t"))
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
}

// Spinner shows indeterminate progress on stderr. It is a no-op when output
// is JSON or not a terminal.
type Spinner struct {
	s *spinner.Spinner
}

// NewSpinner creates a spinner with message.
func (ui *UI) NewSpinner(message string) *Spinner {
	if ui.jsonMode || !IsTerminal() {
		return &Spinner{}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message
	s.Writer = os.Stderr
	return &Spinner{s: s}
}

// Start starts the spinner.
func (s *Spinner) Start() {
	if s.s != nil {
		s.s.Start()
	}
}

// Stop stops the spinner and clears the line.
func (s *Spinner) Stop() {
	if s.s != nil {
		s.s.Stop()
	}
}

// NewProgress returns a progress callback that drives a progress bar. The
// bar is created on the first report, when the total is known.
func (ui *UI) NewProgress(description string) (report func(done, total int), finish func()) {
	if ui.jsonMode {
		return func(int, int) {}, func() {}
	}
	var bar *progressbar.ProgressBar
	report = func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription(description),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetItsString("items"),
				progressbar.OptionOnCompletion(func() { fmt.Fprint(os.Stderr, "\n") }),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "█",
					SaucerHead:    "█",
					SaucerPadding: "░",
					BarStart:      "│",
					BarEnd:        "│",
				}),
			)
		}
		_ = bar.Set(done)
	}
	finish = func() {
		if bar != nil {
			_ = bar.Finish()
		}
	}
	return report, finish
}

// IsTerminal checks if stdout is a terminal.
func IsTerminal() bool {
	fileInfo, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}
