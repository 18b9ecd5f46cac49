// Package progress reports knowledge-base ingestion progress.
package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

// Reporter receives ingestion progress. Start is called once with the
// number of steps, Update after each step, Finish once at the end.
type Reporter interface {
	Start(total int)
	Update(current int, message string)
	Finish()
}

// NewReporter returns a TerminalReporter on an interactive terminal, or a
// LineReporter when the CI environment variable is set.
func NewReporter(w io.Writer) Reporter {
	if os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "" {
		return &LineReporter{w: w}
	}
	return &TerminalReporter{w: w}
}

// TerminalReporter draws a progress bar.
type TerminalReporter struct {
	w   io.Writer
	bar *progressbar.ProgressBar
}

func (r *TerminalReporter) Start(total int) {
	r.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(r.w),
		progressbar.OptionSetDescription("Indexando conocimiento"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func (r *TerminalReporter) Update(current int, message string) {
	if r.bar != nil {
		r.bar.Describe(message)
		_ = r.bar.Set(current)
	}
}

func (r *TerminalReporter) Finish() {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
}

// LineReporter prints one line per step, for CI logs.
type LineReporter struct {
	w     io.Writer
	total int
}

func (r *LineReporter) Start(total int) {
	r.total = total
	fmt.Fprintf(r.w, "Ingesting %d knowledge sources\n", total)
}

func (r *LineReporter) Update(current int, message string) {
	fmt.Fprintf(r.w, "[%d/%d] %s\n", current, r.total, message)
}

func (r *LineReporter) Finish() {
	fmt.Fprintln(r.w, "Knowledge ingestion complete")
}

// LogReporter sends progress to a logger; the server uses it when it
// builds the index at startup.
type LogReporter struct {
	Logger *zap.Logger
	total  int
}

func (r *LogReporter) Start(total int) {
	r.total = total
	r.Logger.Info("knowledge ingestion started", zap.Int("sources", total))
}

func (r *LogReporter) Update(current int, message string) {
	r.Logger.Debug("knowledge ingestion step", zap.Int("step", current), zap.Int("total", r.total), zap.String("source", message))
}

func (r *LogReporter) Finish() {
	r.Logger.Info("knowledge ingestion finished")
}

// Nop discards progress.
type Nop struct{}

func (Nop) Start(int)          {}
func (Nop) Update(int, string) {}
func (Nop) Finish()            {}
