// Package progress renders transfer progress in the terminal: one mpb bar per
// upload slot, and a single progressbar for downloads.
package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// Reporter receives byte-level progress for a single transfer.
type Reporter interface {
	Start(total int64, description string)
	Update(current int64)
	Finish()
	Error(err error)
}

// CLIProgress reports a single transfer. On a terminal it draws a
// progressbar; otherwise it prints one line when the transfer starts and one
// when it ends.
type CLIProgress struct {
	out        io.Writer
	isTerminal bool
	bar        *progressbar.ProgressBar
	name       string
	current    int64
}

// NewCLIProgress creates a reporter on stderr.
func NewCLIProgress() *CLIProgress {
	return NewCLIProgressWithOutput(os.Stderr, term.IsTerminal(int(os.Stderr.Fd())))
}

// NewCLIProgressWithOutput creates a reporter writing to out.
func NewCLIProgressWithOutput(out io.Writer, isTerminal bool) *CLIProgress {
	return &CLIProgress{out: out, isTerminal: isTerminal}
}

// Start begins a transfer. A negative total renders a spinner.
func (p *CLIProgress) Start(total int64, description string) {
	p.name = description
	p.current = 0
	if !p.isTerminal {
		if total >= 0 {
			fmt.Fprintf(p.out, "%s: %s\n", description, formatBytes(total))
		} else {
			fmt.Fprintf(p.out, "%s: size unknown\n", description)
		}
		return
	}

	out := p.out
	p.bar = progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(out),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(50),
		progressbar.OptionThrottle(100),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(out, "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// Update records the running byte count.
func (p *CLIProgress) Update(current int64) {
	p.current = current
	if p.bar != nil {
		_ = p.bar.Set64(current)
	}
}

// Finish completes the transfer.
func (p *CLIProgress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
		return
	}
	fmt.Fprintf(p.out, "%s: done, %s\n", p.name, formatBytes(p.current))
}

// Error prints err below the bar.
func (p *CLIProgress) Error(err error) {
	if err != nil {
		fmt.Fprintf(p.out, "\nError: %v\n", err)
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// NoOpProgress discards progress.
type NoOpProgress struct{}

// NewNoOpProgress creates a new no-op progress reporter.
func NewNoOpProgress() *NoOpProgress {
	return &NoOpProgress{}
}

func (p *NoOpProgress) Start(total int64, description string) {}
func (p *NoOpProgress) Update(current int64)                  {}
func (p *NoOpProgress) Finish()                               {}
func (p *NoOpProgress) Error(err error)                       {}

// ProgressReader wraps an io.Reader to report the running byte count.
type ProgressReader struct {
	reader   io.Reader
	reporter Reporter
	total    int64
	current  int64
}

// NewProgressReader creates a new progress-reporting reader.
func NewProgressReader(reader io.Reader, total int64, reporter Reporter) *ProgressReader {
	return &ProgressReader{
		reader:   reader,
		reporter: reporter,
		total:    total,
	}
}

// Read implements io.Reader interface with progress reporting.
func (pr *ProgressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.current += int64(n)
		pr.reporter.Update(pr.current)
	}
	return n, err
}

// Current returns the bytes read so far.
func (pr *ProgressReader) Current() int64 {
	return pr.current
}
