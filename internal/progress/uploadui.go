package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"

	"github.com/filedock/filedock/internal/constants"
	"github.com/filedock/filedock/internal/models"
)

// UploadUI renders one progress bar per upload slot.
// A slot starts as a placeholder bar and is replaced in place by a ✓ or ✗
// line when its upload resolves. Slots are keyed by the task's correlation id.
type UploadUI struct {
	progress   *mpb.Progress
	out        io.Writer
	slots      sync.Map // slotID -> *slotBar
	isTerminal bool
	totalFiles int
	started    int32
	succeeded  int32
	failed     int32
}

type slotBar struct {
	bar        *mpb.Bar
	index      int
	name       string
	size       int64
	startTime  time.Time
	mu         sync.Mutex
	lastUpdate time.Time
	lastBytes  int64
	done       bool
}

// NewUploadUI creates an upload UI on stderr. Bars are drawn only when stderr
// is a terminal; otherwise plain lines are printed.
func NewUploadUI(totalFiles int) *UploadUI {
	isTerminal := term.IsTerminal(int(os.Stderr.Fd()))
	if isTerminal {
		enableVirtualTerminal(os.Stderr)
	}
	return NewUploadUIWithOutput(os.Stderr, isTerminal, totalFiles)
}

// NewUploadUIWithOutput creates an upload UI writing to out.
func NewUploadUIWithOutput(out io.Writer, isTerminal bool, totalFiles int) *UploadUI {
	var p *mpb.Progress
	if isTerminal {
		p = mpb.New(
			mpb.WithOutput(out),
			mpb.WithRefreshRate(constants.ProgressRefreshRate),
			mpb.WithWidth(constants.ProgressBarWidth),
		)
	} else {
		p = mpb.New(mpb.WithOutput(io.Discard))
	}

	return &UploadUI{
		progress:   p,
		out:        out,
		isTerminal: isTerminal,
		totalFiles: totalFiles,
	}
}

// Placeholder adds a bar for a new upload slot.
func (u *UploadUI) Placeholder(slotID, name string, size int64) {
	index := int(atomic.AddInt32(&u.started, 1))
	sb := &slotBar{
		index:      index,
		name:       name,
		size:       size,
		startTime:  time.Now(),
		lastUpdate: time.Now(),
	}

	if u.isTerminal {
		total := size
		if total < 0 {
			total = 0
		}
		label := fmt.Sprintf("[%d/%d] %s", index, u.totalFiles, truncateName(name, constants.ProgressNameWidth))
		sb.bar = u.progress.New(total,
			mpb.BarStyle().Lbound("[").Filler("█").Tip("█").Padding("░").Rbound("]"),
			mpb.PrependDecorators(
				decor.Name(label, decor.WCSyncSpaceR),
			),
			mpb.AppendDecorators(
				decor.CountersKibiByte("% .1f / % .1f", decor.WCSyncSpace),
				decor.Name("  "),
				decor.Percentage(decor.WCSyncSpace),
				decor.Name("  "),
				decor.EwmaSpeed(decor.SizeB1024(0), "% .1f", 30, decor.WCSyncSpace),
			),
			mpb.BarRemoveOnComplete(),
		)
	} else {
		fmt.Fprintf(u.out, "Uploading [%d/%d]: %s (%s)\n", index, u.totalFiles, name, formatSize(size))
	}

	u.slots.Store(slotID, sb)
}

// Progress moves a slot's bar to fraction (0.0 to 1.0).
// Updates are throttled to the refresh rate.
func (u *UploadUI) Progress(slotID string, fraction float64) {
	sb := u.slot(slotID)
	if sb == nil || sb.bar == nil || sb.size <= 0 {
		return
	}

	sb.mu.Lock()
	defer sb.mu.Unlock()
	if sb.done {
		return
	}

	now := time.Now()
	elapsed := now.Sub(sb.lastUpdate)
	current := int64(fraction * float64(sb.size))
	if elapsed >= constants.ProgressRefreshRate && current > sb.lastBytes {
		sb.bar.EwmaSetCurrent(current, elapsed)
		sb.lastBytes = current
		sb.lastUpdate = now
	}
}

// Resolve replaces a slot with a success line.
func (u *UploadUI) Resolve(slotID string, record models.FileRecord) {
	sb := u.finish(slotID)
	if sb == nil {
		return
	}
	if sb.bar != nil {
		if sb.size > 0 {
			sb.bar.SetCurrent(sb.size)
			sb.bar.SetTotal(sb.size, true)
		} else {
			sb.bar.SetTotal(-1, true)
		}
	}

	elapsed := time.Since(sb.startTime)
	u.println(fmt.Sprintf("✓ %s → %s (%s, %s)", sb.name, record.UniqueName, formatSize(sb.size), elapsed.Round(time.Millisecond)))
	atomic.AddInt32(&u.succeeded, 1)
}

// Fail replaces a slot with a failure line. The bar stays visible.
func (u *UploadUI) Fail(slotID string, err error) {
	sb := u.finish(slotID)
	if sb == nil {
		return
	}
	if sb.bar != nil {
		sb.bar.Abort(false)
	}

	u.println(fmt.Sprintf("✗ %s: %v", sb.name, err))
	atomic.AddInt32(&u.failed, 1)
}

// Wait blocks until every bar has completed or aborted.
func (u *UploadUI) Wait() {
	u.progress.Wait()
}

// Writer returns an io.Writer that prints above the bars.
func (u *UploadUI) Writer() io.Writer {
	if u.isTerminal {
		return u.progress
	}
	return u.out
}

// IsTerminal reports whether bars are drawn.
func (u *UploadUI) IsTerminal() bool {
	return u.isTerminal
}

// Counts returns the number of resolved and failed slots.
func (u *UploadUI) Counts() (succeeded, failed int) {
	return int(atomic.LoadInt32(&u.succeeded)), int(atomic.LoadInt32(&u.failed))
}

func (u *UploadUI) slot(slotID string) *slotBar {
	v, ok := u.slots.Load(slotID)
	if !ok {
		return nil
	}
	return v.(*slotBar)
}

// finish marks a slot done exactly once.
func (u *UploadUI) finish(slotID string) *slotBar {
	sb := u.slot(slotID)
	if sb == nil {
		return nil
	}
	sb.mu.Lock()
	defer sb.mu.Unlock()
	if sb.done {
		return nil
	}
	sb.done = true
	return sb
}

// println writes through mpb when bars are active so they are not torn.
func (u *UploadUI) println(line string) {
	fmt.Fprintln(u.Writer(), line)
}

func formatSize(size int64) string {
	if size < 0 {
		return "size unknown"
	}
	return fmt.Sprintf("%.1f MiB", float64(size)/(1024*1024))
}

// truncateName shortens a name to max runes, keeping the extension end.
// Example: truncateName("quarterly-report-final.pdf", 12) → "…t-final.pdf"
func truncateName(name string, max int) string {
	r := []rune(name)
	if len(r) <= max || max < 2 {
		return name
	}
	return "…" + string(r[len(r)-max+1:])
}
