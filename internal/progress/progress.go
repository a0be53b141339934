// Package progress renders migration progress for terminals and pipelines.
//
// Stable one-line PROGRESS and FINAL messages always go to the line writer
// (stdout) so pipelines can parse them. The spinner and per-table bar are
// cosmetic and write to stderr.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"schema-sync/internal/database"

	"github.com/briandowns/spinner"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
)

// DefaultHeartbeatInterval is the number of batches between PROGRESS lines.
const DefaultHeartbeatInterval = 10

// Options configures a Console reporter.
type Options struct {
	// HeartbeatInterval is the number of batches between PROGRESS lines.
	HeartbeatInterval int
	// Workers above 1 disable the per-table bar; bars would overwrite each other.
	Workers int
	// Lines receives PROGRESS/FINAL lines; defaults to os.Stdout.
	Lines io.Writer
	// Interactive receives the spinner and bar; defaults to os.Stderr.
	Interactive io.Writer
}

type tableState struct {
	total     int64
	processed int64
	batches   int
	started   time.Time
	bar       *progressbar.ProgressBar
}

// Console implements database.ProgressReporter.
type Console struct {
	mu        sync.Mutex
	heartbeat int
	lines     io.Writer
	ui        io.Writer
	useBar    bool
	sp        *spinner.Spinner
	tables    map[string]*tableState
}

var _ database.ProgressReporter = (*Console)(nil)

// NewConsole creates a reporter. The spinner is on unless NO_SPINNER is set;
// the bar needs a single worker, a terminal on stderr and NO_PROGRESS unset.
func NewConsole(opts Options) *Console {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if opts.Lines == nil {
		opts.Lines = os.Stdout
	}
	if opts.Interactive == nil {
		opts.Interactive = os.Stderr
	}

	noSpinner := os.Getenv("NO_SPINNER") != ""
	noProgress := os.Getenv("NO_PROGRESS") != ""
	if noProgress {
		logrus.Info("Progress disabled via NO_PROGRESS")
	}
	if noSpinner {
		logrus.Info("Spinner disabled via NO_SPINNER")
	}

	c := &Console{
		heartbeat: opts.HeartbeatInterval,
		lines:     opts.Lines,
		ui:        opts.Interactive,
		useBar:    !noProgress && opts.Workers <= 1 && isTerminal(opts.Interactive),
		tables:    make(map[string]*tableState),
	}

	if !noSpinner && !c.useBar {
		c.sp = spinner.New(spinner.CharSets[14], 120*time.Millisecond)
		c.sp.Writer = opts.Interactive
	}
	return c
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (c *Console) TableStarted(table string, totalRows int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := &tableState{total: totalRows, started: time.Now()}
	c.tables[table] = st

	fmt.Fprintf(c.lines, "PROGRESS table=%s processed=%d total=%d batch=%d status=started\n", table, 0, totalRows, 0)

	if c.useBar && totalRows > 0 {
		st.bar = progressbar.NewOptions64(totalRows,
			progressbar.OptionSetWriter(c.ui),
			progressbar.OptionSetDescription(table),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(30),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}
	if c.sp != nil {
		c.sp.Suffix = fmt.Sprintf(" Loading %s", table)
		if !c.sp.Active() {
			c.sp.Start()
		}
	}
}

func (c *Console) BatchCopied(table string, batch int, rows int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.tables[table]
	if !ok {
		return
	}
	st.processed += int64(rows)
	st.batches = batch

	if st.bar != nil {
		_ = st.bar.Add(rows)
	}
	if c.sp != nil {
		c.sp.Suffix = fmt.Sprintf(" Loading %s - %d/%d (batch %d)", table, st.processed, st.total, batch)
	}

	if batch%c.heartbeat == 0 {
		logrus.WithField("table", table).Infof("HEARTBEAT: Processed %d batches, %d/%d rows", batch, st.processed, st.total)
		fmt.Fprintf(c.lines, "PROGRESS table=%s processed=%d total=%d batch=%d\n", table, st.processed, st.total, batch)
	}
}

func (c *Console) TableFinished(outcome database.TableOutcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if st, ok := c.tables[outcome.Table]; ok && st.bar != nil {
		_ = st.bar.Finish()
	}
	delete(c.tables, outcome.Table)

	if c.sp != nil && len(c.tables) == 0 {
		c.sp.Stop()
	}

	fmt.Fprintf(c.lines, "FINAL table=%s rows=%d batches=%d status=%s duration=%s\n",
		outcome.Table, outcome.Rows, outcome.Batches, outcome.Status, outcome.Duration.Round(time.Millisecond))
}

// Stop halts the spinner if it is still running.
func (c *Console) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sp != nil {
		c.sp.Stop()
	}
}
