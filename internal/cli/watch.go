package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/risu-extract/internal/model"
)

// watchedExts are the input extensions the watch command reacts to.
var watchedExts = map[string]bool{".png": true, ".charx": true, ".risum": true}

// watchDebounce is how long a file must stay quiet before it is extracted.
// Copies and downloads produce a burst of write events.
const watchDebounce = 500 * time.Millisecond

// NewWatchCommand creates the "watch" cobra command.
func NewWatchCommand() *cobra.Command {
	flags := &extractFlags{}

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Extract every card or module dropped into a directory",
		Long: `Watch a directory and extract each .png, .charx or .risum file that is
created or modified in it. Extraction uses the same flags and config as
the extract command. Stop with Ctrl+C.

Examples:
  risu-extract watch ~/Downloads -o ~/extracted`,

		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(flags, cmd.Flags().Changed)
			if err != nil {
				return err
			}
			return runWatch(cmd, args[0], s)
		},
	}

	addExtractFlags(cmd, flags)
	return cmd
}

func runWatch(cmd *cobra.Command, dir string, s *settings) error {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return model.NewCLIError(model.ExitGeneralError, fmt.Sprintf("not a directory: %s", dir))
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	w := cmd.OutOrStdout()
	codecs := newCodecCache(s)
	defer codecs.Close()
	log := newLogger(os.Stderr)

	if !IsJSONOutput() {
		fmt.Fprintln(w, styles.Title.Render("Watching "+dir))
	}

	// done releases debounce callbacks still waiting on ready once the
	// loop below has returned.
	ready := make(chan string)
	done := make(chan struct{})
	defer close(done)
	deb := newDebouncer(watchDebounce, func(path string) {
		deliver(ctx, ready, done, path)
	})
	defer deb.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if shouldExtract(ev) {
				VerboseLog("Change detected: %s (%s)", ev.Name, ev.Op)
				deb.Touch(ev.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error", "error", err)

		case path := <-ready:
			fr := extractFile(ctx, path, s, codecs, log)
			if IsJSONOutput() {
				if err := printResultsJSON(w, []fileResult{fr}); err != nil {
					return err
				}
			} else {
				printFileResultText(w, fr)
			}
		}
	}
}

// deliver hands path to ready. It gives up, returning false, when ctx is
// cancelled or done is closed.
func deliver(ctx context.Context, ready chan<- string, done <-chan struct{}, path string) bool {
	select {
	case ready <- path:
		return true
	case <-ctx.Done():
		return false
	case <-done:
		return false
	}
}

// shouldExtract reports whether ev is a create or write of a visible,
// regular input file.
func shouldExtract(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return false
	}
	base := filepath.Base(ev.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	if !watchedExts[strings.ToLower(filepath.Ext(base))] {
		return false
	}
	info, err := os.Stat(ev.Name)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return true
}

// debouncer calls fire for a path once no Touch for it happened within
// the delay.
type debouncer struct {
	delay time.Duration
	fire  func(path string)

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func newDebouncer(delay time.Duration, fire func(path string)) *debouncer {
	return &debouncer{delay: delay, fire: fire, timers: make(map[string]*time.Timer)}
}

// Touch (re)starts the timer for path.
func (d *debouncer) Touch(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if t, ok := d.timers[path]; ok {
		t.Reset(d.delay)
		return
	}
	d.timers[path] = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		delete(d.timers, path)
		d.mu.Unlock()
		d.fire(path)
	})
}

// Stop cancels all pending timers.
func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for p, t := range d.timers {
		t.Stop()
		delete(d.timers, p)
	}
}
