package xsec

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"lumi/internal/metrics"
	"lumi/internal/weight"
)

const debounce = 200 * time.Millisecond

// Watcher reloads a SyncTable whenever the cross-section or counts file changes.
// Reloads replace the weights only; the table scale is left to SetScale.
// The directories holding the files are watched, so editors that replace a
// file through rename are handled too.
type Watcher struct {
	xsFile     string
	countsFile string
	table      *weight.SyncTable

	// Reloads receives the result of every reload attempt; nil means success.
	// Sends are dropped when nobody is listening.
	Reloads <-chan error

	reloads chan error
	done    chan struct{}
	watcher *fsnotify.Watcher
}

// NewWatcher creates a watcher for the two files. Start must be called to begin
// watching.
func NewWatcher(table *weight.SyncTable, xsFile, countsFile string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ch := make(chan error, 4)
	return &Watcher{
		xsFile:     filepath.Clean(xsFile),
		countsFile: filepath.Clean(countsFile),
		table:      table,
		Reloads:    ch,
		reloads:    ch,
		done:       make(chan struct{}),
		watcher:    fw,
	}, nil
}

// Start adds the watched directories and launches the event loop.
func (w *Watcher) Start() error {
	dirs := map[string]struct{}{
		filepath.Dir(w.xsFile):     {},
		filepath.Dir(w.countsFile): {},
	}
	for dir := range dirs {
		if err := w.watcher.Add(dir); err != nil {
			return err
		}
	}

	go w.loop()
	return nil
}

// Stop closes the watcher and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.watcher.Close()
	<-w.done
	close(w.reloads)
}

// Reload re-reads both files and swaps the table contents. On failure the
// previous contents are kept.
func (w *Watcher) Reload() error {
	weights, err := LoadWeights(w.xsFile, w.countsFile)
	if err != nil {
		metrics.ReloadsTotal.WithLabelValues(metrics.StatusError).Inc()
		slog.Error("Unable to reload luminosity weights", "error", err)
		return err
	}

	w.table.Replace(weights)
	metrics.ReloadsTotal.WithLabelValues(metrics.StatusOK).Inc()
	metrics.ObserveTable(len(weights), w.table.Scale())
	slog.Info("Luminosity weights reloaded", "datasets", len(weights))
	return nil
}

func (w *Watcher) loop() {
	defer close(w.done)

	var pending time.Time
	ticker := time.NewTicker(debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.isWatched(event.Name) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				pending = time.Now()
			}

		case <-ticker.C:
			if pending.IsZero() || time.Since(pending) < debounce {
				continue
			}
			pending = time.Time{}
			w.emit(w.Reload())

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("File watcher error", "error", err)
		}
	}
}

func (w *Watcher) isWatched(name string) bool {
	name = filepath.Clean(name)
	return name == w.xsFile || name == w.countsFile
}

func (w *Watcher) emit(err error) {
	select {
	case w.reloads <- err:
	default:
	}
}
