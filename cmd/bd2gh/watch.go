package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

// Debouncer batches rapid events into a single action after a quiet
// period. Thread-safe for concurrent triggers.
type Debouncer struct {
	mu       sync.Mutex
	timer    *time.Timer
	duration time.Duration
	action   func()
	seq      uint64 // invalidates stale timer fires
}

// NewDebouncer creates a debouncer that runs action once the duration
// has passed since the last trigger.
func NewDebouncer(duration time.Duration, action func()) *Debouncer {
	return &Debouncer{duration: duration, action: action}
}

// Trigger schedules the action, resetting the quiet period.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	currentSeq := d.seq

	d.timer = time.AfterFunc(d.duration, func() {
		d.mu.Lock()
		if d.seq != currentSeq {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock() // action runs without the lock held
		d.action()
	})
}

// Cancel stops any pending action. Safe to call when none is pending.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// watchAndSync runs an initial sync, then re-syncs whenever the JSONL
// export changes, debounced so an in-progress bd export triggers one
// run. The watch is on the export's directory: editors and bd both
// replace the file by rename, which drops a watch on the file itself.
func watchAndSync(ctx context.Context, cmd *cobra.Command, cfg *Config, debounce time.Duration) error {
	if err := syncOnce(ctx, cmd, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: initial sync failed: %v\n", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(cfg.Input)
	target := filepath.Base(cfg.Input)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	runs := make(chan struct{}, 1)
	debouncer := NewDebouncer(debounce, func() {
		select {
		case runs <- struct{}{}:
		default: // a run is already queued
		}
	})
	defer debouncer.Cancel()

	fmt.Printf("→ Watching %s (debounce %s, Ctrl-C to stop)\n", cfg.Input, debounce)

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\n✓ Watch stopped")
			return nil
		case <-runs:
			if err := syncOnce(ctx, cmd, cfg); err != nil {
				fmt.Fprintf(os.Stderr, "Error: sync failed: %v\n", err)
			}
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				debouncer.Trigger()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "Warning: watcher error: %v\n", err)
		}
	}
}
