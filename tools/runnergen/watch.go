package main

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceInterval coalesces bursts of file system events (e.g. editors
// writing a file in several steps) into a single regeneration.
const debounceInterval = 200 * time.Millisecond

// watchDirs returns every directory under root that may contain kernel
// modules.
func watchDirs(root string) ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() {
			return nil
		}

		if path != root && skipDir(d.Name()) {
			return filepath.SkipDir
		}

		dirs = append(dirs, path)
		return nil
	})

	return dirs, err
}

// relevantEvent returns true if ev may change the generated runner.
func relevantEvent(ev fsnotify.Event, outFile string) bool {
	if filepath.Ext(ev.Name) != ".go" || strings.HasSuffix(ev.Name, "_test.go") {
		return false
	}

	if abs, err := filepath.Abs(ev.Name); err == nil && abs == outFile {
		return false
	}

	return ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)
}

// watch regenerates the runner whenever a module source file changes. It
// blocks until stop is closed or the watcher fails. regenerate is invoked
// once per burst of relevant events.
func watch(root, outFile string, regenerate func(), stop <-chan struct{}) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dirs, err := watchDirs(root)
	if err != nil {
		return err
	}

	for _, dir := range dirs {
		if err = w.Add(dir); err != nil {
			return err
		}
	}

	if outFile, err = filepath.Abs(outFile); err != nil {
		return err
	}

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)

	for {
		select {
		case <-stop:
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			// Track newly created module directories.
			if ev.Has(fsnotify.Create) {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() && !skipDir(info.Name()) {
					_ = w.Add(ev.Name)
				}
			}

			if !relevantEvent(ev, outFile) {
				continue
			}

			if timer == nil {
				timer = time.NewTimer(debounceInterval)
			} else {
				timer.Reset(debounceInterval)
			}
			timerC = timer.C
		case <-timerC:
			timerC = nil
			regenerate()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}
