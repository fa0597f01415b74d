package router

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// FileLocation persists the fragment in a small text file so a selection
// survives restarts and can be handed to another instance. Edits made to
// the file by anything else are reported on Changes.
type FileLocation struct {
	path string

	mu       sync.Mutex
	fragment string

	watcher   *fsnotify.Watcher
	changes   chan string
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// OpenFileLocation reads the fragment stored at path (a missing file is an
// empty fragment) and starts watching the file for external edits.
func OpenFileLocation(path string) (*FileLocation, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving fragment file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("creating fragment directory: %w", err)
	}

	fragment, err := readFragment(abs)
	if err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("starting fragment watcher: %w", err)
	}
	// Watch the directory: atomic writes replace the file, which drops a
	// watch placed on the file itself.
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watching fragment directory: %w", err)
	}

	l := &FileLocation{
		path:     abs,
		fragment: fragment,
		watcher:  w,
		changes:  make(chan string, 4),
		done:     make(chan struct{}),
	}
	l.wg.Add(1)
	go l.watch()
	return l, nil
}

func readFragment(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading fragment file: %w", err)
	}
	return Normalize(string(data)), nil
}

// Path returns the absolute path of the fragment file.
func (l *FileLocation) Path() string {
	return l.path
}

func (l *FileLocation) Fragment() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fragment
}

// SetFragment writes fragment to disk. The resulting file event is not
// reported on Changes.
func (l *FileLocation) SetFragment(fragment string) error {
	fragment = Normalize(fragment)

	l.mu.Lock()
	defer l.mu.Unlock()
	if fragment == l.fragment {
		return nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(l.path), ".fragment-*")
	if err != nil {
		return fmt.Errorf("writing fragment: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(fragment + "\n"); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing fragment: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing fragment: %w", err)
	}
	if err := os.Rename(tmpPath, l.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing fragment: %w", err)
	}
	l.fragment = fragment
	return nil
}

// Changes delivers fragments written to the file by other processes.
func (l *FileLocation) Changes() <-chan string {
	return l.changes
}

// Close stops watching the file. Changes is closed once the watcher exits.
func (l *FileLocation) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.done)
		err = l.watcher.Close()
		l.wg.Wait()
		close(l.changes)
	})
	return err
}

func (l *FileLocation) watch() {
	defer l.wg.Done()
	for {
		select {
		case <-l.done:
			return
		case ev, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != l.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			l.reload()
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Str("path", l.path).Msg("Fragment watcher error")
		}
	}
}

func (l *FileLocation) reload() {
	fragment, err := readFragment(l.path)
	if err != nil {
		log.Debug().Err(err).Str("path", l.path).Msg("Fragment reload failed")
		return
	}

	l.mu.Lock()
	if fragment == l.fragment {
		l.mu.Unlock()
		return
	}
	l.fragment = fragment
	l.mu.Unlock()

	log.Debug().Str("fragment", fragment).Msg("Fragment changed externally")
	select {
	case l.changes <- fragment:
	case <-l.done:
	default:
		log.Warn().Str("fragment", fragment).Msg("Dropping fragment change, receiver is behind")
	}
}
