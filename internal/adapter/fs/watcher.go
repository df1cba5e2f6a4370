package fs

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a directory must stay quiet before a batch of
// changes is reported.
const DefaultDebounce = 150 * time.Millisecond

// ignoredDirs are never watched.
var ignoredDirs = map[string]bool{
	".git":         true,
	".filehash":    true,
	"node_modules": true,
}

// ChangeSet is one debounced batch of changed files, relative to the
// watched root.
type ChangeSet struct {
	Files []string
}

// Watcher reports batches of changed source files under a directory tree.
type Watcher struct {
	Root     string
	Changes  <-chan ChangeSet
	Debounce time.Duration

	changes chan ChangeSet
	done    chan struct{}
	watcher *fsnotify.Watcher
	filter  *Walker
	skip    string
}

// NewWatcher watches root for files accepted by filter. Anything under skip
// (usually the output directory) is ignored.
func NewWatcher(root string, filter *Walker, skip string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	root, err = filepath.Abs(root)
	if err != nil {
		fw.Close()
		return nil, err
	}
	if skip != "" {
		if skip, err = filepath.Abs(skip); err != nil {
			fw.Close()
			return nil, err
		}
	}

	ch := make(chan ChangeSet, 4)
	return &Watcher{
		Root:     root,
		Changes:  ch,
		Debounce: DefaultDebounce,
		changes:  ch,
		done:     make(chan struct{}),
		watcher:  fw,
		filter:   filter,
		skip:     skip,
	}, nil
}

// Start adds every directory under the root and begins watching.
func (w *Watcher) Start() error {
	err := filepath.WalkDir(w.Root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.skipped(path) || (path != w.Root && ignoredDirs[d.Name()]) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
	if err != nil {
		return err
	}

	go w.loop()
	return nil
}

// Stop closes the watcher and the Changes channel.
func (w *Watcher) Stop() {
	w.watcher.Close()
	<-w.done
	close(w.changes)
}

func (w *Watcher) loop() {
	defer close(w.done)

	pending := make(map[string]struct{})
	var last time.Time
	ticker := time.NewTicker(w.Debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				if len(pending) > 0 {
					w.emit(pending)
				}
				return
			}
			if w.skipped(event.Name) {
				continue
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if !ignoredDirs[filepath.Base(event.Name)] {
						_ = w.watcher.Add(event.Name)
					}
					continue
				}
			}

			rel, ok := w.relevant(event.Name)
			if !ok {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				pending[rel] = struct{}{}
				last = time.Now()
			}

		case <-ticker.C:
			if len(pending) > 0 && time.Since(last) >= w.Debounce {
				w.emit(pending)
				pending = make(map[string]struct{})
			}

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) relevant(name string) (string, bool) {
	rel, err := filepath.Rel(w.Root, name)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if w.filter != nil && !w.filter.Match(rel) {
		return "", false
	}
	return rel, true
}

func (w *Watcher) skipped(path string) bool {
	if w.skip == "" {
		return false
	}
	return path == w.skip || strings.HasPrefix(path, w.skip+string(filepath.Separator))
}

func (w *Watcher) emit(pending map[string]struct{}) {
	files := make([]string, 0, len(pending))
	for f := range pending {
		files = append(files, f)
	}
	sort.Strings(files)
	w.changes <- ChangeSet{Files: files}
}
