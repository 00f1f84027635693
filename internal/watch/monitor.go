// Package watch monitors chunk worktrees for edits that break chunk
// ownership: a write in one chunk's worktree to a file another chunk owns, or
// to a file no chunk owns.
package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Iron-Ham/merges/internal/logging"
	"github.com/Iron-Ham/merges/internal/ownership"
	"github.com/Iron-Ham/merges/internal/state"
)

// debounceInterval collapses the burst of events editors emit for one save.
const debounceInterval = 50 * time.Millisecond

// Kind classifies a Violation.
type Kind string

const (
	// ForeignFile is a write to a file owned by a different chunk.
	ForeignFile Kind = "foreign"
	// UnownedFile is a write to a file no chunk owns.
	UnownedFile Kind = "unowned"
)

// Violation is an edit in a chunk worktree that does not belong to that chunk.
type Violation struct {
	Kind  Kind
	Chunk string // chunk whose worktree was edited
	Path  string // slash-separated path relative to the worktree
	Owner string // owning chunk for ForeignFile
	At    time.Time
}

func (v Violation) String() string {
	if v.Kind == ForeignFile {
		return fmt.Sprintf("%s: %s belongs to chunk '%s'", v.Chunk, v.Path, v.Owner)
	}
	return fmt.Sprintf("%s: %s is not part of any chunk", v.Chunk, v.Path)
}

// Monitor watches chunk worktrees and reports ownership violations.
type Monitor struct {
	watcher *fsnotify.Watcher
	logger  *logging.Logger

	// chunk name -> worktree path
	worktrees map[string]string
	owners    *ownership.Index
	seen      map[string]Violation // keyed by chunk + path

	onViolation func(Violation)

	// Paths to ignore
	ignorePaths []string

	mu       sync.RWMutex
	stopCh   chan struct{}
	stopOnce sync.Once
}

// New creates a Monitor. Call Watch for each chunk, then Start.
func New(logger *logging.Logger) (*Monitor, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NopLogger()
	}

	return &Monitor{
		watcher:     watcher,
		logger:      logger.WithOperation("watch"),
		worktrees:   make(map[string]string),
		owners:      ownership.New(),
		seen:        make(map[string]Violation),
		ignorePaths: []string{".git", state.FileName, "node_modules", ".DS_Store"},
		stopCh:      make(chan struct{}),
	}, nil
}

// OnViolation sets the callback invoked for every violation. It runs on the
// monitor goroutine.
func (m *Monitor) OnViolation(cb func(Violation)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onViolation = cb
}

// SetOwnership replaces the ownership snapshot with the chunks of st.
func (m *Monitor) SetOwnership(st *state.MergesState) {
	idx := ownership.FromState(st)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners = idx
}

// Watch starts watching the worktree of chunk, including its subdirectories.
func (m *Monitor) Watch(chunk, worktreePath string) error {
	info, err := os.Stat(worktreePath)
	if err != nil {
		return fmt.Errorf("worktree path does not exist: %s: %w", worktreePath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("worktree path is not a directory: %s", worktreePath)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	root := filepath.Clean(worktreePath)
	m.worktrees[chunk] = root
	return m.watchDirRecursive(root, root)
}

// watchDirRecursive adds start and its subdirectories to the watcher,
// skipping ignored directories relative to the worktree root.
func (m *Monitor) watchDirRecursive(root, start string) error {
	return filepath.WalkDir(start, func(path string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if rel, _ := filepath.Rel(root, path); rel != "." && m.ignored(rel) {
			return filepath.SkipDir
		}
		return m.watcher.Add(path)
	})
}

// Start begins processing filesystem events.
func (m *Monitor) Start() {
	go m.watchLoop()
}

// Stop stops the monitor. It is safe to call more than once.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		_ = m.watcher.Close()
	})
}

// Violations returns the latest violation per chunk and path, sorted.
func (m *Monitor) Violations() []Violation {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Violation, 0, len(m.seen))
	for _, v := range m.seen {
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b Violation) int {
		if c := strings.Compare(a.Chunk, b.Chunk); c != 0 {
			return c
		}
		return strings.Compare(a.Path, b.Path)
	})
	return out
}

func (m *Monitor) watchLoop() {
	debounce := time.NewTimer(debounceInterval)
	if !debounce.Stop() {
		<-debounce.C
	}
	pending := make(map[string]fsnotify.Event)

	for {
		select {
		case <-m.stopCh:
			return

		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					m.watchNewDir(event.Name)
					continue
				}
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}
			pending[event.Name] = event
			debounce.Reset(debounceInterval)

		case <-debounce.C:
			events := pending
			pending = make(map[string]fsnotify.Event)
			for name := range events {
				m.handle(name, time.Now())
			}

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn("watcher error", "error", err)
		}
	}
}

// watchNewDir starts watching a directory created inside a worktree.
func (m *Monitor) watchNewDir(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	chunk, rel, ok := m.locate(path)
	if !ok || m.ignored(rel) {
		return
	}
	if err := m.watchDirRecursive(m.worktrees[chunk], path); err != nil {
		m.logger.Warn("failed to watch new directory", "path", path, "error", err)
	}
}

// handle classifies a write to path and records any violation.
func (m *Monitor) handle(path string, at time.Time) {
	m.mu.Lock()
	chunk, rel, ok := m.locate(path)
	if !ok || m.ignored(rel) {
		m.mu.Unlock()
		return
	}

	v := Violation{Chunk: chunk, Path: rel, At: at}
	owner, owned := m.owners.Owner(rel)
	switch {
	case owned && owner == chunk:
		m.mu.Unlock()
		return
	case owned:
		v.Kind, v.Owner = ForeignFile, owner
	default:
		v.Kind = UnownedFile
	}
	m.seen[chunk+"\x00"+rel] = v
	cb := m.onViolation
	m.mu.Unlock()

	m.logger.WithChunk(chunk).Warn("ownership violation", "kind", string(v.Kind), "path", rel, "owner", v.Owner)
	if cb != nil {
		cb(v)
	}
}

// locate finds the chunk whose worktree contains path. Callers hold mu.
func (m *Monitor) locate(path string) (chunk, rel string, ok bool) {
	path = filepath.Clean(path)
	for name, root := range m.worktrees {
		r, err := filepath.Rel(root, path)
		if err != nil || r == "." || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
			continue
		}
		return name, filepath.ToSlash(r), true
	}
	return "", "", false
}

// ignored reports whether a worktree-relative path is inside an ignored entry.
func (m *Monitor) ignored(rel string) bool {
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if slices.Contains(m.ignorePaths, part) {
			return true
		}
	}
	return false
}
