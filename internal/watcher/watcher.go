// Package watcher implements C9: a debounced filesystem watch loop that
// feeds changed files into the same per-file indexing pipeline C8 exposes
// for a full index, plus a git-aware catch-up strategy for repositories
// whose changes arrive as commits rather than live filesystem events.
// Grounded on the teacher's internal/indexer/code_watcher.go (CodeWatcher's
// debounce-by-ticker loop, recursive subdirectory watching, exclude-dir
// delegation to the scanner, rename→delete+reindex handling).
package watcher

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/codesearch-core/codesearch/internal/indexer"
	"github.com/codesearch-core/codesearch/internal/lang"
)

// Indexer is the subset of *indexer.Indexer the watcher drives.
type Indexer interface {
	IndexFiles(ctx context.Context, repoPath, collectionName string, relPaths []string) (string, error)
}

// Watcher watches a repository directory for changes and reindexes affected
// files through Indexer.
type Watcher struct {
	repoPath       string
	collectionName string
	idx            Indexer
	scanner        *indexer.FileScanner
	debounce       time.Duration
	batchSize      int
	maxWait        time.Duration
	mainBranches   []string
	pollInterval   time.Duration
	logger         *slog.Logger

	fsw    *fsnotify.Watcher
	cancel context.CancelFunc
	once   sync.Once
	wg     sync.WaitGroup
}

// Config holds the watcher's tunables (spec §6.5 watcher.*).
type Config struct {
	Debounce     time.Duration
	BatchSize    int
	MaxWait      time.Duration
	MainBranches []string
	PollInterval time.Duration
}

// New creates a Watcher for repoPath, not yet started.
func New(repoPath, collectionName string, idx Indexer, scanner *indexer.FileScanner, cfg Config, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if scanner == nil {
		scanner = indexer.NewFileScanner()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 2 * time.Second
	}
	if len(cfg.MainBranches) == 0 {
		cfg.MainBranches = []string{"main", "master"}
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	return &Watcher{
		repoPath:       repoPath,
		collectionName: collectionName,
		idx:            idx,
		scanner:        scanner,
		debounce:       cfg.Debounce,
		batchSize:      cfg.BatchSize,
		maxWait:        cfg.MaxWait,
		mainBranches:   cfg.MainBranches,
		pollInterval:   cfg.PollInterval,
		logger:         logger,
	}
}

// Start begins watching the repository's filesystem events and, if the
// repository is a git checkout, its configured main branches for HEAD
// advancement. It returns once the initial watch set has been registered;
// the event loops run in background goroutines until ctx is canceled or
// Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	info, err := os.Stat(w.repoPath)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return os.ErrNotExist
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsw = fsw

	if err := w.watchTree(w.repoPath); err != nil {
		fsw.Close()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.runEventLoop(runCtx)
	}()

	if w.isGitRepo() {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.runGitCatchUp(runCtx)
		}()
	}

	w.logger.Info("watcher started", "path", w.repoPath)
	return nil
}

// Stop stops the watcher and waits for its background goroutines to exit.
// Idempotent.
func (w *Watcher) Stop() {
	w.once.Do(func() {
		if w.cancel != nil {
			w.cancel()
		}
		if w.fsw != nil {
			_ = w.fsw.Close()
		}
	})
	w.wg.Wait()
}

// watchTree registers the root and every non-excluded subdirectory with
// fsnotify, which is not recursive on its own.
func (w *Watcher) watchTree(root string) error {
	if err := w.fsw.Add(root); err != nil {
		return err
	}
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() && path != root {
			if w.scanner.ShouldExclude(path, w.relPath(path), true) {
				return filepath.SkipDir
			}
			if err := w.fsw.Add(path); err != nil {
				w.logger.Warn("failed to watch subdirectory", "path", path, "error", err)
			}
		}
		return nil
	})
}

// runEventLoop processes fsnotify events, debouncing rapid successive
// writes per path (spec §4.9's "collapses bursts into a single event per
// path within a configurable window") and flushing a batch either when it
// reaches batchSize or maxWait elapses since its oldest pending path.
func (w *Watcher) runEventLoop(ctx context.Context) {
	pending := make(map[string]time.Time) // path -> first-seen time

	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	flush := func() {
		if len(pending) == 0 {
			return
		}
		paths := make([]string, 0, len(pending))
		for p := range pending {
			paths = append(paths, w.relPath(p))
		}
		w.reindex(ctx, paths)
		pending = make(map[string]time.Time)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return
			}

			if evt.Op&fsnotify.Create == fsnotify.Create {
				if info, err := os.Stat(evt.Name); err == nil && info.IsDir() {
					if !w.scanner.ShouldExclude(evt.Name, w.relPath(evt.Name), true) {
						if err := w.fsw.Add(evt.Name); err != nil {
							w.logger.Warn("failed to add new directory to watcher", "dir", evt.Name, "error", err)
						}
					}
					continue
				}
			}

			if evt.Op == fsnotify.Chmod {
				continue // PermissionsChanged is ignored per spec §4.9
			}
			if !w.isWatchedFile(evt.Name) {
				continue
			}

			if _, seen := pending[evt.Name]; !seen {
				pending[evt.Name] = time.Now()
			}

			if len(pending) >= w.batchSize {
				flush()
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)

		case <-ticker.C:
			var oldest time.Time
			for _, t := range pending {
				if oldest.IsZero() || t.Before(oldest) {
					oldest = t
				}
			}
			ready := len(pending) > 0 && time.Since(oldest) >= w.debounce
			timedOut := len(pending) > 0 && time.Since(oldest) >= w.maxWait
			if ready || timedOut {
				flush()
			}
		}
	}
}

// reindex routes relPaths through the per-file pipeline. Renames surface as
// a Remove on the old path and a Create on the new one, both already
// collapsed into relPaths by the caller; IndexFiles treats a path absent
// from the current scan as a deletion on its own, so no separate delete
// call is needed here.
func (w *Watcher) reindex(ctx context.Context, relPaths []string) {
	if len(relPaths) == 0 {
		return
	}
	if _, err := w.idx.IndexFiles(ctx, w.repoPath, w.collectionName, relPaths); err != nil {
		w.logger.Warn("failed to reindex changed files", "files", relPaths, "error", err)
		return
	}
	w.logger.Info("reindexed changed files", "count", len(relPaths))
}

func (w *Watcher) isWatchedFile(path string) bool {
	return lang.IsSupportedFile(path) && !w.scanner.ShouldExclude(path, w.relPath(path), false)
}

func (w *Watcher) relPath(full string) string {
	rel, err := filepath.Rel(w.repoPath, full)
	if err != nil {
		return filepath.Base(full)
	}
	return filepath.ToSlash(rel)
}

func (w *Watcher) isGitRepo() bool {
	_, err := os.Stat(filepath.Join(w.repoPath, ".git"))
	return err == nil
}

// runGitCatchUp polls HEAD on the configured main branches (spec §4.9
// "Git-aware catch-up"); when HEAD advances, it computes the changed-file
// set via `git diff --name-only` and feeds it through the same per-file
// pipeline, catching changes that land as commits (CI checkouts, pulls)
// rather than live filesystem writes.
func (w *Watcher) runGitCatchUp(ctx context.Context) {
	lastSeen := make(map[string]string) // branch -> last HEAD commit observed

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, branch := range w.mainBranches {
				head, err := w.gitRevParse(ctx, branch)
				if err != nil || head == "" {
					continue
				}
				prev, seen := lastSeen[branch]
				lastSeen[branch] = head
				if !seen || prev == head {
					continue
				}
				changed, err := w.gitChangedFiles(ctx, prev, head)
				if err != nil {
					w.logger.Warn("failed to compute git diff", "branch", branch, "error", err)
					continue
				}
				if len(changed) > 0 {
					w.reindex(ctx, changed)
				}
			}
		}
	}
}

func (w *Watcher) gitRevParse(ctx context.Context, ref string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	cmd := exec.CommandContext(cctx, "git", "rev-parse", ref)
	cmd.Dir = w.repoPath
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (w *Watcher) gitChangedFiles(ctx context.Context, from, to string) ([]string, error) {
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	cmd := exec.CommandContext(cctx, "git", "diff", "--name-only", from, to)
	cmd.Dir = w.repoPath
	out, err := cmd.Output()
	if err != nil {
		return nil, err
	}
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	files := make([]string, 0, len(lines))
	for _, l := range lines {
		if l != "" {
			files = append(files, l)
		}
	}
	return files, nil
}
