// Package indexer: progress tracking, grounded on the teacher's
// indexer_progress.go almost unchanged (status enum swapped for this
// package's own Status rather than treesitter.IndexingStatus).
package indexer

import "time"

// Status is the lifecycle state of one IndexRepository run.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Progress tracks the progress of an indexing operation.
type Progress struct {
	RepositoryID   string
	Status         Status
	FilesTotal     int
	FilesIndexed   int
	EntitiesFound  int
	SkippedBySize  int
	CurrentFile    string
	StartedAt      time.Time
	UpdatedAt      time.Time
	Error          *string
}

// initProgress initializes progress tracking for a repository.
func (idx *Indexer) initProgress(repoID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.progress[repoID] = &Progress{
		RepositoryID: repoID,
		Status:       StatusInProgress,
		StartedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
}

// updateProgress updates progress for a repository using a function.
func (idx *Indexer) updateProgress(repoID string, fn func(p *Progress)) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if p, ok := idx.progress[repoID]; ok {
		fn(p)
		p.UpdatedAt = time.Now()
	}
}

// setError sets an error for a repository's progress.
func (idx *Indexer) setError(repoID string, err error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if p, ok := idx.progress[repoID]; ok {
		errStr := err.Error()
		p.Error = &errStr
		p.Status = StatusFailed
		p.UpdatedAt = time.Now()
	}
}

// GetProgress returns the current progress for a repository.
func (idx *Indexer) GetProgress(repoID string) *Progress {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if p, ok := idx.progress[repoID]; ok {
		cp := *p
		return &cp
	}
	return nil
}

// GetAllProgress returns progress for all active indexing operations.
func (idx *Indexer) GetAllProgress() map[string]*Progress {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	result := make(map[string]*Progress, len(idx.progress))
	for k, v := range idx.progress {
		cp := *v
		result[k] = &cp
	}
	return result
}

// ClearProgress removes progress tracking for a completed repository.
func (idx *Indexer) ClearProgress(repoID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	delete(idx.progress, repoID)
}
