package files

import (
	"context"
	"errors"
	"sort"
	"sync"

	"project-hub/internal/models"
)

var (
	ErrFileNotFound = errors.New("file not found")
	ErrFileExists   = errors.New("file already exists")
	ErrInvalidPath  = errors.New("invalid file path")
)

// Store is the per-project path -> file map behind the Service. Callers
// serialize mutations per project; implementations only need to be safe
// for concurrent use across projects.
type Store interface {
	Get(ctx context.Context, projectID, path string) (models.ProjectFile, error)
	Put(ctx context.Context, projectID string, file models.ProjectFile) error
	// Delete reports whether a file was removed.
	Delete(ctx context.Context, projectID, path string) (bool, error)
	// List returns every file of the project sorted by path.
	List(ctx context.Context, projectID string) ([]models.ProjectFile, error)
}

// MemoryStore keeps files in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	projects map[string]map[string]models.ProjectFile
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{projects: make(map[string]map[string]models.ProjectFile)}
}

func (s *MemoryStore) Get(ctx context.Context, projectID, path string) (models.ProjectFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.projects[projectID][path]
	if !ok {
		return models.ProjectFile{}, ErrFileNotFound
	}
	return f, nil
}

func (s *MemoryStore) Put(ctx context.Context, projectID string, file models.ProjectFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, ok := s.projects[projectID]
	if !ok {
		files = make(map[string]models.ProjectFile)
		s.projects[projectID] = files
	}
	files[file.Path] = file
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, projectID, path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files := s.projects[projectID]
	if _, ok := files[path]; !ok {
		return false, nil
	}
	delete(files, path)
	if len(files) == 0 {
		delete(s.projects, projectID)
	}
	return true, nil
}

func (s *MemoryStore) List(ctx context.Context, projectID string) ([]models.ProjectFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files := s.projects[projectID]
	out := make([]models.ProjectFile, 0, len(files))
	for _, f := range files {
		out = append(out, f)
	}
	sortByPath(out)
	return out, nil
}

func sortByPath(files []models.ProjectFile) {
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
}
