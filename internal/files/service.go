// Package files owns project files and materializes AI output into them.
package files

import (
	"context"
	"errors"
	"strings"
	"time"

	"project-hub/internal/aiparse"
	"project-hub/internal/locks"
	"project-hub/internal/logger"
	"project-hub/internal/models"
)

// Service is the single coordinator of project file mutations. Every write
// for a project goes through a per-project lock; concurrent writers to the
// same path are last-write-wins.
type Service struct {
	store Store
	locks *locks.Keyed
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, locks: locks.NewKeyed(), now: time.Now}
}

// DeleteResult reports how many files a delete removed. Deleted == 0 means
// nothing matched.
type DeleteResult struct {
	Path    string `json:"filePath"`
	Deleted int    `json:"deletedCount"`
}

// Found reports whether the delete matched anything.
func (r DeleteResult) Found() bool { return r.Deleted > 0 }

// Create writes a file, overwriting any file already at path.
func (s *Service) Create(ctx context.Context, projectID, path, content, language string) (models.ProjectFile, error) {
	p, err := filePath(path)
	if err != nil {
		return models.ProjectFile{}, err
	}
	if language == "" {
		language = aiparse.DefaultLanguage
	}

	unlock := s.locks.Lock(projectID)
	defer unlock()

	now := s.now()
	f := models.ProjectFile{Path: p, Content: content, Language: language, CreatedAt: now, UpdatedAt: now}
	if err := s.store.Put(ctx, projectID, f); err != nil {
		return models.ProjectFile{}, err
	}
	logger.Debug().Str("project_id", projectID).Str("path", p).Msg("[Files] created")
	return f, nil
}

func (s *Service) Get(ctx context.Context, projectID, path string) (models.ProjectFile, error) {
	p, err := filePath(path)
	if err != nil {
		return models.ProjectFile{}, err
	}
	return s.store.Get(ctx, projectID, p)
}

// Update replaces the content of an existing file.
func (s *Service) Update(ctx context.Context, projectID, path, content string) (models.ProjectFile, error) {
	p, err := filePath(path)
	if err != nil {
		return models.ProjectFile{}, err
	}

	unlock := s.locks.Lock(projectID)
	defer unlock()

	f, err := s.store.Get(ctx, projectID, p)
	if err != nil {
		return models.ProjectFile{}, err
	}
	f.Content = content
	f.UpdatedAt = s.now()
	if err := s.store.Put(ctx, projectID, f); err != nil {
		return models.ProjectFile{}, err
	}
	return f, nil
}

// List returns file metadata sorted by path.
func (s *Service) List(ctx context.Context, projectID string) ([]models.FileInfo, error) {
	all, err := s.store.List(ctx, projectID)
	if err != nil {
		return nil, err
	}
	out := make([]models.FileInfo, 0, len(all))
	for _, f := range all {
		out = append(out, f.Info())
	}
	return out, nil
}

func (s *Service) Tree(ctx context.Context, projectID string) (Tree, error) {
	infos, err := s.List(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return BuildTree(infos), nil
}

// Rename moves one file, or every file under a directory scope when oldPath
// ends in "/". It returns the number of files moved.
func (s *Service) Rename(ctx context.Context, projectID, oldPath, newPath string) (int, error) {
	from := aiparse.NormalizePath(oldPath)
	to := aiparse.NormalizePath(newPath)
	if from == "" || to == "" {
		return 0, ErrInvalidPath
	}

	unlock := s.locks.Lock(projectID)
	defer unlock()

	if isDir(from) {
		if !isDir(to) {
			to += "/"
		}
		return s.renameDir(ctx, projectID, from, to)
	}
	if isDir(to) {
		return 0, ErrInvalidPath
	}

	f, err := s.store.Get(ctx, projectID, from)
	if err != nil {
		return 0, err
	}
	if _, err := s.store.Get(ctx, projectID, to); err == nil {
		return 0, ErrFileExists
	} else if !errors.Is(err, ErrFileNotFound) {
		return 0, err
	}

	f.Path = to
	f.UpdatedAt = s.now()
	if err := s.store.Put(ctx, projectID, f); err != nil {
		return 0, err
	}
	if _, err := s.store.Delete(ctx, projectID, from); err != nil {
		return 0, err
	}
	return 1, nil
}

func (s *Service) renameDir(ctx context.Context, projectID, from, to string) (int, error) {
	// A directory cannot move onto itself or into its own subtree.
	if strings.HasPrefix(to, from) {
		return 0, ErrInvalidPath
	}

	all, err := s.store.List(ctx, projectID)
	if err != nil {
		return 0, err
	}

	existing := make(map[string]bool, len(all))
	var moving []models.ProjectFile
	for _, f := range all {
		existing[f.Path] = true
		if strings.HasPrefix(f.Path, from) {
			moving = append(moving, f)
		}
	}
	if len(moving) == 0 {
		return 0, ErrFileNotFound
	}
	targets := make(map[string]bool, len(moving))
	for _, f := range moving {
		target := to + strings.TrimPrefix(f.Path, from)
		if existing[target] && !strings.HasPrefix(target, from) {
			return 0, ErrFileExists
		}
		targets[target] = true
	}

	// Every write lands before any delete so a source that is also a
	// target (moving "a/b/" up to "a/") keeps its new content.
	now := s.now()
	renamed := 0
	for _, f := range moving {
		moved := f
		moved.Path = to + strings.TrimPrefix(f.Path, from)
		moved.UpdatedAt = now
		if err := s.store.Put(ctx, projectID, moved); err != nil {
			return renamed, err
		}
		renamed++
	}
	for _, f := range moving {
		if targets[f.Path] {
			continue
		}
		if _, err := s.store.Delete(ctx, projectID, f.Path); err != nil {
			return renamed, err
		}
	}
	logger.Info().Str("project_id", projectID).Str("from", from).Str("to", to).Int("count", renamed).Msg("[Files] directory renamed")
	return renamed, nil
}

// Delete removes one file, or every file under path when it ends in "/".
// A miss is reported through the result, not as an error.
func (s *Service) Delete(ctx context.Context, projectID, path string) (DeleteResult, error) {
	p := aiparse.NormalizePath(path)
	if p == "" {
		return DeleteResult{Path: path}, ErrInvalidPath
	}

	unlock := s.locks.Lock(projectID)
	defer unlock()

	res := DeleteResult{Path: p}
	if !isDir(p) {
		ok, err := s.store.Delete(ctx, projectID, p)
		if ok {
			res.Deleted = 1
		}
		return res, err
	}

	all, err := s.store.List(ctx, projectID)
	if err != nil {
		return res, err
	}
	var errs []error
	for _, f := range all {
		if !strings.HasPrefix(f.Path, p) {
			continue
		}
		ok, err := s.store.Delete(ctx, projectID, f.Path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			res.Deleted++
		}
	}
	return res, errors.Join(errs...)
}

// ApplyAIFileSpecs creates every spec and returns the paths written, in
// input order. A failing spec is logged and skipped.
func (s *Service) ApplyAIFileSpecs(ctx context.Context, projectID string, specs []aiparse.FileSpec) []string {
	created := make([]string, 0, len(specs))
	for _, spec := range specs {
		f, err := s.Create(ctx, projectID, spec.Path, spec.Content, spec.Language)
		if err != nil {
			logger.Warn().Err(err).Str("project_id", projectID).Str("path", spec.Path).Msg("[Files] materialize failed")
			continue
		}
		created = append(created, f.Path)
	}
	return created
}

func isDir(p string) bool {
	return strings.HasSuffix(p, "/")
}

// filePath normalizes a concrete file path; directory scopes are rejected.
func filePath(p string) (string, error) {
	n := aiparse.NormalizePath(p)
	if n == "" || isDir(n) {
		return "", ErrInvalidPath
	}
	return n, nil
}
