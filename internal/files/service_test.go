package files

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"project-hub/internal/aiparse"
	"project-hub/internal/models"
)

// flakyStore fails Put for one path.
type flakyStore struct {
	*MemoryStore
	failPath string
}

func (s *flakyStore) Put(ctx context.Context, projectID string, f models.ProjectFile) error {
	if f.Path == s.failPath {
		return errors.New("disk full")
	}
	return s.MemoryStore.Put(ctx, projectID, f)
}

func newService(t *testing.T) *Service {
	t.Helper()
	svc := NewService(NewMemoryStore())
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}
	return svc
}

func paths(t *testing.T, svc *Service, projectID string) []string {
	t.Helper()
	infos, err := svc.List(context.Background(), projectID)
	require.NoError(t, err)
	out := make([]string, 0, len(infos))
	for _, i := range infos {
		out = append(out, i.Path)
	}
	return out
}

func TestCreateOverwrites(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "p1", "src/app.js", "v1", "javascript")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "p1", "./src/app.js", "v2", "")
	require.NoError(t, err)

	f, err := svc.Get(ctx, "p1", "src/app.js")
	require.NoError(t, err)
	assert.Equal(t, "v2", f.Content)
	assert.Equal(t, "text", f.Language)
	assert.Equal(t, []string{"src/app.js"}, paths(t, svc, "p1"))
}

func TestCreateRejectsDirectoryPath(t *testing.T) {
	svc := newService(t)
	_, err := svc.Create(context.Background(), "p1", "src/", "", "")
	assert.ErrorIs(t, err, ErrInvalidPath)
	_, err = svc.Create(context.Background(), "p1", "  ", "", "")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestUpdateRequiresExistingFile(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.Update(ctx, "p1", "missing.txt", "x")
	assert.ErrorIs(t, err, ErrFileNotFound)

	created, err := svc.Create(ctx, "p1", "a.txt", "old", "text")
	require.NoError(t, err)
	updated, err := svc.Update(ctx, "p1", "a.txt", "new")
	require.NoError(t, err)
	assert.Equal(t, "new", updated.Content)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))
}

func TestListIsSortedAndScopedToProject(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	for _, p := range []string{"z.txt", "a/b.txt", "m.txt"} {
		_, err := svc.Create(ctx, "p1", p, "", "")
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, "p2", "other.txt", "", "")
	require.NoError(t, err)

	assert.Equal(t, []string{"a/b.txt", "m.txt", "z.txt"}, paths(t, svc, "p1"))
	assert.Empty(t, paths(t, svc, "unknown"))
}

func TestApplyAIFileSpecsReportsOverwrittenPath(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, "p1", "src/app.js", "old", "javascript")
	require.NoError(t, err)

	created := svc.ApplyAIFileSpecs(ctx, "p1", []aiparse.FileSpec{
		{Path: "src/app.js", Language: "javascript", Content: "new"},
		{Path: "index.html", Language: "html", Content: "<p/>"},
	})

	assert.Equal(t, []string{"src/app.js", "index.html"}, created)
	f, err := svc.Get(ctx, "p1", "src/app.js")
	require.NoError(t, err)
	assert.Equal(t, "new", f.Content)
}

func TestApplyAIFileSpecsContinuesPastFailure(t *testing.T) {
	svc := NewService(&flakyStore{MemoryStore: NewMemoryStore(), failPath: "b.txt"})

	created := svc.ApplyAIFileSpecs(context.Background(), "p1", []aiparse.FileSpec{
		{Path: "a.txt", Content: "a"},
		{Path: "b.txt", Content: "b"},
		{Path: "c.txt", Content: "c"},
	})

	assert.Equal(t, []string{"a.txt", "c.txt"}, created)
}

func TestApplyAIFileSpecsEmpty(t *testing.T) {
	svc := newService(t)
	assert.Empty(t, svc.ApplyAIFileSpecs(context.Background(), "p1", nil))
}

func TestRenameDirectoryScope(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	for _, p := range []string{"src/a.js", "src/b.js", "srcx/keep.js", "README.md"} {
		_, err := svc.Create(ctx, "p1", p, p, "")
		require.NoError(t, err)
	}

	n, err := svc.Rename(ctx, "p1", "src/", "lib/")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"README.md", "lib/a.js", "lib/b.js", "srcx/keep.js"}, paths(t, svc, "p1"))

	f, err := svc.Get(ctx, "p1", "lib/a.js")
	require.NoError(t, err)
	assert.Equal(t, "src/a.js", f.Content)
}

func TestRenameSingleFile(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, "p1", "a.txt", "hello", "text")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "p1", "b.txt", "taken", "text")
	require.NoError(t, err)

	_, err = svc.Rename(ctx, "p1", "a.txt", "b.txt")
	assert.ErrorIs(t, err, ErrFileExists)

	_, err = svc.Rename(ctx, "p1", "nope.txt", "c.txt")
	assert.ErrorIs(t, err, ErrFileNotFound)

	n, err := svc.Rename(ctx, "p1", "a.txt", "docs/a.txt")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"b.txt", "docs/a.txt"}, paths(t, svc, "p1"))
}

func TestRenameDirectoryErrors(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.Rename(ctx, "p1", "src/", "lib/")
	assert.ErrorIs(t, err, ErrFileNotFound)

	for _, p := range []string{"src/a.js", "lib/a.js"} {
		_, err := svc.Create(ctx, "p1", p, "", "")
		require.NoError(t, err)
	}
	_, err = svc.Rename(ctx, "p1", "src/", "lib/")
	assert.ErrorIs(t, err, ErrFileExists)
	assert.Equal(t, []string{"lib/a.js", "src/a.js"}, paths(t, svc, "p1"))
}

func TestRenameDirectoryIntoItselfIsRejected(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	for p, content := range map[string]string{"src/a.js": "TOP", "src/b.js": "B", "src/sub/a.js": "NESTED"} {
		_, err := svc.Create(ctx, "p1", p, content, "")
		require.NoError(t, err)
	}

	for _, to := range []string{"src/", "src", "src/sub/", "./src/sub"} {
		n, err := svc.Rename(ctx, "p1", "src/", to)
		assert.ErrorIs(t, err, ErrInvalidPath, to)
		assert.Zero(t, n, to)
	}
	assert.Equal(t, []string{"src/a.js", "src/b.js", "src/sub/a.js"}, paths(t, svc, "p1"))

	f, err := svc.Get(ctx, "p1", "src/a.js")
	require.NoError(t, err)
	assert.Equal(t, "TOP", f.Content)
}

func TestRenameDirectoryUpIntoParentKeepsContent(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	for p, content := range map[string]string{"src/sub/a.js": "A", "src/sub/sub/a.js": "DEEP"} {
		_, err := svc.Create(ctx, "p1", p, content, "")
		require.NoError(t, err)
	}

	n, err := svc.Rename(ctx, "p1", "src/sub/", "src/")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"src/a.js", "src/sub/a.js"}, paths(t, svc, "p1"))

	f, err := svc.Get(ctx, "p1", "src/a.js")
	require.NoError(t, err)
	assert.Equal(t, "A", f.Content)
	f, err = svc.Get(ctx, "p1", "src/sub/a.js")
	require.NoError(t, err)
	assert.Equal(t, "DEEP", f.Content)
}

func TestDeletePrefixScope(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	for _, p := range []string{"src/a.js", "src/nested/b.js", "srcx/c.js", "main.go"} {
		_, err := svc.Create(ctx, "p1", p, "", "")
		require.NoError(t, err)
	}

	res, err := svc.Delete(ctx, "p1", "src/")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Deleted)
	assert.True(t, res.Found())
	assert.Equal(t, []string{"main.go", "srcx/c.js"}, paths(t, svc, "p1"))
}

func TestDeleteMissingFileIsSignalNotError(t *testing.T) {
	svc := newService(t)

	res, err := svc.Delete(context.Background(), "p1", "ghost.txt")
	require.NoError(t, err)
	assert.False(t, res.Found())
	assert.Equal(t, "ghost.txt", res.Path)

	res, err = svc.Delete(context.Background(), "p1", "ghosts/")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Deleted)
}

func TestDeleteSingleFile(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, "p1", "a.txt", "", "")
	require.NoError(t, err)

	res, err := svc.Delete(ctx, "p1", "a.txt")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted)
	_, err = svc.Get(ctx, "p1", "a.txt")
	assert.ErrorIs(t, err, ErrFileNotFound)
}
