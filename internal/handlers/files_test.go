package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"project-hub/internal/files"
	"project-hub/internal/models"
	"project-hub/internal/services"
)

// memberOf allows access to the listed projects only.
type memberOf []string

func (m memberOf) Authorize(_ context.Context, _ string, projectID string) error {
	for _, id := range m {
		if id == projectID {
			return nil
		}
	}
	return services.ErrPermissionDenied
}

func newFilesRouter(p models.Principal) http.Handler {
	r := newRouter(p)
	NewFileHandler(files.NewService(files.NewMemoryStore()), memberOf{"p1"}).Register(r.Group("/api/files"))
	return r
}

func TestFileLifecycle(t *testing.T) {
	r := newFilesRouter(ada)

	rec := doJSON(t, r, http.MethodPost, "/api/files/project/p1/file", map[string]any{"filePath": "/src/app.js", "content": "let a = 1", "language": "javascript"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "src/app.js", decode(t, rec)["file"].(map[string]any)["path"])

	rec = doJSON(t, r, http.MethodPut, "/api/files/project/p1/file/src/app.js", map[string]any{"content": "let a = 2"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, r, http.MethodGet, "/api/files/project/p1/file/src/app.js", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	file := decode(t, rec)["file"].(map[string]any)
	assert.Equal(t, "let a = 2", file["content"])
	assert.Equal(t, "javascript", file["language"])

	rec = doJSON(t, r, http.MethodGet, "/api/files/project/p1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode(t, rec)["files"].([]any)
	require.Len(t, list, 1)
	assert.NotContains(t, list[0], "content")

	rec = doJSON(t, r, http.MethodGet, "/api/files/project/p1/tree", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tree := decode(t, rec)["fileTree"].(map[string]any)
	src := tree["src"].(map[string]any)
	assert.Equal(t, files.NodeFolder, src["type"])
	assert.Contains(t, src["children"], "app.js")
}

func TestFileRenameDirectory(t *testing.T) {
	r := newFilesRouter(ada)
	for _, p := range []string{"src/a.js", "src/lib/b.js", "README.md"} {
		rec := doJSON(t, r, http.MethodPost, "/api/files/project/p1/file", map[string]any{"filePath": p, "content": p})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doJSON(t, r, http.MethodPut, "/api/files/project/p1/rename", map[string]any{"oldPath": "src/", "newPath": "app"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, decode(t, rec)["renamedCount"])

	rec = doJSON(t, r, http.MethodGet, "/api/files/project/p1/file/app/lib/b.js", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, r, http.MethodPut, "/api/files/project/p1/rename", map[string]any{"oldPath": "app/a.js", "newPath": "README.md"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, r, http.MethodPut, "/api/files/project/p1/rename", map[string]any{"oldPath": "", "newPath": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFileDelete(t *testing.T) {
	r := newFilesRouter(ada)
	for _, p := range []string{"src/a.js", "src/b.js", "main.go"} {
		require.Equal(t, http.StatusOK, doJSON(t, r, http.MethodPost, "/api/files/project/p1/file", map[string]any{"filePath": p}).Code)
	}

	rec := doJSON(t, r, http.MethodDelete, "/api/files/project/p1/file/src/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "src/", body["filePath"])
	assert.EqualValues(t, 2, body["deletedCount"])

	rec = doJSON(t, r, http.MethodDelete, "/api/files/project/p1/file/main.go", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["deletedCount"])

	rec = doJSON(t, r, http.MethodDelete, "/api/files/project/p1/file/main.go", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.EqualValues(t, 0, decode(t, rec)["deletedCount"])
}

func TestFileErrors(t *testing.T) {
	r := newFilesRouter(ada)

	assert.Equal(t, http.StatusNotFound, doJSON(t, r, http.MethodGet, "/api/files/project/p1/file/missing.txt", nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, r, http.MethodPut, "/api/files/project/p1/file/missing.txt", map[string]any{"content": "x"}).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(t, r, http.MethodPut, "/api/files/project/p1/file/a.txt", map[string]any{}).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(t, r, http.MethodPost, "/api/files/project/p1/file", map[string]any{"filePath": "  "}).Code)
	assert.Equal(t, http.StatusForbidden, doJSON(t, r, http.MethodGet, "/api/files/project/other", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, doJSON(t, newFilesRouter(models.Principal{}), http.MethodGet, "/api/files/project/p1", nil).Code)
}
