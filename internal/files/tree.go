package files

import (
	"strings"
	"time"

	"project-hub/internal/models"
)

// Tree is a nested view of project files keyed by path segment.
type Tree map[string]*TreeNode

// TreeNode is either a folder with children or a file leaf.
type TreeNode struct {
	Type      string     `json:"type"`
	Children  Tree       `json:"children,omitempty"`
	Path      string     `json:"path,omitempty"`
	Language  string     `json:"language,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

const (
	NodeFolder = "folder"
	NodeFile   = "file"
)

// BuildTree nests files under their directory segments. A folder wins over
// a file with the same name at the same level.
func BuildTree(infos []models.FileInfo) Tree {
	root := Tree{}
	for _, info := range infos {
		parts := strings.Split(info.Path, "/")
		name := parts[len(parts)-1]

		level := root
		for _, dir := range parts[:len(parts)-1] {
			node, ok := level[dir]
			if !ok || node.Type != NodeFolder {
				node = &TreeNode{Type: NodeFolder, Children: Tree{}}
				level[dir] = node
			}
			level = node.Children
		}

		if existing, ok := level[name]; ok && existing.Type == NodeFolder {
			continue
		}
		created, updated := info.CreatedAt, info.UpdatedAt
		level[name] = &TreeNode{
			Type:      NodeFile,
			Path:      info.Path,
			Language:  info.Language,
			CreatedAt: &created,
			UpdatedAt: &updated,
		}
	}
	return root
}
