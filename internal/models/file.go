package models

import "time"

// ProjectFile is a file owned by a project, keyed by its normalized path.
type ProjectFile struct {
	Path      string    `json:"path"`
	Content   string    `json:"content"`
	Language  string    `json:"language"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FileInfo is a ProjectFile without its content, used for listings.
type FileInfo struct {
	Path      string    `json:"path"`
	Language  string    `json:"language"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Info strips the content.
func (f ProjectFile) Info() FileInfo {
	return FileInfo{Path: f.Path, Language: f.Language, CreatedAt: f.CreatedAt, UpdatedAt: f.UpdatedAt}
}
