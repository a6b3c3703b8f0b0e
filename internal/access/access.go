// Package access answers whether a user may read or write a project's chat
// and files. Projects are owned by the wider application; this package only
// reads the ownership and sharing tables.
package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var ErrProjectNotFound = errors.New("project not found")

// Project is the subset of the project record needed for access checks.
type Project struct {
	ID        string `gorm:"primaryKey;size:64"`
	Name      string `gorm:"size:255"`
	OwnerID   string `gorm:"size:64;index;not null"`
	Members   []ProjectMember
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProjectMember is a user the project was shared with.
type ProjectMember struct {
	ProjectID string `gorm:"primaryKey;size:64"`
	UserID    string `gorm:"primaryKey;size:64;index"`
	CreatedAt time.Time
}

// Checker is the interface consumed by the chat and file layers.
type Checker interface {
	HasAccess(ctx context.Context, userID, projectID string) (bool, error)
	// Participants returns the owner followed by shared users.
	Participants(ctx context.Context, projectID string) ([]string, error)
}

// Open connects to the project database with the configured driver.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	return db, nil
}

// Migrate creates the access tables when they are missing.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Project{}, &ProjectMember{})
}

// Repo implements Checker with GORM.
type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) HasAccess(ctx context.Context, userID, projectID string) (bool, error) {
	if userID == "" || projectID == "" {
		return false, nil
	}

	var count int64
	err := r.db.WithContext(ctx).
		Model(&Project{}).
		Where("id = ?", projectID).
		Where("owner_id = ? OR EXISTS (SELECT 1 FROM project_members pm WHERE pm.project_id = projects.id AND pm.user_id = ?)", userID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *Repo) Participants(ctx context.Context, projectID string) ([]string, error) {
	var project Project
	err := r.db.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, user_id ASC") }).
		First(&project, "id = ?", projectID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, err
	}

	out := []string{project.OwnerID}
	for _, m := range project.Members {
		if m.UserID != project.OwnerID {
			out = append(out, m.UserID)
		}
	}
	return out, nil
}

// CreateProject registers a project and its shared users. The HTTP surface
// for projects lives elsewhere; this is used for seeding and tests.
func (r *Repo) CreateProject(ctx context.Context, id, name, ownerID string, members ...string) error {
	p := Project{ID: id, Name: name, OwnerID: ownerID}
	for _, m := range members {
		p.Members = append(p.Members, ProjectMember{ProjectID: id, UserID: m})
	}
	return r.db.WithContext(ctx).Create(&p).Error
}

// AllowAll grants every authenticated user access to every project. It backs
// the "none" database driver used for local demos.
type AllowAll struct{}

func (AllowAll) HasAccess(ctx context.Context, userID, projectID string) (bool, error) {
	return userID != "" && projectID != "", nil
}

func (AllowAll) Participants(ctx context.Context, projectID string) ([]string, error) {
	return []string{}, nil
}

var (
	_ Checker = (*Repo)(nil)
	_ Checker = AllowAll{}
)
