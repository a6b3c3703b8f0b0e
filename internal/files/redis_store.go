package files

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"project-hub/internal/models"
)

// RedisStore keeps each project's files in one Redis hash: field = path,
// value = JSON-encoded file record.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps an existing client. Keys are namespaced by prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "project_hub"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) projectKey(projectID string) string {
	return fmt.Sprintf("%s:files:%s", s.prefix, projectID)
}

func (s *RedisStore) Get(ctx context.Context, projectID, path string) (models.ProjectFile, error) {
	raw, err := s.client.HGet(ctx, s.projectKey(projectID), path).Result()
	if errors.Is(err, redis.Nil) {
		return models.ProjectFile{}, ErrFileNotFound
	}
	if err != nil {
		return models.ProjectFile{}, err
	}

	var f models.ProjectFile
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		return models.ProjectFile{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return f, nil
}

func (s *RedisStore) Put(ctx context.Context, projectID string, file models.ProjectFile) error {
	data, err := json.Marshal(file)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, s.projectKey(projectID), file.Path, data).Err()
}

func (s *RedisStore) Delete(ctx context.Context, projectID, path string) (bool, error) {
	n, err := s.client.HDel(ctx, s.projectKey(projectID), path).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisStore) List(ctx context.Context, projectID string) ([]models.ProjectFile, error) {
	all, err := s.client.HGetAll(ctx, s.projectKey(projectID)).Result()
	if err != nil {
		return nil, err
	}

	out := make([]models.ProjectFile, 0, len(all))
	for path, raw := range all {
		var f models.ProjectFile
		if err := json.Unmarshal([]byte(raw), &f); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		out = append(out, f)
	}
	sortByPath(out)
	return out, nil
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*RedisStore)(nil)
)
