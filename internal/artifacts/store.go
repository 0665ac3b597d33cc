// Package artifacts persists the files a research run produces.
package artifacts

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "product-research-workers/internal/common/errors"
	"product-research-workers/internal/common/logger"
)

// Store reads and writes named artifacts of a run.
type Store interface {
	Write(ctx context.Context, runID, name string, content []byte) (string, error)
	Read(ctx context.Context, runID, name string) ([]byte, error)
}

// FileStore keeps artifacts on the local filesystem.
type FileStore struct {
	dir string
	// perRun nests files under a directory named after the run.
	perRun bool
}

// NewFileStore writes <dir>/<name>; each run overwrites the previous one.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// NewPerRunFileStore writes <dir>/<run id>/<name>, for workers serving many runs.
func NewPerRunFileStore(dir string) *FileStore {
	return &FileStore{dir: dir, perRun: true}
}

// ValidateRunID rejects run ids that cannot be used as a single directory
// name below the output directory.
func ValidateRunID(runID string) error {
	if runID == "" {
		return apperrors.NewInvalidRunParametersError("runId is required")
	}
	if !filepath.IsLocal(runID) || strings.ContainsAny(runID, `/\`) || runID == "." {
		return apperrors.NewInvalidRunParametersError(fmt.Sprintf("runId %q is not a plain name", runID))
	}
	return nil
}

// Path is where the artifact name of runID lives.
func (s *FileStore) Path(runID, name string) (string, error) {
	if s.perRun && runID != "" {
		if err := ValidateRunID(runID); err != nil {
			return "", err
		}
		return filepath.Join(s.dir, runID, name), nil
	}
	return filepath.Join(s.dir, name), nil
}

func (s *FileStore) Write(ctx context.Context, runID, name string, content []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", apperrors.NewArtifactWriteFailedError(name, err)
	}
	path, err := s.Path(runID, name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", apperrors.NewArtifactWriteFailedError(name, err)
	}

	// readers never see a partial file
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return "", apperrors.NewArtifactWriteFailedError(name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", apperrors.NewArtifactWriteFailedError(name, err)
	}
	return path, nil
}

func (s *FileStore) Read(ctx context.Context, runID, name string) ([]byte, error) {
	path, err := s.Path(runID, name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.NewArtifactNotFoundError(name, err)
		}
		return nil, fmt.Errorf("read artifact %s: %w", name, err)
	}
	return data, nil
}

// MirrorKey is the Redis key an artifact is mirrored under.
func MirrorKey(runID, name string) string {
	return "artifacts:" + runID + ":" + name
}

// Mirrored writes through to a primary store and copies every artifact into
// Redis, so workers on other hosts can read it. Reads prefer Redis.
type Mirrored struct {
	primary Store
	rdb     redis.Cmdable
	ttl     time.Duration
	logger  logger.Logger
}

func NewMirrored(primary Store, rdb redis.Cmdable, ttl time.Duration, log logger.Logger) *Mirrored {
	return &Mirrored{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
		logger:  log.With(map[string]interface{}{"component": "artifact-mirror"}),
	}
}

func (m *Mirrored) Write(ctx context.Context, runID, name string, content []byte) (string, error) {
	path, err := m.primary.Write(ctx, runID, name, content)
	if err != nil {
		return "", err
	}
	if err := m.rdb.Set(ctx, MirrorKey(runID, name), content, m.ttl).Err(); err != nil {
		return "", apperrors.NewArtifactWriteFailedError(name, err).WithMetadata("mirror", "redis")
	}
	return path, nil
}

func (m *Mirrored) Read(ctx context.Context, runID, name string) ([]byte, error) {
	if runID != "" {
		if err := ValidateRunID(runID); err != nil {
			return nil, err
		}
	}
	data, err := m.rdb.Get(ctx, MirrorKey(runID, name)).Bytes()
	if err == nil {
		return data, nil
	}
	if !stderrors.Is(err, redis.Nil) {
		m.logger.Warn("artifact mirror read failed", map[string]interface{}{
			"runId": runID,
			"name":  name,
			"error": err.Error(),
		})
	}
	return m.primary.Read(ctx, runID, name)
}
