package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// fileVersion is bumped whenever the on-disk layout changes incompatibly.
const fileVersion = 1

// fileDocument is the on-disk form of State. Files written before
// versioning carry no version field and are read as version 1.
type fileDocument struct {
	Version      int                 `json:"version"`
	Environments map[string]Snapshot `json:"environments"`
}

// FileStore keeps per-environment snapshots in one JSON file so alerting
// survives restarts.
type FileStore struct {
	path      string
	logger    zerolog.Logger
	retention time.Duration
	now       func() time.Time
}

// FileStoreOption customizes a FileStore.
type FileStoreOption func(*FileStore)

// WithRetention drops environments not evaluated within d, such as preview
// deployments that no longer exist. Zero keeps everything.
func WithRetention(d time.Duration) FileStoreOption {
	return func(s *FileStore) {
		s.retention = d
	}
}

// NewFileStore returns a JSON-backed state store at path.
func NewFileStore(path string, logger zerolog.Logger, opts ...FileStoreOption) *FileStore {
	s := &FileStore{
		path:   path,
		logger: logger.With().Str("state_path", path).Logger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the snapshots. A missing, corrupt or newer-versioned file
// yields an empty state so alerting starts over instead of stopping.
func (s *FileStore) Load(ctx context.Context) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, err
	}

	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.logger.Info().Msg("no saved state, starting fresh")
		return emptyState(), nil
	case err != nil:
		return State{}, fmt.Errorf("read state: %w", err)
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Warn().Err(err).Msg("state file corrupt, starting fresh")
		return emptyState(), nil
	}
	if doc.Version > fileVersion {
		s.logger.Warn().Int("version", doc.Version).Msg("state file written by a newer release, starting fresh")
		return emptyState(), nil
	}

	return State{Environments: s.prune(doc.Environments)}, nil
}

// Save replaces the file atomically with state, minus stale environments.
func (s *FileStore) Save(ctx context.Context, state State) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(fileDocument{
		Version:      fileVersion,
		Environments: s.prune(state.Environments),
	})
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := writeAtomic(s.path, data); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

// prune returns the environments still within retention. Snapshots with
// no components carry no history and are dropped as well.
func (s *FileStore) prune(environments map[string]Snapshot) map[string]Snapshot {
	kept := make(map[string]Snapshot, len(environments))
	cutoff := s.now().Add(-s.retention)
	for name, snapshot := range environments {
		if len(snapshot.Components) == 0 {
			continue
		}
		if s.retention > 0 && snapshot.EvaluatedAt.Before(cutoff) {
			s.logger.Debug().Str("environment", name).Time("evaluated_at", snapshot.EvaluatedAt).Msg("dropping stale environment")
			continue
		}
		kept[name] = snapshot
	}
	return kept
}

func emptyState() State {
	return State{Environments: map[string]Snapshot{}}
}

// writeAtomic writes data next to path and renames it into place, so a
// crash never leaves a half-written file behind.
func writeAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".phenotype-health-*.json")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return err
	}

	if d, dirErr := os.Open(dir); dirErr == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
