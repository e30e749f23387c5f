package state

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestFileStore_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "state.json")
	store := NewFileStore(path, zerolog.Nop())

	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	state := State{
		Environments: map[string]Snapshot{
			"production": {
				EvaluatedAt: now,
				Components: map[string]Component{
					"overall":   {Value: "degraded", Status: "degraded"},
					"embedding": {Value: "down", Status: "degraded"},
				},
			},
			"preview": {
				EvaluatedAt: now.Add(time.Minute),
				Components: map[string]Component{
					"overall": {Value: "healthy", Status: "healthy"},
				},
			},
		},
	}

	if err := store.Save(context.Background(), state); err != nil {
		t.Fatalf("save state: %v", err)
	}

	loaded, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load state: %v", err)
	}

	if len(loaded.Environments) != len(state.Environments) {
		t.Fatalf("expected %d environments, got %d", len(state.Environments), len(loaded.Environments))
	}
	prod := loaded.Environments["production"]
	if prod.EvaluatedAt.IsZero() {
		t.Fatalf("expected evaluated time to be set")
	}
	if prod.Components["embedding"].Value != "down" {
		t.Fatalf("unexpected embedding value: %s", prod.Components["embedding"].Value)
	}
	if prod.Components["overall"].Status != "degraded" {
		t.Fatalf("unexpected overall status: %s", prod.Components["overall"].Status)
	}
	if loaded.Environments["preview"].Components["overall"].Status != "healthy" {
		t.Fatalf("unexpected preview status")
	}
}

func TestFileStore_MissingFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "missing.json")
	store := NewFileStore(path, zerolog.Nop())

	state, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load state: %v", err)
	}

	if len(state.Environments) != 0 {
		t.Fatalf("expected empty state, got %v", state.Environments)
	}
}

func TestFileStore_CorruptFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "state.json")
	store := NewFileStore(path, zerolog.Nop())

	if err := os.WriteFile(path, []byte("{not-json"), 0o600); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	state, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load state: %v", err)
	}

	if len(state.Environments) != 0 {
		t.Fatalf("expected empty state, got %v", state.Environments)
	}
}

func TestFileStore_CreatesNestedDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "state.json")
	store := NewFileStore(path, zerolog.Nop())

	if err := store.Save(context.Background(), State{}); err != nil {
		t.Fatalf("save state: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected state file: %v", err)
	}
}

func TestFileStore_CanceledContext(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "state.json"), zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := store.Load(ctx); err == nil {
		t.Fatalf("expected load to honor canceled context")
	}
	if err := store.Save(ctx, State{}); err == nil {
		t.Fatalf("expected save to honor canceled context")
	}
}

func TestFileStore_DropsStaleEnvironments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewFileStore(path, zerolog.Nop(), WithRetention(24*time.Hour))
	store.now = func() time.Time { return now }

	overall := map[string]Component{"overall": {Value: "healthy", Status: "healthy"}}
	err := store.Save(context.Background(), State{Environments: map[string]Snapshot{
		"production":    {EvaluatedAt: now.Add(-time.Minute), Components: overall},
		"preview-pr-41": {EvaluatedAt: now.Add(-72 * time.Hour), Components: overall},
		"never-checked": {EvaluatedAt: now},
	}})
	if err != nil {
		t.Fatalf("save state: %v", err)
	}

	loaded, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	if len(loaded.Environments) != 1 {
		t.Fatalf("expected only production to survive, got %v", loaded.Environments)
	}
	if _, ok := loaded.Environments["production"]; !ok {
		t.Fatalf("expected production snapshot, got %v", loaded.Environments)
	}
}

func TestFileStore_ReadsUnversionedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	legacy := `{"environments":{"production":{"components":{"overall":{"value":"degraded","status":"degraded"}}}},"stacks":{}}`
	if err := os.WriteFile(path, []byte(legacy), 0o600); err != nil {
		t.Fatalf("write legacy file: %v", err)
	}

	loaded, err := NewFileStore(path, zerolog.Nop()).Load(context.Background())
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	if loaded.Environments["production"].Components["overall"].Value != "degraded" {
		t.Fatalf("expected unversioned snapshot to load, got %v", loaded.Environments)
	}
}

func TestFileStore_NewerVersionStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	future := `{"version":99,"environments":{"production":{"components":{"overall":{"value":"healthy","status":"healthy"}}}}}`
	if err := os.WriteFile(path, []byte(future), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	loaded, err := NewFileStore(path, zerolog.Nop()).Load(context.Background())
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	if len(loaded.Environments) != 0 {
		t.Fatalf("expected empty state for unknown version, got %v", loaded.Environments)
	}
}

func TestFileStore_WritesVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := NewFileStore(path, zerolog.Nop()).Save(context.Background(), State{}); err != nil {
		t.Fatalf("save state: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read state: %v", err)
	}
	if !strings.Contains(string(data), `"version":1`) {
		t.Fatalf("expected version in %s", data)
	}
}

func TestMemoryStore_IsolatesCopies(t *testing.T) {
	store := NewMemoryStore()
	state := State{Environments: map[string]Snapshot{
		"production": {Components: map[string]Component{"overall": {Value: "healthy", Status: "healthy"}}},
	}}
	if err := store.Save(context.Background(), state); err != nil {
		t.Fatalf("save state: %v", err)
	}

	state.Environments["production"].Components["overall"] = Component{Value: "unhealthy"}

	loaded, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	if loaded.Environments["production"].Components["overall"].Value != "healthy" {
		t.Fatalf("expected stored copy to be unaffected by caller mutation")
	}
}
