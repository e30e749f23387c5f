package migrate

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew_RejectsEmptyDSN(t *testing.T) {
	if _, err := New("", zerolog.Nop()); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := fs.ReadDir(migrations, migrationsDir)
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}
	if len(entries) == 0 {
		t.Fatalf("expected embedded migrations")
	}

	data, err := fs.ReadFile(migrations, migrationsDir+"/"+entries[0].Name())
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	body := string(data)
	for _, marker := range []string{"-- +goose Up", "-- +goose Down", "phenotypes"} {
		if !strings.Contains(body, marker) {
			t.Fatalf("migration %s missing %q", entries[0].Name(), marker)
		}
	}
}
