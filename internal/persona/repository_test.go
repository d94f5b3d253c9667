package persona

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// newTestDB creates an in-memory SQLite database with the personas schema.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening in-memory database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE personas (
			name       TEXT PRIMARY KEY,
			prompt     TEXT NOT NULL,
			voice_id   TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)
	`)
	if err != nil {
		t.Fatalf("creating personas table: %v", err)
	}

	return db
}

func TestSQLiteRepository_CreateAndGet(t *testing.T) {
	repo := NewSQLiteRepository(newTestDB(t))
	ctx := context.Background()

	p := &Persona{
		Name:    "interviewer",
		Prompt:  "ask good questions",
		VoiceID: "voice-123",
	}
	if err := repo.Create(ctx, p); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.GetByName(ctx, "interviewer")
	if err != nil {
		t.Fatalf("GetByName() error = %v", err)
	}
	if got.Prompt != "ask good questions" {
		t.Errorf("Prompt = %q, want %q", got.Prompt, "ask good questions")
	}
	if got.VoiceID != "voice-123" {
		t.Errorf("VoiceID = %q, want %q", got.VoiceID, "voice-123")
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt is zero, want parsed timestamp")
	}
}

func TestSQLiteRepository_GetMissing(t *testing.T) {
	repo := NewSQLiteRepository(newTestDB(t))

	_, err := repo.GetByName(context.Background(), "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByName(ghost) error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteRepository_CreateDuplicate(t *testing.T) {
	repo := NewSQLiteRepository(newTestDB(t))
	ctx := context.Background()

	p := &Persona{Name: "alpha", Prompt: "first"}
	if err := repo.Create(ctx, p); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	err := repo.Create(ctx, &Persona{Name: "alpha", Prompt: "second"})
	if !errors.Is(err, ErrExists) {
		t.Errorf("duplicate Create() error = %v, want ErrExists", err)
	}
}

func TestSQLiteRepository_CreateInvalid(t *testing.T) {
	repo := NewSQLiteRepository(newTestDB(t))

	err := repo.Create(context.Background(), &Persona{Name: "no-prompt"})
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("Create() error = %v, want ErrInvalid", err)
	}
}

func TestSQLiteRepository_ListOrdered(t *testing.T) {
	repo := NewSQLiteRepository(newTestDB(t))
	ctx := context.Background()

	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := repo.Create(ctx, &Persona{Name: name, Prompt: "p"}); err != nil {
			t.Fatalf("Create(%s) error = %v", name, err)
		}
	}

	names, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	want := []string{"alpha", "mid", "zeta"}
	if len(names) != len(want) {
		t.Fatalf("List() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestSQLiteRepository_Delete(t *testing.T) {
	repo := NewSQLiteRepository(newTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, &Persona{Name: "alpha", Prompt: "p"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.Delete(ctx, "alpha"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if err := repo.Delete(ctx, "alpha"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}
