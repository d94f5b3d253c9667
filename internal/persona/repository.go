package persona

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Persona is a named configuration bundle for the bot process.
// Resolved once per session and never mutated afterwards.
type Persona struct {
	// Name uniquely identifies the persona.
	Name string `json:"name"`

	// Prompt is the system prompt handed to the bot.
	Prompt string `json:"prompt"`

	// VoiceID optionally selects the bot's voice. Empty means the
	// session-level default applies.
	VoiceID string `json:"voice_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the persona fields.
func (p *Persona) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if strings.TrimSpace(p.Prompt) == "" {
		return fmt.Errorf("%w: prompt is required", ErrInvalid)
	}
	return nil
}

// Repository defines the interface for persona persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// List retrieves all persona names, ordered by name.
	List(ctx context.Context) ([]string, error)

	// GetByName retrieves a persona by name.
	// Returns ErrNotFound if the persona does not exist.
	GetByName(ctx context.Context, name string) (*Persona, error)

	// Create inserts a new persona.
	// Returns ErrExists if a persona with the same name already exists.
	Create(ctx context.Context, p *Persona) error

	// Delete removes a persona by name.
	// Returns ErrNotFound if the persona does not exist.
	Delete(ctx context.Context, name string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection with the personas
// table migrated.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// List retrieves all persona names, ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT name FROM personas ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("querying personas: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning persona row: %w", err)
		}
		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating personas: %w", err)
	}
	return names, nil
}

// GetByName retrieves a persona by name.
func (r *SQLiteRepository) GetByName(ctx context.Context, name string) (*Persona, error) {
	query := `
		SELECT name, prompt, voice_id, created_at, updated_at
		FROM personas
		WHERE name = ?`

	var p Persona
	var createdAt, updatedAt string
	err := r.db.QueryRowContext(ctx, query, name).Scan(
		&p.Name, &p.Prompt, &p.VoiceID, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("querying persona by name: %w", err)
	}

	p.CreatedAt = parseTimestamp(createdAt)
	p.UpdatedAt = parseTimestamp(updatedAt)
	return &p, nil
}

// Create inserts a new persona.
func (r *SQLiteRepository) Create(ctx context.Context, p *Persona) error {
	if err := p.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO personas (name, prompt, voice_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		p.Name, p.Prompt, p.VoiceID,
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %s", ErrExists, p.Name)
		}
		return fmt.Errorf("inserting persona: %w", err)
	}

	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// Delete removes a persona by name.
func (r *SQLiteRepository) Delete(ctx context.Context, name string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM personas WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("deleting persona: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

// parseTimestamp parses a stored timestamp, accepting both RFC3339 (written
// by Create) and the SQLite datetime() format (written by the seed migration).
func parseTimestamp(value string) time.Time {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	t, _ := time.Parse("2006-01-02 15:04:05", value) //nolint:errcheck // Zero time acceptable for display fields
	return t
}
