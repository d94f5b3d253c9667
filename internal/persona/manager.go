package persona

import (
	"context"
	"fmt"
	"math/rand"
)

// Manager resolves personas for a session.
//
// It wraps a Repository with the selection rule the session driver needs:
// an explicitly requested name must exist, an empty request picks uniformly
// at random from the available set.
type Manager struct {
	repo Repository
}

// NewManager creates a persona manager backed by the given repository.
func NewManager(repo Repository) *Manager {
	return &Manager{repo: repo}
}

// List returns all available persona names, ordered by name.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.repo.List(ctx)
}

// Get retrieves a persona by name. Returns ErrNotFound if absent.
func (m *Manager) Get(ctx context.Context, name string) (*Persona, error) {
	return m.repo.GetByName(ctx, name)
}

// Create stores a new persona. Returns ErrInvalid on bad fields and
// ErrExists on a duplicate name.
func (m *Manager) Create(ctx context.Context, p *Persona) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return m.repo.Create(ctx, p)
}

// Delete removes a persona by name. Returns ErrNotFound if absent.
func (m *Manager) Delete(ctx context.Context, name string) error {
	return m.repo.Delete(ctx, name)
}

// Select resolves the persona for a session.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - name: Requested persona name; empty selects one at random
//
// Returns:
//   - *Persona: The resolved persona
//   - error: ErrNotFound if a requested name is absent, ErrNoneAvailable if
//     random selection finds an empty store
func (m *Manager) Select(ctx context.Context, name string) (*Persona, error) {
	if name != "" {
		return m.repo.GetByName(ctx, name)
	}

	names, err := m.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing personas: %w", err)
	}
	if len(names) == 0 {
		return nil, ErrNoneAvailable
	}

	return m.repo.GetByName(ctx, names[rand.Intn(len(names))])
}
