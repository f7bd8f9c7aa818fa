package store

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LocationResolver resolves site/location names against the locations
// table. Results are cached; a resolver is meant to live for one run, where
// the lookup is read-only.
type LocationResolver struct {
	db DBTX

	mu    sync.Mutex
	cache map[string]uuid.UUID
	miss  map[string]bool
}

// NewLocationResolver creates a resolver over the given connection.
func (s *Store) NewLocationResolver() *LocationResolver {
	return &LocationResolver{
		db:    s.pool,
		cache: make(map[string]uuid.UUID),
		miss:  make(map[string]bool),
	}
}

// Resolve returns the id of the location with the given name, matching
// case-insensitively on name and known aliases.
func (r *LocationResolver) Resolve(ctx context.Context, name string) (uuid.UUID, bool, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return uuid.Nil, false, nil
	}

	r.mu.Lock()
	if id, ok := r.cache[key]; ok {
		r.mu.Unlock()
		return id, true, nil
	}
	if r.miss[key] {
		r.mu.Unlock()
		return uuid.Nil, false, nil
	}
	r.mu.Unlock()

	var id uuid.UUID
	err := r.db.QueryRow(ctx,
		`SELECT id FROM locations WHERE lower(name) = $1 OR $1 = ANY(aliases) LIMIT 1`,
		key,
	).Scan(&id)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		r.mu.Lock()
		r.miss[key] = true
		r.mu.Unlock()
		return uuid.Nil, false, nil
	case err != nil:
		return uuid.Nil, false, err
	}

	r.mu.Lock()
	r.cache[key] = id
	r.mu.Unlock()
	return id, true, nil
}
