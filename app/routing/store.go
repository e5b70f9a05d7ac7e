package routing

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/lysyi3m/news-comb/app/apperr"
)

// PaneRepository persists pane definitions.
type PaneRepository interface {
	ListPanes(ctx context.Context) ([]Pane, error)
	UpsertPane(ctx context.Context, pane Pane) error
}

// Snapshot is an immutable view of the pane set. Callers must not modify the
// slices it hands out.
type Snapshot struct {
	panes []Pane
	byID  map[string]int
}

func newSnapshot(panes []Pane) *Snapshot {
	sorted := make([]Pane, len(panes))
	for i, p := range panes {
		sorted[i] = p.clone()
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Priority() != sorted[j].Priority() {
			return sorted[i].Priority() < sorted[j].Priority()
		}
		return sorted[i].ID < sorted[j].ID
	})

	byID := make(map[string]int, len(sorted))
	for i, p := range sorted {
		byID[p.ID] = i
	}
	return &Snapshot{panes: sorted, byID: byID}
}

// Panes returns panes ordered by priority, then id.
func (s *Snapshot) Panes() []Pane {
	return s.panes
}

func (s *Snapshot) Get(id string) (Pane, bool) {
	i, ok := s.byID[id]
	if !ok {
		return Pane{}, false
	}
	return s.panes[i], true
}

func (s *Snapshot) Len() int {
	return len(s.panes)
}

// Route routes the item against this snapshot.
func (s *Snapshot) Route(item Item) (string, bool) {
	return Route(item, s.panes)
}

// Store holds the current pane rule set. Reads are lock-free; writers replace
// the whole snapshot so a routing decision never sees a partial update.
type Store struct {
	repo    PaneRepository
	current atomic.Pointer[Snapshot]
	writeMu sync.Mutex
}

func NewStore(repo PaneRepository) *Store {
	s := &Store{repo: repo}
	s.current.Store(newSnapshot(nil))
	return s
}

// Load replaces the in-memory rule set with the persisted panes.
func (s *Store) Load(ctx context.Context) error {
	panes, err := s.repo.ListPanes(ctx)
	if err != nil {
		return fmt.Errorf("failed to load panes: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.current.Store(newSnapshot(panes))

	slog.Debug("Pane rules loaded", "count", len(panes))
	return nil
}

func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Update validates and persists new rules for an existing pane.
func (s *Store) Update(ctx context.Context, id string, title string, rules Rules) (Pane, error) {
	if err := rules.Validate(); err != nil {
		return Pane{}, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	snap := s.current.Load()
	existing, ok := snap.Get(id)
	if !ok {
		return Pane{}, apperr.NotFound("pane", id)
	}

	updated := Pane{ID: id, Title: existing.Title, Rules: rules}
	if title != "" {
		updated.Title = title
	}

	if err := s.repo.UpsertPane(ctx, updated); err != nil {
		return Pane{}, fmt.Errorf("failed to save pane %s: %w", id, err)
	}

	panes := make([]Pane, 0, snap.Len())
	for _, p := range snap.Panes() {
		if p.ID == id {
			p = updated
		}
		panes = append(panes, p)
	}
	s.current.Store(newSnapshot(panes))

	return updated.clone(), nil
}

// Seed stores panes that are not persisted yet; existing panes keep their rules.
func (s *Store) Seed(ctx context.Context, panes []Pane) (int, error) {
	snap := s.Snapshot()

	added := 0
	for _, p := range panes {
		if _, ok := snap.Get(p.ID); ok {
			continue
		}
		if err := p.Rules.Validate(); err != nil {
			return added, fmt.Errorf("invalid pane %s: %w", p.ID, err)
		}
		if err := s.repo.UpsertPane(ctx, p); err != nil {
			return added, fmt.Errorf("failed to seed pane %s: %w", p.ID, err)
		}
		added++
	}

	if added == 0 {
		return 0, nil
	}
	return added, s.Load(ctx)
}
