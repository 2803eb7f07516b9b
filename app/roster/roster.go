// Package roster keeps technicians in memory, in the order they were added, and writes the
// full list through Saver after every change. Display order is a separate sorted projection.
package roster

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	log "github.com/go-pkgz/lgr"
	"github.com/google/uuid"

	"github.com/umputun/techbe/app/store"
)

//go:generate moq -out mocks/saver.go -pkg mocks -skip-ensure -fmt goimports . Saver

// ErrNotFound returned when entry with given id or key is not in the roster
var ErrNotFound = errors.New("technician not found")

// Saver persists the full list of technicians
type Saver interface {
	Save(ctx context.Context, techs []store.Technician) error
}

// Entry is a technician with in-memory id. The id is assigned on load or creation and never
// written to the file.
type Entry struct {
	ID string
	store.Technician
}

// DisplayName returns last name as shown in the table
func (e Entry) DisplayName() string {
	return strings.ToUpper(e.Nom)
}

// ActiveGlyph returns check mark for active technician and cross otherwise
func (e Entry) ActiveGlyph() string {
	if e.Actif {
		return "✓"
	}
	return "✗"
}

// Roster is an ordered, thread safe list of technicians
type Roster struct {
	mu      sync.RWMutex
	entries []Entry
	saver   Saver
}

// New makes roster from loaded technicians, ids are assigned in the same order
func New(techs []store.Technician, saver Saver) *Roster {
	entries := make([]Entry, 0, len(techs))
	for _, t := range techs {
		entries = append(entries, Entry{ID: uuid.NewString(), Technician: t})
	}
	return &Roster{entries: entries, saver: saver}
}

// List returns copy of all entries in insertion order
func (r *Roster) List() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]Entry, len(r.entries))
	copy(res, r.entries)
	return res
}

// Len returns number of entries
func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Get returns entry by id
func (r *Roster) Get(id string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if idx := r.indexOf(id); idx >= 0 {
		return r.entries[idx], true
	}
	return Entry{}, false
}

// AddOrUpdate appends technician if selectedID is empty, otherwise replaces the entry with this id
// keeping its position. All fields are trimmed and validated first, invalid record returns
// *ValidationError and nothing is written. The full list is saved before the change becomes
// visible, failed save leaves roster unchanged.
func (r *Roster) AddOrUpdate(ctx context.Context, t store.Technician, selectedID string) (Entry, error) {
	t = Normalize(t)
	if err := Validate(t); err != nil {
		return Entry{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	updated := make([]Entry, len(r.entries), len(r.entries)+1)
	copy(updated, r.entries)

	var entry Entry
	if selectedID != "" {
		idx := r.indexOf(selectedID)
		if idx < 0 {
			return Entry{}, fmt.Errorf("can't update %s: %w", selectedID, ErrNotFound)
		}
		entry = Entry{ID: selectedID, Technician: t}
		updated[idx] = entry
	} else {
		entry = Entry{ID: uuid.NewString(), Technician: t}
		updated = append(updated, entry)
	}

	if r.saver != nil {
		if err := r.saver.Save(ctx, technicians(updated)); err != nil {
			return Entry{}, fmt.Errorf("roster not changed: %w", err)
		}
	}
	r.entries = updated

	action := "added"
	if selectedID != "" {
		action = "updated"
	}
	log.Printf("[INFO] technician %s %s %s, total %d", action, entry.DisplayName(), entry.Prenom, len(r.entries))
	return entry, nil
}

// FindByDisplayKey returns index of the first entry matching upper-cased last name, first name
// and email. Records sharing the same key can't be told apart, the first one wins.
func (r *Roster) FindByDisplayKey(lastNameUpper, firstName, email string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i, e := range r.entries {
		if strings.ToUpper(e.Nom) == lastNameUpper && e.Prenom == firstName && e.Email == email {
			return i, true
		}
	}
	return -1, false
}

// At returns entry at position in insertion order
func (r *Roster) At(idx int) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if idx < 0 || idx >= len(r.entries) {
		return Entry{}, false
	}
	return r.entries[idx], true
}

// Technicians returns stored records in insertion order, without ids
func (r *Roster) Technicians() []store.Technician {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return technicians(r.entries)
}

// Sorted returns new slice ordered by upper-cased last name. Sort is stable, entries with the same
// name keep their relative order. Input is not modified.
func Sorted(entries []Entry) []Entry {
	res := make([]Entry, len(entries))
	copy(res, entries)
	sort.SliceStable(res, func(i, j int) bool {
		return strings.ToUpper(res[i].Nom) < strings.ToUpper(res[j].Nom)
	})
	return res
}

// Normalize trims all string fields
func Normalize(t store.Technician) store.Technician {
	t.Nom = strings.TrimSpace(t.Nom)
	t.Prenom = strings.TrimSpace(t.Prenom)
	t.Email = strings.TrimSpace(t.Email)
	t.Telephone = strings.TrimSpace(t.Telephone)
	return t
}

// indexOf must be called under lock
func (r *Roster) indexOf(id string) int {
	for i, e := range r.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func technicians(entries []Entry) []store.Technician {
	res := make([]store.Technician, 0, len(entries))
	for _, e := range entries {
		res = append(res, e.Technician)
	}
	return res
}
