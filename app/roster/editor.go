package roster

import (
	"context"
	"fmt"
	"sync"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/techbe/app/store"
)

// Mode of the form
type Mode int

// form modes
const (
	ModeCreate Mode = iota // submit appends a new technician
	ModeEdit               // submit replaces the selected technician
)

func (m Mode) String() string {
	switch m {
	case ModeCreate:
		return "create"
	case ModeEdit:
		return "edit"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Editor tracks the form state on top of Roster. It starts in create mode, Select switches it to
// edit mode for an entry and a successful Submit returns it back to create mode.
type Editor struct {
	roster *Roster

	mu       sync.Mutex
	mode     Mode
	targetID string
}

// NewEditor makes editor in create mode
func NewEditor(r *Roster) *Editor {
	return &Editor{roster: r, mode: ModeCreate}
}

// Roster returns underlying roster
func (e *Editor) Roster() *Roster {
	return e.roster
}

// Select switches to edit mode for entry with given id. Selecting while already editing re-targets
// the edit. Unknown id returns ErrNotFound and keeps the state.
func (e *Editor) Select(id string) (Entry, error) {
	entry, ok := e.roster.Get(id)
	if !ok {
		return Entry{}, fmt.Errorf("can't select %s: %w", id, ErrNotFound)
	}
	e.mu.Lock()
	e.mode, e.targetID = ModeEdit, id
	e.mu.Unlock()
	log.Printf("[DEBUG] editing %s %s (%s)", entry.DisplayName(), entry.Prenom, id)
	return entry, nil
}

// SelectByDisplayKey selects entry by values shown in the table, i.e. upper-cased last name,
// first name and email.
func (e *Editor) SelectByDisplayKey(lastNameUpper, firstName, email string) (Entry, error) {
	idx, ok := e.roster.FindByDisplayKey(lastNameUpper, firstName, email)
	if !ok {
		return Entry{}, fmt.Errorf("can't select %s %s <%s>: %w", lastNameUpper, firstName, email, ErrNotFound)
	}
	entry, ok := e.roster.At(idx)
	if !ok {
		return Entry{}, fmt.Errorf("can't select index %d: %w", idx, ErrNotFound)
	}
	return e.Select(entry.ID)
}

// Submit adds technician in create mode or replaces the selected one in edit mode and returns
// the mode it was applied in. On success the editor goes back to create mode; on any error the
// state is kept so the user can fix the form.
func (e *Editor) Submit(ctx context.Context, t store.Technician) (Entry, Mode, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	mode, target := e.mode, ""
	if mode == ModeEdit {
		target = e.targetID
	}
	entry, err := e.roster.AddOrUpdate(ctx, t, target)
	if err != nil {
		return Entry{}, mode, err
	}
	e.mode, e.targetID = ModeCreate, ""
	return entry, mode, nil
}

// Cancel drops the selection and returns to create mode
func (e *Editor) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mode, e.targetID = ModeCreate, ""
}

// State returns current mode and the entry being edited. Entry is empty in create mode.
func (e *Editor) State() (Mode, Entry) {
	e.mu.Lock()
	mode, id := e.mode, e.targetID
	e.mu.Unlock()
	if mode != ModeEdit {
		return ModeCreate, Entry{}
	}
	entry, ok := e.roster.Get(id)
	if !ok {
		return ModeCreate, Entry{}
	}
	return ModeEdit, entry
}
