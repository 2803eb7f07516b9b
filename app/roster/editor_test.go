package roster

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/techbe/app/roster/mocks"
	"github.com/umputun/techbe/app/store"
)

func TestEditor_CreateMode(t *testing.T) {
	saver := okSaver()
	ed := NewEditor(New(nil, saver))

	mode, entry := ed.State()
	assert.Equal(t, ModeCreate, mode)
	assert.Empty(t, entry.ID)

	added, mode, err := ed.Submit(context.Background(), store.Technician{Nom: "Dupont", Prenom: "Jean", Email: "jd@example.com", Actif: true})
	require.NoError(t, err)
	assert.Equal(t, ModeCreate, mode, "applied as create")
	assert.Equal(t, 1, ed.Roster().Len())
	assert.Equal(t, added, ed.Roster().List()[0])

	mode, _ = ed.State()
	assert.Equal(t, ModeCreate, mode)
	assert.Len(t, saver.SaveCalls(), 1)
}

func TestEditor_EditMode(t *testing.T) {
	saver := okSaver()
	r := New([]store.Technician{
		{Nom: "Martin", Prenom: "Paul", Email: "pm@example.com"},
		{Nom: "Dupont", Prenom: "Jean", Email: "jd@example.com"},
	}, saver)
	ed := NewEditor(r)
	second := r.List()[1]

	selected, err := ed.Select(second.ID)
	require.NoError(t, err)
	assert.Equal(t, second, selected)
	mode, entry := ed.State()
	assert.Equal(t, ModeEdit, mode)
	assert.Equal(t, second, entry)

	updated, applied, err := ed.Submit(context.Background(), store.Technician{Nom: "Dupont", Prenom: "Jeanne", Email: "jd@example.com", Actif: true})
	require.NoError(t, err)
	assert.Equal(t, ModeEdit, applied)
	assert.Equal(t, second.ID, updated.ID)
	assert.Equal(t, 2, r.Len(), "length unchanged")
	assert.Equal(t, "Jeanne", r.List()[1].Prenom)

	mode, entry = ed.State()
	assert.Equal(t, ModeCreate, mode, "back to create after submit")
	assert.Empty(t, entry.ID)

	_, _, err = ed.Submit(context.Background(), store.Technician{Nom: "Leroy", Prenom: "Luc", Email: "ll@example.com"})
	require.NoError(t, err)
	assert.Equal(t, 3, r.Len(), "next submit appends")
}

func TestEditor_Retarget(t *testing.T) {
	r := New([]store.Technician{
		{Nom: "Martin", Prenom: "Paul", Email: "pm@example.com"},
		{Nom: "Dupont", Prenom: "Jean", Email: "jd@example.com"},
	}, okSaver())
	ed := NewEditor(r)
	entries := r.List()

	_, err := ed.Select(entries[0].ID)
	require.NoError(t, err)
	_, err = ed.Select(entries[1].ID)
	require.NoError(t, err)

	_, _, err = ed.Submit(context.Background(), store.Technician{Nom: "Durand", Prenom: "Jean", Email: "jd@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "Martin", r.List()[0].Nom)
	assert.Equal(t, "Durand", r.List()[1].Nom)
}

func TestEditor_SelectUnknown(t *testing.T) {
	r := New([]store.Technician{{Nom: "Martin", Prenom: "Paul", Email: "pm@example.com"}}, okSaver())
	ed := NewEditor(r)
	_, err := ed.Select(r.List()[0].ID)
	require.NoError(t, err)

	_, err = ed.Select("unknown")
	require.ErrorIs(t, err, ErrNotFound)
	mode, entry := ed.State()
	assert.Equal(t, ModeEdit, mode, "state kept")
	assert.Equal(t, "Martin", entry.Nom)
}

func TestEditor_SelectByDisplayKey(t *testing.T) {
	r := New([]store.Technician{
		{Nom: "Martin", Prenom: "Paul", Email: "pm@example.com"},
		{Nom: "dupont", Prenom: "Jean", Email: "jd@example.com"},
	}, okSaver())
	ed := NewEditor(r)

	entry, err := ed.SelectByDisplayKey("DUPONT", "Jean", "jd@example.com")
	require.NoError(t, err)
	assert.Equal(t, r.List()[1].ID, entry.ID)

	_, err = ed.SelectByDisplayKey("DUPONT", "Jeanne", "jd@example.com")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestEditor_InvalidSubmitKeepsState(t *testing.T) {
	saver := okSaver()
	r := New([]store.Technician{{Nom: "Martin", Prenom: "Paul", Email: "pm@example.com"}}, saver)
	ed := NewEditor(r)
	id := r.List()[0].ID
	_, err := ed.Select(id)
	require.NoError(t, err)

	_, _, err = ed.Submit(context.Background(), store.Technician{Nom: "Martin", Prenom: "", Email: "pm@example.com"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	mode, entry := ed.State()
	assert.Equal(t, ModeEdit, mode)
	assert.Equal(t, id, entry.ID)
	assert.Equal(t, "Paul", r.List()[0].Prenom)
	assert.Empty(t, saver.SaveCalls())
}

func TestEditor_SaveFailureKeepsState(t *testing.T) {
	saver := &mocks.SaverMock{SaveFunc: func(context.Context, []store.Technician) error { return errors.New("read-only fs") }}
	r := New([]store.Technician{{Nom: "Martin", Prenom: "Paul", Email: "pm@example.com"}}, saver)
	ed := NewEditor(r)
	_, err := ed.Select(r.List()[0].ID)
	require.NoError(t, err)

	_, _, err = ed.Submit(context.Background(), store.Technician{Nom: "Martin", Prenom: "Pierre", Email: "pm@example.com"})
	require.Error(t, err)
	mode, _ := ed.State()
	assert.Equal(t, ModeEdit, mode)
	assert.Equal(t, "Paul", r.List()[0].Prenom)
}

func TestEditor_Cancel(t *testing.T) {
	r := New([]store.Technician{{Nom: "Martin", Prenom: "Paul", Email: "pm@example.com"}}, okSaver())
	ed := NewEditor(r)
	_, err := ed.Select(r.List()[0].ID)
	require.NoError(t, err)

	ed.Cancel()
	mode, entry := ed.State()
	assert.Equal(t, ModeCreate, mode)
	assert.Empty(t, entry.ID)

	_, _, err = ed.Submit(context.Background(), store.Technician{Nom: "Martin", Prenom: "Paul", Email: "pm@example.com"})
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len(), "duplicate appended after cancel")
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "create", ModeCreate.String())
	assert.Equal(t, "edit", ModeEdit.String())
	assert.Equal(t, "mode(5)", Mode(5).String())
}
