// Package store deals with the roster file. The whole list of technicians is kept in a single
// JSON document under "tech_be" key and rewritten in full on every save.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/go-pkgz/lgr"
)

// DocumentKey is the only top-level key of the roster file
const DocumentKey = "tech_be"

// ErrMalformed returned by Load when the roster file can't be parsed
var ErrMalformed = errors.New("malformed roster file")

// Technician is a single roster record as stored in the file
type Technician struct {
	Nom       string `json:"nom" yaml:"nom" validate:"required" jsonschema:"required,title=Last name"`
	Prenom    string `json:"prenom" yaml:"prenom" validate:"required" jsonschema:"required,title=First name"`
	Email     string `json:"email" yaml:"email" validate:"required" jsonschema:"required,title=Email"`
	Telephone string `json:"telephone" yaml:"telephone" jsonschema:"title=Phone"`
	Actif     bool   `json:"actif" yaml:"actif" jsonschema:"required,title=Active"`
}

// Document is the top-level structure of the roster file
type Document struct {
	Technicians []Technician `json:"tech_be" yaml:"tech_be" jsonschema:"required"`
}

// Repeater repeats failed function
type Repeater interface {
	Do(ctx context.Context, fun func() error, errors ...error) (err error)
}

// File keeps the roster in a json file
type File struct {
	path string
	rptr Repeater
}

// NewFile makes File for given path. Repeater is optional, nil means a single write attempt.
func NewFile(path string, rptr Repeater) *File {
	log.Printf("[DEBUG] roster file %s", path)
	return &File{path: path, rptr: rptr}
}

// Path returns location of the roster file
func (f *File) Path() string {
	return f.path
}

func (f *File) String() string {
	return f.path
}

// Load reads all technicians from the file. Missing file is not an error and gives an empty list,
// same for the file without "tech_be" key.
func (f *File) Load() ([]Technician, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Printf("[INFO] roster file %s not found, starting with empty roster", f.path)
			return []Technician{}, nil
		}
		return nil, fmt.Errorf("can't read roster file %s: %w", f.path, err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrMalformed, f.path, err)
	}
	if doc.Technicians == nil {
		return []Technician{}, nil
	}
	return doc.Technicians, nil
}

// Save writes all technicians to the file, replacing it in full. The data is written to a temp file
// first and renamed over the target, so a crash in the middle leaves the previous version intact.
func (f *File) Save(ctx context.Context, techs []Technician) error {
	data, err := Marshal(techs)
	if err != nil {
		return err
	}

	write := func() error { return f.writeAtomic(data) }
	if f.rptr == nil {
		return write()
	}
	if err := f.rptr.Do(ctx, write); err != nil {
		return fmt.Errorf("failed to save roster to %s: %w", f.path, err)
	}
	return nil
}

// Marshal encodes technicians as the roster document, indented by two spaces with non-ASCII
// and html characters kept as is.
func Marshal(techs []Technician) ([]byte, error) {
	if techs == nil {
		techs = []Technician{} // empty roster written as [], not null
	}
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Document{Technicians: techs}); err != nil {
		return nil, fmt.Errorf("failed to encode roster: %w", err)
	}
	return buf.Bytes(), nil
}

func (f *File) writeAtomic(data []byte) error {
	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("can't create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if _, statErr := os.Stat(tmpName); statErr == nil {
			if rmErr := os.Remove(tmpName); rmErr != nil {
				log.Printf("[WARN] can't remove temp file %s, %v", tmpName, rmErr)
			}
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("can't write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("can't sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("can't close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil { //nolint:gosec // roster file is not sensitive
		return fmt.Errorf("can't set mode on %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("can't replace %s: %w", f.path, err)
	}
	log.Printf("[DEBUG] roster saved to %s, %d bytes", f.path, len(data))
	return nil
}
