// Package persona loads interviewer personas from a directory tree:
// one directory per persona id holding role.txt, personality.txt, rules.txt
// and an optional meta.yaml.
package persona

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/meikuraledutech/interview"
	"gopkg.in/yaml.v3"
)

//go:embed personas
var embedded embed.FS

const metaFile = "meta.yaml"

// Meta mirrors the optional meta.yaml of a persona directory.
type Meta struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Store is a PersonaStore over an fs.FS. Loaded personas are cached for the
// lifetime of the Store.
type Store struct {
	fsys  fs.FS
	mu    sync.Mutex
	cache map[string]*interview.Persona
}

// New creates a Store reading from fsys.
func New(fsys fs.FS) *Store {
	return &Store{fsys: fsys, cache: make(map[string]*interview.Persona)}
}

// NewDir creates a Store reading from a directory on disk.
func NewDir(dir string) *Store {
	return New(os.DirFS(dir))
}

// Default returns a Store over the built-in CASUAL, FORMAL and PRESSURE personas.
func Default() *Store {
	sub, err := fs.Sub(embedded, "personas")
	if err != nil {
		panic(err)
	}
	return New(sub)
}

// Get returns the persona with the given id (case-insensitive).
func (s *Store) Get(ctx context.Context, id string) (*interview.Persona, error) {
	id = strings.ToUpper(strings.TrimSpace(id))
	if id == "" || strings.HasPrefix(id, "_") || !fs.ValidPath(id) || strings.Contains(id, "/") {
		return nil, fmt.Errorf("%w: %q", interview.ErrPersonaNotFound, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.cache[id]; ok {
		cp := *p
		return &cp, nil
	}

	p, err := s.load(id)
	if err != nil {
		return nil, err
	}
	s.cache[id] = p
	cp := *p
	return &cp, nil
}

func (s *Store) load(id string) (*interview.Persona, error) {
	info, err := fs.Stat(s.fsys, id)
	if err != nil || !info.IsDir() {
		available, _ := s.list()
		return nil, fmt.Errorf("%w: %q (available: %s)", interview.ErrPersonaNotFound, id, strings.Join(available, ", "))
	}

	p := &interview.Persona{ID: id, Name: id}
	sections := []struct {
		file string
		dst  *string
	}{
		{"role.txt", &p.Role},
		{"personality.txt", &p.Personality},
		{"rules.txt", &p.Rules},
	}
	for _, sec := range sections {
		text, err := readOptional(s.fsys, path.Join(id, sec.file))
		if err != nil {
			return nil, fmt.Errorf("persona: read %s/%s: %w", id, sec.file, err)
		}
		*sec.dst = text
	}
	if p.Role == "" && p.Personality == "" && p.Rules == "" {
		return nil, fmt.Errorf("%w: %q has no persona text", interview.ErrPersonaNotFound, id)
	}

	raw, err := readOptional(s.fsys, path.Join(id, metaFile))
	if err != nil {
		return nil, fmt.Errorf("persona: read %s/%s: %w", id, metaFile, err)
	}
	if raw != "" {
		var meta Meta
		if err := yaml.Unmarshal([]byte(raw), &meta); err != nil {
			return nil, fmt.Errorf("persona: parse %s/%s: %w", id, metaFile, err)
		}
		if meta.Name != "" {
			p.Name = meta.Name
		}
		p.Description = meta.Description
	}
	return p, nil
}

// List returns the available persona ids, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	return s.list()
}

func (s *Store) list() ([]string, error) {
	entries, err := fs.ReadDir(s.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("persona: list: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), "_") && !strings.HasPrefix(e.Name(), ".") {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func readOptional(fsys fs.FS, name string) (string, error) {
	data, err := fs.ReadFile(fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Ensure Store implements interview.PersonaStore at compile time.
var _ interview.PersonaStore = (*Store)(nil)
