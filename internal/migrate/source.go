package migrate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"

	"botsupport/migrations"
)

// DefaultScript is the schema migration the bot ships with.
const DefaultScript = "001_create_tables"

// Script is one versioned SQL migration.
type Script struct {
	Name    string `json:"name"`
	Version int64  `json:"version"`
	File    string `json:"file"`
	Body    string `json:"-"`
}

// Source resolves migration scripts from a read-only file tree.
type Source struct {
	fs       fs.FS
	location string
}

func NewSource(fsys fs.FS, location string) *Source {
	return &Source{fs: fsys, location: location}
}

// EmbeddedSource serves the scripts compiled into the binary.
func EmbeddedSource() *Source {
	return NewSource(migrations.FS(), "migrations")
}

// SourceFor returns a directory-backed source, or the embedded one when dir
// is empty.
func SourceFor(dir string) *Source {
	if strings.TrimSpace(dir) == "" {
		return EmbeddedSource()
	}
	return NewSource(os.DirFS(dir), dir)
}

// List returns every script ordered by version.
func (s *Source) List() ([]Script, error) {
	files, err := fs.Glob(s.fs, "*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	out := make([]Script, 0, len(files))
	for _, file := range files {
		version, name, err := parseVersion(file)
		if err != nil {
			return nil, err
		}
		out = append(out, Script{Name: name, Version: version, File: file})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Version != out[j].Version {
			return out[i].Version < out[j].Version
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// LoadScript reads the script identified by name, with or without the .sql
// suffix.
func (s *Source) LoadScript(name string) (Script, error) {
	id := strings.TrimSuffix(strings.TrimSpace(name), ".sql")
	file := id + ".sql"
	if id == "" || strings.Contains(id, "/") || !fs.ValidPath(file) {
		return Script{}, notFound(name)
	}
	body, err := fs.ReadFile(s.fs, file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Script{}, notFound(name)
		}
		return Script{}, fmt.Errorf("read migration %s: %w", file, err)
	}
	version, _, err := parseVersion(file)
	if err != nil {
		return Script{}, err
	}
	return Script{Name: id, Version: version, File: file, Body: string(body)}, nil
}

// Path is the script's location as shown to operators.
func (s *Source) Path(script Script) string {
	return path.Join(s.location, script.File)
}

// ManualInstructions explains how to apply a script by hand.
func (s *Source) ManualInstructions(script Script) string {
	return fmt.Sprintf(`To apply the migration manually:
  1. Open the Supabase Dashboard and go to SQL Editor.
  2. Copy the contents of %s.
  3. Paste the SQL into a new query and run it.
The script only uses CREATE ... IF NOT EXISTS, so running it again is safe.`, s.Path(script))
}

func notFound(name string) *Error {
	return &Error{Kind: KindScriptNotFound, Message: fmt.Sprintf("migration %q not found", name)}
}

func parseVersion(file string) (int64, string, error) {
	base := path.Base(file)
	parts := strings.SplitN(base, "_", 2)
	if len(parts) < 2 {
		return 0, "", fmt.Errorf("invalid migration filename: %s", base)
	}
	version, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid migration version in %s: %w", base, err)
	}
	return version, strings.TrimSuffix(base, ".sql"), nil
}
