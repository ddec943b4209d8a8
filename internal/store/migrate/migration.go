// Package migrate applies the embedded SQL schema migrations and tracks
// which versions have run.
package migrate

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"
)

//go:embed sql/*.sql
var embedded embed.FS

// Migration represents a single database migration
type Migration struct {
	Version   int64     // Sequence number taken from the file name
	Name      string    // Human-readable name
	Up        string    // SQL to apply
	Down      string    // SQL to rollback
	Applied   bool      // Whether this migration has been applied
	AppliedAt time.Time // When the migration was applied
}

// Embedded returns the migrations compiled into the binary
func Embedded() ([]*Migration, error) {
	sub, err := fs.Sub(embedded, "sql")
	if err != nil {
		return nil, err
	}
	return Load(sub)
}

// Load reads NNNN_name.up.sql / NNNN_name.down.sql pairs from fsys, sorted by
// version. Every version needs an up file; down files are optional.
func Load(fsys fs.FS) ([]*Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	byVersion := make(map[int64]*Migration)
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}

		version, name, direction, err := parseFileName(entry.Name())
		if err != nil {
			return nil, err
		}

		content, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", entry.Name(), err)
		}

		m, ok := byVersion[version]
		if !ok {
			m = &Migration{Version: version, Name: name}
			byVersion[version] = m
		} else if m.Name != name {
			return nil, fmt.Errorf("migration %d has conflicting names %q and %q", version, m.Name, name)
		}

		switch direction {
		case "up":
			m.Up = string(content)
		case "down":
			m.Down = string(content)
		}
	}

	migrations := make([]*Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if strings.TrimSpace(m.Up) == "" {
			return nil, fmt.Errorf("migration %d_%s has no up SQL", m.Version, m.Name)
		}
		migrations = append(migrations, m)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// parseFileName splits "0001_initial_schema.up.sql" into its parts
func parseFileName(file string) (int64, string, string, error) {
	base := strings.TrimSuffix(file, ".sql")
	dot := strings.LastIndex(base, ".")
	if dot < 0 {
		return 0, "", "", fmt.Errorf("migration %s: missing .up or .down suffix", file)
	}
	direction := base[dot+1:]
	if direction != "up" && direction != "down" {
		return 0, "", "", fmt.Errorf("migration %s: direction must be up or down", file)
	}

	stem := base[:dot]
	underscore := strings.Index(stem, "_")
	if underscore <= 0 {
		return 0, "", "", fmt.Errorf("migration %s: expected NNNN_name", file)
	}
	version, err := strconv.ParseInt(stem[:underscore], 10, 64)
	if err != nil {
		return 0, "", "", fmt.Errorf("migration %s: invalid version: %w", file, err)
	}

	return version, stem[underscore+1:], direction, nil
}
