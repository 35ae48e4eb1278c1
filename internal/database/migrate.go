package database

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strconv"

	"artvault/internal/middleware"
)

// Migration is one versioned PostgreSQL up/down script pair.
type Migration struct {
	Version    int
	Name       string
	UpScript   string
	DownScript string
}

func (m *Migration) String() string {
	return fmt.Sprintf("%06d_%s", m.Version, m.Name)
}

//go:embed migrations/*.sql
var migrationFS embed.FS

var migrations = mustLoadEmbedded()

var upScriptName = regexp.MustCompile(`^(\d+)_(\w+)\.up\.sql$`)

func mustLoadEmbedded() []Migration {
	out, err := loadMigrations(migrationFS, "migrations")
	if err != nil {
		middleware.Logger.Error("embedded migrations unreadable", slog.String("error", err.Error()))
		return nil
	}
	return out
}

// loadMigrations reads every NNNNNN_name.up.sql in dir with its matching
// .down.sql. Files that do not follow the naming are ignored; an up script
// without a down script is an error.
func loadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	var out []Migration
	for _, entry := range entries {
		match := upScriptName.FindStringSubmatch(entry.Name())
		if entry.IsDir() || match == nil {
			continue
		}
		version, err := strconv.Atoi(match[1])
		if err != nil {
			return nil, fmt.Errorf("migration %s: %w", entry.Name(), err)
		}

		up, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		down, err := fs.ReadFile(fsys, path.Join(dir, match[1]+"_"+match[2]+".down.sql"))
		if err != nil {
			return nil, fmt.Errorf("migration %s has no down script: %w", entry.Name(), err)
		}
		out = append(out, Migration{Version: version, Name: match[2], UpScript: string(up), DownScript: string(down)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// GetMigrations returns the embedded migrations, oldest first.
func GetMigrations() []Migration {
	return migrations
}

// GetMigrationByVersion returns the embedded migration with version, or nil.
func GetMigrationByVersion(version int) *Migration {
	i := sort.Search(len(migrations), func(i int) bool { return migrations[i].Version >= version })
	if i < len(migrations) && migrations[i].Version == version {
		return &migrations[i]
	}
	return nil
}

// pending returns the migrations whose version is not in applied.
func pending(all []Migration, applied []int) []Migration {
	done := make(map[int]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}
	var out []Migration
	for _, m := range all {
		if !done[m.Version] {
			out = append(out, m)
		}
	}
	return out
}
