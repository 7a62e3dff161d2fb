package pm

import (
	"context"
	"crypto/sha256"
	"database/sql"
	_ "embed"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaDDL string

// Cache is the local store of fetched package sources plus a queryable
// SQLite index over what's in it, backing `pm why`/`pm list` without
// re-walking the filesystem.
type Cache struct {
	root string
	db   *sql.DB
}

// OpenCache opens (creating if needed) the cache rooted at root, which
// holds a git/ subdirectory per fetched package and an index.db alongside it.
func OpenCache(root string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Join(root, "git"), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(root, "index.db"))
	if err != nil {
		return nil, fmt.Errorf("open cache index: %w", err)
	}
	if _, err := db.ExecContext(context.Background(), schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("init cache index schema: %w", err)
	}

	return &Cache{root: root, db: db}, nil
}

// Close releases the underlying index database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// GitDir returns the directory a package's git checkout is cached under.
func (c *Cache) GitDir(name string) string {
	return filepath.Join(c.root, "git", name)
}

// RecordFetch indexes a fetched package's resolved version, source path,
// and content hash, so later `pm list`/`pm why` queries don't need to
// touch disk beyond the database.
func (c *Cache) RecordFetch(ctx context.Context, name, version, path, integrity string) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO packages (name, version, path, integrity)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			version = excluded.version,
			path = excluded.path,
			integrity = excluded.integrity
	`, name, version, path, integrity)
	if err != nil {
		return fmt.Errorf("record fetch for %s: %w", name, err)
	}
	return nil
}

// CachedPackage is one row of the cache index.
type CachedPackage struct {
	Name      string
	Version   string
	Path      string
	Integrity string
}

// List returns every package recorded in the cache index, ordered by name.
func (c *Cache) List(ctx context.Context) ([]CachedPackage, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT name, version, path, integrity FROM packages ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list cache: %w", err)
	}
	defer rows.Close()

	var out []CachedPackage
	for rows.Next() {
		var p CachedPackage
		if err := rows.Scan(&p.Name, &p.Version, &p.Path, &p.Integrity); err != nil {
			return nil, fmt.Errorf("scan cache row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// HashDirectory computes a stable SHA-256 over a directory's file
// contents and relative paths, for lockfile integrity checks.
func HashDirectory(root string) (string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(files)

	h := sha256.New()
	for _, rel := range files {
		fmt.Fprintf(h, "%s\n", rel)
		f, err := os.Open(filepath.Join(root, rel))
		if err != nil {
			return "", fmt.Errorf("open %s: %w", rel, err)
		}
		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			return "", fmt.Errorf("hash %s: %w", rel, err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
