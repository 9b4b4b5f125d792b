package application

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
)

// MigrationManager collects the schema files modules embed and applies them
// in registration order. Statements are written to be re-runnable
// (CREATE TABLE IF NOT EXISTS and friends), so boot is idempotent.
type MigrationManager struct {
	schemas []*embed.FS
}

func NewMigrationManager() *MigrationManager {
	return &MigrationManager{}
}

func (m *MigrationManager) RegisterSchema(fsys *embed.FS) {
	m.schemas = append(m.schemas, fsys)
}

func (m *MigrationManager) Apply(ctx context.Context, pool *pgxpool.Pool) error {
	for _, fsys := range m.schemas {
		files, err := listSQLFiles(fsys)
		if err != nil {
			return err
		}
		for _, file := range files {
			contents, err := fs.ReadFile(fsys, file)
			if err != nil {
				return fmt.Errorf("migrations: read %s: %w", file, err)
			}
			if _, err := pool.Exec(ctx, string(contents)); err != nil {
				return fmt.Errorf("migrations: apply %s: %w", file, err)
			}
		}
	}
	return nil
}

func listSQLFiles(fsys *embed.FS) ([]string, error) {
	var out []string
	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("migrations: walk schema files: %w", err)
	}
	sort.Strings(out)
	return out, nil
}
