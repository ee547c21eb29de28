package store

import (
    "context"
    "fmt"
    "log"
    "os"
    "path/filepath"
    "sort"
    "strings"
)

// MigrateDir applies every *.sql file in dir that is not yet recorded in
// schema_migrations, in lexical order, each inside its own transaction.
func (p *Postgres) MigrateDir(dir string) error {
    ctx := context.Background()
    if _, err := p.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version text PRIMARY KEY, applied_at timestamptz NOT NULL DEFAULT now())`); err != nil {
        return fmt.Errorf("create schema_migrations: %w", err)
    }
    files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
    if err != nil { return err }
    sort.Strings(files)
    for _, f := range files {
        version := strings.TrimSuffix(filepath.Base(f), ".sql")
        var exists bool
        if err := p.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version=$1)`, version).Scan(&exists); err != nil {
            return fmt.Errorf("check migration %s: %w", version, err)
        }
        if exists { continue }
        body, err := os.ReadFile(f)
        if err != nil { return err }
        tx, err := p.db.BeginTx(ctx, nil)
        if err != nil { return err }
        if _, err := tx.ExecContext(ctx, string(body)); err != nil {
            _ = tx.Rollback()
            return fmt.Errorf("apply migration %s: %w", version, err)
        }
        if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version); err != nil {
            _ = tx.Rollback()
            return fmt.Errorf("record migration %s: %w", version, err)
        }
        if err := tx.Commit(); err != nil { return err }
        log.Printf("migration applied version=%s", version)
    }
    return nil
}
