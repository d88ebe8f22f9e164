// Package migrate applies the versioned schema for the Postgres store.
// Statements are embedded with the code; a bookkeeping table records
// what has been applied so Up is idempotent.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const migrationsTable = "schema_migrations"

// Migration is one ordered schema step.
type Migration struct {
	Name string
	Up   string
	Down string
}

// Migrations lists every schema step in application order.
var Migrations = []Migration{
	{
		Name: "0001_profiles",
		Up: `
create table if not exists profiles (
    id         text primary key,
    name       text not null,
    points     bigint not null check (points >= 0),
    created_at timestamptz not null default now()
);`,
		Down: `drop table if exists profiles;`,
	},
	{
		Name: "0002_videos",
		Up: `
create table if not exists videos (
    id          text primary key,
    title       text not null,
    description text not null,
    category    text not null,
    creator     text not null references profiles(id),
    content_url text not null,
    created_at  timestamptz not null default now()
);
create index if not exists videos_creator_idx on videos(creator);`,
		Down: `drop table if exists videos;`,
	},
	{
		Name: "0003_watch_records",
		Up: `
create table if not exists watch_records (
    id         text primary key,
    sequence   bigserial unique,
    viewer     text not null references profiles(id),
    video_id   text not null references videos(id),
    watched_at timestamptz not null default now()
);
create index if not exists watch_records_viewer_idx on watch_records(viewer);`,
		Down: `drop table if exists watch_records;`,
	},
	{
		Name: "0004_roles",
		Up: `
create table if not exists roles (
    identity   text primary key,
    role       text not null check (role in ('admin','user','guest')),
    updated_at timestamptz not null default now()
);`,
		Down: `drop table if exists roles;`,
	},
}

// Manager executes the embedded migrations against a database.
type Manager struct {
	db *sql.DB
}

// NewManager constructs a Manager.
func NewManager(db *sql.DB) *Manager {
	return &Manager{db: db}
}

// Up applies all pending migrations in order.
func (m *Manager) Up(ctx context.Context) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}
	done := make(map[string]bool, len(applied))
	for _, name := range applied {
		done[name] = true
	}
	for _, mig := range Migrations {
		if done[mig.Name] {
			continue
		}
		if err := m.execStep(ctx, mig.Up, mig.Name, true); err != nil {
			return fmt.Errorf("apply migration %s: %w", mig.Name, err)
		}
	}
	return nil
}

// Down rolls back the most recently applied migration.
func (m *Manager) Down(ctx context.Context) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		return errors.New("no migrations applied")
	}
	last := applied[len(applied)-1]
	var target *Migration
	for i := range Migrations {
		if Migrations[i].Name == last {
			target = &Migrations[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("unknown applied migration %q", last)
	}
	if err := m.execStep(ctx, target.Down, target.Name, false); err != nil {
		return fmt.Errorf("rollback migration %s: %w", target.Name, err)
	}
	return nil
}

// Status returns applied migration names in order.
func (m *Manager) Status(ctx context.Context) ([]string, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	return m.applied(ctx)
}

func (m *Manager) ensureTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, fmt.Sprintf(`
create table if not exists %s (
    name       text primary key,
    applied_at timestamptz not null default now()
)`, migrationsTable))
	return err
}

func (m *Manager) applied(ctx context.Context) ([]string, error) {
	rows, err := m.db.QueryContext(ctx, fmt.Sprintf(`select name from %s order by applied_at asc, name asc`, migrationsTable))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		res = append(res, name)
	}
	return res, rows.Err()
}

// execStep runs the SQL and updates bookkeeping in one transaction.
func (m *Manager) execStep(ctx context.Context, stmt, name string, record bool) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// pgx's extended protocol runs one statement per Exec.
	for _, single := range splitStatements(stmt) {
		if _, err := tx.ExecContext(ctx, single); err != nil {
			return err
		}
	}
	if record {
		_, err = tx.ExecContext(ctx, fmt.Sprintf(`insert into %s(name) values ($1)`, migrationsTable), name)
	} else {
		_, err = tx.ExecContext(ctx, fmt.Sprintf(`delete from %s where name = $1`, migrationsTable), name)
	}
	if err != nil {
		return err
	}
	return tx.Commit()
}

// splitStatements naively splits SQL on semicolons outside string literals.
func splitStatements(sql string) []string {
	var stmts []string
	var current strings.Builder
	var inString bool
	for _, r := range sql {
		switch r {
		case '\'':
			current.WriteRune(r)
			inString = !inString
		case ';':
			if !inString {
				if s := strings.TrimSpace(current.String()); s != "" {
					stmts = append(stmts, s)
				}
				current.Reset()
			} else {
				current.WriteRune(r)
			}
		default:
			current.WriteRune(r)
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		stmts = append(stmts, s)
	}
	return stmts
}
