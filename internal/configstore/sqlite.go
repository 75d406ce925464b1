package configstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/voidrelay/tunnelbroker/internal/models"
)

// SQLiteStore reads the tunnel-user table from an embedded SQLite
// file, for local/dev runs where standing up Postgres is overkill.
type SQLiteStore struct {
	db *sql.DB
}

func newSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = "./tunnelbroker.db"
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("configstore: open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // go-sqlite3 serializes writers; avoid lock contention

	store := &SQLiteStore{db: db}
	if err := store.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) ensureSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS tunnel_users (
			id TEXT PRIMARY KEY,
			alias TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tunnel_user_ports (
			user_id TEXT NOT NULL REFERENCES tunnel_users(id) ON DELETE CASCADE,
			client_port INTEGER NOT NULL,
			server_port INTEGER NOT NULL,
			PRIMARY KEY (user_id, server_port)
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("configstore: ensure schema: %w", err)
		}
	}
	return nil
}

// Load implements ConfigStore.
func (s *SQLiteStore) Load(ctx context.Context) (map[uuid.UUID]*models.TunnelUser, error) {
	users := make(map[uuid.UUID]*models.TunnelUser)

	rows, err := s.db.QueryContext(ctx, `SELECT id, alias FROM tunnel_users`)
	if err != nil {
		return nil, fmt.Errorf("configstore: query tunnel_users: %w", err)
	}
	for rows.Next() {
		var rawID, alias string
		if err := rows.Scan(&rawID, &alias); err != nil {
			rows.Close()
			return nil, fmt.Errorf("configstore: scan tunnel_users: %w", err)
		}
		id, err := uuid.Parse(rawID)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("configstore: invalid tunnel user id %q: %w", rawID, err)
		}
		users[id] = &models.TunnelUser{ID: id, Alias: alias}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("configstore: iterate tunnel_users: %w", err)
	}

	portRows, err := s.db.QueryContext(ctx, `SELECT user_id, client_port, server_port FROM tunnel_user_ports ORDER BY server_port`)
	if err != nil {
		return nil, fmt.Errorf("configstore: query tunnel_user_ports: %w", err)
	}
	defer portRows.Close()

	for portRows.Next() {
		var rawID string
		var pp models.PortPair
		if err := portRows.Scan(&rawID, &pp.ClientPort, &pp.ServerPort); err != nil {
			return nil, fmt.Errorf("configstore: scan tunnel_user_ports: %w", err)
		}
		id, err := uuid.Parse(rawID)
		if err != nil {
			return nil, fmt.Errorf("configstore: invalid tunnel user id %q: %w", rawID, err)
		}
		if u, ok := users[id]; ok {
			u.Ports = append(u.Ports, pp)
		}
	}
	if err := portRows.Err(); err != nil {
		return nil, fmt.Errorf("configstore: iterate tunnel_user_ports: %w", err)
	}

	return users, nil
}

// IsEmpty reports whether the tunnel_users table has no rows yet,
// used to decide whether SeedFromYAML should run.
func (s *SQLiteStore) IsEmpty(ctx context.Context) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tunnel_users`).Scan(&count); err != nil {
		return false, fmt.Errorf("configstore: count tunnel_users: %w", err)
	}
	return count == 0, nil
}

// SeedFromYAML inserts the given seed users if the table is empty. It
// is a no-op once any row exists, matching the teacher's
// migrations-then-seed pattern while keeping the runtime table
// immutable thereafter.
func (s *SQLiteStore) SeedFromYAML(ctx context.Context, seed []SeedUser) error {
	empty, err := s.IsEmpty(ctx)
	if err != nil {
		return err
	}
	if !empty {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("configstore: begin seed tx: %w", err)
	}
	defer tx.Rollback()

	for _, u := range seed {
		if _, err := tx.ExecContext(ctx, `INSERT INTO tunnel_users (id, alias) VALUES (?, ?)`, u.ID.String(), u.Alias); err != nil {
			return fmt.Errorf("configstore: seed tunnel_users: %w", err)
		}
		for _, pp := range u.Ports {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO tunnel_user_ports (user_id, client_port, server_port) VALUES (?, ?, ?)`,
				u.ID.String(), pp.ClientPort, pp.ServerPort,
			); err != nil {
				return fmt.Errorf("configstore: seed tunnel_user_ports: %w", err)
			}
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
