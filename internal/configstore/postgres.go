package configstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voidrelay/tunnelbroker/internal/models"
)

// PostgresStore reads the tunnel-user table from Postgres, mirroring
// the teacher's pgxpool.ParseConfig/NewWithConfig connection shape.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func newPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("configstore: parse postgres dsn: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MaxConnLifetime = time.Hour

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("configstore: connect postgres: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		return nil, fmt.Errorf("configstore: ping postgres: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS tunnel_users (
			id UUID PRIMARY KEY,
			alias VARCHAR(64) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tunnel_user_ports (
			user_id UUID NOT NULL REFERENCES tunnel_users(id) ON DELETE CASCADE,
			client_port INT NOT NULL,
			server_port INT NOT NULL,
			PRIMARY KEY (user_id, server_port)
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("configstore: ensure schema: %w", err)
		}
	}
	return nil
}

// Load implements ConfigStore.
func (s *PostgresStore) Load(ctx context.Context) (map[uuid.UUID]*models.TunnelUser, error) {
	users := make(map[uuid.UUID]*models.TunnelUser)

	rows, err := s.pool.Query(ctx, `SELECT id, alias FROM tunnel_users`)
	if err != nil {
		return nil, fmt.Errorf("configstore: query tunnel_users: %w", err)
	}
	for rows.Next() {
		var id uuid.UUID
		var alias string
		if err := rows.Scan(&id, &alias); err != nil {
			rows.Close()
			return nil, fmt.Errorf("configstore: scan tunnel_users: %w", err)
		}
		users[id] = &models.TunnelUser{ID: id, Alias: alias}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("configstore: iterate tunnel_users: %w", err)
	}

	portRows, err := s.pool.Query(ctx, `SELECT user_id, client_port, server_port FROM tunnel_user_ports ORDER BY server_port`)
	if err != nil {
		return nil, fmt.Errorf("configstore: query tunnel_user_ports: %w", err)
	}
	defer portRows.Close()

	for portRows.Next() {
		var userID uuid.UUID
		var pp models.PortPair
		if err := portRows.Scan(&userID, &pp.ClientPort, &pp.ServerPort); err != nil {
			return nil, fmt.Errorf("configstore: scan tunnel_user_ports: %w", err)
		}
		if u, ok := users[userID]; ok {
			u.Ports = append(u.Ports, pp)
		}
	}
	if err := portRows.Err(); err != nil {
		return nil, fmt.Errorf("configstore: iterate tunnel_user_ports: %w", err)
	}

	return users, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
