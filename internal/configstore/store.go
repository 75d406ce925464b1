// Package configstore loads the static tunnel-user table exactly
// once at process start, from either Postgres or an embedded SQLite
// file, selected by the DSN's scheme — grounded on the teacher's
// internal/database.Connect pattern (pgxpool, maintenance-DB
// bootstrap) generalized to a second backend per SPEC_FULL.md §4.9.
package configstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/voidrelay/tunnelbroker/internal/models"
)

// ConfigStore loads the immutable identifier -> TunnelUser table.
// Implementations never mutate what they load; the engine itself
// never calls back into a ConfigStore after startup.
type ConfigStore interface {
	Load(ctx context.Context) (map[uuid.UUID]*models.TunnelUser, error)
	Close() error
}

// Open selects a ConfigStore implementation by the DSN's scheme:
// "postgres://" or "postgresql://" for PostgresStore, "sqlite://" or
// a bare filesystem path for SQLiteStore.
func Open(ctx context.Context, dsn string) (ConfigStore, error) {
	scheme := schemeOf(dsn)
	switch scheme {
	case "postgres", "postgresql":
		return newPostgresStore(ctx, dsn)
	case "sqlite", "":
		return newSQLiteStore(strings.TrimPrefix(dsn, "sqlite://"))
	default:
		return nil, fmt.Errorf("configstore: unsupported DSN scheme %q", scheme)
	}
}

func schemeOf(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		return ""
	}
	return u.Scheme
}
