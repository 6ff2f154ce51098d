// Package mysql provides MySQL server introspection.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fgeck/mysql-dr-dump/internal/apperr"
	"github.com/fgeck/mysql-dr-dump/internal/models"
	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
)

const listDatabasesQuery = "SHOW DATABASES"

// Service defines the interface for database introspection.
type Service interface {
	ListDatabases(ctx context.Context, spec models.DbConnectionSpec, password string) ([]string, error)
}

// Opener opens a database handle for a DSN. It allows sqlmock in tests.
type Opener func(dsn string) (*sql.DB, error)

func openMySQL(dsn string) (*sql.DB, error) {
	return sql.Open("mysql", dsn)
}

// Impl implements the Service interface.
type Impl struct {
	open           Opener
	logger         zerolog.Logger
	connectTimeout time.Duration
}

// New creates a new introspector using the go-sql-driver/mysql driver.
func New(logger zerolog.Logger, connectTimeout time.Duration) *Impl {
	return &Impl{
		open:           openMySQL,
		logger:         logger,
		connectTimeout: connectTimeout,
	}
}

// NewWithOpener creates a new introspector with a custom opener (for testing).
func NewWithOpener(logger zerolog.Logger, opener Opener, connectTimeout time.Duration) *Impl {
	return &Impl{
		open:           opener,
		logger:         logger,
		connectTimeout: connectTimeout,
	}
}

// DSN builds the driver connection string. It contains the password and
// must never be logged.
func DSN(spec models.DbConnectionSpec, password string, timeout time.Duration) string {
	cfg := mysql.NewConfig()
	cfg.User = spec.Username
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = spec.Address()
	cfg.Timeout = timeout
	return cfg.FormatDSN()
}

// ListDatabases opens a transient connection, lists every database the user
// can see, and closes the connection. It makes a single attempt.
func (s *Impl) ListDatabases(ctx context.Context, spec models.DbConnectionSpec, password string) ([]string, error) {
	s.logger.Debug().
		Str("host", spec.Host).
		Int("port", spec.Port).
		Str("username", spec.Username).
		Msg("listing databases")

	db, err := s.open(DSN(spec, password, s.connectTimeout))
	if err != nil {
		return nil, apperr.New(apperr.KindConnectivity, fmt.Sprintf("opening connection to %s", spec.Address()), err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			s.logger.Warn().Err(closeErr).Msg("failed to close database connection")
		}
	}()
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		return nil, apperr.New(apperr.KindConnectivity, fmt.Sprintf("connecting to %s", spec.Address()), err)
	}

	rows, err := db.QueryContext(ctx, listDatabasesQuery)
	if err != nil {
		return nil, apperr.New(apperr.KindQuery, "listing databases", err)
	}
	defer func() { _ = rows.Close() }()

	var databases []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, apperr.New(apperr.KindQuery, "reading database name", err)
		}
		databases = append(databases, name)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.New(apperr.KindQuery, "iterating databases", err)
	}

	s.logger.Debug().Int("count", len(databases)).Msg("databases listed")
	return databases, nil
}
