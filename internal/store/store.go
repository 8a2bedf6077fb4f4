// Package store implements the durable relational layer (C1): schema
// creation, bulk insert/update, and the conditional-update reservation
// primitive every other component relies on for mutual exclusion.
//
// Grounded on cldmnky-oooi/internal/dhcp/plugins/leasedb/storage_test.go,
// which demonstrates chaisql/chai registered as a database/sql driver
// ("chai"). chai is pure Go (no cgo) and genuinely relational, unlike the
// bbolt key/value store used elsewhere in the example pack.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/chaisql/chai/driver"
)

var (
	ErrReservationConflict = errors.New("store: reservation affected fewer rows than requested")
)

// Store wraps a database/sql handle opened against the chai driver.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the chai database at path. Use
// ":memory:" for ephemeral/test stores.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("chai", path)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) DB() *sql.DB {
	return s.db
}

const schema = `
CREATE TABLE IF NOT EXISTS nodes (
	id INTEGER PRIMARY KEY,
	name TEXT UNIQUE NOT NULL,
	mgt TEXT,
	netboot TEXT,
	arch TEXT,
	type TEXT,
	state TEXT,
	task_action TEXT,
	control_info TEXT,
	console_info TEXT,
	reservation TEXT,
	conductor_affinity INTEGER,
	osimage_id INTEGER,
	passwd_id INTEGER,
	last_error TEXT
);
CREATE TABLE IF NOT EXISTS nics (
	id INTEGER PRIMARY KEY,
	uuid TEXT UNIQUE NOT NULL,
	mac TEXT UNIQUE NOT NULL,
	name TEXT,
	ip TEXT,
	netmask TEXT,
	node_id INTEGER,
	is_primary BOOL,
	extra TEXT
);
CREATE TABLE IF NOT EXISTS networks (
	id INTEGER PRIMARY KEY,
	name TEXT UNIQUE NOT NULL,
	subnet TEXT NOT NULL,
	netmask TEXT NOT NULL,
	gateway TEXT,
	nameservers TEXT,
	ntpservers TEXT,
	domain TEXT,
	dynamic_range TEXT,
	extra TEXT
);
CREATE TABLE IF NOT EXISTS osimages (
	id INTEGER PRIMARY KEY,
	name TEXT UNIQUE NOT NULL,
	distro TEXT,
	ver TEXT,
	arch TEXT,
	profile TEXT,
	type TEXT,
	provmethod TEXT,
	rootfstype TEXT,
	orig_name TEXT
);
CREATE TABLE IF NOT EXISTS passwds (
	id INTEGER PRIMARY KEY,
	key TEXT UNIQUE NOT NULL,
	username TEXT,
	password TEXT,
	crypt_method TEXT
);
CREATE TABLE IF NOT EXISTS dhcp_options (
	name TEXT PRIMARY KEY,
	ip TEXT,
	mac TEXT,
	hostname TEXT,
	statements TEXT,
	content TEXT
);
CREATE TABLE IF NOT EXISTS services (
	id INTEGER PRIMARY KEY,
	hostname TEXT NOT NULL,
	kind TEXT NOT NULL,
	workers INTEGER,
	online BOOL,
	updated_at INTEGER
);
`

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";\n") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: migrate: %w (%s)", err, stmt)
		}
	}
	return nil
}

// Reserve performs the conditional reservation UPDATE: every name in names
// moves from unreserved to held-by(tag), or none do. The caller must treat
// a returned ErrReservationConflict as "zero names were changed" (the whole
// batch failed atomically), per spec's all-or-nothing contract.
func (s *Store) Reserve(ctx context.Context, tag string, names []string) error {
	if len(names) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var affected int64
	for _, name := range names {
		res, err := tx.ExecContext(ctx,
			`UPDATE nodes SET reservation = ? WHERE name = ? AND (reservation IS NULL OR reservation = '')`,
			tag, name)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		affected += n
	}
	if affected != int64(len(names)) {
		// Roll back: nothing may change if the set isn't fully acquired.
		return ErrReservationConflict
	}
	return tx.Commit()
}

// Release clears the reservation tag on names, but only where it is
// currently held by tag (idempotent, safe to call from error paths).
func (s *Store) Release(ctx context.Context, tag string, names []string) error {
	if len(names) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, name := range names {
		if _, err := tx.ExecContext(ctx,
			`UPDATE nodes SET reservation = '' WHERE name = ? AND reservation = ?`,
			name, tag); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Placeholders builds a "?,?,?" list of n placeholders for an IN clause.
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "?"
	}
	return strings.Join(parts, ",")
}

// ArgsForIn converts a string slice into []interface{} suitable for a
// driver args list following an IN (...) clause built with Placeholders.
func ArgsForIn(names []string) []interface{} {
	args := make([]interface{}, len(names))
	for i, n := range names {
		args[i] = n
	}
	return args
}
