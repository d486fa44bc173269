// Package store holds the social graph and group registry behind the
// DataStore interface. MemoryStore is the default backend; SQLStore keeps the
// same data in a private in-memory SQLite database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/NicolasHaas/sosmeet/pkg/model"
	"github.com/NicolasHaas/sosmeet/pkg/rbac"
)

// SQLStore implements DataStore on SQLite. Every instance opens its own
// shared-cache memory database, so nothing outlives Close.
type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQL opens a fresh in-memory SQLite database and runs migrations.
func NewSQL() (*SQLStore, error) {
	return NewSQLWithClock(func() time.Time { return time.Now().UTC() })
}

// NewSQLWithClock is NewSQL with a custom clock.
func NewSQLWithClock(now func() time.Time) (*SQLStore, error) {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	// One connection keeps the memory database alive and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), "PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: enable FK: %w", err)
	}

	s := &SQLStore{db: db, now: now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection. The data is gone afterwards.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS users (
		username   TEXT    PRIMARY KEY CHECK(length(username) >= 3 AND length(username) <= 32),
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS friends (
		seq       INTEGER PRIMARY KEY AUTOINCREMENT,
		username  TEXT    NOT NULL REFERENCES users(username),
		friend    TEXT    NOT NULL REFERENCES users(username),
		UNIQUE(username, friend)
	);

	CREATE TABLE IF NOT EXISTS group_registry (
		seq        INTEGER PRIMARY KEY AUTOINCREMENT,
		id         TEXT    NOT NULL UNIQUE,
		name       TEXT    NOT NULL,
		owner      TEXT    NOT NULL REFERENCES users(username),
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS group_members (
		seq       INTEGER PRIMARY KEY AUTOINCREMENT,
		group_id  TEXT    NOT NULL REFERENCES group_registry(id),
		username  TEXT    NOT NULL REFERENCES users(username),
		UNIQUE(group_id, username)
	);

	CREATE TABLE IF NOT EXISTS alarm_codes (
		seq          INTEGER PRIMARY KEY AUTOINCREMENT,
		id           TEXT    NOT NULL UNIQUE,
		group_id     TEXT    NOT NULL REFERENCES group_registry(id),
		title        TEXT    NOT NULL,
		color_hex    TEXT    NOT NULL,
		sound_key    TEXT    NOT NULL,
		mode         TEXT    NOT NULL,
		message_text TEXT    NOT NULL DEFAULT '',
		created_by   TEXT    NOT NULL,
		created_at   INTEGER NOT NULL
	);
	`
	ctx := context.Background()
	if _, err := s.db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER NOT NULL)"); err != nil {
		return fmt.Errorf("store: create schema_migrations: %w", err)
	}
	var version int
	err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_migrations LIMIT 1").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (0)"); err != nil {
			return fmt.Errorf("store: init schema_migrations: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("store: read schema version: %w", err)
	}

	migrations := []struct {
		version    int
		statements []string
	}{
		{version: 1, statements: []string{schema}},
	}
	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		for _, stmt := range m.statements {
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("store: migrate v%d: %w", m.version, err)
			}
		}
		if _, err := s.db.ExecContext(ctx, "UPDATE schema_migrations SET version = ?", m.version); err != nil {
			return fmt.Errorf("store: update schema version: %w", err)
		}
	}
	return nil
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLStore) ensureUser(ctx context.Context, q execer, username string) error {
	if err := model.ValidateUsername(username); err != nil {
		return err
	}
	_, err := q.ExecContext(ctx, "INSERT OR IGNORE INTO users (username, created_at) VALUES (?, ?)", username, toMillis(s.now()))
	return err
}

func loadUser(ctx context.Context, q execer, username string) (*model.User, error) {
	u := &model.User{Username: username, Friends: []string{}}
	var createdAt int64
	err := q.QueryRowContext(ctx, "SELECT created_at FROM users WHERE username = ?", username).Scan(&createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt = fromMillis(createdAt)

	rows, err := q.QueryContext(ctx, "SELECT friend FROM friends WHERE username = ? ORDER BY seq", username)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, err
		}
		u.Friends = append(u.Friends, f)
	}
	return u, rows.Err()
}

// ---- Users ----

// EnsureUser creates the user if absent and returns it.
func (s *SQLStore) EnsureUser(username string) (*model.User, error) {
	ctx := context.Background()
	if err := s.ensureUser(ctx, s.db, username); err != nil {
		return nil, fmt.Errorf("store: ensure user: %w", err)
	}
	u, err := loadUser(ctx, s.db, username)
	if err != nil {
		return nil, fmt.Errorf("store: ensure user: %w", err)
	}
	return u, nil
}

// GetUser retrieves a user by username.
func (s *SQLStore) GetUser(username string) (*model.User, error) {
	u, err := loadUser(context.Background(), s.db, username)
	if err != nil {
		return nil, fmt.Errorf("store: get user: %w", err)
	}
	return u, nil
}

// AddFriend links a and b in both directions inside one transaction.
func (s *SQLStore) AddFriend(a, b string) (*model.User, *model.User, error) {
	if a == b {
		return nil, nil, fmt.Errorf("store: add friend: %w", model.ErrSelfFriend)
	}
	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("store: add friend: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, name := range []string{a, b} {
		if err := s.ensureUser(ctx, tx, name); err != nil {
			return nil, nil, fmt.Errorf("store: add friend: %w", err)
		}
	}
	const link = "INSERT OR IGNORE INTO friends (username, friend) VALUES (?, ?)"
	if _, err := tx.ExecContext(ctx, link, a, b); err != nil {
		return nil, nil, fmt.Errorf("store: add friend: %w", err)
	}
	if _, err := tx.ExecContext(ctx, link, b, a); err != nil {
		return nil, nil, fmt.Errorf("store: add friend: %w", err)
	}
	ua, err := loadUser(ctx, tx, a)
	if err != nil {
		return nil, nil, fmt.Errorf("store: add friend: %w", err)
	}
	ub, err := loadUser(ctx, tx, b)
	if err != nil {
		return nil, nil, fmt.Errorf("store: add friend: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("store: add friend: %w", err)
	}
	return ua, ub, nil
}

// ---- Groups ----

func insertCode(ctx context.Context, q execer, groupID string, c model.AlarmCode) error {
	_, err := q.ExecContext(ctx,
		"INSERT INTO alarm_codes (id, group_id, title, color_hex, sound_key, mode, message_text, created_by, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		c.ID, groupID, c.Title, c.ColorHex, c.SoundKey, string(c.Mode), c.MessageText, c.CreatedBy, toMillis(c.CreatedAt))
	return err
}

func loadGroup(ctx context.Context, q execer, id string) (*model.Group, error) {
	g := &model.Group{ID: id, Members: []string{}, AlarmCodes: []model.AlarmCode{}}
	var createdAt int64
	err := q.QueryRowContext(ctx, "SELECT name, owner, created_at FROM group_registry WHERE id = ?", id).
		Scan(&g.Name, &g.Owner, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	g.CreatedAt = fromMillis(createdAt)

	members, err := q.QueryContext(ctx, "SELECT username FROM group_members WHERE group_id = ? ORDER BY seq", id)
	if err != nil {
		return nil, err
	}
	for members.Next() {
		var m string
		if err := members.Scan(&m); err != nil {
			_ = members.Close()
			return nil, err
		}
		g.Members = append(g.Members, m)
	}
	if err := members.Err(); err != nil {
		_ = members.Close()
		return nil, err
	}
	_ = members.Close()

	codes, err := q.QueryContext(ctx,
		"SELECT id, title, color_hex, sound_key, mode, message_text, created_by, created_at FROM alarm_codes WHERE group_id = ? ORDER BY seq", id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = codes.Close() }()
	for codes.Next() {
		var c model.AlarmCode
		var mode string
		var codeCreated int64
		if err := codes.Scan(&c.ID, &c.Title, &c.ColorHex, &c.SoundKey, &mode, &c.MessageText, &c.CreatedBy, &codeCreated); err != nil {
			return nil, err
		}
		c.Mode = model.AlarmMode(mode)
		c.CreatedAt = fromMillis(codeCreated)
		g.AlarmCodes = append(g.AlarmCodes, c)
	}
	return g, codes.Err()
}

// CreateGroup creates a group owned by owner and seeds its alarm codes.
func (s *SQLStore) CreateGroup(owner, name string, defaults []model.AlarmCodeSpec) (*model.Group, error) {
	if err := model.ValidateGroupName(name); err != nil {
		return nil, fmt.Errorf("store: create group: %w", err)
	}
	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: create group: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.ensureUser(ctx, tx, owner); err != nil {
		return nil, fmt.Errorf("store: create group: %w", err)
	}
	now := s.now().UTC()
	id := model.NewID(model.PrefixGroup)
	if _, err := tx.ExecContext(ctx, "INSERT INTO group_registry (id, name, owner, created_at) VALUES (?, ?, ?, ?)",
		id, name, owner, toMillis(now)); err != nil {
		return nil, fmt.Errorf("store: create group: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO group_members (group_id, username) VALUES (?, ?)", id, owner); err != nil {
		return nil, fmt.Errorf("store: create group: %w", err)
	}
	for _, spec := range defaults {
		if err := insertCode(ctx, tx, id, model.NewAlarmCode(spec, owner, now)); err != nil {
			return nil, fmt.Errorf("store: create group: %w", err)
		}
	}
	g, err := loadGroup(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("store: create group: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: create group: %w", err)
	}
	return g, nil
}

// GetGroup retrieves a group by ID.
func (s *SQLStore) GetGroup(id string) (*model.Group, error) {
	g, err := loadGroup(context.Background(), s.db, id)
	if err != nil {
		return nil, fmt.Errorf("store: get group: %w", err)
	}
	return g, nil
}

// GroupsFor returns the groups username belongs to, in creation order.
func (s *SQLStore) GroupsFor(username string) ([]model.Group, error) {
	ctx := context.Background()
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id FROM group_registry r
		 JOIN group_members m ON m.group_id = r.id
		 WHERE m.username = ? ORDER BY r.seq`, username)
	if err != nil {
		return nil, fmt.Errorf("store: groups for: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("store: groups for: %w", err)
		}
		ids = append(ids, id)
	}
	// The single connection must be released before loading each group.
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("store: groups for: %w", err)
	}

	groups := make([]model.Group, 0, len(ids))
	for _, id := range ids {
		g, err := loadGroup(ctx, s.db, id)
		if err != nil {
			return nil, fmt.Errorf("store: groups for: %w", err)
		}
		if g != nil {
			groups = append(groups, *g)
		}
	}
	return groups, nil
}

// AddMember inserts member on behalf of requester.
func (s *SQLStore) AddMember(groupID, requester, member string) (*model.Group, error) {
	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: add member: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	g, err := loadGroup(ctx, tx, groupID)
	if err != nil {
		return nil, fmt.Errorf("store: add member: %w", err)
	}
	if g == nil {
		return nil, fmt.Errorf("store: add member: %w", model.ErrGroupNotFound)
	}
	if err := rbac.Require(g, requester, model.PermAddMember); err != nil {
		return nil, fmt.Errorf("store: add member: %w", err)
	}
	if err := s.ensureUser(ctx, tx, member); err != nil {
		return nil, fmt.Errorf("store: add member: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO group_members (group_id, username) VALUES (?, ?)", groupID, member); err != nil {
		return nil, fmt.Errorf("store: add member: %w", err)
	}
	g, err = loadGroup(ctx, tx, groupID)
	if err != nil {
		return nil, fmt.Errorf("store: add member: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: add member: %w", err)
	}
	return g, nil
}

// CreateAlarmCode appends a code on behalf of requester.
func (s *SQLStore) CreateAlarmCode(groupID, requester string, spec model.AlarmCodeSpec) (*model.Group, *model.AlarmCode, error) {
	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("store: create alarm code: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	g, err := loadGroup(ctx, tx, groupID)
	if err != nil {
		return nil, nil, fmt.Errorf("store: create alarm code: %w", err)
	}
	if g == nil {
		return nil, nil, fmt.Errorf("store: create alarm code: %w", model.ErrGroupNotFound)
	}
	if err := rbac.Require(g, requester, model.PermCreateAlarmCode); err != nil {
		return nil, nil, fmt.Errorf("store: create alarm code: %w", err)
	}
	code := model.NewAlarmCode(spec, requester, s.now().UTC())
	if err := insertCode(ctx, tx, groupID, code); err != nil {
		return nil, nil, fmt.Errorf("store: create alarm code: %w", err)
	}
	g, err = loadGroup(ctx, tx, groupID)
	if err != nil {
		return nil, nil, fmt.Errorf("store: create alarm code: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("store: create alarm code: %w", err)
	}
	return g, &code, nil
}
