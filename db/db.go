package db

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"zorssms/models"
)

type DB struct {
	conn *sql.DB
}

func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_foreign_keys=1&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	// one writer keeps delta writes in mutation order
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS friends (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			owner TEXT NOT NULL,
			friend TEXT NOT NULL,
			UNIQUE(owner, friend)
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			conv_key TEXT NOT NULL,
			id TEXT NOT NULL,
			from_id TEXT NOT NULL,
			to_id TEXT NOT NULL,
			text TEXT NOT NULL,
			timestamp TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_friends_owner ON friends(owner, id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conv ON messages(conv_key, seq)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return errors.Wrap(err, "create schema")
		}
	}

	if err := db.migrate(); err != nil {
		return err
	}

	return nil
}

// migrate adds profile columns to databases created before profiles existed.
func (db *DB) migrate() error {
	columns := []struct{ name, ddl string }{
		{"bio", "ALTER TABLE users ADD COLUMN bio TEXT NOT NULL DEFAULT ''"},
		{"avatar", "ALTER TABLE users ADD COLUMN avatar TEXT NOT NULL DEFAULT ''"},
	}
	for _, col := range columns {
		if db.columnExists("users", col.name) {
			continue
		}
		if _, err := db.conn.Exec(col.ddl); err != nil {
			return errors.Wrapf(err, "add users.%s", col.name)
		}
	}
	return nil
}

// columnExists checks if a column exists in a table
func (db *DB) columnExists(table, column string) bool {
	query := "SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?"
	var count int
	err := db.conn.QueryRow(query, table, column).Scan(&count)
	if err != nil {
		return false
	}
	return count > 0
}

// User methods
func (db *DB) SaveUser(u models.User) error {
	_, err := db.conn.Exec(
		`INSERT INTO users (id, name, bio, avatar, created_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, bio = excluded.bio, avatar = excluded.avatar`,
		u.ID, u.Name, u.Bio, u.Avatar, formatTime(u.CreatedAt),
	)
	return errors.Wrapf(err, "save user %s", u.ID)
}

func (db *DB) loadUsers(snap *models.Snapshot) error {
	rows, err := db.conn.Query("SELECT id, name, bio, avatar, created_at FROM users")
	if err != nil {
		return errors.Wrap(err, "query users")
	}
	defer rows.Close()

	for rows.Next() {
		var u models.User
		var created string
		if err := rows.Scan(&u.ID, &u.Name, &u.Bio, &u.Avatar, &created); err != nil {
			return errors.Wrap(err, "scan user")
		}
		u.CreatedAt = parseTime(created)
		snap.Users[u.ID] = u
	}
	return rows.Err()
}

// Friend methods
func (db *DB) AddFriendship(a, b string) error {
	return db.tx(func(tx *sql.Tx) error {
		return addEdges(tx, a, b)
	})
}

func (db *DB) RemoveFriendship(a, b string) error {
	_, err := db.conn.Exec(
		"DELETE FROM friends WHERE (owner = ? AND friend = ?) OR (owner = ? AND friend = ?)",
		a, b, b, a,
	)
	return errors.Wrapf(err, "remove friendship %s-%s", a, b)
}

func addEdges(tx *sql.Tx, a, b string) error {
	for _, edge := range [][2]string{{a, b}, {b, a}} {
		if _, err := tx.Exec("INSERT OR IGNORE INTO friends (owner, friend) VALUES (?, ?)", edge[0], edge[1]); err != nil {
			return errors.Wrapf(err, "add friendship %s-%s", a, b)
		}
	}
	return nil
}

func (db *DB) loadFriends(snap *models.Snapshot) error {
	rows, err := db.conn.Query("SELECT owner, friend FROM friends ORDER BY id ASC")
	if err != nil {
		return errors.Wrap(err, "query friends")
	}
	defer rows.Close()

	for rows.Next() {
		var owner, friend string
		if err := rows.Scan(&owner, &friend); err != nil {
			return errors.Wrap(err, "scan friend")
		}
		snap.Friends[owner] = append(snap.Friends[owner], friend)
	}
	return rows.Err()
}

// Message methods
func (db *DB) AppendMessage(key string, m models.Message) error {
	_, err := db.conn.Exec(
		"INSERT INTO messages (conv_key, id, from_id, to_id, text, timestamp) VALUES (?, ?, ?, ?, ?, ?)",
		key, m.ID, m.FromID, m.ToID, m.Text, formatTime(m.Timestamp),
	)
	return errors.Wrapf(err, "append message %s", m.ID)
}

func (db *DB) loadMessages(snap *models.Snapshot) error {
	rows, err := db.conn.Query("SELECT conv_key, id, from_id, to_id, text, timestamp FROM messages ORDER BY seq ASC")
	if err != nil {
		return errors.Wrap(err, "query messages")
	}
	defer rows.Close()

	for rows.Next() {
		var key, ts string
		var m models.Message
		if err := rows.Scan(&key, &m.ID, &m.FromID, &m.ToID, &m.Text, &ts); err != nil {
			return errors.Wrap(err, "scan message")
		}
		m.Timestamp = parseTime(ts)
		snap.Messages[key] = append(snap.Messages[key], m)
	}
	return rows.Err()
}

// Load reads the whole state. Empty tables load as empty collections.
func (db *DB) Load() (*models.Snapshot, error) {
	snap := models.NewSnapshot()
	for _, load := range []func(*models.Snapshot) error{db.loadUsers, db.loadFriends, db.loadMessages} {
		if err := load(snap); err != nil {
			return nil, err
		}
	}
	return snap, nil
}

// IsEmpty reports whether no user has been stored yet.
func (db *DB) IsEmpty() (bool, error) {
	var count int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return false, errors.Wrap(err, "count users")
	}
	return count == 0, nil
}

func (db *DB) tx(fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "commit transaction")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime accepts RFC 3339 with or without fractional seconds; anything
// else loads as the zero time.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
