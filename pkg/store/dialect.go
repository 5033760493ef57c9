package store

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "github.com/mattn/go-sqlite3"    // registers "sqlite3"
	_ "modernc.org/sqlite"             // registers "sqlite"
)

// timeLayout is fixed width so stored SQLite timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// dialect captures the differences between SQLite and PostgreSQL.
type dialect struct {
	sqlite bool
	schema []string
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		model_id INTEGER NOT NULL,
		title TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations (user_id, updated_at)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL REFERENCES conversations (id) ON DELETE CASCADE,
		sender TEXT NOT NULL,
		message TEXT NOT NULL,
		date TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages (conversation_id, date)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS conversations (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL,
		model_id INTEGER NOT NULL,
		title TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations (user_id, updated_at)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id BIGSERIAL PRIMARY KEY,
		conversation_id UUID NOT NULL REFERENCES conversations (id) ON DELETE CASCADE,
		sender TEXT NOT NULL,
		message TEXT NOT NULL,
		date TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages (conversation_id, date)`,
}

func dialectFor(driverName string) (dialect, error) {
	switch driverName {
	case "sqlite", "sqlite3":
		return dialect{sqlite: true, schema: sqliteSchema}, nil
	case "pgx":
		return dialect{schema: postgresSchema}, nil
	default:
		return dialect{}, fmt.Errorf("unsupported store driver %q (want sqlite, sqlite3 or pgx)", driverName)
	}
}

// rebind rewrites ? placeholders as $1, $2, ... for PostgreSQL. Queries in
// this package never contain a literal question mark.
func (d dialect) rebind(query string) string {
	if d.sqlite {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// timeArg encodes t for the driver.
func (d dialect) timeArg(t time.Time) driver.Value {
	if d.sqlite {
		return t.UTC().Format(timeLayout)
	}
	return t.UTC()
}

// timestamp scans either a driver time.Time or a stored text timestamp.
type timestamp struct {
	t *time.Time
}

// Scan implements sql.Scanner.
func (ts timestamp) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*ts.t = v.UTC()
		return nil
	case string:
		return ts.parse(v)
	case []byte:
		return ts.parse(string(v))
	default:
		return fmt.Errorf("cannot scan %T into timestamp", src)
	}
}

func (ts timestamp) parse(s string) error {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("invalid stored timestamp %q: %w", s, err)
	}
	*ts.t = t.UTC()
	return nil
}
