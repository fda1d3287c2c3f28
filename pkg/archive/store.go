package archive

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Record is one archived message.
type Record struct {
	ID        string
	ChannelID string
	Sender    string
	Content   string
	IsBot     bool
	CreatedAt time.Time
}

// ChannelStats summarizes archived traffic for one channel.
type ChannelStats struct {
	ChannelID    string
	MessageCount int
	BotCount     int
	OldestMS     int64
	NewestMS     int64
}

// Store keeps a durable transcript of every message the bot saw or sent,
// independent of the bounded in-memory conversation windows.
type Store struct {
	db *sql.DB
}

// NewStore creates/opens the archive database at path.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create archive db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive db: %w", err)
	}
	// Single-process writer. One shared connection avoids SQLite writer
	// lock contention under concurrent goroutines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &Store{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) init() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			channel_id TEXT NOT NULL,
			sender TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			is_bot INTEGER NOT NULL DEFAULT 0,
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS messages_channel_idx ON messages(channel_id, created_at_ms DESC);`,
		`CREATE INDEX IF NOT EXISTS messages_created_idx ON messages(created_at_ms);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init archive schema: %w", err)
		}
	}
	return nil
}

// Append stores one message. A zero CreatedAt means now.
func (s *Store) Append(ctx context.Context, rec Record) error {
	if strings.TrimSpace(rec.ChannelID) == "" {
		return fmt.Errorf("archive append: empty channel_id")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	isBot := 0
	if rec.IsBot {
		isBot = 1
	}

	if _, err := s.db.ExecContext(ctx, `
INSERT INTO messages(id, channel_id, sender, content, is_bot, created_at_ms)
VALUES(?, ?, ?, ?, ?, ?)`, rec.ID, rec.ChannelID, rec.Sender, rec.Content, isBot, rec.CreatedAt.UnixMilli()); err != nil {
		return fmt.Errorf("archive append: %w", err)
	}
	return nil
}

// Recent returns up to limit messages for a channel, oldest first.
func (s *Store) Recent(ctx context.Context, channelID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 1
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, channel_id, sender, content, is_bot, created_at_ms
FROM messages
WHERE channel_id = ?
ORDER BY created_at_ms DESC
LIMIT ?`, channelID, limit)
	if err != nil {
		return nil, fmt.Errorf("archive recent: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0, limit)
	for rows.Next() {
		var rec Record
		var isBot int
		var createdMS int64
		if err := rows.Scan(&rec.ID, &rec.ChannelID, &rec.Sender, &rec.Content, &isBot, &createdMS); err != nil {
			return nil, fmt.Errorf("scan archive row: %w", err)
		}
		rec.IsBot = isBot != 0
		rec.CreatedAt = time.UnixMilli(createdMS)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate archive rows: %w", err)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Stats returns per-channel counts across the whole archive.
func (s *Store) Stats(ctx context.Context) ([]ChannelStats, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT channel_id, COUNT(*), SUM(is_bot), MIN(created_at_ms), MAX(created_at_ms)
FROM messages
GROUP BY channel_id
ORDER BY COUNT(*) DESC`)
	if err != nil {
		return nil, fmt.Errorf("archive stats: %w", err)
	}
	defer rows.Close()

	var out []ChannelStats
	for rows.Next() {
		var st ChannelStats
		if err := rows.Scan(&st.ChannelID, &st.MessageCount, &st.BotCount, &st.OldestMS, &st.NewestMS); err != nil {
			return nil, fmt.Errorf("scan archive stats: %w", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate archive stats: %w", err)
	}
	return out, nil
}

// PruneOlderThan deletes messages created before cutoff and reports how many
// rows were removed.
func (s *Store) PruneOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
DELETE FROM messages WHERE created_at_ms < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("archive prune: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
