package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/devswipe/devswipe/internal/domain"
	_ "modernc.org/sqlite"
)

// Repository implements domain.MessageCache and domain.ContributionLog on a
// local SQLite file. It is a read-through seed for offline startup, not a
// source of truth: the backend always wins.
type Repository struct {
	db *sql.DB
}

// NewRepository opens (or creates) the cache database at path, verifies the
// connection and creates the schema. Use ":memory:" for a throwaway cache.
// The caller should call Close when the repository is no longer needed.
func NewRepository(path string) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}

	// SQLite allows one writer; a second pooled connection would also see a
	// separate database entirely when path is ":memory:".
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping cache database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Repository{db: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id        INTEGER PRIMARY KEY,
	sender    TEXT NOT NULL,
	recipient TEXT NOT NULL,
	content   TEXT NOT NULL,
	sent_at   TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS contributions (
	post_id   INTEGER PRIMARY KEY,
	title     TEXT NOT NULL,
	author    TEXT NOT NULL,
	category  TEXT NOT NULL,
	swiped_at TIMESTAMP NOT NULL
);`

// Close closes the underlying database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// SaveMessages upserts confirmed messages. Already-cached ids are left
// untouched.
func (r *Repository) SaveMessages(ctx context.Context, msgs []domain.Message) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages (id, sender, recipient, content, sent_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range msgs {
		if m.ID == 0 || m.State != domain.Confirmed {
			continue
		}
		_, err := stmt.ExecContext(ctx,
			m.ID,
			m.Sender.CanonicalName,
			m.Recipient.CanonicalName,
			m.Content,
			m.Timestamp.UTC(),
		)
		if err != nil {
			return fmt.Errorf("insert message %d: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// MessagesForUser returns cached messages where the user is sender or
// recipient, ordered by id ascending.
func (r *Repository) MessagesForUser(ctx context.Context, canonicalName string) ([]domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, sender, recipient, content, sent_at
		FROM messages
		WHERE sender = ? OR recipient = ?
		ORDER BY id ASC`,
		canonicalName, canonicalName,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var (
			id                         int64
			sender, recipient, content string
			sentAt                     time.Time
		)
		if err := rows.Scan(&id, &sender, &recipient, &content, &sentAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, domain.Message{
			ID:        id,
			Sender:    domain.NewIdentity(0, sender, ""),
			Recipient: domain.NewIdentity(0, recipient, ""),
			Content:   content,
			Timestamp: sentAt,
			State:     domain.Confirmed,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return msgs, nil
}

// SaveContribution upserts one right-swiped post.
func (r *Repository) SaveContribution(ctx context.Context, c domain.ContributedPost) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO contributions (post_id, title, author, category, swiped_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(post_id) DO UPDATE SET swiped_at = excluded.swiped_at`,
		c.Post.ID,
		c.Post.Title,
		c.Post.Author.CanonicalName,
		c.Post.Category,
		c.SwipedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert contribution: %w", err)
	}
	return nil
}

// Contributions returns the logged right swipes, newest first.
func (r *Repository) Contributions(ctx context.Context) ([]domain.ContributedPost, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT post_id, title, author, category, swiped_at
		FROM contributions
		ORDER BY swiped_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query contributions: %w", err)
	}
	defer rows.Close()

	var entries []domain.ContributedPost
	for rows.Next() {
		var (
			postID                  int64
			title, author, category string
			swipedAt                time.Time
		)
		if err := rows.Scan(&postID, &title, &author, &category, &swipedAt); err != nil {
			return nil, fmt.Errorf("scan contribution: %w", err)
		}
		entries = append(entries, domain.ContributedPost{
			Post: domain.Post{
				ID:       postID,
				Title:    title,
				Author:   domain.NewIdentity(0, author, ""),
				Category: category,
			},
			SwipedAt: swipedAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contributions: %w", err)
	}
	return entries, nil
}
