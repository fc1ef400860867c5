package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/ngampusin/identity/internal/model"
	"github.com/ngampusin/identity/internal/repository"
)

// compile-time check that *DB implements repository.ContentStore
var _ repository.ContentStore = (*DB)(nil)

// AuthoredSummary counts the user's contributions across the content
// tables. Three scalar queries; no transaction needed since the summary is
// informational.
func (db *DB) AuthoredSummary(ctx context.Context, userID string) (model.AuthoredSummary, error) {
	var s model.AuthoredSummary

	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM posts WHERE author_id = ?`, userID).Scan(&s.Posts); err != nil {
		return s, fmt.Errorf("sqlite: counting posts for user %s: %w", userID, err)
	}
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM comments WHERE author_id = ?`, userID).Scan(&s.Comments); err != nil {
		return s, fmt.Errorf("sqlite: counting comments for user %s: %w", userID, err)
	}
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM likes WHERE user_id = ?`, userID).Scan(&s.Likes); err != nil {
		return s, fmt.Errorf("sqlite: counting likes for user %s: %w", userID, err)
	}

	return s, nil
}

// DeleteAccountData removes the user and every content row that belongs to
// or hangs off the account, in a single transaction.
//
// Deletion order respects foreign keys: likes and comments on the user's
// posts first (other users may have left them), then the user's own likes
// and comments elsewhere, then the posts, then the account row. If any
// statement fails the transaction rolls back and the account is untouched
// — the store never holds an account without its content or content
// without its account.
func (db *DB) DeleteAccountData(ctx context.Context, userID string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning deletion transaction: %w", err)
	}
	// No-op after a successful Commit.
	defer tx.Rollback()

	steps := []struct {
		desc  string
		query string
	}{
		{"likes on authored posts", `DELETE FROM likes WHERE post_id IN (SELECT id FROM posts WHERE author_id = ?)`},
		{"comments on authored posts", `DELETE FROM comments WHERE post_id IN (SELECT id FROM posts WHERE author_id = ?)`},
		{"authored likes", `DELETE FROM likes WHERE user_id = ?`},
		{"authored comments", `DELETE FROM comments WHERE author_id = ?`},
		{"authored posts", `DELETE FROM posts WHERE author_id = ?`},
		{"user record", `DELETE FROM users WHERE id = ?`},
	}
	for _, step := range steps {
		if _, err := tx.ExecContext(ctx, step.query, userID); err != nil {
			return fmt.Errorf("sqlite: deleting %s for user %s: %w", step.desc, userID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing deletion for user %s: %w", userID, err)
	}
	return nil
}

// CreatePost inserts a content row. The identity core does not expose post
// CRUD over HTTP — this exists for the content service sharing the store,
// and for exercising the cascade in tests.
func (db *DB) CreatePost(ctx context.Context, post *model.Post) error {
	post.ID = xid.New().String()
	post.CreatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO posts (id, author_id, title, body, created_at) VALUES (?, ?, ?, ?, ?)`,
		post.ID, post.AuthorID, post.Title, post.Body, post.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting post: %w", err)
	}
	return nil
}

// CreateComment inserts a comment row on an existing post.
func (db *DB) CreateComment(ctx context.Context, postID, authorID, body string) (string, error) {
	id := xid.New().String()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO comments (id, post_id, author_id, body, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, postID, authorID, body, time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("sqlite: inserting comment: %w", err)
	}
	return id, nil
}

// CreateLike inserts a like row. Duplicate likes on the same post by the
// same user violate the UNIQUE constraint and are reported as-is.
func (db *DB) CreateLike(ctx context.Context, postID, userID string) (string, error) {
	id := xid.New().String()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO likes (id, post_id, user_id, created_at) VALUES (?, ?, ?, ?)`,
		id, postID, userID, time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("sqlite: inserting like: %w", err)
	}
	return id, nil
}

// UserExists reports whether the account row is present. Deletion tests
// use it to assert the cascade's all-or-nothing property.
func (db *DB) UserExists(ctx context.Context, userID string) (bool, error) {
	var one int
	err := db.conn.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, userID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: checking user %s: %w", userID, err)
	}
	return true, nil
}
