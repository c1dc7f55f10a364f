package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/bangertree/bangertree/internal/model"
)

// DB is the subset of pgxpool.Pool the store uses. pgxmock satisfies it too,
// which is how the unit tests drive this code without a server.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	db     DB
	logger *zap.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS posts (
	uri TEXT PRIMARY KEY,
	cid TEXT NOT NULL DEFAULT '',
	author_did TEXT NOT NULL DEFAULT '',
	author_handle TEXT NOT NULL DEFAULT '',
	author_display_name TEXT NOT NULL DEFAULT '',
	text TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT 'epoch',
	indexed_at TIMESTAMPTZ NOT NULL DEFAULT 'epoch',
	like_count INTEGER NOT NULL DEFAULT 0,
	quote_count INTEGER NOT NULL DEFAULT 0,
	repost_count INTEGER NOT NULL DEFAULT 0,
	reply_count INTEGER NOT NULL DEFAULT 0,
	quotes_uri TEXT NOT NULL DEFAULT '',
	embed_type TEXT NOT NULL DEFAULT '',
	media_url TEXT NOT NULL DEFAULT '',
	media_title TEXT NOT NULL DEFAULT '',
	media_description TEXT NOT NULL DEFAULT '',
	first_seen_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	quotes_expanded BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS posts_unexpanded_idx
	ON posts (quote_count DESC)
	WHERE quotes_expanded = FALSE AND quote_count > 0;
`

const postColumns = `uri, cid, author_did, author_handle, author_display_name,
	text, created_at, indexed_at,
	like_count, quote_count, repost_count, reply_count,
	quotes_uri, embed_type, media_url, media_title, media_description,
	first_seen_at, quotes_expanded`

// NewPostgres connects to dsn, verifies the connection, and ensures the
// schema exists.
func NewPostgres(ctx context.Context, dsn string, logger *zap.Logger) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	p := NewPostgresFromDB(pool, logger)
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return p, nil
}

// NewPostgresFromDB wraps an existing connection (or a mock) without
// touching the schema.
func NewPostgresFromDB(db DB, logger *zap.Logger) *Postgres {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Postgres{db: db, logger: logger}
}

// GetPost returns the stored row for uri, or nil if absent.
func (p *Postgres) GetPost(ctx context.Context, uri string) (*model.Post, error) {
	row := p.db.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE uri = $1`, uri)
	post, err := scanPost(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	return &post, nil
}

// InsertPost inserts p if no row exists for its URI. ON CONFLICT DO NOTHING
// makes the insert-if-absent atomic; the affected row count reports the
// outcome.
func (p *Postgres) InsertPost(ctx context.Context, post model.Post) (bool, error) {
	tag, err := p.db.Exec(ctx, `
		INSERT INTO posts (`+postColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (uri) DO NOTHING`,
		post.URI, post.CID, post.AuthorDID, post.AuthorHandle, post.AuthorDisplayName,
		post.Text, post.CreatedAt, post.IndexedAt,
		post.LikeCount, post.QuoteCount, post.RepostCount, post.ReplyCount,
		post.QuotesURI, post.EmbedType, post.MediaURL, post.MediaTitle, post.MediaDescription,
		post.FirstSeenAt, post.QuotesExpanded,
	)
	if err != nil {
		return false, fmt.Errorf("insert post: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateEngagement overwrites counters and the expansion flag for uri.
func (p *Postgres) UpdateEngagement(ctx context.Context, uri string, e model.Engagement, quotesExpanded bool) error {
	tag, err := p.db.Exec(ctx, `
		UPDATE posts SET
			like_count = $2,
			quote_count = $3,
			repost_count = $4,
			reply_count = $5,
			quotes_expanded = $6
		WHERE uri = $1`,
		uri, e.Likes, e.Quotes, e.Reposts, e.Replies, quotesExpanded,
	)
	if err != nil {
		return fmt.Errorf("update engagement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update engagement: no row for %s", uri)
	}
	return nil
}

// MarkQuotesExpanded flips quotes_expanded to true for uri.
func (p *Postgres) MarkQuotesExpanded(ctx context.Context, uri string) error {
	if _, err := p.db.Exec(ctx, `UPDATE posts SET quotes_expanded = TRUE WHERE uri = $1`, uri); err != nil {
		return fmt.Errorf("mark quotes expanded: %w", err)
	}
	return nil
}

// NextUnexpanded returns the highest-quote-count post still awaiting
// expansion, or nil when the forest is fully caught up.
func (p *Postgres) NextUnexpanded(ctx context.Context) (*model.Post, error) {
	row := p.db.QueryRow(ctx, `
		SELECT `+postColumns+` FROM posts
		WHERE quotes_expanded = FALSE AND quote_count > 0
		ORDER BY quote_count DESC
		LIMIT 1`)
	post, err := scanPost(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next unexpanded: %w", err)
	}
	return &post, nil
}

// URIsWithQuotes lists every quoted post's URI, most quoted first.
func (p *Postgres) URIsWithQuotes(ctx context.Context) ([]string, error) {
	rows, err := p.db.Query(ctx, `
		SELECT uri FROM posts
		WHERE quote_count > 0
		ORDER BY quote_count DESC`)
	if err != nil {
		return nil, fmt.Errorf("uris with quotes: %w", err)
	}
	defer rows.Close()

	var uris []string
	for rows.Next() {
		var uri string
		if err := rows.Scan(&uri); err != nil {
			return nil, fmt.Errorf("scan uri: %w", err)
		}
		uris = append(uris, uri)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("uris with quotes: %w", err)
	}
	return uris, nil
}

// AllPosts dumps the full table for export.
func (p *Postgres) AllPosts(ctx context.Context) ([]model.Post, error) {
	return p.queryPosts(ctx, `SELECT `+postColumns+` FROM posts`)
}

// MediaPosts returns every post carrying an extracted media link.
func (p *Postgres) MediaPosts(ctx context.Context) ([]model.Post, error) {
	return p.queryPosts(ctx, `SELECT `+postColumns+` FROM posts WHERE media_url <> ''`)
}

// Stats summarizes the table.
func (p *Postgres) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	if err := p.db.QueryRow(ctx, `SELECT COUNT(*) FROM posts`).Scan(&s.TotalPosts); err != nil {
		return Stats{}, fmt.Errorf("count posts: %w", err)
	}
	if err := p.db.QueryRow(ctx, `SELECT COUNT(*) FROM posts WHERE media_url <> ''`).Scan(&s.PostsWithMedia); err != nil {
		return Stats{}, fmt.Errorf("count media posts: %w", err)
	}

	top, err := p.queryPosts(ctx, `SELECT `+postColumns+` FROM posts ORDER BY quote_count DESC LIMIT 10`)
	if err != nil {
		return Stats{}, err
	}
	s.TopQuoted = top

	rows, err := p.db.Query(ctx, `
		SELECT media_url, MAX(media_title), COUNT(*) AS cnt
		FROM posts
		WHERE media_url LIKE '%youtu%'
		GROUP BY media_url
		ORDER BY cnt DESC
		LIMIT 10`)
	if err != nil {
		return Stats{}, fmt.Errorf("top media: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var mc MediaCount
		if err := rows.Scan(&mc.URL, &mc.Title, &mc.Count); err != nil {
			return Stats{}, fmt.Errorf("scan media count: %w", err)
		}
		s.TopMedia = append(s.TopMedia, mc)
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("top media: %w", err)
	}
	return s, nil
}

// Close releases the pool.
func (p *Postgres) Close() error {
	p.db.Close()
	return nil
}

func (p *Postgres) queryPosts(ctx context.Context, sql string, args ...any) ([]model.Post, error) {
	rows, err := p.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	var posts []model.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	return posts, nil
}

func scanPost(row pgx.Row) (model.Post, error) {
	var p model.Post
	err := row.Scan(
		&p.URI, &p.CID, &p.AuthorDID, &p.AuthorHandle, &p.AuthorDisplayName,
		&p.Text, &p.CreatedAt, &p.IndexedAt,
		&p.LikeCount, &p.QuoteCount, &p.RepostCount, &p.ReplyCount,
		&p.QuotesURI, &p.EmbedType, &p.MediaURL, &p.MediaTitle, &p.MediaDescription,
		&p.FirstSeenAt, &p.QuotesExpanded,
	)
	return p, err
}
