package postgres

import (
	"context"
	"fmt"

	"github.com/FranksOps/reelcheck/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ensure postgresBackend implements storage.Backend
var _ storage.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS check_records (
	seq BIGSERIAL,
	id TEXT PRIMARY KEY,
	url TEXT NOT NULL,
	checked_at TIMESTAMPTZ NOT NULL,
	status TEXT NOT NULL,
	error_kind TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	has_video BOOLEAN NOT NULL,
	method TEXT NOT NULL,
	playback_controls INTEGER NOT NULL,
	video_tags INTEGER NOT NULL,
	iframes INTEGER NOT NULL,
	youtube_embeds INTEGER NOT NULL,
	playback_snippet TEXT NOT NULL DEFAULT ''
);
`

const columns = `id, url, checked_at, status, error_kind, error_message, has_video, method,
	playback_controls, video_tags, iframes, youtube_embeds, playback_snippet`

// New creates a new Postgres-backed storage.Backend.
func New(ctx context.Context, dsn string) (storage.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Save(ctx context.Context, record *storage.CheckRecord) error {
	query := `INSERT INTO check_records (` + columns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	det := record.Detection
	_, err := b.pool.Exec(ctx, query,
		record.ID,
		record.URL,
		record.CheckedAt,
		string(record.Status),
		string(record.ErrorKind),
		record.ErrorMessage,
		record.HasVideo(),
		string(det.Method),
		det.PlaybackControls,
		det.VideoTags,
		det.Iframes,
		det.YouTubeEmbeds,
		det.PlaybackSnippet,
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}

	return nil
}

func (b *postgresBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.CheckRecord, error) {
	query := `SELECT ` + columns + ` FROM check_records WHERE 1=1`
	args := []any{}
	paramCount := 1

	if filter.URL != "" {
		query += fmt.Sprintf(` AND url = $%d`, paramCount)
		args = append(args, filter.URL)
		paramCount++
	}
	if filter.HasVideo != nil {
		query += fmt.Sprintf(` AND has_video = $%d`, paramCount)
		args = append(args, *filter.HasVideo)
		paramCount++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, paramCount)
		args = append(args, string(filter.Status))
		paramCount++
	}
	if filter.Since != nil {
		query += fmt.Sprintf(` AND checked_at >= $%d`, paramCount)
		args = append(args, *filter.Since)
		paramCount++
	}

	query += ` ORDER BY checked_at DESC, seq DESC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, paramCount)
		args = append(args, filter.Limit)
		paramCount++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, paramCount)
		args = append(args, filter.Offset)
	}

	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var results []*storage.CheckRecord
	for rows.Next() {
		var r storage.CheckRecord
		var status, kind, method string

		err := rows.Scan(
			&r.ID, &r.URL, &r.CheckedAt, &status, &kind, &r.ErrorMessage, &r.Detection.HasVideo, &method,
			&r.Detection.PlaybackControls, &r.Detection.VideoTags, &r.Detection.Iframes,
			&r.Detection.YouTubeEmbeds, &r.Detection.PlaybackSnippet,
		)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}

		r.Status = storage.Status(status)
		r.ErrorKind = storage.ErrorKind(kind)
		r.Detection.Method = storage.Method(method)

		results = append(results, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	return results, nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
