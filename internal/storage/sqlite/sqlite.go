package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/FranksOps/reelcheck/internal/storage"
	_ "modernc.org/sqlite"
)

// ensure sqliteBackend implements storage.Backend
var _ storage.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS check_records (
	id TEXT PRIMARY KEY,
	url TEXT NOT NULL,
	checked_at DATETIME NOT NULL,
	status TEXT NOT NULL,
	error_kind TEXT,
	error_message TEXT,
	has_video BOOLEAN NOT NULL,
	method TEXT NOT NULL,
	playback_controls INTEGER NOT NULL,
	video_tags INTEGER NOT NULL,
	iframes INTEGER NOT NULL,
	youtube_embeds INTEGER NOT NULL,
	playback_snippet TEXT
);
CREATE INDEX IF NOT EXISTS idx_check_records_checked_at ON check_records (checked_at);
`

const columns = `id, url, checked_at, status, error_kind, error_message, has_video, method,
	playback_controls, video_tags, iframes, youtube_embeds, playback_snippet`

// New creates a new SQLite-backed storage.Backend.
func New(dsn string) (storage.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Save(ctx context.Context, record *storage.CheckRecord) error {
	query := `INSERT INTO check_records (` + columns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	det := record.Detection
	_, err := b.db.ExecContext(ctx, query,
		record.ID,
		record.URL,
		record.CheckedAt.UTC(),
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

func (b *sqliteBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.CheckRecord, error) {
	query := `SELECT ` + columns + ` FROM check_records WHERE 1=1`
	args := []any{}

	if filter.URL != "" {
		query += ` AND url = ?`
		args = append(args, filter.URL)
	}
	if filter.HasVideo != nil {
		query += ` AND has_video = ?`
		args = append(args, *filter.HasVideo)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Since != nil {
		query += ` AND checked_at >= ?`
		args = append(args, filter.Since.UTC())
	}

	query += ` ORDER BY checked_at DESC, rowid DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	} else if filter.Offset > 0 {
		query += ` LIMIT -1`
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var results []*storage.CheckRecord
	for rows.Next() {
		var r storage.CheckRecord
		var status, kind, method string
		var errMsg, snippet sql.NullString

		err := rows.Scan(
			&r.ID, &r.URL, &r.CheckedAt, &status, &kind, &errMsg, &r.Detection.HasVideo, &method,
			&r.Detection.PlaybackControls, &r.Detection.VideoTags, &r.Detection.Iframes,
			&r.Detection.YouTubeEmbeds, &snippet,
		)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}

		r.Status = storage.Status(status)
		r.ErrorKind = storage.ErrorKind(kind)
		r.ErrorMessage = errMsg.String
		r.Detection.Method = storage.Method(method)
		r.Detection.PlaybackSnippet = snippet.String

		results = append(results, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	return results, nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
