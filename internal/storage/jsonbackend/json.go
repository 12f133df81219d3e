package jsonbackend

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/FranksOps/reelcheck/internal/storage"
)

// ensure jsonBackend implements storage.Backend
var _ storage.Backend = (*jsonBackend)(nil)

// maxLine bounds a single NDJSON line; snippets are small but URLs can be long.
const maxLine = 1 << 20

type jsonBackend struct {
	mu   sync.Mutex
	file *os.File
}

// line is the on-disk shape of one record.
type line struct {
	ID               string    `json:"id"`
	URL              string    `json:"url"`
	CheckedAt        time.Time `json:"checked_at"`
	Status           string    `json:"status"`
	ErrorKind        string    `json:"error_kind,omitempty"`
	ErrorMessage     string    `json:"error_message,omitempty"`
	HasVideo         bool      `json:"has_video"`
	Method           string    `json:"method"`
	PlaybackControls int       `json:"playback_controls"`
	VideoTags        int       `json:"video_tags"`
	Iframes          int       `json:"iframes"`
	YouTubeEmbeds    int       `json:"youtube_embeds"`
	PlaybackSnippet  string    `json:"playback_snippet,omitempty"`
}

func toLine(r *storage.CheckRecord) line {
	return line{
		ID:               r.ID,
		URL:              r.URL,
		CheckedAt:        r.CheckedAt,
		Status:           string(r.Status),
		ErrorKind:        string(r.ErrorKind),
		ErrorMessage:     r.ErrorMessage,
		HasVideo:         r.HasVideo(),
		Method:           string(r.Detection.Method),
		PlaybackControls: r.Detection.PlaybackControls,
		VideoTags:        r.Detection.VideoTags,
		Iframes:          r.Detection.Iframes,
		YouTubeEmbeds:    r.Detection.YouTubeEmbeds,
		PlaybackSnippet:  r.Detection.PlaybackSnippet,
	}
}

func (l line) record() *storage.CheckRecord {
	return &storage.CheckRecord{
		ID:           l.ID,
		URL:          l.URL,
		CheckedAt:    l.CheckedAt,
		Status:       storage.Status(l.Status),
		ErrorKind:    storage.ErrorKind(l.ErrorKind),
		ErrorMessage: l.ErrorMessage,
		Detection: storage.Detection{
			HasVideo:         l.HasVideo,
			Method:           storage.Method(l.Method),
			PlaybackControls: l.PlaybackControls,
			VideoTags:        l.VideoTags,
			Iframes:          l.Iframes,
			YouTubeEmbeds:    l.YouTubeEmbeds,
			PlaybackSnippet:  l.PlaybackSnippet,
		},
	}
}

// New creates a new NDJSON-backed storage.Backend.
func New(filePath string) (storage.Backend, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filePath, err)
	}

	return &jsonBackend{
		file: f,
	}, nil
}

func (b *jsonBackend) Save(ctx context.Context, record *storage.CheckRecord) error {
	data, err := json.Marshal(toLine(record))
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append record: %w", err)
	}

	return nil
}

func (b *jsonBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.CheckRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind: %w", err)
	}
	defer func() {
		// Restore pointer to end for writing
		_, _ = b.file.Seek(0, io.SeekEnd)
	}()

	scanner := bufio.NewScanner(b.file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)

	// Lines are appended in check order, so reversing yields newest first.
	var allFiltered []*storage.CheckRecord

	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var l line
		if err := json.Unmarshal(raw, &l); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}

		r := l.record()
		if !filter.Match(r) {
			continue
		}
		allFiltered = append(allFiltered, r)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan records: %w", err)
	}

	for i, j := 0, len(allFiltered)-1; i < j; i, j = i+1, j-1 {
		allFiltered[i], allFiltered[j] = allFiltered[j], allFiltered[i]
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(allFiltered) {
			return []*storage.CheckRecord{}, nil
		}
		allFiltered = allFiltered[filter.Offset:]
	}

	if filter.Limit > 0 && filter.Limit < len(allFiltered) {
		allFiltered = allFiltered[:filter.Limit]
	}

	return allFiltered, nil
}

func (b *jsonBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
