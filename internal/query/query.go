package query

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/FranksOps/reelcheck/internal/storage"
)

// StatusFilter selects records by outcome.
type StatusFilter string

const (
	All      StatusFilter = "all"
	HasVideo StatusFilter = "has-video"
	NoVideo  StatusFilter = "no-video"
	Failed   StatusFilter = "error"
)

// ParseStatusFilter resolves a filter name. The empty string selects All.
func ParseStatusFilter(s string) (StatusFilter, error) {
	switch f := StatusFilter(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return All, nil
	case All, HasVideo, NoVideo, Failed:
		return f, nil
	}
	return "", fmt.Errorf("query: unknown status filter %q (want all, has-video, no-video or error)", s)
}

// Match reports whether rec passes the filter. NoVideo only admits successful
// checks; failed records are never counted as "no video".
func (f StatusFilter) Match(rec *storage.CheckRecord) bool {
	switch f {
	case HasVideo:
		return rec.HasVideo()
	case NoVideo:
		return rec.Status == storage.StatusSuccess && !rec.HasVideo()
	case Failed:
		return rec.Status == storage.StatusError
	default:
		return true
	}
}

// SortKey names a result column.
type SortKey string

const (
	ByNone      SortKey = ""
	ByURL       SortKey = "url"
	ByHasVideo  SortKey = "has_video"
	ByStatus    SortKey = "status"
	ByMethod    SortKey = "method"
	ByTimestamp SortKey = "timestamp"
	ByPlayback  SortKey = "playback"
	ByVideoTags SortKey = "video_tags"
	ByIframes   SortKey = "iframes"
	ByYouTube   SortKey = "youtube"
	BySnippet   SortKey = "snippet"
)

// SortKeys lists every sortable column.
var SortKeys = []SortKey{ByURL, ByHasVideo, ByStatus, ByMethod, ByTimestamp, ByPlayback, ByVideoTags, ByIframes, ByYouTube, BySnippet}

var comparators = map[SortKey]func(a, b *storage.CheckRecord) int{
	ByURL:       func(a, b *storage.CheckRecord) int { return strings.Compare(a.URL, b.URL) },
	ByHasVideo:  func(a, b *storage.CheckRecord) int { return compareBool(a.HasVideo(), b.HasVideo()) },
	ByStatus:    func(a, b *storage.CheckRecord) int { return strings.Compare(a.StatusText(), b.StatusText()) },
	ByMethod:    func(a, b *storage.CheckRecord) int { return strings.Compare(string(a.Detection.Method), string(b.Detection.Method)) },
	ByTimestamp: func(a, b *storage.CheckRecord) int { return a.CheckedAt.Compare(b.CheckedAt) },
	ByPlayback:  func(a, b *storage.CheckRecord) int { return cmp.Compare(a.Detection.PlaybackControls, b.Detection.PlaybackControls) },
	ByVideoTags: func(a, b *storage.CheckRecord) int { return cmp.Compare(a.Detection.VideoTags, b.Detection.VideoTags) },
	ByIframes:   func(a, b *storage.CheckRecord) int { return cmp.Compare(a.Detection.Iframes, b.Detection.Iframes) },
	ByYouTube:   func(a, b *storage.CheckRecord) int { return cmp.Compare(a.Detection.YouTubeEmbeds, b.Detection.YouTubeEmbeds) },
	BySnippet:   func(a, b *storage.CheckRecord) int { return strings.Compare(a.Detection.PlaybackSnippet, b.Detection.PlaybackSnippet) },
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return 1
	default:
		return -1
	}
}

// ParseSortKey resolves a column name. The empty string means no sorting.
func ParseSortKey(s string) (SortKey, error) {
	k := SortKey(strings.ToLower(strings.TrimSpace(s)))
	if k == ByNone {
		return ByNone, nil
	}
	if _, ok := comparators[k]; !ok {
		return "", fmt.Errorf("query: unknown sort key %q", s)
	}
	return k, nil
}

// Query describes a view over a result log.
type Query struct {
	Status      StatusFilter
	URLContains string
	Sort        SortKey
	Desc        bool
}

// Run filters records and then sorts them. The input is left untouched.
// Sorting is stable in both directions: records with equal keys keep their
// input order.
func Run(records []storage.CheckRecord, q Query) []storage.CheckRecord {
	needle := strings.ToLower(q.URLContains)
	out := make([]storage.CheckRecord, 0, len(records))
	for i := range records {
		rec := &records[i]
		if !q.Status.Match(rec) {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(rec.URL), needle) {
			continue
		}
		out = append(out, *rec)
	}

	compare, ok := comparators[q.Sort]
	if !ok {
		return out
	}
	slices.SortStableFunc(out, func(a, b storage.CheckRecord) int {
		c := compare(&a, &b)
		if q.Desc {
			return -c
		}
		return c
	})
	return out
}

// Sorter tracks the active sort column the way a clickable table header does:
// selecting the active key flips direction, selecting a new key sorts it
// ascending.
type Sorter struct {
	Key  SortKey
	Desc bool
}

// Select applies a header click.
func (s *Sorter) Select(key SortKey) {
	if s.Key == key {
		s.Desc = !s.Desc
		return
	}
	s.Key = key
	s.Desc = false
}

// Apply sets the sort fields of q from the sorter.
func (s Sorter) Apply(q Query) Query {
	q.Sort = s.Key
	q.Desc = s.Desc
	return q
}

// URLs joins the record URLs with newlines, for pasting elsewhere.
func URLs(records []storage.CheckRecord) string {
	urls := make([]string, len(records))
	for i, rec := range records {
		urls[i] = rec.URL
	}
	return strings.Join(urls, "\n")
}
