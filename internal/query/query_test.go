package query

import (
	"reflect"
	"testing"
	"time"

	"github.com/FranksOps/reelcheck/internal/storage"
)

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func sample() []storage.CheckRecord {
	return []storage.CheckRecord{
		storage.NewSuccess("https://example.org/Watch/1", storage.Detection{HasVideo: true, Method: storage.MethodVideoTag, VideoTags: 2}, base.Add(3*time.Minute)),
		storage.NewFailure("https://example.org/broken", storage.ErrorTimeout, "response took too long (timeout)", base.Add(1*time.Minute)),
		storage.NewSuccess("https://example.org/article", storage.Detection{Method: storage.MethodNotFound, Iframes: 1}, base.Add(2*time.Minute)),
		storage.NewSuccess("https://example.org/watch/2", storage.Detection{HasVideo: true, Method: storage.MethodPlaybackControl, PlaybackControls: 1}, base),
	}
}

func urls(recs []storage.CheckRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.URL
	}
	return out
}

func TestRun_StatusFilter(t *testing.T) {
	recs := sample()
	cases := []struct {
		filter StatusFilter
		want   []string
	}{
		{All, []string{"https://example.org/Watch/1", "https://example.org/broken", "https://example.org/article", "https://example.org/watch/2"}},
		{HasVideo, []string{"https://example.org/Watch/1", "https://example.org/watch/2"}},
		{NoVideo, []string{"https://example.org/article"}},
		{Failed, []string{"https://example.org/broken"}},
		{"", []string{"https://example.org/Watch/1", "https://example.org/broken", "https://example.org/article", "https://example.org/watch/2"}},
	}

	for _, tc := range cases {
		t.Run(string(tc.filter), func(t *testing.T) {
			got := urls(Run(recs, Query{Status: tc.filter}))
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestRun_URLContainsIsCaseInsensitive(t *testing.T) {
	got := urls(Run(sample(), Query{URLContains: "WATCH"}))
	want := []string{"https://example.org/Watch/1", "https://example.org/watch/2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	got = urls(Run(sample(), Query{Status: HasVideo, URLContains: "/2"}))
	if !reflect.DeepEqual(got, []string{"https://example.org/watch/2"}) {
		t.Errorf("expected filters to combine, got %v", got)
	}
}

func TestRun_Sort(t *testing.T) {
	recs := sample()
	cases := []struct {
		key  SortKey
		desc bool
		want []string
	}{
		{ByTimestamp, false, []string{"https://example.org/watch/2", "https://example.org/broken", "https://example.org/article", "https://example.org/Watch/1"}},
		{ByTimestamp, true, []string{"https://example.org/Watch/1", "https://example.org/article", "https://example.org/broken", "https://example.org/watch/2"}},
		{ByURL, false, []string{"https://example.org/Watch/1", "https://example.org/article", "https://example.org/broken", "https://example.org/watch/2"}},
		// stable: equal keys keep input order in both directions
		{ByHasVideo, false, []string{"https://example.org/broken", "https://example.org/article", "https://example.org/Watch/1", "https://example.org/watch/2"}},
		{ByHasVideo, true, []string{"https://example.org/Watch/1", "https://example.org/watch/2", "https://example.org/broken", "https://example.org/article"}},
		{ByVideoTags, true, []string{"https://example.org/Watch/1", "https://example.org/broken", "https://example.org/article", "https://example.org/watch/2"}},
		{ByStatus, false, []string{"https://example.org/broken", "https://example.org/Watch/1", "https://example.org/article", "https://example.org/watch/2"}},
		{ByNone, true, []string{"https://example.org/Watch/1", "https://example.org/broken", "https://example.org/article", "https://example.org/watch/2"}},
	}

	for _, tc := range cases {
		t.Run(string(tc.key), func(t *testing.T) {
			got := urls(Run(recs, Query{Sort: tc.key, Desc: tc.desc}))
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("sort %s desc=%v: expected %v, got %v", tc.key, tc.desc, tc.want, got)
			}
		})
	}

	if recs[0].URL != "https://example.org/Watch/1" {
		t.Errorf("expected input to be left untouched")
	}
}

func TestRun_NoVideoScenario(t *testing.T) {
	recs := []storage.CheckRecord{
		storage.NewSuccess("https://example.org/a", storage.Detection{Method: storage.MethodNotFound}, base),
		storage.NewSuccess("https://example.org/a?note", storage.Detection{Method: storage.MethodNotFound}, base),
	}

	if got := Run(recs, Query{Status: NoVideo}); len(got) != 2 {
		t.Errorf("expected both records for no-video, got %d", len(got))
	}
	if got := Run(recs, Query{Status: HasVideo}); len(got) != 0 {
		t.Errorf("expected no records for has-video, got %d", len(got))
	}
}

func TestSorter_Select(t *testing.T) {
	var s Sorter

	s.Select(ByURL)
	if s.Key != ByURL || s.Desc {
		t.Errorf("expected url ascending, got %+v", s)
	}
	s.Select(ByURL)
	if !s.Desc {
		t.Errorf("expected second click to flip to descending")
	}
	s.Select(ByURL)
	if s.Desc {
		t.Errorf("expected third click to flip back to ascending")
	}
	s.Select(ByMethod)
	if s.Key != ByMethod || s.Desc {
		t.Errorf("expected new key to start ascending, got %+v", s)
	}

	q := s.Apply(Query{Status: HasVideo})
	if q.Sort != ByMethod || q.Desc || q.Status != HasVideo {
		t.Errorf("unexpected applied query: %+v", q)
	}
}

func TestParse(t *testing.T) {
	if f, err := ParseStatusFilter("No-Video"); err != nil || f != NoVideo {
		t.Errorf("expected no-video, got %q %v", f, err)
	}
	if _, err := ParseStatusFilter("maybe"); err == nil {
		t.Errorf("expected error for unknown filter")
	}
	for _, k := range SortKeys {
		if got, err := ParseSortKey(string(k)); err != nil || got != k {
			t.Errorf("ParseSortKey(%q): got %q %v", k, got, err)
		}
	}
	if _, err := ParseSortKey("size"); err == nil {
		t.Errorf("expected error for unknown sort key")
	}
}

func TestURLs(t *testing.T) {
	got := URLs(Run(sample(), Query{Status: HasVideo}))
	if got != "https://example.org/Watch/1\nhttps://example.org/watch/2" {
		t.Errorf("unexpected joined urls: %q", got)
	}
	if URLs(nil) != "" {
		t.Errorf("expected empty string for no records")
	}
}
