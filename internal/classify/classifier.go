package classify

import (
	"encoding/json"
	"strings"

	"github.com/FranksOps/reelcheck/internal/storage"
	"github.com/PuerkitoBio/goquery"
)

// Markers counted on every page. Matching is case-sensitive.
const (
	MarkerPlayback = "playback-speed-button"
	MarkerVideoTag = "<video"
	MarkerIframe   = "<iframe"
	MarkerYouTube  = "youtube.com/embed/"
)

// VideoTypename is the structured-data content type of a video page.
const VideoTypename = "Video"

const nextDataSelector = `script#__NEXT_DATA__[type="application/json"]`

// Signal inspects a page after the marker counts are filled in. It updates d
// and returns true when it decided the page has a video.
type Signal func(html string, d *storage.Detection) bool

// DefaultSignals returns the fallback signals in priority order.
func DefaultSignals() []Signal {
	return []Signal{
		playbackControl,
		videoTag,
		youtubeEmbed,
	}
}

// Classify decides whether html hosts a video using DefaultSignals.
func Classify(html string) storage.Detection {
	return ClassifyWith(html, DefaultSignals())
}

// ClassifyWith runs the structured-data check first, counts the markers, and
// consults signals in order while no video has been confirmed. Without a
// verdict the method is not-found, unless a structured label was recorded.
func ClassifyWith(html string, signals []Signal) storage.Detection {
	d := storage.Detection{Method: storage.MethodNotFound}

	if typename := nextDataTypename(html); typename != "" {
		d.Method = storage.StructuredMethod(typename)
		d.HasVideo = typename == VideoTypename
	}

	d.PlaybackControls = strings.Count(html, MarkerPlayback)
	d.VideoTags = strings.Count(html, MarkerVideoTag)
	d.Iframes = strings.Count(html, MarkerIframe)
	d.YouTubeEmbeds = strings.Count(html, MarkerYouTube)

	if d.HasVideo {
		return d
	}
	for _, s := range signals {
		if s(html, &d) {
			d.HasVideo = true
			return d
		}
	}
	return d
}

type nextData struct {
	Props struct {
		PageProps struct {
			Page struct {
				Content struct {
					Typename string `json:"__typename"`
				} `json:"content"`
			} `json:"page"`
		} `json:"pageProps"`
	} `json:"props"`
}

// nextDataTypename extracts props.pageProps.page.content.__typename from the
// page's __NEXT_DATA__ block. Missing blocks and malformed JSON yield "".
func nextDataTypename(html string) string {
	if !strings.Contains(html, "__NEXT_DATA__") {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	raw := doc.Find(nextDataSelector).First().Text()
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	var data nextData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return ""
	}
	return data.Props.PageProps.Page.Content.Typename
}

func playbackControl(html string, d *storage.Detection) bool {
	if d.PlaybackControls == 0 {
		return false
	}
	d.Method = storage.MethodPlaybackControl
	d.PlaybackSnippet = elementSnippet(html, MarkerPlayback)
	return true
}

func videoTag(_ string, d *storage.Detection) bool {
	if d.VideoTags == 0 {
		return false
	}
	d.Method = storage.MethodVideoTag
	return true
}

func youtubeEmbed(_ string, d *storage.Detection) bool {
	if d.YouTubeEmbeds == 0 {
		return false
	}
	d.Method = storage.MethodYouTubeEmbed
	return true
}

// elementSnippet returns the opening tag enclosing the first occurrence of
// marker: from the last '<' at or before it through the next '>'.
func elementSnippet(html, marker string) string {
	idx := strings.Index(html, marker)
	if idx < 0 {
		return ""
	}
	start := strings.LastIndex(html[:idx+1], "<")
	if start < 0 {
		return ""
	}
	end := strings.IndexByte(html[start:], '>')
	if end <= 0 {
		return ""
	}
	return html[start : start+end+1]
}
