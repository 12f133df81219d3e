package storage

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the outcome of checking one URL.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// ErrorKind classifies why a check failed.
type ErrorKind string

const (
	ErrorNone        ErrorKind = ""
	ErrorTimeout     ErrorKind = "timeout"
	ErrorUnreachable ErrorKind = "unreachable"
	ErrorOther       ErrorKind = "other"
)

// Method names the detection tier that produced a verdict.
type Method string

const (
	MethodPlaybackControl Method = "playback-control-marker"
	MethodVideoTag        Method = "html5-video-tag"
	MethodYouTubeEmbed    Method = "youtube-embed"
	MethodNotFound        Method = "not-found"
	MethodError           Method = "error"

	structuredPrefix = "structured-data:"
)

// StructuredMethod labels a verdict taken from a page's structured data block,
// sub-tagged with the content type found there (e.g. "structured-data:Video").
func StructuredMethod(contentType string) Method {
	return Method(structuredPrefix + contentType)
}

// IsStructured reports whether m came from the structured data tier.
func (m Method) IsStructured() bool {
	return strings.HasPrefix(string(m), structuredPrefix)
}

// Detection is the classifier's verdict for one page together with the
// diagnostic marker counts, which are filled in regardless of the tier that fired.
type Detection struct {
	HasVideo         bool
	Method           Method
	PlaybackControls int
	VideoTags        int
	Iframes          int
	YouTubeEmbeds    int
	// PlaybackSnippet is the first tag carrying the playback marker; empty when absent.
	PlaybackSnippet string
}

// CheckRecord is the immutable outcome of checking a single URL.
// Build it with NewSuccess or NewFailure.
type CheckRecord struct {
	ID           string
	URL          string
	CheckedAt    time.Time
	Status       Status
	ErrorKind    ErrorKind
	ErrorMessage string
	Detection    Detection
}

// ErrorTag prefixes the status text of failed records.
const ErrorTag = "Error:"

// NewSuccess records a completed fetch and classification.
func NewSuccess(url string, det Detection, at time.Time) CheckRecord {
	return CheckRecord{
		ID:        uuid.New().String(),
		URL:       url,
		CheckedAt: at,
		Status:    StatusSuccess,
		Detection: det,
	}
}

// NewFailure records a check that could not complete. The detection is reset
// to the error method with zero counts.
func NewFailure(url string, kind ErrorKind, message string, at time.Time) CheckRecord {
	if kind == ErrorNone {
		kind = ErrorOther
	}
	return CheckRecord{
		ID:           uuid.New().String(),
		URL:          url,
		CheckedAt:    at,
		Status:       StatusError,
		ErrorKind:    kind,
		ErrorMessage: message,
		Detection:    Detection{Method: MethodError},
	}
}

// HasVideo reports the verdict; always false for failed records.
func (r CheckRecord) HasVideo() bool {
	return r.Status == StatusSuccess && r.Detection.HasVideo
}

// StatusText is the human readable status column, "Success" or "Error: <message>".
func (r CheckRecord) StatusText() string {
	if r.Status == StatusError {
		return ErrorTag + " " + r.ErrorMessage
	}
	return "Success"
}

// Timestamp formats CheckedAt in local time with the given layout.
func (r CheckRecord) Timestamp(layout string) string {
	if r.CheckedAt.IsZero() {
		return ""
	}
	return r.CheckedAt.Local().Format(layout)
}

// Filter allows querying for specific CheckRecords.
type Filter struct {
	URL      string
	HasVideo *bool
	Status   Status
	Since    *time.Time
	Limit    int
	Offset   int
}

// Match reports whether r passes the filter's field predicates. Limit and
// Offset are applied by the backend.
func (f Filter) Match(r *CheckRecord) bool {
	if f.URL != "" && r.URL != f.URL {
		return false
	}
	if f.HasVideo != nil && r.HasVideo() != *f.HasVideo {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.Since != nil && r.CheckedAt.Before(*f.Since) {
		return false
	}
	return true
}

// Backend defines the interface for storing and querying check records.
type Backend interface {
	Save(ctx context.Context, record *CheckRecord) error
	Query(ctx context.Context, filter Filter) ([]*CheckRecord, error)
	Close() error
}
