package export

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/FranksOps/reelcheck/internal/storage"
)

const (
	// DefaultFilename is the export file name used when none is given.
	DefaultFilename = "osmosis_results.csv"
	// DefaultTimestampLayout renders the Timestamp column.
	DefaultTimestampLayout = "2006-01-02 15:04:05"
)

// bom makes spreadsheet applications read the file as UTF-8.
var bom = []byte{0xEF, 0xBB, 0xBF}

// Header defines the CSV column order.
var Header = []string{
	"URL",
	"Has Video",
	"Status",
	"Detection Method",
	"Timestamp",
	"Playback Speed Button Count",
	"Video Tag Count",
	"iFrame Count",
	"YouTube Embed Count",
	"Playback Speed Button Element",
}

// Row renders one record in Header order.
func Row(rec *storage.CheckRecord, layout string) []string {
	if layout == "" {
		layout = DefaultTimestampLayout
	}
	hasVideo := "No"
	if rec.HasVideo() {
		hasVideo = "Yes"
	}
	d := rec.Detection
	return []string{
		rec.URL,
		hasVideo,
		rec.StatusText(),
		string(d.Method),
		rec.Timestamp(layout),
		strconv.Itoa(d.PlaybackControls),
		strconv.Itoa(d.VideoTags),
		strconv.Itoa(d.Iframes),
		strconv.Itoa(d.YouTubeEmbeds),
		d.PlaybackSnippet,
	}
}

// CSV renders records as a BOM-prefixed document. Rows are separated by a
// single "\n" and the last row has no terminator.
func CSV(records []storage.CheckRecord, layout string) []byte {
	var buf bytes.Buffer
	_ = WriteCSV(&buf, records, layout)
	return buf.Bytes()
}

// WriteCSV writes the document produced by CSV to w.
func WriteCSV(w io.Writer, records []storage.CheckRecord, layout string) error {
	var b strings.Builder
	b.Write(bom)
	writeLine(&b, Header)
	for i := range records {
		b.WriteByte('\n')
		writeLine(&b, Row(&records[i], layout))
	}
	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// WriteFile writes records to path, DefaultFilename if path is empty.
func WriteFile(path string, records []storage.CheckRecord, layout string) error {
	if path == "" {
		path = DefaultFilename
	}
	if err := os.WriteFile(path, CSV(records, layout), 0o644); err != nil {
		return fmt.Errorf("write csv file: %w", err)
	}
	return nil
}

func writeLine(b *strings.Builder, fields []string) {
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(Escape(f))
	}
}

// Escape quotes a field only when it contains a comma, a double quote or a
// newline, doubling embedded quotes.
func Escape(field string) string {
	if !strings.ContainsAny(field, ",\"\n") {
		return field
	}
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}
