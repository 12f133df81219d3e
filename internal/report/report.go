package report

import (
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"io"
	"math"
	"text/template"
	"time"

	"github.com/FranksOps/reelcheck/internal/storage"
	"github.com/FranksOps/reelcheck/pkg/relay"
)

// Summary contains aggregated figures about a batch of checks.
type Summary struct {
	Total        int
	WithVideo    int
	WithoutVideo int
	Errors       int
	// Percentages of Total, rounded to one decimal.
	WithVideoPct    float64
	WithoutVideoPct float64
	ErrorPct        float64
	ByMethod        map[storage.Method]int
	ByErrorKind     map[storage.ErrorKind]int
	// Relays is filled in by callers that have relay stats for the run.
	Relays    []relay.Stats `json:",omitempty"`
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

// GenerateSummary processes check records into summary figures. Without
// video counts successful checks only; failed checks are counted as Errors.
func GenerateSummary(records []storage.CheckRecord) Summary {
	s := Summary{
		ByMethod:    make(map[storage.Method]int),
		ByErrorKind: make(map[storage.ErrorKind]int),
	}

	if len(records) == 0 {
		return s
	}

	s.StartTime = records[0].CheckedAt
	s.EndTime = records[0].CheckedAt

	for _, r := range records {
		s.Total++
		switch {
		case r.Status == storage.StatusError:
			s.Errors++
			s.ByErrorKind[r.ErrorKind]++
		case r.HasVideo():
			s.WithVideo++
		default:
			s.WithoutVideo++
		}
		s.ByMethod[r.Detection.Method]++

		if r.CheckedAt.Before(s.StartTime) {
			s.StartTime = r.CheckedAt
		}
		if r.CheckedAt.After(s.EndTime) {
			s.EndTime = r.CheckedAt
		}
	}

	s.WithVideoPct = percent(s.WithVideo, s.Total)
	s.WithoutVideoPct = percent(s.WithoutVideo, s.Total)
	s.ErrorPct = percent(s.Errors, s.Total)
	s.Duration = s.EndTime.Sub(s.StartTime)
	return s
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(n)*1000/float64(total)) / 10
}

// WriteJSON writes the summary to the provided writer in JSON format.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return nil
}

const textTmpl = `Reelcheck Summary
-----------------
Time:           {{.StartTime.Format "2006-01-02 15:04:05"}} - {{.EndTime.Format "2006-01-02 15:04:05"}}
Duration:       {{.Duration}}
Total Checked:  {{.Total}} URLs
With Video:     {{.WithVideo}} ({{printf "%.1f" .WithVideoPct}}%)
Without Video:  {{.WithoutVideo}} ({{printf "%.1f" .WithoutVideoPct}}%)
Errors:         {{.Errors}} ({{printf "%.1f" .ErrorPct}}%)

Detection Methods:
{{- range $method, $count := .ByMethod}}
  {{$method}}: {{$count}}
{{- else}}
  None
{{- end}}

Error Kinds:
{{- range $kind, $count := .ByErrorKind}}
  {{$kind}}: {{$count}}
{{- else}}
  None
{{- end}}
{{- if .Relays}}

Relays:
{{- range .Relays}}
  {{.Name}}: {{.Successes}} ok, {{.Failures}} failed{{if .LastError}} (last: {{.LastError}}){{end}}
{{- end}}
{{- end}}
`

// WriteText writes a human-readable text summary to the provided writer.
func WriteText(w io.Writer, summary Summary) error {
	t, err := template.New("textReport").Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("parse text template: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("render text report: %w", err)
	}

	return nil
}

const htmlTmpl = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Reelcheck Report</title>
<style>
  body { font-family: sans-serif; margin: 40px; color: #333; }
  h1 { border-bottom: 2px solid #ccc; padding-bottom: 10px; }
  .stat-card { display: inline-block; padding: 20px; margin: 10px 10px 10px 0; background: #f4f4f4; border-radius: 5px; min-width: 150px; }
  .stat-val { font-size: 24px; font-weight: bold; }
  .stat-pct { color: #777; }
  table { border-collapse: collapse; margin-top: 10px; }
  th, td { padding: 8px 12px; border: 1px solid #ccc; text-align: left; }
  th { background: #eaeaea; }
</style>
</head>
<body>
  <h1>Reelcheck Report</h1>
  <p><strong>Time:</strong> {{.StartTime.Format "2006-01-02 15:04:05"}} to {{.EndTime.Format "2006-01-02 15:04:05"}} ({{.Duration}})</p>

  <div class="stat-card">
    <div>Total Checked</div>
    <div class="stat-val">{{.Total}}</div>
  </div>
  <div class="stat-card">
    <div>With Video</div>
    <div class="stat-val" style="color: green;">{{.WithVideo}}</div>
    <div class="stat-pct">{{printf "%.1f" .WithVideoPct}}%</div>
  </div>
  <div class="stat-card">
    <div>Without Video</div>
    <div class="stat-val">{{.WithoutVideo}}</div>
    <div class="stat-pct">{{printf "%.1f" .WithoutVideoPct}}%</div>
  </div>
  <div class="stat-card">
    <div>Errors</div>
    <div class="stat-val" style="color: {{if gt .Errors 0}}red{{else}}green{{end}};">{{.Errors}}</div>
    <div class="stat-pct">{{printf "%.1f" .ErrorPct}}%</div>
  </div>

  <h3>Detection Methods</h3>
  <table>
    <tr><th>Method</th><th>Count</th></tr>
    {{- range $method, $count := .ByMethod}}
    <tr><td>{{$method}}</td><td>{{$count}}</td></tr>
    {{- else}}
    <tr><td colspan="2">None</td></tr>
    {{- end}}
  </table>

  <h3>Error Kinds</h3>
  <table>
    <tr><th>Kind</th><th>Count</th></tr>
    {{- range $kind, $count := .ByErrorKind}}
    <tr><td>{{$kind}}</td><td>{{$count}}</td></tr>
    {{- else}}
    <tr><td colspan="2">None</td></tr>
    {{- end}}
  </table>
  {{- if .Relays}}

  <h3>Relays</h3>
  <table>
    <tr><th>Relay</th><th>Succeeded</th><th>Failed</th><th>Last Error</th></tr>
    {{- range .Relays}}
    <tr><td>{{.Name}}</td><td>{{.Successes}}</td><td>{{.Failures}}</td><td>{{.LastError}}</td></tr>
    {{- end}}
  </table>
  {{- end}}
</body>
</html>
`

// WriteHTML writes a basic HTML report to the provided writer.
func WriteHTML(w io.Writer, summary Summary) error {
	t, err := htmltemplate.New("htmlReport").Parse(htmlTmpl)
	if err != nil {
		return fmt.Errorf("parse html template: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("render html report: %w", err)
	}

	return nil
}
