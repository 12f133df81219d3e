package relay

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestEndpoint_Wrap(t *testing.T) {
	target := "https://www.osmosis.org/learn/Ebola_virus?x=1&y=2"

	cases := []struct {
		template string
		want     string
	}{
		{"https://cors.sh/{url}", "https://cors.sh/https://www.osmosis.org/learn/Ebola_virus?x=1&y=2"},
		{"https://corsproxy.io/?{query}", "https://corsproxy.io/?https%3A%2F%2Fwww.osmosis.org%2Flearn%2FEbola_virus%3Fx%3D1%26y%3D2"},
		{"https://relay.example/raw?url=", "https://relay.example/raw?url=" + target},
	}

	for _, tc := range cases {
		t.Run(tc.template, func(t *testing.T) {
			got := Endpoint{Template: tc.template}.Wrap(target)
			if got != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestList_OrderAndNames(t *testing.T) {
	l, err := NewList("https://a.example/{url}", "https://b.example/?u={query}", "https://a.example/alt/{url}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	eps := l.Endpoints()
	if len(eps) != 3 {
		t.Fatalf("expected 3 endpoints, got %d", len(eps))
	}

	wantNames := []string{"a.example", "b.example", "a.example#2"}
	for i, want := range wantNames {
		if eps[i].Name != want {
			t.Errorf("endpoint %d: expected name %s, got %s", i, want, eps[i].Name)
		}
	}
}

func TestList_RejectsInvalid(t *testing.T) {
	for _, tmpl := range []string{"cors.sh/{url}", "ftp://relay.example/{url}", "://bad"} {
		if _, err := NewList(tmpl); err == nil {
			t.Errorf("expected error for template %q", tmpl)
		}
	}
}

func TestList_Default(t *testing.T) {
	l := Default()
	if l.Len() != len(DefaultTemplates) {
		t.Fatalf("expected %d default relays, got %d", len(DefaultTemplates), l.Len())
	}
	if l.Endpoints()[0].Name != "cors.sh" {
		t.Errorf("expected cors.sh first, got %s", l.Endpoints()[0].Name)
	}
}

func TestList_Stats(t *testing.T) {
	l, _ := NewList("https://a.example/{url}", "https://b.example/{url}")

	_ = l.MarkFailure("a.example", errors.New("HTTP 503"))
	_ = l.MarkSuccess("b.example")
	_ = l.MarkSuccess("b.example")

	stats := l.Stats()
	if stats[0].Failures != 1 || stats[0].LastError != "HTTP 503" {
		t.Errorf("unexpected stats for a: %+v", stats[0])
	}
	if stats[1].Successes != 2 || stats[1].LastUsed.IsZero() {
		t.Errorf("unexpected stats for b: %+v", stats[1])
	}

	// order is never changed by failures
	if l.Endpoints()[0].Name != "a.example" {
		t.Errorf("expected failing relay to keep its position")
	}
}

func TestList_MarkUnknown(t *testing.T) {
	l, _ := NewList("https://a.example/{url}")

	if err := l.MarkSuccess("unknown"); err == nil {
		t.Errorf("expected error marking unknown relay success")
	}
	if err := l.MarkFailure("unknown", nil); err == nil {
		t.Errorf("expected error marking unknown relay failure")
	}
}

func TestList_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relays.txt")

	content := `
# public relays
https://cors.sh/{url}

https://corsproxy.io/?{query}
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write relay file: %v", err)
	}

	l, _ := NewList()
	if err := l.LoadFile(path); err != nil {
		t.Fatalf("failed to load file: %v", err)
	}

	eps := l.Endpoints()
	if len(eps) != 2 {
		t.Fatalf("expected 2 relays, got %d", len(eps))
	}
	if eps[1].Template != "https://corsproxy.io/?{query}" {
		t.Errorf("unexpected second template %s", eps[1].Template)
	}
}

func TestList_ZeroValue(t *testing.T) {
	var l List
	if err := l.Add("https://a.example/{url}", "https://a.example/{url}"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Len() != 2 {
		t.Fatalf("expected 2 endpoints, got %d", l.Len())
	}
	if err := l.MarkSuccess("a.example#2"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if st := l.Stats(); st[1].Successes != 1 || st[0].Successes != 0 {
		t.Errorf("unexpected stats: %+v", st)
	}
}
