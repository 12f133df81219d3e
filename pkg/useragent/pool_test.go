package useragent

import (
	"sync"
	"testing"
)

func TestPool_Next(t *testing.T) {
	p := NewPool([]string{"A", "", "B"})

	want := []string{"A", "B", "A"}
	for i, w := range want {
		if got := p.Next(); got != w {
			t.Errorf("call %d: expected %s, got %s", i, w, got)
		}
	}
}

func TestPool_Defaults(t *testing.T) {
	p := NewPool(nil)
	if p.Len() != len(Defaults) {
		t.Errorf("expected pool length %d, got %d", len(Defaults), p.Len())
	}
	if got := p.Next(); got != Defaults[0] {
		t.Errorf("expected %s, got %s", Defaults[0], got)
	}

	// blank-only input also falls back
	if NewPool([]string{""}).Len() != len(Defaults) {
		t.Errorf("expected blank-only input to fall back to defaults")
	}
}

func TestPool_Random(t *testing.T) {
	p := NewPool([]string{"A", "B"})

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		got := p.Random()
		if got != "A" && got != "B" {
			t.Fatalf("unexpected UA: %s", got)
		}
		seen[got] = true
	}

	if len(seen) != 2 {
		t.Errorf("expected to see both A and B, saw %v", seen)
	}
}

func TestPool_Concurrency(t *testing.T) {
	p := NewPool([]string{"A", "B", "C"})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Next()
			_ = p.Random()
		}()
	}
	wg.Wait()

	if got := p.counter.Load(); got < 50 {
		t.Errorf("expected at least 50 sequential draws, got %d", got)
	}
}
