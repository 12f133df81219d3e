package useragent

import (
	"crypto/rand"
	"math/big"
	"sync/atomic"
)

// Defaults are current desktop browser User-Agents. Relays forward them to the
// target site, so a browser string keeps pages rendering their normal markup.
var Defaults = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:127.0) Gecko/20100101 Firefox/127.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:127.0) Gecko/20100101 Firefox/127.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36 Edg/126.0.0.0",
}

// Pool hands out User-Agent strings in rotation. It is safe for concurrent use.
type Pool struct {
	uas     []string
	counter atomic.Uint64
}

// NewPool creates a pool over uas, or over Defaults when uas is empty.
// Blank entries are dropped.
func NewPool(uas []string) *Pool {
	var kept []string
	for _, ua := range uas {
		if ua != "" {
			kept = append(kept, ua)
		}
	}
	if len(kept) == 0 {
		kept = append(kept, Defaults...)
	}
	return &Pool{uas: kept}
}

// Next returns the next User-Agent in round-robin order.
func (p *Pool) Next() string {
	idx := p.counter.Add(1) - 1
	return p.uas[idx%uint64(len(p.uas))]
}

// Random returns a uniformly chosen User-Agent, falling back to Next if
// crypto/rand fails.
func (p *Pool) Random() string {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(p.uas))))
	if err != nil {
		return p.Next()
	}
	return p.uas[n.Int64()]
}

// Len returns the number of User-Agents in the pool.
func (p *Pool) Len() int {
	return len(p.uas)
}
