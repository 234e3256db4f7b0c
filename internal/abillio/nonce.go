package abillio

import (
	"sync/atomic"
	"time"
)

// NonceSource hands out millisecond timestamps that never go backwards within the process,
// even if the wall clock is stepped back.
type NonceSource struct {
	now  func() time.Time
	last atomic.Int64
}

func NewNonceSource(now func() time.Time) *NonceSource {
	if now == nil {
		now = time.Now
	}
	return &NonceSource{now: now}
}

// Next returns max(now in ms, last value issued)
func (n *NonceSource) Next() int64 {
	for {
		last := n.last.Load()
		ts := n.now().UnixMilli()
		if ts < last {
			ts = last
		}
		if n.last.CompareAndSwap(last, ts) {
			return ts
		}
	}
}
