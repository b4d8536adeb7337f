package scan

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dshills/taskaroo/internal/task"
)

// Loader receives the records of a completed scan.
type Loader interface {
	Load(records []task.Record)
}

// Refresher scans and loads results so that the last refresh started is
// the one whose records end up loaded. A superseded scan still runs its
// I/O to completion; only its load is skipped.
type Refresher struct {
	scanner *Scanner
	loader  Loader

	gen atomic.Uint64
	mu  sync.Mutex
}

// NewRefresher creates a refresher loading into loader.
func NewRefresher(scanner *Scanner, loader Loader) *Refresher {
	return &Refresher{scanner: scanner, loader: loader}
}

// Refresh runs one scan. The result is loaded only if no newer refresh
// started meanwhile; otherwise it is returned with Superseded set.
func (r *Refresher) Refresh(ctx context.Context) (*Result, error) {
	gen := r.gen.Add(1)

	res, err := r.scanner.Scan(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gen.Load() != gen {
		res.Superseded = true
		r.scanner.logger.WithField("scan", res.ID.String()).Debug("discarding superseded scan")
		return res, nil
	}
	r.loader.Load(res.Records)
	return res, nil
}

// Generation returns the number of refreshes started.
func (r *Refresher) Generation() uint64 {
	return r.gen.Load()
}
