// SPDX-License-Identifier: GPL-3.0-or-later

// Package closepool collects the daemon's long-lived resources
// (listeners, servers, the service apply loop) and shuts them down
// in a single operation, in reverse registration order.
package closepool

import (
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
)

// Pool holds named [io.Closer] handles.
//
// The zero value is ready to use.
type Pool struct {
	// Logger optionally emits one event per closed handle. May
	// be nil.
	Logger *slog.Logger

	// handles contains the closers with their names.
	handles []handle

	// mu provides mutual exclusion.
	mu sync.Mutex
}

// handle pairs a closer with the name used in shutdown logs.
type handle struct {
	name   string
	closer io.Closer
}

// Add registers a named [io.Closer].
func (p *Pool) Add(name string, closer io.Closer) {
	p.mu.Lock()
	p.handles = append(p.handles, handle{name: name, closer: closer})
	p.mu.Unlock()
}

// closerFunc adapts a function to [io.Closer].
type closerFunc func() error

func (fn closerFunc) Close() error {
	return fn()
}

// AddFunc registers a named shutdown function.
func (p *Pool) AddFunc(name string, fn func() error) {
	p.Add(name, closerFunc(fn))
}

// Close closes every handle in backward order, so resources built
// on top of earlier ones go first. The returned error joins all
// close errors.
func (p *Pool) Close() error {
	p.mu.Lock()
	handles := p.handles
	p.handles = nil
	p.mu.Unlock()

	var errv []error
	for _, h := range slices.Backward(handles) {
		err := h.closer.Close()
		if err != nil {
			errv = append(errv, err)
		}
		if p.Logger != nil {
			p.Logger.Info("closed",
				slog.String("handle", h.name),
				slog.Any("err", err),
			)
		}
	}
	return errors.Join(errv...)
}
