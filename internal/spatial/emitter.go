// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package spatial

import "sync"

// Emitter is the sending side of a session's event channel, for use by
// drivers. Once Close returns, Send never delivers again.
type Emitter struct {
	events chan<- Event
	done   chan struct{}
	once   sync.Once

	mu     sync.Mutex
	closed bool
}

func NewEmitter(events chan<- Event) *Emitter {
	return &Emitter{events: events, done: make(chan struct{})}
}

// Send delivers ev, blocking while the channel is full. It reports false if
// the emitter was closed first.
func (e *Emitter) Send(ev Event) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	select {
	case e.events <- ev:
		return true
	case <-e.done:
		return false
	}
}

// Close stops all current and future sends.
func (e *Emitter) Close() {
	e.once.Do(func() { close(e.done) })
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
}

// Done is closed when Close is called.
func (e *Emitter) Done() <-chan struct{} {
	return e.done
}
