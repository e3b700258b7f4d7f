// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package spatial

import "sync"

// Process-wide facade for binaries that want a single shared device:
//   - instance is created once by Instance and never destroyed.
//   - defaultDriver is the driver new and existing instances are bound to;
//     guarded by defaultMu.
//
// Library code should prefer New and pass the *Facade explicitly.
var (
	instance     *Facade
	instanceOnce sync.Once

	defaultMu     sync.RWMutex
	defaultDriver Driver
)

// SetDefaultDriver binds d to the process-wide facade. It may be called
// before or after the first Instance call; an open session keeps using its
// driver until the next Initialize.
func SetDefaultDriver(d Driver) {
	defaultMu.Lock()
	defaultDriver = d
	defaultMu.Unlock()

	Instance().bind(d)
}

// Instance returns the process-wide facade, creating it on first use. It is
// safe for concurrent use.
func Instance() *Facade {
	instanceOnce.Do(func() {
		defaultMu.RLock()
		d := defaultDriver
		defaultMu.RUnlock()
		instance = New(d)
	})
	return instance
}

func (f *Facade) bind(d Driver) {
	f.initMu.Lock()
	f.driver = d
	f.initMu.Unlock()
}
