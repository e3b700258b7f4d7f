// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package spatial

import (
	"time"

	"github.com/relabs-tech/spatial/internal/vector"
)

// AnyDevice asks the driver to open the first matching device it finds.
const AnyDevice = -1

// Driver is the boundary to a device SDK or hardware binding.
//
// Open starts a session for the device with the given serial number and
// registers events as the sink for everything the device reports. The driver
// sends on events from its own goroutines and must stop sending before
// Session.Close returns.
type Driver interface {
	Name() string
	Open(serial int, events chan<- Event) (Session, error)
}

// Session is one open device session.
type Session interface {
	// WaitForAttachment blocks until the device is attached or timeout
	// elapses. A zero timeout waits forever.
	WaitForAttachment(timeout time.Duration) error
	// SetDataRate sets the interval between sample batches in milliseconds.
	SetDataRate(intervalMS int) error
	Close() error
	Release() error
}

// Event is a value pushed by a driver. Events are immutable once sent.
type Event interface {
	event()
}

// AttachEvent reports that the device became ready.
type AttachEvent struct{}

// DetachEvent reports that the device went away.
type DetachEvent struct{}

// ErrorEvent carries an asynchronous device error.
type ErrorEvent struct {
	Code    ErrorCode
	Message string
}

// DataEvent carries one batch of samples in arrival order.
type DataEvent struct {
	Samples []Sample
}

func (AttachEvent) event() {}
func (DetachEvent) event() {}
func (ErrorEvent) event()  {}
func (DataEvent) event()   {}

// Sample is one spatial reading.
type Sample struct {
	Acceleration  vector.Vector3[float64] `json:"acceleration"`   // g
	AngularRate   vector.Vector3[float64] `json:"angular_rate"`   // deg/s
	MagneticField vector.Vector3[float64] `json:"magnetic_field"` // gauss
	Timestamp     time.Duration           `json:"timestamp"`      // device time, zero if unknown
}
