// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package spatial owns a single session with a spatial sensor (accelerometer,
// gyroscope, magnetometer) and keeps its latest readings.
//
// Drivers push events onto a channel owned by the Facade. One goroutine per
// session consumes them and is the only writer of the latest-value fields;
// accessors read under a shared lock.
package spatial

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/spatial/internal/vector"
)

const (
	DefaultDataRate = 8 // milliseconds between sample batches
	DefaultTimeout  = 0 // wait forever for attachment

	MinDataRate = 4
	MaxDataRate = 496

	eventBufferSize = 64
)

// Reading is a consistent copy of the facade state.
type Reading struct {
	SessionID     string                  `json:"session_id"`
	Driver        string                  `json:"driver"`
	Attached      bool                    `json:"attached"`
	LastError     ErrorCode               `json:"last_error"`
	LastErrorText string                  `json:"last_error_text"`
	Acceleration  vector.Vector3[float64] `json:"acceleration"`
	AngularRate   vector.Vector3[float64] `json:"angular_rate"`
	MagneticField vector.Vector3[float64] `json:"magnetic_field"`
	Samples       uint64                  `json:"samples"`
}

// Option configures a Facade.
type Option func(*Facade)

// WithSerial selects the device serial number passed to Driver.Open.
func WithSerial(serial int) Option {
	return func(f *Facade) { f.serial = serial }
}

// WithLogger replaces the default logrus standard logger.
func WithLogger(l log.FieldLogger) Option {
	return func(f *Facade) { f.log = l }
}

// Facade coordinates one device session.
type Facade struct {
	serial int
	log    log.FieldLogger

	// initMu serializes Initialize, Close and driver rebinding. driver, stop
	// and done are only touched with it held.
	initMu sync.Mutex
	driver Driver
	stop   chan struct{}
	done   chan struct{}

	mu            sync.RWMutex
	session       Session
	sessionID     string
	driverName    string
	attached      bool
	lastError     ErrorCode
	acceleration  vector.Vector3[float64]
	angularRate   vector.Vector3[float64]
	magneticField vector.Vector3[float64]
	samples       uint64
}

// New creates a facade bound to d. No device is opened until Initialize.
func New(d Driver, opts ...Option) *Facade {
	f := &Facade{
		driver: d,
		serial: AnyDevice,
		log:    log.StandardLogger(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ClampDataRate limits a requested data interval to what devices support.
func ClampDataRate(rate int) int {
	if rate > MaxDataRate {
		return MaxDataRate
	}
	if rate < MinDataRate {
		return MinDataRate
	}
	return rate
}

// Initialize opens the device with the default data rate and waits forever
// for it to attach.
func (f *Facade) Initialize() error {
	return f.InitializeWith(DefaultDataRate, DefaultTimeout)
}

// InitializeWith replaces any open session with a new one, waits up to
// timeout for attachment (zero waits forever) and applies the clamped data
// rate. The facade is left uninitialized when attachment or configuration
// fails.
func (f *Facade) InitializeWith(rate int, timeout time.Duration) error {
	f.initMu.Lock()
	defer f.initMu.Unlock()

	if f.driver == nil {
		return ErrNoDriver
	}
	if timeout < 0 {
		timeout = 0
	}

	if err := f.teardown(); err != nil {
		f.log.Warnf("closing previous session: %v", err)
	}

	events := make(chan Event, eventBufferSize)
	sess, err := f.driver.Open(f.serial, events)
	if err != nil {
		return fmt.Errorf("open %s device: %w", f.driver.Name(), err)
	}

	id := uuid.NewString()
	logger := f.log.WithFields(log.Fields{"session": id, "driver": f.driver.Name()})

	f.stop = make(chan struct{})
	f.done = make(chan struct{})
	f.mu.Lock()
	f.session = sess
	f.sessionID = id
	f.driverName = f.driver.Name()
	f.mu.Unlock()
	go f.consume(logger, events, f.stop, f.done)

	if timeout == 0 {
		logger.Info("waiting for attachment")
	} else {
		logger.Infof("waiting for attachment (timeout %v)", timeout)
	}
	if err := sess.WaitForAttachment(timeout); err != nil {
		if terr := f.teardown(); terr != nil {
			logger.Warnf("closing unattached session: %v", terr)
		}
		return fmt.Errorf("%w: %w", ErrAttachTimeout, err)
	}

	applied := ClampDataRate(rate)
	if applied != rate {
		logger.Debugf("data rate %d ms clamped to %d ms", rate, applied)
	}
	if err := sess.SetDataRate(applied); err != nil {
		if terr := f.teardown(); terr != nil {
			logger.Warnf("closing session: %v", terr)
		}
		return fmt.Errorf("set data rate %d ms: %w", applied, err)
	}

	f.mu.Lock()
	f.attached = true
	f.mu.Unlock()

	logger.Infof("session ready, data rate %d ms", applied)
	return nil
}

// Close ends the current session, if any, and resets the facade state.
func (f *Facade) Close() error {
	f.initMu.Lock()
	defer f.initMu.Unlock()
	return f.teardown()
}

// teardown must be called with initMu held.
func (f *Facade) teardown() error {
	f.mu.RLock()
	sess := f.session
	f.mu.RUnlock()
	if sess == nil {
		return nil
	}

	// Close first so the driver stops sending before the consumer goes away.
	err := errors.Join(sess.Close(), sess.Release())

	close(f.stop)
	<-f.done
	f.stop, f.done = nil, nil

	f.mu.Lock()
	f.session = nil
	f.sessionID = ""
	f.driverName = ""
	f.attached = false
	f.lastError = ErrorNone
	f.acceleration = vector.Vector3[float64]{}
	f.angularRate = vector.Vector3[float64]{}
	f.magneticField = vector.Vector3[float64]{}
	f.samples = 0
	f.mu.Unlock()

	return err
}

func (f *Facade) consume(logger log.FieldLogger, events <-chan Event, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			f.apply(logger, ev)
		}
	}
}

func (f *Facade) apply(logger log.FieldLogger, ev Event) {
	switch e := ev.(type) {
	case AttachEvent:
		f.mu.Lock()
		f.attached = true
		f.mu.Unlock()
		logger.Info("device attached")
	case DetachEvent:
		f.mu.Lock()
		f.attached = false
		f.mu.Unlock()
		logger.Warn("device detached")
	case ErrorEvent:
		f.mu.Lock()
		f.lastError = e.Code
		f.mu.Unlock()
		logger.WithField("code", uint32(e.Code)).Warnf("device error: %s: %s", e.Code, e.Message)
	case DataEvent:
		if len(e.Samples) == 0 {
			return
		}
		f.mu.Lock()
		for _, s := range e.Samples {
			f.acceleration = s.Acceleration
			f.angularRate = s.AngularRate
			f.magneticField = s.MagneticField
			f.samples++
		}
		f.mu.Unlock()
	default:
		logger.Debugf("ignoring unknown event %T", ev)
	}
}

// Attached reports whether the device is currently attached.
func (f *Facade) Attached() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.attached
}

// LastError returns the most recent device error, ErrorNone if there was none.
func (f *Facade) LastError() ErrorCode {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lastError
}

func (f *Facade) Acceleration() vector.Vector3[float64] {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.acceleration
}

func (f *Facade) AngularRate() vector.Vector3[float64] {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.angularRate
}

func (f *Facade) MagneticField() vector.Vector3[float64] {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.magneticField
}

// Snapshot returns all state read under a single lock.
func (f *Facade) Snapshot() Reading {
	f.mu.RLock()
	defer f.mu.RUnlock()

	r := Reading{
		SessionID:     f.sessionID,
		Driver:        f.driverName,
		Attached:      f.attached,
		LastError:     f.lastError,
		LastErrorText: f.lastError.String(),
		Acceleration:  f.acceleration,
		AngularRate:   f.angularRate,
		MagneticField: f.magneticField,
		Samples:       f.samples,
	}
	return r
}
