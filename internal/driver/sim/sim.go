// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sim is a simulated spatial device. Tests drive it by hand through
// Session.Attach, Detach, Error and Data; with Generate set it also produces
// a smoothly changing reading on its own, like the orientation mock source.
package sim

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/relabs-tech/spatial/internal/spatial"
	"github.com/relabs-tech/spatial/internal/vector"
)

// Name is the registry name of the simulated driver.
const Name = "sim"

// Options controls how simulated sessions behave.
type Options struct {
	// NeverAttach keeps sessions unattached until Attach is called by hand.
	NeverAttach bool
	// AttachDelay is how long a session takes to attach on its own.
	AttachDelay time.Duration
	// Generate emits one synthetic sample every data interval once a data
	// rate has been set.
	Generate bool

	OpenErr        error
	SetDataRateErr error
}

// Driver hands out simulated sessions and remembers all of them.
type Driver struct {
	opts Options

	mu         sync.Mutex
	sessions   []*Session
	liveAtOpen []int
}

// New creates a simulated driver.
func New(opts Options) *Driver {
	return &Driver{opts: opts}
}

func (d *Driver) Name() string { return Name }

// Open starts a new simulated session.
func (d *Driver) Open(serial int, events chan<- spatial.Event) (spatial.Session, error) {
	d.mu.Lock()
	opts := d.opts
	d.mu.Unlock()

	if opts.OpenErr != nil {
		return nil, opts.OpenErr
	}

	s := &Session{
		serial:   serial,
		opts:     opts,
		emit:     spatial.NewEmitter(events),
		attached: make(chan struct{}),
		start:    time.Now(),
	}

	d.mu.Lock()
	live := 0
	for _, prev := range d.sessions {
		if !prev.Released() {
			live++
		}
	}
	d.liveAtOpen = append(d.liveAtOpen, live)
	d.sessions = append(d.sessions, s)
	d.mu.Unlock()

	if !opts.NeverAttach {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			select {
			case <-time.After(opts.AttachDelay):
				s.Attach()
			case <-s.emit.Done():
			}
		}()
	}
	return s, nil
}

// SetNeverAttach changes whether sessions opened from now on attach by
// themselves.
func (d *Driver) SetNeverAttach(never bool) {
	d.mu.Lock()
	d.opts.NeverAttach = never
	d.mu.Unlock()
}

// Sessions returns every session opened so far, oldest first.
func (d *Driver) Sessions() []*Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Session, len(d.sessions))
	copy(out, d.sessions)
	return out
}

// Last returns the most recently opened session, nil if none.
func (d *Driver) Last() *Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.sessions) == 0 {
		return nil
	}
	return d.sessions[len(d.sessions)-1]
}

// LiveAtOpen returns, for each Open call in order, how many earlier
// sessions were still unreleased at that moment.
func (d *Driver) LiveAtOpen() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]int, len(d.liveAtOpen))
	copy(out, d.liveAtOpen)
	return out
}

// Live counts sessions that are opened and not yet released.
func (d *Driver) Live() int {
	n := 0
	for _, s := range d.Sessions() {
		if !s.Released() {
			n++
		}
	}
	return n
}

// Session is a simulated device session.
type Session struct {
	serial int
	opts   Options
	emit   *spatial.Emitter
	start  time.Time

	attached   chan struct{}
	attachOnce sync.Once
	wg         sync.WaitGroup

	mu        sync.Mutex
	isClosed  bool
	released  bool
	dataRate  int
	generator chan int
}

// Serial returns the serial number the session was opened with.
func (s *Session) Serial() int { return s.serial }

func (s *Session) WaitForAttachment(timeout time.Duration) error {
	var expire <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expire = t.C
	}
	select {
	case <-s.attached:
		return nil
	case <-expire:
		return fmt.Errorf("sim: no attachment after %v", timeout)
	case <-s.emit.Done():
		return errors.New("sim: session closed")
	}
}

func (s *Session) SetDataRate(intervalMS int) error {
	if s.opts.SetDataRateErr != nil {
		return s.opts.SetDataRateErr
	}
	select {
	case <-s.attached:
	default:
		return spatial.ErrNotAttached
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isClosed {
		return errors.New("sim: session closed")
	}
	s.dataRate = intervalMS

	if !s.opts.Generate {
		return nil
	}
	if s.generator == nil {
		s.generator = make(chan int, 1)
		s.wg.Add(1)
		go s.generate(intervalMS)
		return nil
	}
	select {
	case s.generator <- intervalMS:
	default:
	}
	return nil
}

// DataRate returns the last applied data interval, 0 if none.
func (s *Session) DataRate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dataRate
}

func (s *Session) Close() error {
	s.emit.Close()
	s.mu.Lock()
	s.isClosed = true
	s.mu.Unlock()
	s.wg.Wait()
	return nil
}

func (s *Session) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isClosed {
		return errors.New("sim: release before close")
	}
	s.released = true
	return nil
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isClosed
}

func (s *Session) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// Attach marks the device attached and reports it.
func (s *Session) Attach() {
	s.attachOnce.Do(func() { close(s.attached) })
	s.emit.Send(spatial.AttachEvent{})
}

// Detach reports the device as gone.
func (s *Session) Detach() {
	s.emit.Send(spatial.DetachEvent{})
}

// Error reports an asynchronous device error.
func (s *Session) Error(code spatial.ErrorCode, msg string) {
	s.emit.Send(spatial.ErrorEvent{Code: code, Message: msg})
}

// Data delivers one batch of samples.
func (s *Session) Data(samples ...spatial.Sample) {
	batch := make([]spatial.Sample, len(samples))
	copy(batch, samples)
	s.emit.Send(spatial.DataEvent{Samples: batch})
}

func (s *Session) generate(intervalMS int) {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Duration(intervalMS) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-s.emit.Done():
			return
		case ms := <-s.generator:
			ticker.Reset(time.Duration(ms) * time.Millisecond)
		case now := <-ticker.C:
			s.emit.Send(spatial.DataEvent{Samples: []spatial.Sample{Synthetic(now.Sub(s.start))}})
		}
	}
}

// Synthetic returns the generated reading at elapsed time t: gravity with a
// slow wobble, a rotation about Z and a roughly constant field.
func Synthetic(t time.Duration) spatial.Sample {
	e := t.Seconds()
	return spatial.Sample{
		Acceleration:  vector.New(0.05*math.Sin(e), 0.05*math.Cos(e*0.7), -1.0),
		AngularRate:   vector.New(0.0, 0.0, 30*math.Sin(e*0.5)),
		MagneticField: vector.New(0.2*math.Cos(e*0.1), 0.2*math.Sin(e*0.1), -0.4),
		Timestamp:     t,
	}
}
