// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package hi229 binds a HI229 serial IMU (CH protocol) to the spatial facade.
// The device streams frames at its own configured rate; the session
// collects decoded samples and hands them over as one batch per data
// interval.
package hi229

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	serial "github.com/jacobsa/go-serial/serial"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/spatial/internal/spatial"
)

const (
	Name            = "hi229"
	DefaultBaudRate = 115200

	readBufferSize    = 4096
	defaultMaxPending = 1024

	// readTimeout bounds each port read so a silent device cannot keep
	// Close waiting.
	readTimeout = 100 * time.Millisecond
)

// Options describes the serial link.
type Options struct {
	Port     string
	BaudRate int
	// MaxPending bounds the samples held between two batches. Older samples
	// are dropped (and an overrun reported) beyond it.
	MaxPending int
}

// PortOpener opens the serial port. serial.Open is used unless overridden.
type PortOpener func(serial.OpenOptions) (io.ReadWriteCloser, error)

type Driver struct {
	opts Options
	open PortOpener
	log  log.FieldLogger
}

// New returns a driver for the serial port in opts.
func New(opts Options) *Driver {
	return NewWithOpener(opts, serial.Open)
}

// NewWithOpener returns a driver that opens its port through open.
func NewWithOpener(opts Options, open PortOpener) *Driver {
	if opts.BaudRate <= 0 {
		opts.BaudRate = DefaultBaudRate
	}
	if opts.MaxPending <= 0 {
		opts.MaxPending = defaultMaxPending
	}
	return &Driver{
		opts: opts,
		open: open,
		log:  log.WithField("driver", Name),
	}
}

func (d *Driver) Name() string { return Name }

// Open opens the serial port and starts decoding. A serial port reaches
// exactly one device, so serialNumber is only logged.
func (d *Driver) Open(serialNumber int, events chan<- spatial.Event) (spatial.Session, error) {
	if serialNumber != spatial.AnyDevice {
		d.log.Debugf("serial number %d ignored, using port %s", serialNumber, d.opts.Port)
	}

	port, err := d.open(serial.OpenOptions{
		PortName:              d.opts.Port,
		BaudRate:              uint(d.opts.BaudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       0,
		InterCharacterTimeout: uint(readTimeout / time.Millisecond),
		ParityMode:            serial.PARITY_NONE,
	})
	if err != nil {
		return nil, fmt.Errorf("hi229: open %s: %w", d.opts.Port, err)
	}
	d.log.Infof("serial port opened on %s at %d baud", d.opts.Port, d.opts.BaudRate)

	s := &session{
		port:       port,
		emit:       spatial.NewEmitter(events),
		maxPending: d.opts.MaxPending,
		log:        d.log,
		attached:   make(chan struct{}),
	}
	s.wg.Add(1)
	go s.readLoop()
	return s, nil
}

type session struct {
	port       io.ReadWriteCloser
	emit       *spatial.Emitter
	maxPending int
	log        log.FieldLogger

	attached   chan struct{}
	attachOnce sync.Once
	closeOnce  sync.Once
	closeErr   error
	wg         sync.WaitGroup

	mu       sync.Mutex
	pending  []spatial.Sample
	dropped  int
	interval chan time.Duration
}

func (s *session) readLoop() {
	defer s.wg.Done()

	var dec Decoder
	buf := make([]byte, readBufferSize)
	for {
		n, err := s.port.Read(buf)
		select {
		case <-s.emit.Done():
			return
		default:
		}

		for _, b := range buf[:n] {
			sample, ok, derr := dec.Feed(b)
			if derr != nil {
				s.emit.Send(spatial.ErrorEvent{Code: spatial.ErrorPacketLost, Message: derr.Error()})
				continue
			}
			if ok {
				s.push(sample)
			}
		}

		// A read timeout on the tty surfaces as a short read with io.EOF.
		if err == nil || errors.Is(err, io.EOF) {
			continue
		}
		s.log.Warnf("serial read error: %v", err)
		s.emit.Send(spatial.DetachEvent{})
		return
	}
}

func (s *session) push(sample spatial.Sample) {
	s.attachOnce.Do(func() {
		close(s.attached)
		s.emit.Send(spatial.AttachEvent{})
	})

	s.mu.Lock()
	if len(s.pending) >= s.maxPending {
		s.pending = s.pending[1:]
		s.dropped++
	}
	s.pending = append(s.pending, sample)
	s.mu.Unlock()
}

func (s *session) WaitForAttachment(timeout time.Duration) error {
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
		return fmt.Errorf("hi229: no valid frame within %v", timeout)
	case <-s.emit.Done():
		return errors.New("hi229: session closed")
	}
}

func (s *session) SetDataRate(intervalMS int) error {
	select {
	case <-s.attached:
	default:
		return spatial.ErrNotAttached
	}
	if intervalMS <= 0 {
		return fmt.Errorf("hi229: invalid data interval %d ms", intervalMS)
	}
	interval := time.Duration(intervalMS) * time.Millisecond

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.interval == nil {
		// Samples decoded while attaching are not part of any batch.
		s.pending = s.pending[:0]
		s.dropped = 0
		s.interval = make(chan time.Duration, 1)
		s.wg.Add(1)
		go s.flushLoop(interval)
		return nil
	}
	select {
	case s.interval <- interval:
	default:
	}
	return nil
}

func (s *session) flushLoop(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.emit.Done():
			return
		case d := <-s.interval:
			ticker.Reset(d)
		case <-ticker.C:
			s.flush()
		}
	}
}

func (s *session) flush() {
	s.mu.Lock()
	batch := s.pending
	dropped := s.dropped
	s.pending = make([]spatial.Sample, 0, len(batch))
	s.dropped = 0
	s.mu.Unlock()

	if dropped > 0 {
		s.emit.Send(spatial.ErrorEvent{
			Code:    spatial.ErrorOverrun,
			Message: fmt.Sprintf("dropped %d samples", dropped),
		})
	}
	if len(batch) > 0 {
		s.emit.Send(spatial.DataEvent{Samples: batch})
	}
}

func (s *session) Close() error {
	s.closeOnce.Do(func() {
		s.emit.Close()
		s.closeErr = s.port.Close()
		s.wg.Wait()
	})
	return s.closeErr
}

// Release has nothing left to free once the port is closed.
func (s *session) Release() error {
	return nil
}
