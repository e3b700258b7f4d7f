// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package mpu9250 binds an MPU9250 on SPI to the spatial facade. The chip has
// no streaming interface, so the session polls it once per data interval.
package mpu9250

import (
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/physic"

	"github.com/relabs-tech/spatial/internal/spatial"
	"github.com/relabs-tech/spatial/internal/vector"
)

const (
	Name = "mpu9250"

	retryInterval = 100 * time.Millisecond
	maxFailures   = 5
)

// Options selects the SPI bus, chip-select pin and full-scale ranges.
// Ranges use the register encoding: 0..3 for ±2/4/8/16 g and
// ±250/500/1000/2000 °/s.
type Options struct {
	SPIDevice  string
	CSPin      string
	AccelRange byte
	GyroRange  byte
}

// Raw is one accelerometer and gyroscope reading in sensor counts.
type Raw struct {
	Accel vector.Vector3[int16]
	Gyro  vector.Vector3[int16]
}

// Device reads raw samples from an initialized chip.
type Device interface {
	ReadRaw() (Raw, error)
}

// Connector brings the chip up. It is called repeatedly until it succeeds or
// the session is closed. Non-fatal setup problems go to logger.
type Connector func(opts Options, logger log.FieldLogger) (Device, error)

type Driver struct {
	opts    Options
	connect Connector
	log     log.FieldLogger
}

// New returns a driver talking to real hardware through periph.io.
func New(opts Options) *Driver {
	return NewWithConnector(opts, connectSPI)
}

func NewWithConnector(opts Options, connect Connector) *Driver {
	return &Driver{
		opts:    opts,
		connect: connect,
		log:     log.WithField("driver", Name),
	}
}

func (d *Driver) Name() string { return Name }

// Open starts connecting in the background. The chip carries no serial
// number, so serialNumber is only logged.
func (d *Driver) Open(serialNumber int, events chan<- spatial.Event) (spatial.Session, error) {
	if d.opts.AccelRange > 3 || d.opts.GyroRange > 3 {
		return nil, fmt.Errorf("mpu9250: range out of bounds (accel %d, gyro %d)", d.opts.AccelRange, d.opts.GyroRange)
	}
	if serialNumber != spatial.AnyDevice {
		d.log.Debugf("serial number %d ignored, using %s", serialNumber, d.opts.SPIDevice)
	}

	s := &session{
		opts:     d.opts,
		connect:  d.connect,
		emit:     spatial.NewEmitter(events),
		log:      d.log,
		attached: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.attachLoop()
	return s, nil
}

type session struct {
	opts    Options
	connect Connector
	emit    *spatial.Emitter
	log     log.FieldLogger

	attached  chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	mu       sync.Mutex
	dev      Device
	interval chan time.Duration
	polling  bool
}

func (s *session) attachLoop() {
	defer s.wg.Done()

	var lastErr error
	for {
		dev, err := s.connect(s.opts, s.log)
		if err == nil {
			s.mu.Lock()
			s.dev = dev
			s.mu.Unlock()
			close(s.attached)
			s.log.Infof("attached on %s", s.opts.SPIDevice)
			s.emit.Send(spatial.AttachEvent{})
			return
		}
		if lastErr == nil || lastErr.Error() != err.Error() {
			s.log.Debugf("connect failed, retrying: %v", err)
		}
		lastErr = err

		select {
		case <-s.emit.Done():
			return
		case <-time.After(retryInterval):
		}
	}
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
		return fmt.Errorf("mpu9250: device on %s not ready within %v", s.opts.SPIDevice, timeout)
	case <-s.emit.Done():
		return errors.New("mpu9250: session closed")
	}
}

func (s *session) SetDataRate(intervalMS int) error {
	select {
	case <-s.attached:
	default:
		return spatial.ErrNotAttached
	}
	if intervalMS <= 0 {
		return fmt.Errorf("mpu9250: invalid data interval %d ms", intervalMS)
	}
	interval := time.Duration(intervalMS) * time.Millisecond

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.polling {
		s.polling = true
		s.interval = make(chan time.Duration, 1)
		s.log.Infof("polling at %s", physic.PeriodToFrequency(interval))
		s.wg.Add(1)
		go s.pollLoop(s.dev, interval)
		return nil
	}
	select {
	case s.interval <- interval:
	default:
	}
	return nil
}

func (s *session) pollLoop(dev Device, interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	start := time.Now()
	failures := 0
	for {
		select {
		case <-s.emit.Done():
			return
		case d := <-s.interval:
			ticker.Reset(d)
			continue
		case <-ticker.C:
		}

		raw, err := dev.ReadRaw()
		if err != nil {
			failures++
			s.emit.Send(spatial.ErrorEvent{Code: spatial.ErrorPacketLost, Message: err.Error()})
			if failures == maxFailures {
				s.log.Warnf("%d consecutive read failures, device lost", failures)
				s.emit.Send(spatial.DetachEvent{})
			}
			continue
		}
		if failures >= maxFailures {
			s.log.Info("device answering again")
			s.emit.Send(spatial.AttachEvent{})
		}
		failures = 0

		sample := Convert(raw, s.opts.AccelRange, s.opts.GyroRange)
		sample.Timestamp = time.Since(start)
		s.emit.Send(spatial.DataEvent{Samples: []spatial.Sample{sample}})
	}
}

func (s *session) Close() error {
	s.closeOnce.Do(func() {
		s.emit.Close()
		s.wg.Wait()
	})
	return nil
}

// Release drops the device handle. The SPI port is owned by periph's
// registry and stays open for the process lifetime.
func (s *session) Release() error {
	s.mu.Lock()
	s.dev = nil
	s.mu.Unlock()
	return nil
}
