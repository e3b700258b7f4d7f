// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mpu9250

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio/gpioreg"
	imu "periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/spatial/internal/spatial"
	"github.com/relabs-tech/spatial/internal/vector"
)

// LSB per g and LSB per °/s at range 0; each range step halves them.
const (
	accelLSBPerG   = 16384.0
	gyroLSBPerDegS = 131.0
)

type spiDevice struct {
	chip *imu.MPU9250
}

func connectSPI(opts Options, logger log.FieldLogger) (Device, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	cs := gpioreg.ByName(opts.CSPin)
	if cs == nil {
		return nil, fmt.Errorf("CS pin %q not found", opts.CSPin)
	}

	tr, err := imu.NewSpiTransport(opts.SPIDevice, cs)
	if err != nil {
		return nil, fmt.Errorf("SPI transport (%s): %w", opts.SPIDevice, err)
	}

	chip, err := imu.New(tr)
	if err != nil {
		return nil, fmt.Errorf("device creation: %w", err)
	}
	if err := chip.Init(); err != nil {
		return nil, fmt.Errorf("initialization: %w", err)
	}
	if err := chip.SetAccelRange(opts.AccelRange); err != nil {
		return nil, fmt.Errorf("set accel range: %w", err)
	}
	if err := chip.SetGyroRange(opts.GyroRange); err != nil {
		return nil, fmt.Errorf("set gyro range: %w", err)
	}
	calibrate(chip, logger)

	return &spiDevice{chip: chip}, nil
}

type calibrator interface {
	Calibrate() error
}

// calibrate runs the chip's bias calibration. A failure leaves the factory
// offsets in place and is only reported.
func calibrate(c calibrator, logger log.FieldLogger) {
	if err := c.Calibrate(); err != nil {
		logger.Warnf("calibration failed, using factory offsets: %v", err)
		return
	}
	logger.Info("calibration complete")
}

func (d *spiDevice) ReadRaw() (Raw, error) {
	var r Raw
	reads := []struct {
		name string
		fn   func() (int16, error)
		dst  *int16
	}{
		{"accel X", d.chip.GetAccelerationX, &r.Accel.X},
		{"accel Y", d.chip.GetAccelerationY, &r.Accel.Y},
		{"accel Z", d.chip.GetAccelerationZ, &r.Accel.Z},
		{"gyro X", d.chip.GetRotationX, &r.Gyro.X},
		{"gyro Y", d.chip.GetRotationY, &r.Gyro.Y},
		{"gyro Z", d.chip.GetRotationZ, &r.Gyro.Z},
	}
	for _, rd := range reads {
		v, err := rd.fn()
		if err != nil {
			return Raw{}, fmt.Errorf("%s: %w", rd.name, err)
		}
		*rd.dst = v
	}
	return r, nil
}

// Convert scales raw counts to g and °/s for the given range settings. The
// SPI binding exposes no magnetometer, so the field stays zero.
func Convert(r Raw, accelRange, gyroRange byte) spatial.Sample {
	accelDiv := accelLSBPerG / float64(int(1)<<accelRange)
	gyroDiv := gyroLSBPerDegS / float64(int(1)<<gyroRange)
	return spatial.Sample{
		Acceleration: vector.Float64(r.Accel).Scale(1 / accelDiv),
		AngularRate:  vector.Float64(r.Gyro).Scale(1 / gyroDiv),
	}
}
