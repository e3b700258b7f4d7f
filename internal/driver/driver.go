// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package driver maps a configured driver name to a spatial.Driver.
package driver

import (
	"fmt"
	"sort"

	"github.com/relabs-tech/spatial/internal/config"
	"github.com/relabs-tech/spatial/internal/driver/hi229"
	"github.com/relabs-tech/spatial/internal/driver/mpu9250"
	"github.com/relabs-tech/spatial/internal/driver/sim"
	"github.com/relabs-tech/spatial/internal/spatial"
)

type factory func(cfg config.DeviceConfig) spatial.Driver

var factories = map[string]factory{
	sim.Name: func(config.DeviceConfig) spatial.Driver {
		return sim.New(sim.Options{Generate: true})
	},
	mpu9250.Name: func(cfg config.DeviceConfig) spatial.Driver {
		return mpu9250.New(mpu9250.Options{
			SPIDevice:  cfg.SPIDevice,
			CSPin:      cfg.CSPin,
			AccelRange: cfg.AccelRange,
			GyroRange:  cfg.GyroRange,
		})
	},
	hi229.Name: func(cfg config.DeviceConfig) spatial.Driver {
		return hi229.New(hi229.Options{
			Port:     cfg.SerialPort,
			BaudRate: cfg.BaudRate,
		})
	},
}

// New returns the driver named by cfg.Driver.
func New(cfg config.DeviceConfig) (spatial.Driver, error) {
	f, ok := factories[cfg.Driver]
	if !ok {
		return nil, fmt.Errorf("unknown driver %q (available: %v)", cfg.Driver, Names())
	}
	return f(cfg), nil
}

// Names lists the registered drivers in sorted order.
func Names() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
