// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"image"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/spatial/internal/config"
	"github.com/relabs-tech/spatial/internal/spatial"
)

const (
	displayWidth  = 128
	displayHeight = 64
	lineHeight    = 13
)

// addressedBus sends every transaction to addr. The ssd1306 driver always
// talks to 0x3C; panels strapped to 0x3D need the rewrite.
type addressedBus struct {
	i2c.Bus
	addr uint16
}

func (b addressedBus) Tx(_ uint16, w, r []byte) error {
	return b.Bus.Tx(b.addr, w, r)
}

// RunDisplay renders readings on an SSD1306 OLED until ctx ends.
func RunDisplay(ctx context.Context, src Source, cfg config.DisplayConfig) error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(addressedBus{Bus: bus, addr: cfg.I2CAddr}, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	defer dev.Halt()
	log.Infof("display: initialized at 0x%02X", cfg.I2CAddr)

	draw := func(img *image1bit.VerticalLSB) {
		if err := dev.Draw(dev.Bounds(), img, image.Point{}); err != nil {
			log.Warnf("display: draw error: %v", err)
		}
	}

	draw(renderLines("Spatial", "Waiting for", "device..."))

	ticker := time.NewTicker(time.Duration(cfg.UpdateIntervalMS) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			draw(renderReading(src.Snapshot()))
		}
	}
}

// readingLines formats a reading for the 128x64 panel: status, then one
// line per vector.
func readingLines(r spatial.Reading) []string {
	if !r.Attached {
		status := "Detached"
		if r.SessionID == "" {
			status = "No session"
		}
		lines := []string{r.Driver, status}
		if r.LastError != spatial.ErrorNone {
			lines = append(lines, "E: "+r.LastError.String())
		}
		return lines
	}

	status := fmt.Sprintf("%s #%d", r.Driver, r.Samples)
	if r.LastError != spatial.ErrorNone {
		status = fmt.Sprintf("%s E%04X", r.Driver, uint32(r.LastError))
	}
	return []string{
		status,
		fmt.Sprintf("A%5.2f%5.2f%5.2f", r.Acceleration.X, r.Acceleration.Y, r.Acceleration.Z),
		fmt.Sprintf("G%5.0f%5.0f%5.0f", r.AngularRate.X, r.AngularRate.Y, r.AngularRate.Z),
		fmt.Sprintf("M%5.2f%5.2f%5.2f", r.MagneticField.X, r.MagneticField.Y, r.MagneticField.Z),
	}
}

func renderReading(r spatial.Reading) *image1bit.VerticalLSB {
	return renderLines(readingLines(r)...)
}

func renderLines(lines ...string) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, displayWidth, displayHeight))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	for i, line := range lines {
		y := (i + 1) * lineHeight
		if y > displayHeight {
			break
		}
		drawer.Dot = fixed.P(0, y)
		drawer.DrawString(line)
	}
	return img
}
