// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/spatial/internal/config"
	"github.com/relabs-tech/spatial/internal/driver"
	"github.com/relabs-tech/spatial/internal/spatial"
)

// Setup builds the configured driver, binds it to the process-wide facade
// and initializes a session.
func Setup(cfg config.DeviceConfig) (*spatial.Facade, error) {
	d, err := driver.New(cfg)
	if err != nil {
		return nil, err
	}
	spatial.SetDefaultDriver(d)
	f := spatial.Instance()

	timeout := time.Duration(cfg.AttachTimeoutMS) * time.Millisecond
	if err := f.InitializeWith(cfg.DataRateMS, timeout); err != nil {
		return nil, fmt.Errorf("initialize %s: %w", d.Name(), err)
	}
	return f, nil
}

// Run initializes the device and serves every enabled surface until ctx is
// cancelled or one of them fails.
func Run(ctx context.Context, cfg *config.Config) (err error) {
	f, err := Setup(cfg.Device)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	return Serve(ctx, f, cfg)
}

// Serve runs the enabled surfaces against src.
func Serve(ctx context.Context, src Source, cfg *config.Config) error {
	g, ctx := errgroup.WithContext(ctx)
	surfaces := 0

	if cfg.MQTT.Enabled {
		surfaces++
		g.Go(func() error { return RunProducer(ctx, src, cfg.MQTT) })
	}
	if cfg.Web.Enabled {
		surfaces++
		g.Go(func() error { return NewWebServer(src, cfg.Web).Run(ctx) })
	}
	if cfg.Display.Enabled {
		surfaces++
		g.Go(func() error { return RunDisplay(ctx, src, cfg.Display) })
	}

	if surfaces == 0 {
		log.Warn("no output surface enabled, idling until interrupted")
	}
	g.Go(func() error {
		<-ctx.Done()
		return nil
	})
	return g.Wait()
}
