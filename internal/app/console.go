// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/spatial/internal/config"
	"github.com/relabs-tech/spatial/internal/spatial"
)

// RunConsole prints one line per interval until ctx ends.
func RunConsole(ctx context.Context, src Source, interval time.Duration, w io.Writer) error {
	if interval <= 0 {
		return fmt.Errorf("console interval must be positive, got %v", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := fmt.Fprintln(w, FormatReading(src.Snapshot())); err != nil {
				return err
			}
		}
	}
}

// FormatReading renders a reading as a single console line.
func FormatReading(r spatial.Reading) string {
	if !r.Attached {
		return fmt.Sprintf("[%s] detached  last_error=%s", r.Driver, r.LastError)
	}
	return fmt.Sprintf(
		"[%s] acc=%s g  gyro=%s °/s  mag=%s G  samples=%d",
		r.Driver, r.Acceleration, r.AngularRate, r.MagneticField, r.Samples,
	)
}

// RunConsoleMQTT prints everything published under the configured prefix,
// for watching a producer running on another host.
func RunConsoleMQTT(ctx context.Context, cfg config.MQTTConfig, w io.Writer) error {
	cfg.ClientID += "-console"
	client, err := ConnectMQTT(cfg)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	topic := cfg.TopicPrefix + "/#"
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		fmt.Fprintf(w, "[%s] %s\n", msg.Topic(), msg.Payload())
	})
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", topic, token.Error())
	}
	log.Infof("console: subscribed to %s", topic)

	<-ctx.Done()
	log.Info("console: shutting down")
	return nil
}
