// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/spatial/internal/config"
	"github.com/relabs-tech/spatial/internal/orientation"
	"github.com/relabs-tech/spatial/internal/spatial"
)

// Topic suffixes under the configured prefix.
const (
	TopicAcceleration  = "acceleration"
	TopicAngularRate   = "angular_rate"
	TopicMagneticField = "magnetic_field"
	TopicPose          = "pose"
	TopicStatus        = "status"
)

// Source is anything that can hand out a consistent reading.
// *spatial.Facade satisfies it.
type Source interface {
	Snapshot() spatial.Reading
}

// Publisher sends one message to a topic.
type Publisher interface {
	Publish(topic string, retained bool, payload []byte) error
}

// Status is the retained payload of the status topic.
type Status struct {
	SessionID     string            `json:"session_id"`
	Driver        string            `json:"driver"`
	Attached      bool              `json:"attached"`
	LastError     spatial.ErrorCode `json:"last_error"`
	LastErrorText string            `json:"last_error_text,omitempty"`
	Samples       uint64            `json:"samples"`
	Time          string            `json:"time"`
}

// StatusOf extracts the status part of a reading.
func StatusOf(r spatial.Reading, now time.Time) Status {
	return Status{
		SessionID:     r.SessionID,
		Driver:        r.Driver,
		Attached:      r.Attached,
		LastError:     r.LastError,
		LastErrorText: r.LastErrorText,
		Samples:       r.Samples,
		Time:          now.Format(time.RFC3339),
	}
}

type mqttPublisher struct {
	client mqtt.Client
}

// ConnectMQTT connects to the broker in cfg.
func ConnectMQTT(cfg config.MQTTConfig) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect %s: %w", cfg.Broker, token.Error())
	}
	log.Infof("connected to MQTT broker at %s", cfg.Broker)
	return client, nil
}

func (p mqttPublisher) Publish(topic string, retained bool, payload []byte) error {
	token := p.client.Publish(topic, 0, retained, payload)
	token.Wait()
	return token.Error()
}

// RunProducer connects to the broker and publishes readings until ctx ends.
func RunProducer(ctx context.Context, src Source, cfg config.MQTTConfig) error {
	client, err := ConnectMQTT(cfg)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	interval := time.Duration(cfg.PublishIntervalMS) * time.Millisecond
	return Produce(ctx, src, mqttPublisher{client: client}, cfg.TopicPrefix, interval)
}

// Produce publishes the status every interval, and the three vectors plus
// the derived pose whenever new samples arrived since the previous tick.
func Produce(ctx context.Context, src Source, pub Publisher, prefix string, interval time.Duration) error {
	log.Infof("publishing under %q every %v", prefix, interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastSamples uint64
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			r := src.Snapshot()

			publishJSON(pub, prefix+"/"+TopicStatus, true, StatusOf(r, now))

			if r.Samples == lastSamples {
				continue
			}
			lastSamples = r.Samples

			publishJSON(pub, prefix+"/"+TopicAcceleration, false, r.Acceleration)
			publishJSON(pub, prefix+"/"+TopicAngularRate, false, r.AngularRate)
			publishJSON(pub, prefix+"/"+TopicMagneticField, false, r.MagneticField)
			publishJSON(pub, prefix+"/"+TopicPose, false, orientation.FromAccelMag(r.Acceleration, r.MagneticField))
		}
	}
}

func publishJSON(pub Publisher, topic string, retained bool, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Errorf("json marshal error (%s): %v", topic, err)
		return
	}
	if err := pub.Publish(topic, retained, payload); err != nil {
		log.Warnf("MQTT publish error (%s): %v", topic, err)
	}
}
