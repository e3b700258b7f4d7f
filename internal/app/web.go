// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/spatial/internal/config"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local dashboards are served from other ports
	},
}

// WebServer exposes readings over HTTP and a websocket stream.
type WebServer struct {
	src      Source
	port     int
	interval time.Duration
	// seen latches on the first attached reading.
	seen atomic.Bool
}

func NewWebServer(src Source, cfg config.WebConfig) *WebServer {
	return &WebServer{
		src:      src,
		port:     cfg.Port,
		interval: time.Duration(cfg.PushIntervalMS) * time.Millisecond,
	}
}

// Handler returns the routes: /api/spatial, /api/status and /ws.
func (s *WebServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/spatial", s.handleSpatial)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// Run serves until ctx is cancelled.
func (s *WebServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("web server listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("web server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("web server shutdown: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *WebServer) handleSpatial(w http.ResponseWriter, r *http.Request) {
	reading := s.src.Snapshot()
	if reading.Attached {
		s.seen.Store(true)
	}
	if !s.seen.Load() {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, reading)
}

func (s *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, StatusOf(s.src.Snapshot(), time.Now()))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("json encode error: %v", err)
	}
}

// handleWS pushes a snapshot every push interval until the client goes away.
func (s *WebServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	logger := log.WithField("remote", r.RemoteAddr)
	logger.Debug("websocket client connected")

	// The read side only detects the close.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := conn.WriteJSON(s.src.Snapshot()); err != nil {
			logger.Debugf("websocket write error: %v", err)
			return
		}
		select {
		case <-gone:
			logger.Debug("websocket client disconnected")
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
