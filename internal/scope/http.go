// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package scope

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"image/png"
	"io/fs"
	"net/http"
	"time"

	"github.com/relabs-tech/cbwrist/internal/logging"
)

//go:embed static
var static embed.FS

// Handler serves the scope page, its JSON API, plots and the live feed.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.handleWS)
	mux.HandleFunc("/api/latest", h.handleLatest)
	mux.HandleFunc("/api/history", h.handleHistory)
	mux.HandleFunc("/api/plot.png", h.handlePlot)

	root, err := fs.Sub(static, "static")
	if err != nil {
		panic(err)
	}
	mux.Handle("/", http.FileServer(http.FS(root)))
	return mux
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	var initial [][]byte
	latest := h.Latest()
	for _, ch := range Channels {
		s, ok := latest[ch]
		if !ok {
			continue
		}
		data, err := json.Marshal(s)
		if err != nil {
			continue
		}
		initial = append(initial, data)
	}
	h.room.serve(w, r, initial)
}

func (h *Hub) handleLatest(w http.ResponseWriter, _ *http.Request) {
	latest := h.Latest()
	if len(latest) == 0 {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	h.writeJSON(w, latest)
}

func (h *Hub) handleHistory(w http.ResponseWriter, r *http.Request) {
	channel, ok := Lookup(r.URL.Query().Get("channel"))
	if !ok {
		http.Error(w, "unknown channel", http.StatusNotFound)
		return
	}
	h.writeJSON(w, h.History(channel))
}

func (h *Hub) handlePlot(w http.ResponseWriter, r *http.Request) {
	channel, ok := Lookup(r.URL.Query().Get("channel"))
	if !ok {
		http.Error(w, "unknown channel", http.StatusNotFound)
		return
	}
	img := Plot(channel, h.History(channel))
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := png.Encode(w, img); err != nil {
		h.logger.Warnf("png encode error: %v", err)
	}
}

func (h *Hub) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warnf("json encode error: %v", err)
	}
}

// ListenAndServe serves handler on addr until ctx is done.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler, logger logging.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Infof("scope listening on %s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
