package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"

	"MuseFM/cache"
	"MuseFM/core/library"
	"MuseFM/logger"

	"github.com/gorilla/websocket"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// scanBroadcaster fans scan progress events out to websocket subscribers.
type scanBroadcaster struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]bool
}

func newScanBroadcaster() *scanBroadcaster {
	return &scanBroadcaster{conns: make(map[*websocket.Conn]bool)}
}

func (b *scanBroadcaster) add(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conns[conn] = true
}

func (b *scanBroadcaster) remove(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conns, conn)
}

// Broadcast sends one event to every subscriber. A connection that fails
// to accept the write is dropped.
func (b *scanBroadcaster) Broadcast(event library.ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for conn := range b.conns {
		if err := conn.WriteJSON(event); err != nil {
			conn.Close()
			delete(b.conns, conn)
		}
	}
}

// ScanHandler 扫描并同步音乐库
// POST /api/music/scan  body: {"force": true, "extractMetadata": false, "verbose": true, "prune": false}
func (h *APIHandler) ScanHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Force           bool `json:"force"`
		ExtractMetadata bool `json:"extractMetadata"`
		Verbose         bool `json:"verbose"`
		Prune           bool `json:"prune"`
	}
	// An empty body means default options; anything else must be valid.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !h.scanMu.TryLock() {
		respondError(w, http.StatusConflict, "A scan is already in progress")
		return
	}
	defer h.scanMu.Unlock()

	result := h.scanner.ScanAndSync(r.Context(), library.ScanOptions{
		ForceRescan:     req.Force,
		ExtractMetadata: req.ExtractMetadata,
		Verbose:         req.Verbose,
		Prune:           req.Prune,
	})

	if result.Success {
		cache.InvalidateArtists(r.Context())
		cache.SetLastScanResult(r.Context(), result)
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusInternalServerError
	}
	respondJSON(w, status, map[string]any{
		"success": result.Success,
		"message": result.Message,
		"data": map[string]any{
			"totalTracks":  result.Stats.TotalTracks,
			"totalArtists": result.Stats.TotalArtists,
			"totalSize":    result.Stats.TotalSize,
			"syncedCount":  result.SyncedCount,
			"scannedFiles": result.Stats.ScannedFiles,
			"errors":       result.Stats.Errors,
		},
	})
}

// LastScanHandler 读取最近一次扫描结果
// GET /api/music/scan/last
func (h *APIHandler) LastScanHandler(w http.ResponseWriter, r *http.Request) {
	result, err := cache.GetLastScanResult(r.Context())
	switch {
	case errors.Is(err, cache.ErrNoScanRecorded):
		respondError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, cache.ErrCacheUnavailable):
		// Redis being down is an infrastructure gap, not a missing resource.
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		logger.Error("读取扫描结果失败", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to read last scan result")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    result,
	})
}

// ScanProgressWSHandler 通过websocket推送扫描进度
// GET /api/music/scan/ws
func (h *APIHandler) ScanProgressWSHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", logger.ErrorField(err))
		return
	}

	h.progress.add(conn)
	defer func() {
		h.progress.remove(conn)
		conn.Close()
	}()

	// Drain client frames until the peer goes away; events flow the other
	// direction via Broadcast.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// RescanForWatcher runs a watcher-triggered scan with default options,
// skipping if a manual scan holds the lock.
func (h *APIHandler) RescanForWatcher(ctx context.Context) {
	if !h.scanMu.TryLock() {
		logger.Info("跳过自动扫描：已有扫描在进行")
		return
	}
	defer h.scanMu.Unlock()

	result := h.scanner.ScanAndSync(ctx, library.ScanOptions{Verbose: false})
	if result.Success {
		cache.InvalidateArtists(ctx)
		cache.SetLastScanResult(ctx, result)
	}
}
