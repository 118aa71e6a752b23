package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"MuseFM/cache"
	"MuseFM/core/library"
	"MuseFM/logger"
	"MuseFM/model"
	"MuseFM/repository"

	"github.com/gorilla/mux"
)

// GetTracksHandler 获取歌曲列表
// GET /api/music/tracks?page=1&limit=50&letter=A&artist=xxx
func (h *APIHandler) GetTracksHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page, _ := strconv.Atoi(query.Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit < 1 {
		limit = 50
	}

	filter := model.TrackFilter{
		Page:   page,
		Limit:  limit,
		Letter: query.Get("letter"),
		Artist: query.Get("artist"),
	}

	tracks, total, err := h.trackRepo.FindAll(r.Context(), filter)
	if err != nil {
		logger.Error("获取歌曲列表失败", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to list tracks")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    tracks,
		"total":   total,
		"page":    page,
		"limit":   limit,
	})
}

// GetArtistsHandler 获取歌手列表，带歌曲数量
// GET /api/music/artists?letter=A
func (h *APIHandler) GetArtistsHandler(w http.ResponseWriter, r *http.Request) {
	letter := r.URL.Query().Get("letter")

	if artists, ok := cache.GetArtists(r.Context(), letter); ok {
		respondJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    artists,
			"total":   len(artists),
		})
		return
	}

	artists, err := h.trackRepo.ListArtists(r.Context(), letter)
	if err != nil {
		logger.Error("获取歌手列表失败", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to list artists")
		return
	}
	cache.SetArtists(r.Context(), letter, artists, time.Duration(h.cfg.CacheTTL)*time.Second)

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    artists,
		"total":   len(artists),
	})
}

// UpdateTitleHandler 手动更新单首歌曲标题
// PUT /api/music/tracks/{id}/title  body: {"title": "..."}
func (h *APIHandler) UpdateTitleHandler(w http.ResponseWriter, r *http.Request) {
	trackID := mux.Vars(r)["id"]

	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := h.reconciler.UpdateTitle(r.Context(), trackID, req.Title)
	switch {
	case errors.Is(err, library.ErrInvalidTitle):
		respondError(w, http.StatusBadRequest, "Title must not be empty")
		return
	case errors.Is(err, repository.ErrTrackNotFound):
		respondError(w, http.StatusNotFound, "Track not found: "+trackID)
		return
	case err != nil:
		logger.Error("更新标题失败",
			logger.String("trackId", trackID),
			logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to update title")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Title updated",
	})
}

// BatchCleanTitlesHandler 批量清理歌曲标题
// POST /api/music/tracks/batch-clean  body: {"limit": 100, "dryRun": true}
func (h *APIHandler) BatchCleanTitlesHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Limit  int  `json:"limit"`
		DryRun bool `json:"dryRun"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Limit < 0 {
		respondError(w, http.StatusBadRequest, "limit must not be negative")
		return
	}

	result, err := h.reconciler.BatchCleanTitles(r.Context(), library.CleanOptions{
		Limit:  req.Limit,
		DryRun: req.DryRun,
	})
	if err != nil {
		logger.Error("批量清理标题失败", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Batch title cleanup failed")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// DebugTrackHandler 诊断一首歌曲的文件路径解析
// GET /api/music/debug/{id}
func (h *APIHandler) DebugTrackHandler(w http.ResponseWriter, r *http.Request) {
	trackID := mux.Vars(r)["id"]

	track, err := h.trackRepo.FindByID(r.Context(), trackID)
	if err != nil {
		if errors.Is(err, repository.ErrTrackNotFound) {
			respondError(w, http.StatusNotFound, "Track not found: "+trackID)
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to load track")
		return
	}

	type pathCheck struct {
		Path   string `json:"path"`
		Exists bool   `json:"exists"`
	}
	var checks []pathCheck
	var existingDir string
	for _, candidate := range candidatePaths(track.Filename, runtime.GOOS == "windows") {
		_, statErr := os.Stat(candidate)
		checks = append(checks, pathCheck{Path: candidate, Exists: statErr == nil})
		if statErr == nil && existingDir == "" {
			existingDir = filepath.Dir(candidate)
		}
	}

	// List whatever sits next to the expected file, to spot renames. The
	// directory comes from the resolved candidate when one exists; otherwise
	// from the normalized spelling, so a foreign-separator stored path still
	// yields a listable directory on this host.
	dir := existingDir
	if dir == "" {
		dir = filepath.Dir(library.NormalizePath(track.Filename))
	}
	var siblings []string
	if entries, err := os.ReadDir(dir); err == nil {
		for i, entry := range entries {
			if i >= 10 {
				break
			}
			siblings = append(siblings, entry.Name())
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"track": map[string]any{
			"id":       track.ID,
			"title":    track.Title,
			"artist":   track.Artist,
			"filename": track.Filename,
			"format":   track.Format,
			"fileSize": track.FileSize,
		},
		"platform":   runtime.GOOS,
		"candidates": checks,
		"siblings":   siblings,
	})
}
