package server

import (
	"fmt"
	"html"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"MuseFM/logger"
	"MuseFM/model"

	"github.com/gorilla/mux"
)

// coverPlaceholderSVG 封面缺失时的占位图，显示歌手名首字符
const coverPlaceholderSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="200" height="200" viewBox="0 0 200 200">
  <rect width="200" height="200" fill="#8b5cf6"/>
  <text x="50%%" y="50%%" dominant-baseline="middle" text-anchor="middle" fill="white" font-size="60" font-family="Arial, sans-serif">%s</text>
</svg>`

// CoverHandler 获取歌手封面图
// GET /api/music/cover/{artist}
// 在歌手目录下查找 cover.jpg，找不到时返回SVG占位图而不是错误，
// 这样前端的 <img> 总能渲染出内容。
func (h *APIHandler) CoverHandler(w http.ResponseWriter, r *http.Request) {
	artist := mux.Vars(r)["artist"]
	if artist == "" || artist == "." || artist == ".." || strings.ContainsAny(artist, `/\`) {
		respondError(w, http.StatusBadRequest, "Invalid artist name")
		return
	}

	for _, dir := range h.coverDirs(r, artist) {
		coverPath := filepath.Join(dir, "cover.jpg")
		data, err := os.ReadFile(coverPath)
		if err != nil {
			continue
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("Cache-Control", "public, max-age=86400")
		if _, err := w.Write(data); err != nil {
			logger.Debug("封面传输中断",
				logger.String("artist", artist),
				logger.ErrorField(err))
		}
		return
	}

	logger.Warn("封面文件不存在", logger.String("artist", artist))
	h.serveCoverPlaceholder(w, artist)
}

// coverDirs lists the directories that may hold the artist's cover.jpg:
// the artist's directory under the playlists root, then the directory of
// one of the artist's persisted tracks.
func (h *APIHandler) coverDirs(r *http.Request, artist string) []string {
	dirs := []string{filepath.Join(h.cfg.PlaylistsRoot, artist)}

	tracks, _, err := h.trackRepo.FindAll(r.Context(), model.TrackFilter{Artist: artist, Limit: 1})
	if err == nil && len(tracks) > 0 {
		if resolved, _, ok := resolveTrackPath(tracks[0].Filename); ok {
			dirs = append(dirs, filepath.Dir(resolved))
		}
	}
	return dirs
}

func (h *APIHandler) serveCoverPlaceholder(w http.ResponseWriter, artist string) {
	initial := "?"
	if runes := []rune(artist); len(runes) > 0 {
		initial = html.EscapeString(string(runes[0]))
	}
	svg := fmt.Sprintf(coverPlaceholderSVG, initial)

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Content-Length", strconv.Itoa(len(svg)))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := w.Write([]byte(svg)); err != nil {
		logger.Error("写入占位封面失败", logger.ErrorField(err))
	}
}
