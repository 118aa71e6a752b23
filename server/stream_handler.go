package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"MuseFM/logger"
	"MuseFM/repository"

	"github.com/gorilla/mux"
)

// contentTypeByFormat maps the persisted format field to a MIME type.
// Unrecognized formats fall back to audio/mpeg.
var contentTypeByFormat = map[string]string{
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"flac": "audio/flac",
	"ogg":  "audio/ogg",
	"wma":  "audio/x-ms-wma",
	"m4a":  "audio/mp4",
	"aac":  "audio/aac",
}

// minimalMP3 is a bare MPEG frame header. It is served as the degraded
// 404 body so an <audio> element reports a decode error instead of a
// network/type error, which a JSON body would cause.
var minimalMP3 = []byte{
	0xFF, 0xFB, 0x90, 0x44, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}

// candidatePaths produces the ordered fallback chain for resolving a
// stored file path on the current platform:
//  1. the path normalized for the host separator convention,
//  2. the raw stored value,
//  3. on Windows hosts, the stored value with forward slashes swapped
//     for backslashes.
//
// Duplicates are dropped while preserving order. Pure function, so the
// chain is testable without touching the filesystem.
func candidatePaths(stored string, windows bool) []string {
	var normalized string
	if windows {
		normalized = filepath.Clean(strings.ReplaceAll(stored, "/", `\`))
	} else {
		normalized = filepath.Clean(strings.ReplaceAll(stored, `\`, "/"))
	}

	candidates := []string{normalized, stored}
	if windows {
		candidates = append(candidates, strings.ReplaceAll(stored, "/", `\`))
	}

	seen := make(map[string]bool, len(candidates))
	unique := candidates[:0]
	for _, c := range candidates {
		if !seen[c] {
			seen[c] = true
			unique = append(unique, c)
		}
	}
	return unique
}

// resolveTrackPath walks the fallback chain and returns the first path
// that exists, along with its file info.
func resolveTrackPath(stored string) (string, os.FileInfo, bool) {
	for _, candidate := range candidatePaths(stored, runtime.GOOS == "windows") {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, info, true
		}
	}
	return "", nil, false
}

// byteRange is one parsed "bytes=start-end" request.
type byteRange struct {
	start  int64
	end    int64
	length int64
}

var errUnsatisfiableRange = errors.New("unsatisfiable range")

// parseRangeHeader parses a single-range header against a file of the
// given size. An omitted end defaults to size-1. Returns (nil, nil) when
// the header is absent or malformed, in which case the caller serves the
// full file.
func parseRangeHeader(header string, size int64) (*byteRange, error) {
	if header == "" || !strings.HasPrefix(header, "bytes=") {
		return nil, nil
	}
	spec := strings.TrimPrefix(header, "bytes=")
	// Multi-range requests are not supported; take the first range.
	if idx := strings.Index(spec, ","); idx >= 0 {
		spec = spec[:idx]
	}
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 || parts[0] == "" {
		return nil, nil
	}

	start, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil || start < 0 {
		return nil, nil
	}

	end := size - 1
	if strings.TrimSpace(parts[1]) != "" {
		end, err = strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
		if err != nil {
			return nil, nil
		}
	}
	if end > size-1 {
		end = size - 1
	}
	if start >= size || start > end {
		return nil, errUnsatisfiableRange
	}
	return &byteRange{start: start, end: end, length: end - start + 1}, nil
}

// StreamTrackHandler 流式传输音乐文件，支持Range断点续传
// GET /api/music/stream/{id}
func (h *APIHandler) StreamTrackHandler(w http.ResponseWriter, r *http.Request) {
	trackID := mux.Vars(r)["id"]

	track, err := h.trackRepo.FindByID(r.Context(), trackID)
	if err != nil {
		if errors.Is(err, repository.ErrTrackNotFound) {
			respondError(w, http.StatusNotFound, "Track not found: "+trackID)
			return
		}
		logger.Error("查询歌曲失败",
			logger.String("trackId", trackID),
			logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to load track")
		return
	}

	resolved, info, ok := resolveTrackPath(track.Filename)
	if !ok {
		h.serveDegradedAudio(w, track.Filename, trackID)
		return
	}

	contentType, ok := contentTypeByFormat[strings.ToLower(track.Format)]
	if !ok {
		contentType = "audio/mpeg"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Cache-Control", "public, max-age=3600")

	size := info.Size()
	rng, err := parseRangeHeader(r.Header.Get("Range"), size)
	if err != nil {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}

	f, err := os.Open(resolved)
	if err != nil {
		// Existence was just confirmed, so this is a real IO problem.
		logger.Error("打开音频文件失败",
			logger.String("path", resolved),
			logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "Failed to open audio file")
		return
	}
	defer f.Close()

	if rng != nil {
		if _, err := f.Seek(rng.start, io.SeekStart); err != nil {
			logger.Error("定位音频文件失败",
				logger.String("path", resolved),
				logger.ErrorField(err))
			respondError(w, http.StatusInternalServerError, "Failed to seek audio file")
			return
		}
		w.Header().Set("Content-Length", strconv.FormatInt(rng.length, 10))
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", rng.start, rng.end, size))
		w.WriteHeader(http.StatusPartialContent)
		if _, err := io.CopyN(w, f, rng.length); err != nil {
			// Client abort lands here; the deferred close still runs.
			logger.Debug("范围传输中断",
				logger.String("trackId", trackID),
				logger.ErrorField(err))
		}
		return
	}

	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		logger.Debug("传输中断",
			logger.String("trackId", trackID),
			logger.ErrorField(err))
	}
}

// serveDegradedAudio answers a stream request whose file could not be
// resolved by any fallback path. The body is a minimal valid MP3 frame
// with diagnostic headers; media elements cannot consume a JSON body.
func (h *APIHandler) serveDegradedAudio(w http.ResponseWriter, stored, trackID string) {
	logger.Error("音乐文件不存在",
		logger.String("trackId", trackID),
		logger.String("filename", stored),
		logger.String("platform", runtime.GOOS))

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(minimalMP3)))
	w.Header().Set("X-Audio-Error", "file-not-found")
	w.Header().Set("X-Error-Message", "音乐文件不存在")
	w.WriteHeader(http.StatusNotFound)
	if _, err := w.Write(minimalMP3); err != nil {
		logger.Error("写入降级响应失败", logger.ErrorField(err))
	}
}
