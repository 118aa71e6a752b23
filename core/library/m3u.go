package library

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"MuseFM/logger"
	"MuseFM/model"
)

// ErrPlaylistsRootMissing is returned when the playlists directory itself
// cannot be read. Individual unreadable playlists only produce warnings.
var ErrPlaylistsRootMissing = errors.New("playlists root does not exist")

// M3UParser reads directory-per-artist playlist files. Each .m3u/.m3u8 file
// under the root describes one artist; the artist name is the file base
// name, not embedded metadata.
type M3UParser struct {
	root string
}

// NewM3UParser creates a parser rooted at the playlists directory.
func NewM3UParser(root string) *M3UParser {
	return &M3UParser{root: root}
}

// ParseAll enumerates every playlist file under the root. Malformed
// playlists are skipped with a warning; a missing root fails the whole
// call with ErrPlaylistsRootMissing.
func (p *M3UParser) ParseAll() ([]model.Playlist, []string, error) {
	entries, err := os.ReadDir(p.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w: %s", ErrPlaylistsRootMissing, p.root)
		}
		return nil, nil, fmt.Errorf("failed to read playlists root %s: %w", p.root, err)
	}

	var playlists []model.Playlist
	var warnings []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".m3u" && ext != ".m3u8" {
			continue
		}

		playlist, err := p.parseOne(filepath.Join(p.root, entry.Name()))
		if err != nil {
			warning := fmt.Sprintf("playlist %s: %v", entry.Name(), err)
			warnings = append(warnings, warning)
			logger.Warn("解析播放列表失败",
				logger.String("file", entry.Name()),
				logger.ErrorField(err))
			continue
		}
		playlists = append(playlists, playlist)
	}
	return playlists, warnings, nil
}

// parseOne reads a single playlist file. Lines are file references,
// optionally preceded by an #EXTINF directive carrying a display title.
func (p *M3UParser) parseOne(path string) (model.Playlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Playlist{}, fmt.Errorf("failed to read playlist: %w", err)
	}

	artist := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	playlist := model.Playlist{Artist: artist}
	baseDir := filepath.Dir(path)

	pendingTitle := ""
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(strings.TrimRight(line, "\r"))
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			if title, ok := parseExtInf(line); ok {
				pendingTitle = title
			}
			continue
		}

		// Resolve relative references against the playlist's directory.
		trackPath := line
		if !filepath.IsAbs(trackPath) {
			trackPath = filepath.Join(baseDir, trackPath)
		}
		trackPath = filepath.Clean(trackPath)

		title := pendingTitle
		if title == "" {
			title = TitleFromFilename(line)
		}
		pendingTitle = ""

		playlist.Tracks = append(playlist.Tracks, model.PlaylistEntry{
			Title:    title,
			Filename: filepath.Base(line),
			FilePath: trackPath,
		})
	}
	return playlist, nil
}

// parseExtInf extracts the display title from an "#EXTINF:123,Artist - Title"
// directive. Returns false for other comment lines.
func parseExtInf(line string) (string, bool) {
	if !strings.HasPrefix(line, "#EXTINF:") {
		return "", false
	}
	rest := strings.TrimPrefix(line, "#EXTINF:")
	if idx := strings.Index(rest, ","); idx >= 0 {
		title := strings.TrimSpace(rest[idx+1:])
		if title != "" {
			return title, true
		}
	}
	return "", false
}

// TitleFromFilename derives a display title from a file reference:
// directory and extension stripped.
func TitleFromFilename(ref string) string {
	// Playlist entries may carry foreign separators, so strip both kinds.
	base := ref
	if idx := strings.LastIndexAny(base, `/\`); idx >= 0 {
		base = base[idx+1:]
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}
