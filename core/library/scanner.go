package library

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"MuseFM/core/pinyin"
	"MuseFM/logger"
	"MuseFM/model"

	"github.com/dhowden/tag"
	"go.senan.xyz/taglib"
)

// ScanOptions controls one scan pass.
type ScanOptions struct {
	// ForceRescan rebuilds the candidate set from disk even if nothing
	// appears to have changed. The scanner always does a full pass, so the
	// flag is honored by never consulting the cached previous result.
	ForceRescan bool
	// ExtractMetadata reads embedded tags and audio duration per file.
	// Slower; when off, Duration stays nil and Album comes from nothing.
	ExtractMetadata bool
	Verbose         bool
	// Prune removes persisted tracks that no scanned playlist references.
	// Off by default so a partial scan cannot wipe the library.
	Prune bool
}

// ProgressEvent is emitted as the scan advances, for verbose logging and
// the websocket progress push.
type ProgressEvent struct {
	Stage   string `json:"stage"` // parsing | scanning | syncing | done
	Artist  string `json:"artist,omitempty"`
	Scanned int    `json:"scanned"`
	Total   int    `json:"total"`
	Message string `json:"message,omitempty"`
}

// ProgressFunc receives progress events. Implementations must be fast;
// the scanner calls it inline.
type ProgressFunc func(event ProgressEvent)

// Scanner walks the playlist tree and produces candidate tracks plus scan
// statistics. It never fails on a single bad entry; only a missing
// playlists root aborts the pass.
type Scanner struct {
	parser     *M3UParser
	reconciler *Reconciler
	progress   ProgressFunc
}

// NewScanner creates a scanner over the given parser and reconciler.
func NewScanner(parser *M3UParser, reconciler *Reconciler) *Scanner {
	return &Scanner{parser: parser, reconciler: reconciler}
}

// OnProgress registers the progress sink. Pass nil to disable.
func (s *Scanner) OnProgress(fn ProgressFunc) {
	s.progress = fn
}

func (s *Scanner) emit(event ProgressEvent) {
	if s.progress != nil {
		s.progress(event)
	}
}

// ScanAndSync runs a full scan pass and reconciles the result against the
// persisted store. The returned result is always structured; partial
// failures land in Stats.Errors instead of aborting.
func (s *Scanner) ScanAndSync(ctx context.Context, opts ScanOptions) model.ScanResult {
	start := time.Now()
	logger.Info("开始扫描音乐库",
		logger.Bool("forceRescan", opts.ForceRescan),
		logger.Bool("extractMetadata", opts.ExtractMetadata),
		logger.Bool("prune", opts.Prune))

	candidates, stats, err := s.BuildCandidates(ctx, opts)
	if err != nil {
		// Only root-level inaccessibility lands here.
		logger.Error("扫描失败", logger.ErrorField(err))
		return model.ScanResult{
			Success: false,
			Message: err.Error(),
			Stats:   *stats,
		}
	}

	s.emit(ProgressEvent{Stage: "syncing", Scanned: stats.ScannedFiles, Total: stats.ScannedFiles})
	outcome := s.reconciler.Sync(ctx, candidates, opts.Prune)
	stats.Errors = append(stats.Errors, outcome.Errors...)
	stats.Duration = time.Since(start)

	logger.Info("扫描完成",
		logger.Int("totalTracks", stats.TotalTracks),
		logger.Int("totalArtists", stats.TotalArtists),
		logger.Int64("totalSize", stats.TotalSize),
		logger.Int("syncedCount", outcome.SyncedCount),
		logger.Int("errors", len(stats.Errors)),
		logger.Duration("elapsed", stats.Duration))
	s.emit(ProgressEvent{Stage: "done", Scanned: stats.ScannedFiles, Total: stats.ScannedFiles})

	return model.ScanResult{
		Success:     true,
		Message:     fmt.Sprintf("Scanned %d files, synced %d tracks", stats.ScannedFiles, outcome.SyncedCount),
		Stats:       *stats,
		SyncedCount: outcome.SyncedCount,
	}
}

// BuildCandidates produces the full in-memory candidate track set for this
// pass. Entries whose file cannot be stat'ed are kept with a zero size so
// they surface in listings for diagnosis, and recorded in Stats.Errors.
func (s *Scanner) BuildCandidates(ctx context.Context, opts ScanOptions) ([]*model.Track, *model.ScanStats, error) {
	stats := &model.ScanStats{Errors: []string{}}

	s.emit(ProgressEvent{Stage: "parsing"})
	playlists, warnings, err := s.parser.ParseAll()
	if err != nil {
		return nil, stats, err
	}
	stats.Errors = append(stats.Errors, warnings...)

	totalEntries := 0
	for _, playlist := range playlists {
		totalEntries += len(playlist.Tracks)
	}

	seen := make(map[string]bool)
	artists := make(map[string]bool)
	candidates := make([]*model.Track, 0, totalEntries)

	for _, playlist := range playlists {
		if err := ctx.Err(); err != nil {
			return nil, stats, fmt.Errorf("scan cancelled: %w", err)
		}
		s.emit(ProgressEvent{
			Stage:   "scanning",
			Artist:  playlist.Artist,
			Scanned: stats.ScannedFiles,
			Total:   totalEntries,
		})
		if opts.Verbose {
			logger.Debug("扫描歌手播放列表",
				logger.String("artist", playlist.Artist),
				logger.Int("entries", len(playlist.Tracks)))
		}

		for _, entry := range playlist.Tracks {
			stats.ScannedFiles++

			track := s.buildTrack(playlist.Artist, entry, opts, stats)
			if seen[track.ID] {
				// The same file referenced from two playlists collapses to
				// one candidate; the first reference wins.
				continue
			}
			seen[track.ID] = true
			artists[track.Artist] = true
			stats.TotalSize += track.FileSize
			candidates = append(candidates, track)
		}
	}

	stats.TotalTracks = len(candidates)
	stats.TotalArtists = len(artists)
	return candidates, stats, nil
}

// buildTrack assembles one candidate from a playlist entry.
func (s *Scanner) buildTrack(artist string, entry model.PlaylistEntry, opts ScanOptions, stats *model.ScanStats) *model.Track {
	titlePinyin, titleLetter := pinyin.Normalize(entry.Title)
	artistPinyin, artistLetter := pinyin.Normalize(artist)

	track := &model.Track{
		ID:                DeriveTrackID(entry.FilePath),
		Filename:          entry.FilePath,
		Title:             entry.Title,
		TitlePinyin:       titlePinyin,
		TitleFirstLetter:  titleLetter,
		Artist:            artist,
		ArtistPinyin:      artistPinyin,
		ArtistFirstLetter: artistLetter,
		Format:            formatFromPath(entry.FilePath),
	}

	info, err := os.Stat(entry.FilePath)
	if err != nil {
		// Missing file is non-fatal: keep the track with zero size so the
		// broken reference is visible, and record the diagnostic.
		stats.Errors = append(stats.Errors, fmt.Sprintf("file not found: %s (%s - %s)", entry.FilePath, artist, entry.Title))
		return track
	}
	track.FileSize = info.Size()

	if opts.ExtractMetadata {
		s.extractMetadata(track, stats)
	}
	return track
}

// extractMetadata fills Album from embedded tags and Duration from the
// audio properties. Both are best-effort; failures are recorded and the
// candidate keeps its filename-derived fields.
func (s *Scanner) extractMetadata(track *model.Track, stats *model.ScanStats) {
	f, err := os.Open(track.Filename)
	if err == nil {
		if meta, err := tag.ReadFrom(f); err == nil {
			track.Album = meta.Album()
		}
		f.Close()
	}

	props, err := taglib.ReadProperties(track.Filename)
	if err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("metadata extraction failed: %s: %v", track.Filename, err))
		return
	}
	seconds := props.Length.Seconds()
	track.Duration = &seconds
}

// formatFromPath lower-cases the file extension without its dot.
func formatFromPath(p string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(p), "."))
	if ext == "" {
		return "mp3"
	}
	return ext
}
