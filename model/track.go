package model

import "time"

// Track represents one audio file in the music library. Candidate tracks
// built by the scanner and persisted rows share this shape.
type Track struct {
	// ID is derived deterministically from the normalized file path, so the
	// same physical file always maps to the same row across scans.
	ID                string    `json:"id"`
	Filename          string    `json:"filename"`
	Title             string    `json:"title"`
	TitlePinyin       string    `json:"titlePinyin"`
	TitleFirstLetter  string    `json:"titleFirstLetter"` // A-Z or "#"
	Artist            string    `json:"artist"`
	ArtistPinyin      string    `json:"artistPinyin"`
	ArtistFirstLetter string    `json:"artistFirstLetter"` // A-Z or "#"
	Album             string    `json:"album,omitempty"`
	Duration          *float64  `json:"duration,omitempty"` // seconds, nil when metadata was not extracted
	FileSize          int64     `json:"fileSize"`
	Format            string    `json:"format"` // lower-cased extension: mp3, flac, wav, ogg, wma, m4a, aac
	AddedAt           time.Time `json:"addedAt"`
}

// Artist is an aggregated view over tracks sharing the same artist name.
type Artist struct {
	Name        string `json:"name"`
	Pinyin      string `json:"pinyin"`
	FirstLetter string `json:"firstLetter"`
	TrackCount  int    `json:"trackCount"`
}

// TrackFilter narrows track listings. Zero values mean "no filter";
// Limit 0 means no pagination.
type TrackFilter struct {
	Letter string
	Artist string
	Page   int
	Limit  int
}

// ScanStats aggregates one scan pass. Errors holds human-readable
// diagnostics for entries that could not be fully resolved; their presence
// does not fail the scan.
type ScanStats struct {
	ScannedFiles int           `json:"scannedFiles"`
	TotalTracks  int           `json:"totalTracks"`
	TotalArtists int           `json:"totalArtists"`
	TotalSize    int64         `json:"totalSize"`
	Errors       []string      `json:"errors"`
	Duration     time.Duration `json:"-"`
}

// ScanResult is returned to the scan caller.
type ScanResult struct {
	Success     bool      `json:"success"`
	Message     string    `json:"message"`
	Stats       ScanStats `json:"stats"`
	SyncedCount int       `json:"syncedCount"`
}

// Playlist is the transient output of parsing one playlist file. It only
// lives for the duration of a scan.
type Playlist struct {
	Artist string
	Tracks []PlaylistEntry
}

// PlaylistEntry is a single line of a playlist file resolved to a track
// reference.
type PlaylistEntry struct {
	Title    string
	Filename string
	FilePath string
}
