package library

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writePlaylist(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestParseAllMissingRoot(t *testing.T) {
	parser := NewM3UParser(filepath.Join(t.TempDir(), "does-not-exist"))
	_, _, err := parser.ParseAll()
	if !errors.Is(err, ErrPlaylistsRootMissing) {
		t.Fatalf("err = %v, want ErrPlaylistsRootMissing", err)
	}
}

func TestParseAllEmptyRoot(t *testing.T) {
	parser := NewM3UParser(t.TempDir())
	playlists, warnings, err := parser.ParseAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(playlists) != 0 || len(warnings) != 0 {
		t.Errorf("empty root: playlists=%d warnings=%d, want 0/0", len(playlists), len(warnings))
	}
}

func TestParseAllSkipsNonPlaylistEntries(t *testing.T) {
	root := t.TempDir()
	writePlaylist(t, root, "周杰伦.m3u", "/music/a.mp3\n")
	writePlaylist(t, root, "notes.txt", "not a playlist")
	writePlaylist(t, root, "cover.jpg", "")
	if err := os.Mkdir(filepath.Join(root, "subdir"), 0755); err != nil {
		t.Fatal(err)
	}

	playlists, _, err := NewM3UParser(root).ParseAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(playlists) != 1 {
		t.Fatalf("parsed %d playlists, want 1", len(playlists))
	}
	if playlists[0].Artist != "周杰伦" {
		t.Errorf("artist = %q, want 周杰伦", playlists[0].Artist)
	}
}

func TestParseOneEntries(t *testing.T) {
	root := t.TempDir()
	content := "#EXTM3U\r\n" +
		"#EXTINF:215,周杰伦 - 晴天\r\n" +
		"/music/zhoujielun/qingtian.mp3\r\n" +
		"\r\n" +
		"# a stray comment\r\n" +
		"relative/七里香.mp3\r\n" +
		"/music/zhoujielun/彩虹.flac\r\n"
	writePlaylist(t, root, "周杰伦.m3u8", content)

	playlists, warnings, err := NewM3UParser(root).ParseAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(playlists) != 1 {
		t.Fatalf("parsed %d playlists, want 1", len(playlists))
	}

	tracks := playlists[0].Tracks
	if len(tracks) != 3 {
		t.Fatalf("parsed %d tracks, want 3", len(tracks))
	}

	// EXTINF title wins over the filename.
	if tracks[0].Title != "周杰伦 - 晴天" {
		t.Errorf("track 0 title = %q, want EXTINF title", tracks[0].Title)
	}
	if tracks[0].FilePath != filepath.Clean("/music/zhoujielun/qingtian.mp3") {
		t.Errorf("track 0 path = %q", tracks[0].FilePath)
	}

	// No EXTINF: title falls back to the file name, relative references
	// resolve against the playlist directory.
	if tracks[1].Title != "七里香" {
		t.Errorf("track 1 title = %q, want 七里香", tracks[1].Title)
	}
	wantPath := filepath.Join(root, "relative", "七里香.mp3")
	if tracks[1].FilePath != wantPath {
		t.Errorf("track 1 path = %q, want %q", tracks[1].FilePath, wantPath)
	}

	// A consumed EXTINF title must not leak into the next plain entry.
	if tracks[2].Title != "彩虹" {
		t.Errorf("track 2 title = %q, want 彩虹", tracks[2].Title)
	}
	if tracks[2].Filename != "彩虹.flac" {
		t.Errorf("track 2 filename = %q, want 彩虹.flac", tracks[2].Filename)
	}
}

func TestParseExtInf(t *testing.T) {
	tests := []struct {
		line  string
		title string
		ok    bool
	}{
		{"#EXTINF:215,周杰伦 - 晴天", "周杰伦 - 晴天", true},
		{"#EXTINF:-1,Title", "Title", true},
		{"#EXTINF:215, spaced ", "spaced", true},
		{"#EXTINF:215,", "", false},
		{"#EXTINF:215", "", false},
		{"#EXTM3U", "", false},
		{"# plain comment", "", false},
	}
	for _, tt := range tests {
		title, ok := parseExtInf(tt.line)
		if title != tt.title || ok != tt.ok {
			t.Errorf("parseExtInf(%q) = (%q, %v), want (%q, %v)", tt.line, title, ok, tt.title, tt.ok)
		}
	}
}

func TestTitleFromFilename(t *testing.T) {
	tests := []struct {
		ref  string
		want string
	}{
		{"/music/zhoujielun/晴天.mp3", "晴天"},
		{`D:\Music\周杰伦\七里香.mp3`, "七里香"},
		{"plain.flac", "plain"},
		{"noextension", "noextension"},
		{"dir/nested/track.m4a", "track"},
	}
	for _, tt := range tests {
		if got := TitleFromFilename(tt.ref); got != tt.want {
			t.Errorf("TitleFromFilename(%q) = %q, want %q", tt.ref, got, tt.want)
		}
	}
}
