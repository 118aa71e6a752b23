package library

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"testing"
	"time"

	"MuseFM/model"
	"MuseFM/repository"
)

// fakeTrackRepo is an in-memory repository.TrackRepository for exercising
// the reconciler without a database.
type fakeTrackRepo struct {
	mu      sync.Mutex
	tracks  map[string]*model.Track
	failIDs map[string]bool

	inserts int
	updates int
	deletes int
}

func newFakeTrackRepo() *fakeTrackRepo {
	return &fakeTrackRepo{
		tracks:  make(map[string]*model.Track),
		failIDs: make(map[string]bool),
	}
}

func cloneTrack(t *model.Track) *model.Track {
	c := *t
	if t.Duration != nil {
		d := *t.Duration
		c.Duration = &d
	}
	return &c
}

func (f *fakeTrackRepo) FindByID(ctx context.Context, id string) (*model.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	track, ok := f.tracks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrTrackNotFound, id)
	}
	return cloneTrack(track), nil
}

func (f *fakeTrackRepo) FindAll(ctx context.Context, filter model.TrackFilter) ([]*model.Track, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Track
	for _, track := range f.tracks {
		if filter.Letter != "" && track.TitleFirstLetter != filter.Letter {
			continue
		}
		if filter.Artist != "" && track.Artist != filter.Artist {
			continue
		}
		out = append(out, cloneTrack(track))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TitlePinyin < out[j].TitlePinyin })
	total := len(out)
	if filter.Limit > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		start := (page - 1) * filter.Limit
		if start > len(out) {
			start = len(out)
		}
		end := start + filter.Limit
		if end > len(out) {
			end = len(out)
		}
		out = out[start:end]
	}
	return out, total, nil
}

func (f *fakeTrackRepo) ListAll(ctx context.Context) ([]*model.Track, error) {
	tracks, _, err := f.FindAll(ctx, model.TrackFilter{})
	return tracks, err
}

func (f *fakeTrackRepo) ListArtists(ctx context.Context, letter string) ([]*model.Artist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	byName := make(map[string]*model.Artist)
	for _, track := range f.tracks {
		if letter != "" && track.ArtistFirstLetter != letter {
			continue
		}
		artist, ok := byName[track.Artist]
		if !ok {
			artist = &model.Artist{
				Name:        track.Artist,
				Pinyin:      track.ArtistPinyin,
				FirstLetter: track.ArtistFirstLetter,
			}
			byName[track.Artist] = artist
		}
		artist.TrackCount++
	}
	var out []*model.Artist
	for _, artist := range byName {
		out = append(out, artist)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pinyin < out[j].Pinyin })
	return out, nil
}

func (f *fakeTrackRepo) Insert(ctx context.Context, track *model.Track) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failIDs[track.ID] {
		return errors.New("simulated insert failure")
	}
	stored := cloneTrack(track)
	if stored.AddedAt.IsZero() {
		stored.AddedAt = time.Now()
	}
	f.tracks[track.ID] = stored
	f.inserts++
	return nil
}

func (f *fakeTrackRepo) Update(ctx context.Context, track *model.Track) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failIDs[track.ID] {
		return errors.New("simulated update failure")
	}
	if _, ok := f.tracks[track.ID]; !ok {
		return fmt.Errorf("%w: %s", repository.ErrTrackNotFound, track.ID)
	}
	f.tracks[track.ID] = cloneTrack(track)
	f.updates++
	return nil
}

func (f *fakeTrackRepo) UpdateTitle(ctx context.Context, id, title, titlePinyin, titleFirstLetter string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	track, ok := f.tracks[id]
	if !ok {
		return fmt.Errorf("%w: %s", repository.ErrTrackNotFound, id)
	}
	track.Title = title
	track.TitlePinyin = titlePinyin
	track.TitleFirstLetter = titleFirstLetter
	return nil
}

func (f *fakeTrackRepo) DeleteByID(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tracks[id]; !ok {
		return fmt.Errorf("%w: %s", repository.ErrTrackNotFound, id)
	}
	delete(f.tracks, id)
	f.deletes++
	return nil
}

func (f *fakeTrackRepo) CountAll(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tracks), nil
}

func makeCandidate(path, title, artist string) *model.Track {
	return &model.Track{
		ID:                DeriveTrackID(path),
		Filename:          path,
		Title:             title,
		TitlePinyin:       title,
		TitleFirstLetter:  "T",
		Artist:            artist,
		ArtistPinyin:      artist,
		ArtistFirstLetter: "A",
		FileSize:          1024,
		Format:            "mp3",
	}
}

func TestSyncInsertsNewTracks(t *testing.T) {
	repo := newFakeTrackRepo()
	rec := NewReconciler(repo)

	candidates := []*model.Track{
		makeCandidate("/music/a.mp3", "a", "x"),
		makeCandidate("/music/b.mp3", "b", "x"),
	}
	outcome := rec.Sync(context.Background(), candidates, false)

	if outcome.SyncedCount != 2 || outcome.Inserted != 2 {
		t.Fatalf("first sync: synced=%d inserted=%d, want 2/2", outcome.SyncedCount, outcome.Inserted)
	}
	if len(outcome.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", outcome.Errors)
	}
	if n, _ := repo.CountAll(context.Background()); n != 2 {
		t.Fatalf("store holds %d tracks, want 2", n)
	}
}

func TestSyncIsIdempotent(t *testing.T) {
	repo := newFakeTrackRepo()
	rec := NewReconciler(repo)

	candidates := []*model.Track{
		makeCandidate("/music/a.mp3", "a", "x"),
		makeCandidate("/music/b.mp3", "b", "y"),
	}
	rec.Sync(context.Background(), candidates, false)

	// Same data again: no row may be written.
	second := rec.Sync(context.Background(), candidates, false)
	if second.SyncedCount != 0 {
		t.Errorf("second sync wrote %d rows, want 0", second.SyncedCount)
	}
	if second.Inserted != 0 || second.Updated != 0 {
		t.Errorf("second sync: inserted=%d updated=%d, want 0/0", second.Inserted, second.Updated)
	}
	if repo.updates != 0 {
		t.Errorf("repo saw %d Update calls during identical rescans, want 0", repo.updates)
	}
}

func TestSyncUpdatesOnlyChangedRows(t *testing.T) {
	repo := newFakeTrackRepo()
	rec := NewReconciler(repo)

	a := makeCandidate("/music/a.mp3", "a", "x")
	b := makeCandidate("/music/b.mp3", "b", "x")
	rec.Sync(context.Background(), []*model.Track{a, b}, false)

	changed := makeCandidate("/music/a.mp3", "a", "x")
	changed.FileSize = 2048
	outcome := rec.Sync(context.Background(), []*model.Track{changed, b}, false)

	if outcome.SyncedCount != 1 || outcome.Updated != 1 {
		t.Fatalf("synced=%d updated=%d, want 1/1", outcome.SyncedCount, outcome.Updated)
	}
	stored, err := repo.FindByID(context.Background(), a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.FileSize != 2048 {
		t.Errorf("stored file size = %d, want 2048", stored.FileSize)
	}
}

func TestSyncPreservesAddedAt(t *testing.T) {
	repo := newFakeTrackRepo()
	rec := NewReconciler(repo)

	a := makeCandidate("/music/a.mp3", "a", "x")
	rec.Sync(context.Background(), []*model.Track{a}, false)

	before, err := repo.FindByID(context.Background(), a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if before.AddedAt.IsZero() {
		t.Fatal("insert left AddedAt zero")
	}

	changed := makeCandidate("/music/a.mp3", "renamed", "x")
	changed.FileSize = 4096
	rec.Sync(context.Background(), []*model.Track{changed}, false)

	after, err := repo.FindByID(context.Background(), a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !after.AddedAt.Equal(before.AddedAt) {
		t.Errorf("update changed AddedAt: %v -> %v", before.AddedAt, after.AddedAt)
	}
}

func TestSyncKeepsMetadataWhenCandidateLacksIt(t *testing.T) {
	repo := newFakeTrackRepo()
	rec := NewReconciler(repo)

	// First pass ran with metadata extraction.
	rich := makeCandidate("/music/a.mp3", "a", "x")
	duration := 215.0
	rich.Duration = &duration
	rich.Album = "范特西"
	rec.Sync(context.Background(), []*model.Track{rich}, false)

	// Later pass without metadata extraction produces a bare candidate.
	bare := makeCandidate("/music/a.mp3", "a", "x")
	outcome := rec.Sync(context.Background(), []*model.Track{bare}, false)

	if outcome.SyncedCount != 0 {
		t.Errorf("metadata-free rescan wrote %d rows, want 0", outcome.SyncedCount)
	}
	stored, err := repo.FindByID(context.Background(), rich.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Duration == nil || *stored.Duration != duration {
		t.Errorf("stored duration = %v, want %v", stored.Duration, duration)
	}
	if stored.Album != "范特西" {
		t.Errorf("stored album = %q, want 范特西", stored.Album)
	}
}

func TestSyncOrphansKeptByDefaultPrunedOnRequest(t *testing.T) {
	repo := newFakeTrackRepo()
	rec := NewReconciler(repo)

	a := makeCandidate("/music/a.mp3", "a", "x")
	b := makeCandidate("/music/b.mp3", "b", "x")
	rec.Sync(context.Background(), []*model.Track{a, b}, false)

	// b vanished from the playlists. Default keeps it.
	outcome := rec.Sync(context.Background(), []*model.Track{a}, false)
	if outcome.Pruned != 0 {
		t.Fatalf("default sync pruned %d rows", outcome.Pruned)
	}
	if n, _ := repo.CountAll(context.Background()); n != 2 {
		t.Fatalf("store holds %d tracks after default sync, want 2", n)
	}

	outcome = rec.Sync(context.Background(), []*model.Track{a}, true)
	if outcome.Pruned != 1 {
		t.Fatalf("prune sync removed %d rows, want 1", outcome.Pruned)
	}
	if _, err := repo.FindByID(context.Background(), b.ID); !errors.Is(err, repository.ErrTrackNotFound) {
		t.Errorf("pruned track still present, err = %v", err)
	}
}

func TestSyncContinuesPastFailingCandidate(t *testing.T) {
	repo := newFakeTrackRepo()
	rec := NewReconciler(repo)

	bad := makeCandidate("/music/bad.mp3", "bad", "x")
	good := makeCandidate("/music/good.mp3", "good", "x")
	repo.failIDs[bad.ID] = true

	outcome := rec.Sync(context.Background(), []*model.Track{bad, good}, false)

	if len(outcome.Errors) != 1 {
		t.Fatalf("errors = %v, want exactly one", outcome.Errors)
	}
	if outcome.Inserted != 1 || outcome.SyncedCount != 1 {
		t.Errorf("inserted=%d synced=%d, want 1/1", outcome.Inserted, outcome.SyncedCount)
	}
	if _, err := repo.FindByID(context.Background(), good.ID); err != nil {
		t.Errorf("good candidate not inserted: %v", err)
	}
}

func TestUpdateTitle(t *testing.T) {
	repo := newFakeTrackRepo()
	rec := NewReconciler(repo)

	a := makeCandidate("/music/a.mp3", "old", "x")
	rec.Sync(context.Background(), []*model.Track{a}, false)

	if err := rec.UpdateTitle(context.Background(), a.ID, ""); !errors.Is(err, ErrInvalidTitle) {
		t.Errorf("empty title: err = %v, want ErrInvalidTitle", err)
	}
	if err := rec.UpdateTitle(context.Background(), "no-such-id", "title"); !errors.Is(err, repository.ErrTrackNotFound) {
		t.Errorf("missing track: err = %v, want ErrTrackNotFound", err)
	}

	if err := rec.UpdateTitle(context.Background(), a.ID, "晴天"); err != nil {
		t.Fatal(err)
	}
	stored, err := repo.FindByID(context.Background(), a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Title != "晴天" {
		t.Errorf("title = %q, want 晴天", stored.Title)
	}
	if stored.TitlePinyin != "qingtian" || stored.TitleFirstLetter != "Q" {
		t.Errorf("derived fields not recomputed: pinyin=%q letter=%q", stored.TitlePinyin, stored.TitleFirstLetter)
	}
}

func TestBatchCleanTitles(t *testing.T) {
	repo := newFakeTrackRepo()
	rec := NewReconciler(repo)

	dirty := makeCandidate("/music/dirty.mp3", "01. 晴天.mp3", "x")
	clean := makeCandidate("/music/clean.mp3", "七里香", "x")
	rec.Sync(context.Background(), []*model.Track{dirty, clean}, false)

	dry, err := rec.BatchCleanTitles(context.Background(), CleanOptions{DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	if dry.ProcessedCount != 2 || dry.UpdatedCount != 1 || dry.UnchangedCount != 1 {
		t.Fatalf("dry run: processed=%d updated=%d unchanged=%d", dry.ProcessedCount, dry.UpdatedCount, dry.UnchangedCount)
	}
	stored, _ := repo.FindByID(context.Background(), dirty.ID)
	if stored.Title != "01. 晴天.mp3" {
		t.Fatalf("dry run wrote to store: title = %q", stored.Title)
	}

	applied, err := rec.BatchCleanTitles(context.Background(), CleanOptions{})
	if err != nil {
		t.Fatal(err)
	}
	// A dry run and a real run over the same data must report the same diff.
	if !reflect.DeepEqual(dry.Details, applied.Details) {
		t.Errorf("dry-run details differ from real run:\n%v\nvs\n%v", dry.Details, applied.Details)
	}
	stored, _ = repo.FindByID(context.Background(), dirty.ID)
	if stored.Title != "晴天" {
		t.Errorf("cleaned title = %q, want 晴天", stored.Title)
	}
	if stored.TitlePinyin != "qingtian" || stored.TitleFirstLetter != "Q" {
		t.Errorf("pinyin not recomputed after cleanup: %q/%q", stored.TitlePinyin, stored.TitleFirstLetter)
	}

	// A second real run finds nothing left to change.
	again, err := rec.BatchCleanTitles(context.Background(), CleanOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if again.UpdatedCount != 0 {
		t.Errorf("second cleanup changed %d titles, want 0", again.UpdatedCount)
	}
}

func TestBatchCleanTitlesLimit(t *testing.T) {
	repo := newFakeTrackRepo()
	rec := NewReconciler(repo)

	var candidates []*model.Track
	for i := 0; i < 5; i++ {
		candidates = append(candidates, makeCandidate(fmt.Sprintf("/music/t%d.mp3", i), fmt.Sprintf("t%d", i), "x"))
	}
	rec.Sync(context.Background(), candidates, false)

	result, err := rec.BatchCleanTitles(context.Background(), CleanOptions{Limit: 3, DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	if result.ProcessedCount != 3 {
		t.Errorf("processed %d tracks, want 3", result.ProcessedCount)
	}
}
