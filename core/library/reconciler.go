package library

import (
	"context"
	"errors"
	"fmt"

	"MuseFM/core/pinyin"
	"MuseFM/logger"
	"MuseFM/model"
	"MuseFM/repository"
)

// ErrInvalidTitle rejects manual title updates with an empty title.
var ErrInvalidTitle = errors.New("title must not be empty")

// Reconciler diffs scanned candidates against the persisted store and
// applies the minimal set of writes.
type Reconciler struct {
	repo repository.TrackRepository
}

// NewReconciler creates a reconciler over the given repository.
func NewReconciler(repo repository.TrackRepository) *Reconciler {
	return &Reconciler{repo: repo}
}

// SyncOutcome reports what one reconciliation pass actually wrote.
// SyncedCount counts rows changed on this run, so an unchanged rescan
// reports zero.
type SyncOutcome struct {
	SyncedCount int
	Inserted    int
	Updated     int
	Pruned      int
	Errors      []string
}

// Sync upserts every candidate by ID: absent rows are inserted with a
// fresh AddedAt, present rows are updated only when a field differs.
// A single candidate's failure is recorded and the batch continues.
// With prune enabled, persisted rows missing from the candidate set are
// deleted; by default they are left alone.
func (r *Reconciler) Sync(ctx context.Context, candidates []*model.Track, prune bool) SyncOutcome {
	outcome := SyncOutcome{Errors: []string{}}

	existingList, err := r.repo.ListAll(ctx)
	if err != nil {
		outcome.Errors = append(outcome.Errors, fmt.Sprintf("failed to load persisted tracks: %v", err))
		return outcome
	}
	existing := make(map[string]*model.Track, len(existingList))
	for _, track := range existingList {
		existing[track.ID] = track
	}

	candidateIDs := make(map[string]bool, len(candidates))
	for _, candidate := range candidates {
		candidateIDs[candidate.ID] = true

		current, ok := existing[candidate.ID]
		if !ok {
			if err := r.repo.Insert(ctx, candidate); err != nil {
				outcome.Errors = append(outcome.Errors, fmt.Sprintf("insert %s (%s): %v", candidate.ID, candidate.Title, err))
				continue
			}
			outcome.Inserted++
			outcome.SyncedCount++
			continue
		}

		merged := mergeCandidate(current, candidate)
		if !trackChanged(current, merged) {
			continue
		}
		if err := r.repo.Update(ctx, merged); err != nil {
			outcome.Errors = append(outcome.Errors, fmt.Sprintf("update %s (%s): %v", candidate.ID, candidate.Title, err))
			continue
		}
		outcome.Updated++
		outcome.SyncedCount++
	}

	if prune {
		for id, track := range existing {
			if candidateIDs[id] {
				continue
			}
			if err := r.repo.DeleteByID(ctx, id); err != nil {
				outcome.Errors = append(outcome.Errors, fmt.Sprintf("prune %s (%s): %v", id, track.Title, err))
				continue
			}
			logger.Info("清理失效曲目",
				logger.String("trackId", id),
				logger.String("title", track.Title))
			outcome.Pruned++
		}
	}

	return outcome
}

// mergeCandidate produces the row the store should hold after this pass.
// AddedAt always survives from the persisted row. A candidate scanned
// without metadata extraction carries no duration or album; those fields
// keep their persisted values rather than being wiped.
func mergeCandidate(current, candidate *model.Track) *model.Track {
	merged := *candidate
	merged.AddedAt = current.AddedAt
	if merged.Duration == nil {
		merged.Duration = current.Duration
	}
	if merged.Album == "" {
		merged.Album = current.Album
	}
	return &merged
}

func trackChanged(current, merged *model.Track) bool {
	if current.Filename != merged.Filename ||
		current.Title != merged.Title ||
		current.TitlePinyin != merged.TitlePinyin ||
		current.TitleFirstLetter != merged.TitleFirstLetter ||
		current.Artist != merged.Artist ||
		current.ArtistPinyin != merged.ArtistPinyin ||
		current.ArtistFirstLetter != merged.ArtistFirstLetter ||
		current.Album != merged.Album ||
		current.FileSize != merged.FileSize ||
		current.Format != merged.Format {
		return true
	}
	switch {
	case current.Duration == nil && merged.Duration == nil:
		return false
	case current.Duration == nil || merged.Duration == nil:
		return true
	default:
		return *current.Duration != *merged.Duration
	}
}

// UpdateTitle overwrites a track's title and recomputes the derived
// pinyin fields from the new value. The index letter is never edited
// independently of the title.
func (r *Reconciler) UpdateTitle(ctx context.Context, trackID, newTitle string) error {
	if newTitle == "" {
		return ErrInvalidTitle
	}
	titlePinyin, titleLetter := pinyin.Normalize(newTitle)
	if err := r.repo.UpdateTitle(ctx, trackID, newTitle, titlePinyin, titleLetter); err != nil {
		return err
	}
	logger.Info("更新曲目标题",
		logger.String("trackId", trackID),
		logger.String("title", newTitle),
		logger.String("firstLetter", titleLetter))
	return nil
}

// CleanOptions controls a batch title cleanup.
type CleanOptions struct {
	// Limit caps how many tracks are processed; 0 means all.
	Limit int
	// DryRun computes the diff without writing.
	DryRun bool
}

// TitleChange is one before/after entry of a cleanup run.
type TitleChange struct {
	ID            string `json:"id"`
	OriginalTitle string `json:"originalTitle"`
	NewTitle      string `json:"newTitle"`
	Changed       bool   `json:"changed"`
}

// CleanResult reports a batch cleanup. Details is identical between a dry
// run and a real run over the same data; only persistence differs.
type CleanResult struct {
	Success        bool          `json:"success"`
	Message        string        `json:"message"`
	ProcessedCount int           `json:"processedCount"`
	UpdatedCount   int           `json:"updatedCount"`
	UnchangedCount int           `json:"unchangedCount"`
	Details        []TitleChange `json:"details"`
}

// BatchCleanTitles applies CleanTitle to up to Limit tracks. In dry-run
// mode the diff is returned without touching the store; otherwise every
// changed title is persisted with recomputed pinyin fields.
func (r *Reconciler) BatchCleanTitles(ctx context.Context, opts CleanOptions) (CleanResult, error) {
	tracks, err := r.repo.ListAll(ctx)
	if err != nil {
		return CleanResult{}, fmt.Errorf("failed to load tracks for cleanup: %w", err)
	}
	if opts.Limit > 0 && len(tracks) > opts.Limit {
		tracks = tracks[:opts.Limit]
	}

	result := CleanResult{Success: true, Details: make([]TitleChange, 0, len(tracks))}
	for _, track := range tracks {
		newTitle := CleanTitle(track.Title)
		change := TitleChange{
			ID:            track.ID,
			OriginalTitle: track.Title,
			NewTitle:      newTitle,
			Changed:       newTitle != track.Title,
		}
		result.ProcessedCount++
		result.Details = append(result.Details, change)

		if !change.Changed {
			result.UnchangedCount++
			continue
		}
		result.UpdatedCount++

		if opts.DryRun {
			continue
		}
		titlePinyin, titleLetter := pinyin.Normalize(newTitle)
		if err := r.repo.UpdateTitle(ctx, track.ID, newTitle, titlePinyin, titleLetter); err != nil {
			// Keep going; a single failed row should not abort the batch.
			logger.Error("批量清理标题失败",
				logger.String("trackId", track.ID),
				logger.ErrorField(err))
			continue
		}
	}

	mode := "applied"
	if opts.DryRun {
		mode = "previewed"
	}
	result.Message = fmt.Sprintf("%s %d title changes (%d unchanged)", mode, result.UpdatedCount, result.UnchangedCount)
	return result, nil
}
