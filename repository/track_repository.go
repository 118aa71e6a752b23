package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"MuseFM/db"
	"MuseFM/model"
)

// ErrTrackNotFound is returned when a referenced track does not exist.
var ErrTrackNotFound = errors.New("track not found")

// TrackRepository defines the interface for track data operations.
type TrackRepository interface {
	FindByID(ctx context.Context, id string) (*model.Track, error)
	FindAll(ctx context.Context, filter model.TrackFilter) ([]*model.Track, int, error)
	ListAll(ctx context.Context) ([]*model.Track, error)
	ListArtists(ctx context.Context, letter string) ([]*model.Artist, error)
	Insert(ctx context.Context, track *model.Track) error
	Update(ctx context.Context, track *model.Track) error
	UpdateTitle(ctx context.Context, id, title, titlePinyin, titleFirstLetter string) error
	DeleteByID(ctx context.Context, id string) error
	CountAll(ctx context.Context) (int, error)
}

// mysqlTrackRepository implements TrackRepository for MySQL.
type mysqlTrackRepository struct {
	DB *sql.DB
}

// NewMySQLTrackRepository creates a new instance of mysqlTrackRepository.
func NewMySQLTrackRepository() TrackRepository {
	return &mysqlTrackRepository{DB: db.DB}
}

const trackColumns = `id, filename, title, title_pinyin, title_first_letter,
	artist, artist_pinyin, artist_first_letter, album, duration, file_size, format, added_at`

func scanTrack(row interface{ Scan(...any) error }) (*model.Track, error) {
	track := &model.Track{}
	var album sql.NullString
	var duration sql.NullFloat64
	err := row.Scan(&track.ID, &track.Filename, &track.Title, &track.TitlePinyin,
		&track.TitleFirstLetter, &track.Artist, &track.ArtistPinyin,
		&track.ArtistFirstLetter, &album, &duration, &track.FileSize,
		&track.Format, &track.AddedAt)
	if err != nil {
		return nil, err
	}
	if album.Valid {
		track.Album = album.String
	}
	if duration.Valid {
		d := duration.Float64
		track.Duration = &d
	}
	return track, nil
}

// FindByID retrieves a track by its ID.
func (r *mysqlTrackRepository) FindByID(ctx context.Context, id string) (*model.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM music_tracks WHERE id = ?`
	track, err := scanTrack(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", ErrTrackNotFound, id)
		}
		return nil, fmt.Errorf("failed to scan track by ID %s: %w", id, err)
	}
	return track, nil
}

// FindAll retrieves tracks matching the filter, ordered by title pinyin,
// plus the total matching count for pagination.
func (r *mysqlTrackRepository) FindAll(ctx context.Context, filter model.TrackFilter) ([]*model.Track, int, error) {
	var conditions []string
	var args []any
	if filter.Letter != "" {
		conditions = append(conditions, "title_first_letter = ?")
		args = append(args, filter.Letter)
	}
	if filter.Artist != "" {
		conditions = append(conditions, "artist = ?")
		args = append(args, filter.Artist)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM music_tracks` + where
	if err := r.DB.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count tracks: %w", err)
	}

	query := `SELECT ` + trackColumns + ` FROM music_tracks` + where + ` ORDER BY title_pinyin, title`
	if filter.Limit > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, (page-1)*filter.Limit)
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	tracks := make([]*model.Track, 0)
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan track in FindAll: %w", err)
		}
		tracks = append(tracks, track)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error during rows iteration in FindAll: %w", err)
	}
	return tracks, total, nil
}

// ListAll retrieves every track without pagination. Used by the reconciler
// to diff candidates against the persisted state.
func (r *mysqlTrackRepository) ListAll(ctx context.Context) ([]*model.Track, error) {
	tracks, _, err := r.FindAll(ctx, model.TrackFilter{})
	return tracks, err
}

// ListArtists aggregates tracks into artists with their track counts,
// ordered by artist pinyin. An optional letter narrows to one index bucket.
func (r *mysqlTrackRepository) ListArtists(ctx context.Context, letter string) ([]*model.Artist, error) {
	query := `SELECT artist, artist_pinyin, artist_first_letter, COUNT(*) AS track_count
	           FROM music_tracks`
	var args []any
	if letter != "" {
		query += " WHERE artist_first_letter = ?"
		args = append(args, letter)
	}
	query += " GROUP BY artist, artist_pinyin, artist_first_letter ORDER BY artist_pinyin, artist"

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query artists: %w", err)
	}
	defer rows.Close()

	artists := make([]*model.Artist, 0)
	for rows.Next() {
		artist := &model.Artist{}
		if err := rows.Scan(&artist.Name, &artist.Pinyin, &artist.FirstLetter, &artist.TrackCount); err != nil {
			return nil, fmt.Errorf("failed to scan artist in ListArtists: %w", err)
		}
		artists = append(artists, artist)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration in ListArtists: %w", err)
	}
	return artists, nil
}

// Insert adds a new track to the database. AddedAt is set here, once,
// and never overwritten by later updates.
func (r *mysqlTrackRepository) Insert(ctx context.Context, track *model.Track) error {
	query := `INSERT INTO music_tracks (id, filename, title, title_pinyin, title_first_letter,
	           artist, artist_pinyin, artist_first_letter, album, duration, file_size, format, added_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	stmt, err := r.DB.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for Insert: %w", err)
	}
	defer stmt.Close()

	addedAt := track.AddedAt
	if addedAt.IsZero() {
		addedAt = time.Now()
	}
	_, err = stmt.ExecContext(ctx, track.ID, track.Filename, track.Title, track.TitlePinyin,
		track.TitleFirstLetter, track.Artist, track.ArtistPinyin, track.ArtistFirstLetter,
		nullString(track.Album), nullFloat(track.Duration), track.FileSize, track.Format, addedAt)
	if err != nil {
		return fmt.Errorf("failed to execute Insert for track %s: %w", track.ID, err)
	}
	return nil
}

// Update overwrites every mutable field of an existing track in a single
// statement. ID and added_at are never touched.
func (r *mysqlTrackRepository) Update(ctx context.Context, track *model.Track) error {
	query := `UPDATE music_tracks SET filename = ?, title = ?, title_pinyin = ?, title_first_letter = ?,
	           artist = ?, artist_pinyin = ?, artist_first_letter = ?, album = ?, duration = ?,
	           file_size = ?, format = ? WHERE id = ?`
	stmt, err := r.DB.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for Update: %w", err)
	}
	defer stmt.Close()

	res, err := stmt.ExecContext(ctx, track.Filename, track.Title, track.TitlePinyin,
		track.TitleFirstLetter, track.Artist, track.ArtistPinyin, track.ArtistFirstLetter,
		nullString(track.Album), nullFloat(track.Duration), track.FileSize, track.Format, track.ID)
	if err != nil {
		return fmt.Errorf("failed to execute Update for track %s: %w", track.ID, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("%w: %s", ErrTrackNotFound, track.ID)
	}
	return nil
}

// UpdateTitle overwrites the title and its derived pinyin fields only.
func (r *mysqlTrackRepository) UpdateTitle(ctx context.Context, id, title, titlePinyin, titleFirstLetter string) error {
	query := `UPDATE music_tracks SET title = ?, title_pinyin = ?, title_first_letter = ? WHERE id = ?`
	res, err := r.DB.ExecContext(ctx, query, title, titlePinyin, titleFirstLetter, id)
	if err != nil {
		return fmt.Errorf("failed to execute UpdateTitle for track %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows for UpdateTitle: %w", err)
	}
	if affected == 0 {
		// Affected can legitimately be 0 when the new title equals the old
		// one, so confirm the row is really missing before reporting it.
		var exists int
		if err := r.DB.QueryRowContext(ctx, "SELECT 1 FROM music_tracks WHERE id = ?", id).Scan(&exists); err != nil {
			if err == sql.ErrNoRows {
				return fmt.Errorf("%w: %s", ErrTrackNotFound, id)
			}
			return fmt.Errorf("failed to verify track %s after UpdateTitle: %w", id, err)
		}
	}
	return nil
}

// DeleteByID removes a track row.
func (r *mysqlTrackRepository) DeleteByID(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM music_tracks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to execute DeleteByID for track %s: %w", id, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("%w: %s", ErrTrackNotFound, id)
	}
	return nil
}

// CountAll returns the total number of persisted tracks.
func (r *mysqlTrackRepository) CountAll(ctx context.Context) (int, error) {
	var total int
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM music_tracks").Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count tracks: %w", err)
	}
	return total, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
