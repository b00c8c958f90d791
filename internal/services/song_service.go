package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/listenme/listenme/internal/models"
	"github.com/listenme/listenme/internal/storage"
	appErrors "github.com/listenme/listenme/pkg/errors"
	"github.com/listenme/listenme/pkg/logger"
	"github.com/listenme/listenme/pkg/metrics"
)

var audioExtensions = map[string]bool{
	"mp3": true, "wav": true, "ogg": true, "flac": true, "m4a": true, "aac": true,
}

var coverExtensions = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "webp": true,
}

// ErrUnsupportedFormat reports an audio upload with a file extension outside
// the allow list.
var ErrUnsupportedFormat = appErrors.NewBadRequest(
	"Unsupported format. Allowed: " + strings.Join(sortedKeys(audioExtensions), ", "))

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SongUpload carries a new track and its metadata. Cover is optional; a cover
// with an unrecognised extension is skipped rather than rejected.
type SongUpload struct {
	Title  string
	Artist string
	Album  string
	Genre  string

	AudioFilename string
	Audio         io.Reader
	AudioSize     int64

	CoverFilename string
	Cover         io.Reader
}

// SongView is a catalog entry with presigned playback URLs resolved.
type SongView struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Artist     string    `json:"artist"`
	Album      string    `json:"album"`
	Genre      string    `json:"genre"`
	Duration   int       `json:"duration"`
	FileSize   int64     `json:"file_size"`
	PlayCount  int64     `json:"play_count"`
	AudioURL   string    `json:"audio_url"`
	CoverURL   string    `json:"cover_url,omitempty"`
	IsFavorite bool      `json:"is_favorite"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// ArtistView aggregates the catalog per artist.
type ArtistView struct {
	Artist    string `json:"artist"`
	SongCount int64  `json:"song_count"`
	CoverURL  string `json:"cover_url,omitempty"`
}

// SongService owns the song catalog: uploads, listing with presigned URLs,
// favorites and play counts. Blobs live in the object store, metadata in the
// database; the database row is written only after the blobs land.
type SongService struct {
	db     *gorm.DB
	store  storage.ObjectStore
	logger *zap.Logger
}

// NewSongService builds the catalog service.
func NewSongService(db *gorm.DB, store storage.ObjectStore) (*SongService, error) {
	if db == nil {
		return nil, errors.New("song service: db is required")
	}
	if store == nil {
		return nil, errors.New("song service: object store is required")
	}
	return &SongService{db: db, store: store, logger: logger.WithModule("songs")}, nil
}

func fileExtension(filename string) string {
	ext := strings.TrimPrefix(filepath.Ext(filename), ".")
	return strings.ToLower(ext)
}

// Upload stores the audio blob (and optional cover) then catalogs the track.
func (s *SongService) Upload(ctx context.Context, userID string, in SongUpload) (*models.Song, error) {
	ext := fileExtension(in.AudioFilename)
	if !audioExtensions[ext] {
		metrics.SongUploads.WithLabelValues("failure").Inc()
		return nil, ErrUnsupportedFormat
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = "Untitled"
	}
	artist := strings.TrimSpace(in.Artist)
	if artist == "" {
		artist = "Unknown Artist"
	}

	audioKey := fmt.Sprintf("songs/%s.%s", uuid.NewString(), ext)
	if err := s.store.Upload(ctx, audioKey, "audio/"+ext, in.Audio); err != nil {
		metrics.SongUploads.WithLabelValues("failure").Inc()
		return nil, appErrors.ErrInternalServer.WithInternal(err)
	}

	coverKey := ""
	if in.Cover != nil {
		if coverExt := fileExtension(in.CoverFilename); coverExtensions[coverExt] {
			coverKey = fmt.Sprintf("covers/%s.%s", uuid.NewString(), coverExt)
			if err := s.store.Upload(ctx, coverKey, "image/"+coverExt, in.Cover); err != nil {
				metrics.SongUploads.WithLabelValues("failure").Inc()
				return nil, appErrors.ErrInternalServer.WithInternal(err)
			}
		}
	}

	song := models.Song{
		UserID:          userID,
		Title:           title,
		Artist:          artist,
		Album:           strings.TrimSpace(in.Album),
		Genre:           strings.TrimSpace(in.Genre),
		StorageKey:      audioKey,
		CoverStorageKey: coverKey,
		FileSize:        in.AudioSize,
	}
	if err := s.db.WithContext(ctx).Create(&song).Error; err != nil {
		metrics.SongUploads.WithLabelValues("failure").Inc()
		return nil, appErrors.ErrInternalServer.WithInternal(err)
	}

	metrics.SongUploads.WithLabelValues("success").Inc()
	s.logger.Info("song uploaded",
		zap.String("song_id", song.ID), zap.String("title", title), zap.String("artist", artist))
	return &song, nil
}

// List returns the catalog for one user, newest first; with an artist filter
// it switches to alphabetical by title.
func (s *SongService) List(ctx context.Context, userID, artistFilter string) ([]SongView, error) {
	query := s.db.WithContext(ctx).Model(&models.Song{})
	if artistFilter = strings.TrimSpace(artistFilter); artistFilter != "" {
		query = query.Where("artist = ?", artistFilter).Order("title ASC")
	} else {
		query = query.Order("created_at DESC")
	}

	var songs []models.Song
	if err := query.Find(&songs).Error; err != nil {
		return nil, appErrors.ErrInternalServer.WithInternal(err)
	}

	favorites, err := s.favoriteSet(ctx, userID)
	if err != nil {
		return nil, err
	}

	return s.buildViews(ctx, songs, favorites)
}

// AllSongs returns the full catalog without favorite flags.
func (s *SongService) AllSongs(ctx context.Context) ([]SongView, error) {
	var songs []models.Song
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&songs).Error; err != nil {
		return nil, appErrors.ErrInternalServer.WithInternal(err)
	}
	return s.buildViews(ctx, songs, nil)
}

// Favorites lists the user's favorite songs, most recently added first.
func (s *SongService) Favorites(ctx context.Context, userID string) ([]SongView, error) {
	var songs []models.Song
	err := s.db.WithContext(ctx).Model(&models.Song{}).
		Joins("JOIN favorites ON favorites.song_id = songs.id").
		Where("favorites.user_id = ?", userID).
		Order("favorites.created_at DESC").
		Find(&songs).Error
	if err != nil {
		return nil, appErrors.ErrInternalServer.WithInternal(err)
	}

	views, err := s.buildViews(ctx, songs, nil)
	if err != nil {
		return nil, err
	}
	for i := range views {
		views[i].IsFavorite = true
	}
	return views, nil
}

// Artists aggregates the catalog per artist with a representative cover.
func (s *SongService) Artists(ctx context.Context) ([]ArtistView, error) {
	type artistRow struct {
		Artist          string
		SongCount       int64
		CoverStorageKey string
	}

	var rows []artistRow
	err := s.db.WithContext(ctx).Model(&models.Song{}).
		Select("artist, COUNT(*) AS song_count, MAX(cover_s3_key) AS cover_storage_key").
		Group("artist").
		Order("artist ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, appErrors.ErrInternalServer.WithInternal(err)
	}

	views := make([]ArtistView, 0, len(rows))
	for _, row := range rows {
		view := ArtistView{Artist: row.Artist, SongCount: row.SongCount}
		if row.CoverStorageKey != "" {
			url, err := s.store.PresignGet(ctx, row.CoverStorageKey)
			if err != nil {
				return nil, appErrors.ErrInternalServer.WithInternal(err)
			}
			view.CoverURL = url
		}
		views = append(views, view)
	}
	return views, nil
}

// AddFavorite marks a song as favorite. Re-adding is a no-op.
func (s *SongService) AddFavorite(ctx context.Context, userID, songID string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Song{}).
		Where("id = ?", songID).Count(&count).Error; err != nil {
		return appErrors.ErrInternalServer.WithInternal(err)
	}
	if count == 0 {
		return appErrors.NewNotFound("Song not found")
	}

	favorite := models.Favorite{UserID: userID, SongID: songID}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&favorite).Error
	if err != nil {
		return appErrors.ErrInternalServer.WithInternal(err)
	}
	return nil
}

// RemoveFavorite drops the favorite mark. Removing an absent one is a no-op.
func (s *SongService) RemoveFavorite(ctx context.Context, userID, songID string) error {
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND song_id = ?", userID, songID).
		Delete(&models.Favorite{}).Error
	if err != nil {
		return appErrors.ErrInternalServer.WithInternal(err)
	}
	return nil
}

// RecordPlay bumps the play counter. Unknown ids fall through silently, the
// player fires this without waiting for an answer.
func (s *SongService) RecordPlay(ctx context.Context, songID string) error {
	err := s.db.WithContext(ctx).Model(&models.Song{}).
		Where("id = ?", songID).
		UpdateColumn("play_count", gorm.Expr("play_count + 1")).Error
	if err != nil {
		return appErrors.ErrInternalServer.WithInternal(err)
	}
	metrics.SongPlays.Inc()
	return nil
}

// Delete removes the blobs first, then the catalog row.
func (s *SongService) Delete(ctx context.Context, songID string) error {
	var song models.Song
	err := s.db.WithContext(ctx).Where("id = ?", songID).First(&song).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return appErrors.NewNotFound("Song not found")
	}
	if err != nil {
		return appErrors.ErrInternalServer.WithInternal(err)
	}

	if err := s.store.Delete(ctx, song.StorageKey); err != nil {
		return appErrors.ErrInternalServer.WithInternal(err)
	}
	if song.CoverStorageKey != "" {
		if err := s.store.Delete(ctx, song.CoverStorageKey); err != nil {
			return appErrors.ErrInternalServer.WithInternal(err)
		}
	}

	if err := s.db.WithContext(ctx).Delete(&models.Song{}, "id = ?", songID).Error; err != nil {
		return appErrors.ErrInternalServer.WithInternal(err)
	}

	s.logger.Info("song deleted", zap.String("song_id", songID))
	return nil
}

func (s *SongService) favoriteSet(ctx context.Context, userID string) (map[string]bool, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.Favorite{}).
		Where("user_id = ?", userID).
		Pluck("song_id", &ids).Error
	if err != nil {
		return nil, appErrors.ErrInternalServer.WithInternal(err)
	}

	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

func (s *SongService) buildViews(ctx context.Context, songs []models.Song, favorites map[string]bool) ([]SongView, error) {
	views := make([]SongView, 0, len(songs))
	for _, song := range songs {
		audioURL, err := s.store.PresignGet(ctx, song.StorageKey)
		if err != nil {
			return nil, appErrors.ErrInternalServer.WithInternal(err)
		}

		view := SongView{
			ID:         song.ID,
			Title:      song.Title,
			Artist:     song.Artist,
			Album:      song.Album,
			Genre:      song.Genre,
			Duration:   song.Duration,
			FileSize:   song.FileSize,
			PlayCount:  song.PlayCount,
			AudioURL:   audioURL,
			IsFavorite: favorites[song.ID],
			UploadedAt: song.CreatedAt,
		}
		if song.CoverStorageKey != "" {
			coverURL, err := s.store.PresignGet(ctx, song.CoverStorageKey)
			if err != nil {
				return nil, appErrors.ErrInternalServer.WithInternal(err)
			}
			view.CoverURL = coverURL
		}
		views = append(views, view)
	}
	return views, nil
}
