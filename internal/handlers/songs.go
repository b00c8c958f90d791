package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/listenme/listenme/internal/middleware"
	"github.com/listenme/listenme/internal/services"
	appErrors "github.com/listenme/listenme/pkg/errors"
	"github.com/listenme/listenme/pkg/response"
)

// SongHandler exposes the song catalog: upload, listing, favorites and plays.
type SongHandler struct {
	songs *services.SongService
}

func NewSongHandler(songs *services.SongService) *SongHandler {
	return &SongHandler{songs: songs}
}

// POST /api/songs/upload (admin, multipart)
func (h *SongHandler) Upload(c *gin.Context) {
	audioHeader, err := c.FormFile("audio")
	if err != nil {
		response.Error(c, appErrors.NewBadRequest("Audio file is required"))
		return
	}

	audio, err := audioHeader.Open()
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}
	defer audio.Close()

	upload := services.SongUpload{
		Title:         c.PostForm("title"),
		Artist:        c.PostForm("artist"),
		Album:         c.PostForm("album"),
		Genre:         c.PostForm("genre"),
		AudioFilename: audioHeader.Filename,
		Audio:         audio,
		AudioSize:     audioHeader.Size,
	}

	if coverHeader, err := c.FormFile("cover"); err == nil && coverHeader.Filename != "" {
		cover, err := coverHeader.Open()
		if err != nil {
			response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
			return
		}
		defer cover.Close()
		upload.CoverFilename = coverHeader.Filename
		upload.Cover = cover
	}

	song, err := h.songs.Upload(c.Request.Context(), middleware.UserID(c), upload)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"message": "Song uploaded successfully!",
		"song_id": song.ID,
	})
}

// GET /api/songs?artist=
func (h *SongHandler) List(c *gin.Context) {
	songs, err := h.songs.List(c.Request.Context(), middleware.UserID(c), c.Query("artist"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"songs": songs})
}

// GET /api/artists
func (h *SongHandler) Artists(c *gin.Context) {
	artists, err := h.songs.Artists(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"artists": artists})
}

// GET /api/songs/favorites
func (h *SongHandler) Favorites(c *gin.Context) {
	songs, err := h.songs.Favorites(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"songs": songs})
}

// POST /api/songs/:id/favorite
func (h *SongHandler) AddFavorite(c *gin.Context) {
	err := h.songs.AddFavorite(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Added to favorites"})
}

// DELETE /api/songs/:id/favorite
func (h *SongHandler) RemoveFavorite(c *gin.Context) {
	err := h.songs.RemoveFavorite(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Removed from favorites"})
}

// POST /api/songs/:id/play
func (h *SongHandler) RecordPlay(c *gin.Context) {
	if err := h.songs.RecordPlay(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"ok": true})
}

// DELETE /api/songs/:id (admin)
func (h *SongHandler) Delete(c *gin.Context) {
	if err := h.songs.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Song deleted"})
}

// GET /api/songs/my (admin view over the whole catalog)
func (h *SongHandler) AllSongs(c *gin.Context) {
	songs, err := h.songs.AllSongs(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"songs": songs})
}
