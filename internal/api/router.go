package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	iauth "github.com/listenme/listenme/internal/auth"
	"github.com/listenme/listenme/internal/handlers"
	"github.com/listenme/listenme/internal/middleware"
	"github.com/listenme/listenme/internal/services"
)

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(jwt *iauth.JWTService, auth *services.AuthService, songs *services.SongService) (*gin.Engine, error) {
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if auth == nil {
		return nil, fmt.Errorf("auth service must be provided")
	}
	if songs == nil {
		return nil, fmt.Errorf("song service must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())

	// Health endpoint (public)
	r.GET("/health", handlers.Health())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authHandler := handlers.NewAuthHandler(auth)
	songHandler := handlers.NewSongHandler(songs)

	// Public auth routes
	authRoutes := r.Group("/api/auth")
	{
		authRoutes.POST("/signup", authHandler.Signup)
		authRoutes.POST("/verify-email", authHandler.VerifyEmail)
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.POST("/verify-login", authHandler.VerifyLogin)
		authRoutes.POST("/forgot-password", authHandler.ForgotPassword)
		authRoutes.POST("/reset-password", authHandler.ResetPassword)
		authRoutes.POST("/verify-reset-token", authHandler.VerifyResetToken)
	}

	// Protected routes
	requireAuth := middleware.Auth(jwt)
	requireAdmin := middleware.RequireAdmin()

	api := r.Group("/api")
	api.Use(requireAuth)

	api.GET("/auth/me", authHandler.Me)
	api.GET("/artists", songHandler.Artists)

	songRoutes := api.Group("/songs")
	{
		songRoutes.GET("", songHandler.List)
		songRoutes.GET("/favorites", songHandler.Favorites)
		songRoutes.GET("/my", songHandler.AllSongs)
		songRoutes.POST("/:id/favorite", songHandler.AddFavorite)
		songRoutes.DELETE("/:id/favorite", songHandler.RemoveFavorite)
		songRoutes.POST("/:id/play", songHandler.RecordPlay)

		songRoutes.POST("/upload", requireAdmin, songHandler.Upload)
		songRoutes.DELETE("/:id", requireAdmin, songHandler.Delete)
	}

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
