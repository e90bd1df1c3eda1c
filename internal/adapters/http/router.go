package http

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/avdeck/cueroom/internal/adapters/ws"
	"github.com/avdeck/cueroom/internal/config"
	"github.com/avdeck/cueroom/internal/session"
)

// SetupRouter wires the REST surface and the WebSocket endpoint. The
// cookie only carries the opaque session token; the session record
// itself lives server-side.
func SetupRouter(ctx context.Context, cfg *config.Config, h *Handlers, wsCtl *ws.Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	// The dev deployment serves plain HTTP; a Secure cookie would
	// never come back and every authenticated route would 401.
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(session.DefaultTTL.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Mode == "release",
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("CueroomSession", store))

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.POST("/register", h.Register)
	authGroup.POST("/login", h.Login)
	authGroup.POST("/logout", h.Logout)
	authGroup.GET("/me", h.RequireAuth(), h.Me)

	projects := api.Group("/projects", h.RequireAuth())
	projects.GET("", h.ListProjects)
	projects.POST("", h.CreateProject)
	projects.GET("/:id", h.GetProject)
	projects.PATCH("/:id", h.UpdateProject)
	projects.DELETE("/:id", h.DeleteProject)

	projects.GET("/:id/members", h.ListMembers)
	projects.POST("/:id/members", h.AddMember)
	projects.PATCH("/:id/members/:memberId", h.UpdateMemberRole)
	projects.DELETE("/:id/members/:memberId", h.RemoveMember)

	projects.POST("/:id/tracks/:trackId/upload", h.UploadTrackMedia)
	projects.GET("/:id/tracks/:trackId/media", h.TrackMediaURL)
	projects.DELETE("/:id/tracks/:trackId/media", h.DeleteTrackMedia)

	projects.GET("/:id/export/:format", h.Export)

	api.GET("/ws", h.RequireAuth(), func(c *gin.Context) {
		wsCtl.Handle(ctx, c)
	})

	return r
}
