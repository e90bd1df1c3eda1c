// Package http is the REST surface: account and session endpoints,
// project and member management, media upload and exports. Timeline
// editing itself happens over the WebSocket.
package http

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/avdeck/cueroom/internal/auth"
	"github.com/avdeck/cueroom/internal/session"
	"github.com/avdeck/cueroom/internal/store"
)

// SessionStore is the slice of the session backend the handlers need.
type SessionStore interface {
	Create(ctx context.Context, userID, displayName string) (string, error)
	Get(ctx context.Context, token string) (session.Record, error)
	Delete(ctx context.Context, token string) error
}

// MediaService covers blob upload, presigned download and removal.
type MediaService interface {
	Put(ctx context.Context, key, contentType string, r io.Reader, size int64) error
	SignedURL(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// Handlers carries the dependencies shared by every REST endpoint.
type Handlers struct {
	store    store.Store
	auth     *auth.Service
	sessions SessionStore
	media    MediaService // nil disables upload endpoints
}

func NewHandlers(st store.Store, authSvc *auth.Service, sessions SessionStore, media MediaService) *Handlers {
	return &Handlers{
		store:    st,
		auth:     authSvc,
		sessions: sessions,
		media:    media,
	}
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func internalError(c *gin.Context) {
	fail(c, http.StatusInternalServerError, "Something went wrong")
}
