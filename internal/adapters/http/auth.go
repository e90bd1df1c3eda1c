package http

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/avdeck/cueroom/internal/auth"
	"github.com/avdeck/cueroom/internal/domain"
	"github.com/avdeck/cueroom/internal/store"
)

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// POST /api/v1/auth/register
func (h *Handlers) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.auth.Register(c.Request.Context(), req.Email, req.Password, req.DisplayName)
	switch {
	case errors.Is(err, auth.ErrInvalidEmail):
		fail(c, http.StatusBadRequest, "Invalid email")
	case errors.Is(err, auth.ErrWeakPassword):
		fail(c, http.StatusBadRequest, "Password must be at least 6 characters")
	case errors.Is(err, domain.ErrDisplayNameEmpty), errors.Is(err, domain.ErrDisplayNameTooLong):
		fail(c, http.StatusBadRequest, "Display name is required")
	case errors.Is(err, auth.ErrEmailTaken):
		fail(c, http.StatusConflict, "Email already registered")
	case err != nil:
		log.Error().Err(err).Str("module", "adapters.http").Msg("register failed")
		internalError(c)
	default:
		if !h.startSession(c, user) {
			return
		}
		c.JSON(http.StatusCreated, gin.H{"user": user.Public()})
	}
}

// POST /api/v1/auth/login
func (h *Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		fail(c, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		fail(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("login failed")
		internalError(c)
		return
	}

	if !h.startSession(c, user) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user.Public()})
}

// POST /api/v1/auth/logout
func (h *Handlers) Logout(c *gin.Context) {
	sess := sessions.Default(c)
	if token, _ := sess.Get(sessionTokenKey).(string); token != "" {
		if err := h.sessions.Delete(c.Request.Context(), token); err != nil {
			log.Warn().Err(err).Str("module", "adapters.http").Msg("session revoke failed")
		}
	}
	sess.Clear()
	_ = sess.Save()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GET /api/v1/auth/me
func (h *Handlers) Me(c *gin.Context) {
	user, err := h.auth.UserByID(c.Request.Context(), currentUserID(c))
	if errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		internalError(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user.Public()})
}

func (h *Handlers) startSession(c *gin.Context, user domain.User) bool {
	token, err := h.sessions.Create(c.Request.Context(), user.ID, user.DisplayName)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("session create failed")
		internalError(c)
		return false
	}
	sess := sessions.Default(c)
	sess.Set(sessionTokenKey, token)
	if err := sess.Save(); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("session cookie save failed")
		internalError(c)
		return false
	}
	return true
}
