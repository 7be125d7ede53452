package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gridbase-io/gridbase/internal/dataservice"
	"github.com/gridbase-io/gridbase/internal/infrastructure/ratelimit"
	"github.com/gridbase-io/gridbase/internal/session"
	"github.com/gridbase-io/gridbase/internal/shared/config"
	apperrors "github.com/gridbase-io/gridbase/internal/shared/errors"
	"github.com/gridbase-io/gridbase/internal/shared/logger"
	"github.com/gridbase-io/gridbase/internal/shared/utils"
)

// SessionHandler owns the REST side of the session lifecycle: connect
// (credential exchange for a token) and disconnect. Everything after login
// happens over the socket.
type SessionHandler struct {
	store        *session.Store
	limiter      ratelimit.Limiter
	limits       ratelimit.Limits
	cookieConfig config.CookieConfig
	cookieMaxAge int
	logger       logger.Interface
}

func NewSessionHandler(
	store *session.Store,
	limiter ratelimit.Limiter,
	limits ratelimit.Limits,
	cookieConfig config.CookieConfig,
	cookieMaxAge int,
	log logger.Interface,
) *SessionHandler {
	if limiter == nil {
		limiter = ratelimit.Noop{}
	}
	if log == nil {
		log = logger.NewLogger()
	}
	return &SessionHandler{
		store:        store,
		limiter:      limiter,
		limits:       limits,
		cookieConfig: cookieConfig,
		cookieMaxAge: cookieMaxAge,
		logger:       log.Named("session-handler"),
	}
}

// ConnectRequest carries the database credentials for a new session. The
// password is used for the probe and held in the session; it is never echoed
// back or logged.
type ConnectRequest struct {
	Host       string `json:"host" binding:"required"`
	Port       int    `json:"port" binding:"required,min=1,max=65535"`
	PathPrefix string `json:"pathPrefix"`
	Namespace  string `json:"namespace"`
	Username   string `json:"username" binding:"required"`
	Password   string `json:"password"`
}

// Connect handles POST /api/sessions. A successful probe yields a session
// token, returned both in the body and as an HttpOnly cookie.
func (h *SessionHandler) Connect(c *gin.Context) {
	var req ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.AppErrorResponse(c, apperrors.NewValidationError(err.Error()))
		return
	}

	allowed, err := h.limiter.Allow(c.Request.Context(), c.ClientIP(), h.limits)
	if err != nil {
		// Fail open when the limiter backend is down; blocking every login on
		// a Redis outage is worse than briefly losing the throttle.
		h.logger.Warnw("rate limiter unavailable", "error", err)
		allowed = true
	}
	if !allowed {
		h.logger.Warnw("login rate limit exceeded", "ip", c.ClientIP())
		utils.ErrorResponse(c, http.StatusTooManyRequests, "too many login attempts, please try again later")
		return
	}

	token, err := h.store.Create(c.Request.Context(), dataservice.Credentials{
		Host:       req.Host,
		Port:       req.Port,
		PathPrefix: req.PathPrefix,
		Namespace:  req.Namespace,
		Username:   req.Username,
		Password:   req.Password,
	})
	if err != nil {
		h.logger.Warnw("session create failed", "host", req.Host, "username", req.Username, "error", err)
		utils.AppErrorResponse(c, err)
		return
	}

	if err := h.limiter.Reset(c.Request.Context(), c.ClientIP()); err != nil {
		h.logger.Warnw("rate limiter reset failed", "error", err)
	}

	utils.SetSessionCookie(c, h.cookieConfig, token, h.cookieMaxAge)
	utils.SuccessResponse(c, http.StatusCreated, "session created", gin.H{
		"token": token,
	})
}

// Disconnect handles DELETE /api/sessions. Destroying an unknown or already
// expired token is not an error; the outcome the caller wants is "no session".
func (h *SessionHandler) Disconnect(c *gin.Context) {
	if token := utils.SessionTokenFrom(c); token != "" {
		h.store.Destroy(token)
	}
	utils.ClearSessionCookie(c, h.cookieConfig)
	utils.SuccessResponse(c, http.StatusOK, "session closed", nil)
}
