package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/dkeye/DigitalRoom/internal/adapters/signal"
	"github.com/dkeye/DigitalRoom/internal/app/orch"
	"github.com/dkeye/DigitalRoom/internal/config"
	"github.com/dkeye/DigitalRoom/internal/core"
	"github.com/dkeye/DigitalRoom/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Backend is what the HTTP surface needs from the room.
type Backend interface {
	signal.Room
	Register(ctx context.Context, creds core.Credentials) (*domain.Account, error)
	Login(ctx context.Context, creds core.Credentials) (string, *domain.Account, error)
	Health(ctx context.Context) (orch.Health, error)
}

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware tags each browser with a long-lived cookie, used to
// correlate log lines across reconnects.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// SetupRouter wires static files, the auth REST endpoints, health, metrics
// and the room WebSocket. metrics may be nil.
func SetupRouter(ctx context.Context, cfg *config.Config, room Backend, metrics http.Handler) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: int(cfg.JWT.TTL.Seconds()), HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions("RoomSessions", store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	r.GET("/health", func(c *gin.Context) {
		h, err := room.Health(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, h)
	})
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")

	auth := api.Group("/auth")
	auth.POST("/register", func(c *gin.Context) {
		var creds core.Credentials
		if err := c.ShouldBindJSON(&creds); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}
		if _, err := room.Register(c.Request.Context(), creds); err != nil {
			log.Warn().Str("module", "adapters.http").Str("client", c.GetString("client_token")).Err(err).Msg("register failed")
			c.JSON(statusFor(err), gin.H{"error": orch.PublicError(err)})
			return
		}
		c.JSON(http.StatusCreated, core.AckResult{Success: true})
	})
	auth.POST("/login", func(c *gin.Context) {
		var creds core.Credentials
		if err := c.ShouldBindJSON(&creds); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}
		token, acc, err := room.Login(c.Request.Context(), creds)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": orch.PublicError(err)})
			return
		}
		sess := sessions.Default(c)
		sess.Set(signal.SessionTokenKey, token)
		if err := sess.Save(); err != nil {
			log.Error().Str("module", "adapters.http").Err(err).Msg("session save")
		}
		c.JSON(http.StatusOK, core.AckResult{Success: true, Token: token, User: acc.Participant("")})
	})
	auth.POST("/logout", func(c *gin.Context) {
		sess := sessions.Default(c)
		sess.Delete(signal.SessionTokenKey)
		_ = sess.Save()
		c.Status(http.StatusNoContent)
	})

	ctl := signal.NewSignalWSController(room, signal.SettingsFromConfig(cfg))
	api.GET("/ws", func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("client", c.GetString("client_token")).Msg("ws endpoint hit")
		ctl.HandleSignal(ctx, c)
	})

	return r
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, orch.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, orch.ErrUsernameTaken):
		return http.StatusConflict
	case errors.Is(err, orch.ErrAccountsOffline):
		return http.StatusServiceUnavailable
	case orch.PublicError(err) != "Server error":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
