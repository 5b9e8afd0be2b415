package server

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	redisStore "github.com/gin-contrib/sessions/redis"
	"github.com/yukikurage/task-assignment-api/internal/config"
)

// NewSessionStore creates the session backend named by cfg.Store.
func NewSessionStore(cfg config.SessionConfig, secure bool) (sessions.Store, error) {
	var store sessions.Store

	switch cfg.Store {
	case "cookie":
		store = cookie.NewStore([]byte(cfg.Secret))
	default:
		s, err := redisStore.NewStore(
			10,    // Redis pool size
			"tcp", // network type
			cfg.RedisHost+":"+cfg.RedisPort,
			cfg.RedisPassword,
			[]byte(cfg.Secret),
		)
		if err != nil {
			return nil, err
		}
		store = s
	}

	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   cfg.MaxAge,
		HttpOnly: true,
		Secure:   secure, // HTTPS only in production
		SameSite: http.SameSiteLaxMode,
	})
	return store, nil
}
