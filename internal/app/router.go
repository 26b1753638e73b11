package app

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"trustline/backend/internal/api/handler"
)

// Router builds the gin engine with every route mounted.
func (a *Application) Router() *gin.Engine {
	cfg := a.Config

	router := gin.New()
	router.Use(gin.Recovery(), handler.RequestID(), cors.New(corsConfig(cfg.Dashboard.AllowedOrigins)))

	h := handler.NewHandler(a.Complaints, a.Users, a.Stats, a.Hub, handler.Options{
		JWTSecret:      []byte(cfg.Auth.JWTSecret),
		Issuer:         cfg.Auth.Issuer,
		UploadsDir:     cfg.UploadsDir,
		AllowedOrigins: cfg.Dashboard.AllowedOrigins,
		SendBuffer:     cfg.Dashboard.SendBuffer,
		Ping: func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		},
		Workers: a.Pools,
	})
	h.RegisterRoutes(router)
	return router
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", handler.RequestIDHeader},
		ExposeHeaders: []string{handler.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		// Same-origin only, matching the websocket upgrader.
		c.AllowOriginFunc = func(string) bool { return false }
		return c
	}
	for _, o := range origins {
		if o == "*" {
			c.AllowAllOrigins = true
			return c
		}
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c
}
