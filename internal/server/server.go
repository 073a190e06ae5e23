// Package server exposes the aggregated registry over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"pkgpulse/internal/registry"
)

// RegistryProvider is the aggregator surface the HTTP layer consumes.
type RegistryProvider interface {
	Registry(ctx context.Context) (*registry.CachedRegistry, error)
}

type Server struct {
	engine *gin.Engine
	addr   string
	log    *log.Logger
}

type Options struct {
	Addr string

	// AllowedOrigins is the CORS allow-list. Empty allows any origin.
	AllowedOrigins []string

	// CacheTTL drives the shared-cache headers on /registry responses: clients
	// may cache for the TTL and serve stale for twice that while revalidating.
	CacheTTL time.Duration

	Verbose bool
}

func New(provider RegistryProvider, opts Options, logger *log.Logger) *Server {
	if !opts.Verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowMethods = []string{http.MethodGet, http.MethodOptions}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	if len(opts.AllowedOrigins) > 0 {
		corsCfg.AllowOrigins = opts.AllowedOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	engine.Use(cors.New(corsCfg))

	ttlSeconds := int(opts.CacheTTL / time.Second)
	cacheControl := fmt.Sprintf("public, s-maxage=%d, stale-while-revalidate=%d", ttlSeconds, 2*ttlSeconds)

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	engine.GET("/registry", func(c *gin.Context) {
		snap, err := provider.Registry(c.Request.Context())
		if err != nil {
			logger.Error("registry request failed", "err", err)
			body := gin.H{
				"error":    "registry_unavailable",
				"message":  err.Error(),
				"registry": gin.H{},
			}
			if snap != nil {
				body["lastUpdatedAt"] = snap.LastUpdatedAt
			}
			c.JSON(http.StatusInternalServerError, body)
			return
		}
		c.Header("Cache-Control", cacheControl)
		c.JSON(http.StatusOK, snap)
	})

	return &Server{engine: engine, addr: opts.Addr, log: logger}
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Run() error {
	s.log.Info("listening", "addr", s.addr)
	return s.engine.Run(s.addr)
}
