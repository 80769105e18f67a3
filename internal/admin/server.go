// Package admin serves the local health, readiness and metrics endpoints of
// a running rtmctl watcher.
package admin

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/rtmctl/internal/observability"
)

const component = "rtmctl"

// Status is the watcher state reported by /health and /ready.
type Status struct {
	Connected  bool     `json:"connected"`
	State      string   `json:"state"`
	Session    string   `json:"session,omitempty"`
	Reconnects int      `json:"reconnects"`
	LastError  string   `json:"last_error,omitempty"`
	Routes     []string `json:"routes,omitempty"`
}

type StatusFunc func() Status

type Config struct {
	Addr        string
	CORSOrigins []string
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
}

type Server struct {
	cfg     Config
	router  *gin.Engine
	status  StatusFunc
	started time.Time
}

func New(cfg Config, metrics *observability.Metrics, status StatusFunc) *Server {
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if status == nil {
		status = func() Status { return Status{State: "unknown"} }
	}
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	if metrics != nil {
		r.Use(observability.RequestMetrics(metrics))
	}
	if origins := normalizeOrigins(cfg.CORSOrigins); len(origins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: origins,
			AllowMethods: []string{"GET"},
			AllowHeaders: []string{"Origin", "Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{cfg: cfg, router: r, status: status, started: time.Now()}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		st := s.status()
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"uptime":    time.Since(s.started).String(),
			"component": component,
			"socket":    st,
		})
	})

	s.router.GET("/ready", func(c *gin.Context) {
		st := s.status()
		code := http.StatusOK
		if !st.Connected {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"ready":     st.Connected,
			"state":     st.State,
			"component": component,
		})
	})

	s.router.GET("/routes", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"routes": s.status().Routes})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{})))
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("admin.Server.Run shutdown")
		}
	}()
	log.Info().Str("addr", s.cfg.Addr).Msg("admin.Server.Run listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		out = append(out, strings.TrimRight(origin, "/"))
	}
	return out
}
