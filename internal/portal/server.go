// Package portal serves the local attendance dashboard API.
package portal

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"attendclient/internal/attendance"
	"attendclient/internal/authflow"
	"attendclient/internal/backend"
	"attendclient/internal/capture"
	"attendclient/internal/fault"
	"attendclient/internal/history"
	"attendclient/internal/model"
	"attendclient/internal/session"
)

// Options wires the portal to the client components.
type Options struct {
	Sessions *session.Store
	Backend  *backend.Client
	Device   *capture.Acquirer
	History  *history.Cache
	Machine  *attendance.Orchestrator
	Hub      *Hub
	Limiter  *Limiter
	Gatherer prometheus.Gatherer
	// HealthChecks are reported by /healthz; any failing check yields 503.
	HealthChecks   map[string]func(context.Context) bool
	AllowedOrigins []string
}

type Server struct {
	sessions *session.Store
	backend  *backend.Client
	device   *capture.Acquirer
	history  *history.Cache
	machine  *attendance.Orchestrator
	hub      *Hub
	limiter  *Limiter
	gatherer prometheus.Gatherer
	checks   map[string]func(context.Context) bool
	origins  []string
}

func New(o Options) *Server {
	g := o.Gatherer
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return &Server{
		sessions: o.Sessions,
		backend:  o.Backend,
		device:   o.Device,
		history:  o.History,
		machine:  o.Machine,
		hub:      o.Hub,
		limiter:  o.Limiter,
		gatherer: g,
		checks:   o.HealthChecks,
		origins:  o.AllowedOrigins,
	}
}

// Router builds the gin engine with every route mounted.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(cors.New(s.corsConfig()))
	r.Use(securityHeaders())

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	r.GET("/healthz", s.healthz)

	limited := s.limiter.Middleware()

	r.POST("/auth/logout", s.logout)
	r.POST("/auth/:mode", limited, s.authSubmit)

	authed := r.Group("/", s.requireSession())
	authed.GET("/me", s.me)
	authed.POST("/me/photo", limited, s.savePhoto)
	authed.POST("/camera/start", s.cameraStart)
	authed.POST("/camera/stop", s.cameraStop)
	authed.GET("/location", s.location)
	authed.POST("/qr/self", limited, s.selfToken)
	authed.GET("/ws", s.hub.Handler())

	att := authed.Group("/attendance")
	att.POST("/select", s.selectMethod)
	att.POST("/capture", s.captureFace)
	att.POST("/token", s.provideToken)
	att.POST("/submit", limited, s.submit)
	att.POST("/cancel", s.cancel)
	att.GET("/state", s.state)
	att.GET("/history", s.historyList)
	att.POST("/history/refresh", s.historyRefresh)

	return r
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: true,
	}
	if len(s.origins) == 0 || (len(s.origins) == 1 && s.origins[0] == "*") {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = s.origins
	}
	return cfg
}

// CheckOrigin accepts WebSocket upgrades from the configured dashboard origins.
func CheckOrigin(origins []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range origins {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

func (s *Server) healthz(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok", "authenticated": s.sessions.Authenticated(), "camera": s.device.Active()}
	for name, check := range s.checks {
		ok := check(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

func (s *Server) authSubmit(c *gin.Context) {
	form, err := authflow.Decode(authflow.Mode(c.Param("mode")), c.ShouldBindJSON)
	if err != nil {
		respondError(c, err)
		return
	}
	if form.Mode() == authflow.ModeLogin && s.sessions.Authenticated() {
		s.endSession(c.Request.Context())
	}
	res, err := authflow.Submit(c.Request.Context(), s.backend, form)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) logout(c *gin.Context) {
	s.endSession(c.Request.Context())
	if err := s.device.StopCapture(); err != nil {
		log.Printf("logout: camera release failed: %v", err)
	}
	s.sessions.Clear()
	c.Status(http.StatusNoContent)
}

// endSession drops what belongs to the current user: the cached history,
// keyed by that user, and any undispatched attempt.
func (s *Server) endSession(ctx context.Context) {
	if err := s.history.Clear(ctx); err != nil {
		log.Printf("session end: history clear failed: %v", err)
	}
	if err := s.machine.Cancel(); err != nil {
		log.Printf("session end: attempt still in flight: %v", err)
	}
}

func (s *Server) me(c *gin.Context) {
	p, err := s.backend.Me(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) savePhoto(c *gin.Context) {
	msg, err := s.machine.SaveReferencePhoto(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func (s *Server) cameraStart(c *gin.Context) {
	if err := s.device.StartCapture(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": true})
}

func (s *Server) cameraStop(c *gin.Context) {
	if err := s.device.StopCapture(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": false})
}

func (s *Server) location(c *gin.Context) {
	coords, err := s.device.AcquireLocation(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"available": false, "message": fault.Message(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"available": true, "coordinates": coords})
}

func (s *Server) selfToken(c *gin.Context) {
	var coords *model.Coordinates
	if fix, err := s.device.AcquireLocation(c.Request.Context()); err == nil {
		coords = &fix
	}
	tok, err := s.machine.GenerateSelfToken(c.Request.Context(), coords)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"qr_token": tok.Value, "source": tok.Source})
}

func (s *Server) selectMethod(c *gin.Context) {
	var req struct {
		Method model.Method `json:"method" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "invalid_input"})
		return
	}
	if err := s.machine.Select(req.Method); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.machine.Snapshot())
}

func (s *Server) captureFace(c *gin.Context) {
	if err := s.machine.CaptureFace(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.machine.Snapshot())
}

func (s *Server) provideToken(c *gin.Context) {
	var req struct {
		Token string `json:"qr_token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "invalid_input"})
		return
	}
	if err := s.machine.ProvideToken(req.Token); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.machine.Snapshot())
}

// submit answers 200 for every settled attempt; the outcome kind is in the body.
func (s *Server) submit(c *gin.Context) {
	out, err := s.machine.Submit(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	resp := gin.H{"outcome": out.View(), "state": s.machine.Snapshot()}
	if out.HistoryErr != nil {
		resp["history_error"] = fault.Message(out.HistoryErr)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) cancel(c *gin.Context) {
	if err := s.machine.Cancel(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.machine.Snapshot())
}

func (s *Server) state(c *gin.Context) {
	c.JSON(http.StatusOK, s.machine.Snapshot())
}

func (s *Server) historyList(c *gin.Context) {
	records, err := s.history.Records(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": records})
}

func (s *Server) historyRefresh(c *gin.Context) {
	records, err := s.history.Refresh(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": records})
}
