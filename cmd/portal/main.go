package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"attendclient/internal/attendance"
	"attendclient/internal/backend"
	"attendclient/internal/capture"
	"attendclient/internal/config"
	"attendclient/internal/history"
	"attendclient/internal/metrics"
	"attendclient/internal/portal"
	"attendclient/internal/session"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("portal failed: %v", err)
	}
}

func run(cfg config.App) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	sessions := session.NewStore()
	client := backend.New(cfg.BackendURL, sessions, cfg.BackendTimeout)
	client.Metrics = m
	log.Printf("backend: %s", cfg.BackendURL)

	var locator capture.Locator = capture.NoLocator{}
	if cfg.LocationSet {
		locator = capture.StaticLocator{Latitude: cfg.LocationLat, Longitude: cfg.LocationLng}
	} else {
		log.Println("LOCATION_LAT/LOCATION_LNG not set, submissions carry no coordinates")
	}
	var camera capture.Camera = capture.NoCamera{}
	if cfg.CameraDir != "" {
		camera = capture.DirCamera{Dir: cfg.CameraDir, MaxAge: cfg.CameraMaxAge}
	} else {
		log.Println("CAMERA_DIR not set, face capture disabled")
	}
	device := capture.NewAcquirer(locator, camera, capture.Options{
		JPEGQuality:     cfg.JPEGQuality,
		LocationTimeout: cfg.LocationTimeout,
	})
	defer func() {
		if err := device.StopCapture(); err != nil {
			log.Printf("camera release failed: %v", err)
		}
	}()

	checks := map[string]func(context.Context) bool{}
	var store history.Store = history.NewMemoryStore()
	if cfg.HistoryBackend == "redis" {
		rdb := history.NewRedis(cfg.RedisAddr)
		defer rdb.Close()
		rs := history.NewRedisStore(rdb, "", cfg.HistoryTTL)
		store = rs
		checks["redis"] = rs.Healthy
		log.Printf("history cache: redis %s", cfg.RedisAddr)
	}
	cache := history.NewCache(client, store, sessions.UserKey, m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := portal.NewHub(portal.CheckOrigin(cfg.AllowedOrigins))
	go hub.Run(ctx)

	machine := attendance.New(sessions, device, client, cache, attendance.Config{
		SubmitTimeout: cfg.SubmitTimeout,
		Metrics:       m,
		OnChange:      hub.Broadcast,
	})

	router := portal.New(portal.Options{
		Sessions:       sessions,
		Backend:        client,
		Device:         device,
		History:        cache,
		Machine:        machine,
		Hub:            hub,
		Limiter:        portal.NewLimiter(cfg.RateLimitPerMin, cfg.RateLimitPerMin),
		Gatherer:       reg,
		HealthChecks:   checks,
		AllowedOrigins: cfg.AllowedOrigins,
	}).Router()

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.SubmitTimeout + cfg.LocationTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting portal on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down portal...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Portal exited")
	return nil
}
