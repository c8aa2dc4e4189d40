package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"pnodewatch/config"
	"pnodewatch/handlers"
	"pnodewatch/middleware"
	"pnodewatch/services"
	"pnodewatch/utils"
)

func main() {
	// 1. Config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Println("=== Configuration ===")
	log.Printf("Server: %s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("pRPC endpoint: %s", cfg.PRPC.Endpoint)
	log.Printf("MongoDB enabled: %v", cfg.MongoDB.Enabled)

	// 2. Core services
	geo := utils.NewGeoResolver(cfg.GeoIP.DBPath)
	defer geo.Close()

	mongoService, err := services.NewMongoDBService(cfg)
	if err != nil {
		log.Printf("MongoDB connection failed: %v", err)
		log.Println("History features will be disabled")
		mongoService, _ = services.NewMongoDBService(&config.Config{})
	}
	defer mongoService.Close()

	prpc := services.NewPRPCClient(cfg)
	caches := services.NewCaches(cfg)
	snapshotService := services.NewSnapshotService(cfg, prpc, caches, geo)
	probeService := services.NewProbeService(cfg, prpc)
	collector := services.NewStatsCollector(cfg, prpc, mongoService)

	notifier, err := services.NewDiscordNotifier(cfg.Discord.BotToken, cfg.Discord.ChannelID)
	if err != nil {
		log.Printf("Discord notifier failed to start: %v", err)
		notifier = nil
	}
	if notifier != nil {
		defer notifier.Close()
	}

	// 3. Optional in-process collection loop. Deployments with an
	// external scheduler leave the interval at 0 and hit /api/collect.
	stopLoop := make(chan struct{})
	if cfg.Collect.IntervalSeconds > 0 {
		go runCollectionLoop(cfg, snapshotService, collector, notifier, stopLoop)
		log.Printf("Collection loop started (every %s)", cfg.CollectInterval())
	}

	// 4. Web server
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.LoggerMiddleware())
	e.Use(middleware.CORSMiddleware(cfg.Server.AllowedOrigins))
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("Recovered from panic: %v", r)
					c.Error(fmt.Errorf("internal server error"))
				}
			}()
			return next(c)
		}
	})

	// 5. Handlers
	h := handlers.NewHandler(cfg, snapshotService)
	probeHandlers := handlers.NewProbeHandlers(cfg, snapshotService, probeService)
	collectHandlers := handlers.NewCollectHandlers(snapshotService, collector, notifier)
	liveStatsHandlers := handlers.NewLiveStatsHandlers(cfg, snapshotService, prpc, caches)
	historyHandlers := handlers.NewHistoryHandlers(mongoService)
	cacheHandlers := handlers.NewCacheHandlers(caches)

	// 6. Routes
	e.GET("/health", h.GetHealth)
	e.GET("/cache/status", cacheHandlers.GetCacheStatus)
	e.POST("/cache/clear", cacheHandlers.ClearCache)

	api := e.Group("/api")
	api.GET("/status", h.GetStatus)
	api.GET("/pnodes", h.GetPnodes)
	api.GET("/pnodes/:pubkey", h.GetPnode)
	api.GET("/pnodes/:pubkey/stats", liveStatsHandlers.GetLiveStats)
	api.GET("/stats", h.GetStats)
	api.POST("/probe", probeHandlers.RunProbe)
	api.POST("/collect", collectHandlers.RunCollection)

	history := api.Group("/history")
	history.GET("/network", historyHandlers.GetNetworkHistory)
	history.GET("/pnodes/:pubkey", historyHandlers.GetPnodeHistory)

	// 7. Start with graceful shutdown
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	go func() {
		log.Printf("Server running on http://%s", serverAddr)
		if err := e.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("shutting down the server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Println("Graceful shutdown initiated...")

	close(stopLoop)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		e.Logger.Fatal(err)
	}
	log.Println("Server exited cleanly")
}

func runCollectionLoop(cfg *config.Config, snapshot *services.SnapshotService, collector *services.StatsCollector, notifier *services.DiscordNotifier, stop chan struct{}) {
	ticker := time.NewTicker(cfg.CollectInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			snap := snapshot.GetSnapshot(ctx)
			if len(snap.Rows) > 0 {
				summary := collector.CollectStatsFromNodes(ctx, snap.Rows, time.Now().UTC())
				if notifier != nil {
					notifier.NotifyCollectionSummary(summary, snap.Stats)
				}
			} else if len(snap.Errors) > 0 {
				log.Printf("Skipping collection run, snapshot unavailable: %v", snap.Errors)
			}
			cancel()
		case <-stop:
			return
		}
	}
}
