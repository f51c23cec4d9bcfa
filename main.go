package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"flashplay/api"
	"flashplay/config"
	"flashplay/handlers"
	"flashplay/services/adblock"
	"flashplay/services/embedproxy"
	"flashplay/services/streams"
	"flashplay/utils"
)

func main() {
	settingsPath := flag.String("settings", defaultSettingsPath(), "path to the settings JSON file")
	flag.Parse()

	cfgMgr := config.NewManager(*settingsPath)
	cfg, err := cfgMgr.Load()
	if err != nil {
		log.Printf("[main] settings load failed, using defaults: %v", err)
	}

	if cfg.Logging.File != "" {
		log.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.Logging.File,
			MaxSize:    cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
		}))
	}

	upstreamClient := &http.Client{
		Timeout: time.Duration(cfg.Proxy.RequestTimeoutSeconds) * time.Second,
	}

	blocklist := adblock.NewBlocklist(cfg.Proxy.ExtraBlockedDomains)
	classifier := adblock.NewClassifier(blocklist)
	guard := adblock.NewGuard()

	fetcher := embedproxy.NewFetcher(upstreamClient)
	rewriter := embedproxy.NewRewriter(classifier, guard, fetcher)

	streamSvc := streams.NewService(upstreamClient, streams.Config{
		VidLinkEnabled: cfg.Streams.VidLinkEnabled,
		VidSrcEnabled:  cfg.Streams.VidSrcEnabled,
	})

	router := utils.NewRouter()
	router.Use(api.RequestLogger())

	handlers.NewEmbedHandler(rewriter, fetcher, classifier).Register(router)

	rateLimiter := api.NewStreamRateLimiter(cfg.Streams.RateLimitPerMinute)
	handlers.NewStreamsHandler(streamSvc).Register(router, rateLimiter.Middleware())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
		// WriteTimeout stays generous: asset responses stream large media
		// segments through the proxy.
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("[main] flashplay listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("[main] server error: %v", err)
	}
}

func defaultSettingsPath() string {
	if p := os.Getenv("FLASHPLAY_SETTINGS"); p != "" {
		return p
	}
	return "settings.json"
}
