package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
	spotifyoauth "golang.org/x/oauth2/spotify"

	"github.com/Timi0217/mixtape-sub001/internal/config"
	"github.com/Timi0217/mixtape-sub001/internal/match"
	"github.com/Timi0217/mixtape-sub001/internal/merge"
	"github.com/Timi0217/mixtape-sub001/internal/platform"
	"github.com/Timi0217/mixtape-sub001/internal/playlist"
	"github.com/Timi0217/mixtape-sub001/internal/ratelimit"
	"github.com/Timi0217/mixtape-sub001/internal/rounds"
	"github.com/Timi0217/mixtape-sub001/internal/server"
	"github.com/Timi0217/mixtape-sub001/internal/token"
	"github.com/Timi0217/mixtape-sub001/internal/util"
	"github.com/Timi0217/mixtape-sub001/pkg/queue"
	"github.com/Timi0217/mixtape-sub001/pkg/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.InitLogger(cfg.LogLevel)

	db, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}

	rps := float64(cfg.PlatformRequestsPerSec)
	spotify := platform.NewSpotifyClient(platform.SpotifyOptions{RequestsPerSecond: rps})
	clients := []platform.Client{spotify}

	var appleProber token.AppleProber
	if cfg.AppleEnabled() {
		ttl, err := config.ParseAppleDevTokenTTL(cfg.AppleDevTokenTTL)
		if err != nil {
			log.Fatalf("failed to parse apple token TTL: %v", err)
		}
		pemKey, err := os.ReadFile(cfg.ApplePrivateKeyPath)
		if err != nil {
			log.Fatalf("failed to read apple private key: %v", err)
		}
		devTokens, err := platform.NewAppleDeveloperTokenSource(cfg.AppleTeamID, cfg.AppleKeyID, pemKey, ttl)
		if err != nil {
			log.Fatalf("failed to init apple developer token source: %v", err)
		}
		apple := platform.NewAppleMusicClient(devTokens, platform.AppleMusicOptions{
			Storefront:        cfg.AppleStorefront,
			RequestsPerSecond: rps,
		})
		clients = append(clients, apple)
		appleProber = apple
	} else {
		slog.Warn("apple music not configured, running spotify-only")
	}
	registry := platform.NewRegistry(clients...)

	spotifyOAuth := &oauth2.Config{
		ClientID:     cfg.SpotifyClientID,
		ClientSecret: cfg.SpotifyClientSecret,
		Endpoint:     spotifyoauth.Endpoint,
	}
	tokens := token.NewProvider(db, spotifyOAuth, appleProber)
	matcher := match.NewMatcher(registry, db)
	playlists := playlist.NewManager(db, registry, tokens, matcher)
	merger := merge.NewCoordinator(db)

	var events rounds.EventPublisher
	var syncLimiter *ratelimit.FixedWindowLimiter
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		events = queue.NewRoundEventPublisher(rdb, cfg.RoundEventStream)
		if cfg.SyncRateLimitPerMinute > 0 {
			syncLimiter, err = ratelimit.NewRedisFixedWindowLimiter(
				cfg.RedisAddr, cfg.RedisPassword, "mixtape:ratelimit:sync",
				cfg.SyncRateLimitPerMinute, time.Minute)
			if err != nil {
				log.Fatalf("failed to init sync rate limiter: %v", err)
			}
		}
	} else {
		slog.Warn("redis not configured, round events and sync rate limiting disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := rounds.NewScheduler(db, playlists, tokens, events)
	if err := scheduler.Start(ctx); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}

	httpServer := server.New(server.Config{
		Store:       db,
		Playlists:   playlists,
		Rounds:      scheduler,
		Merger:      merger,
		SyncLimiter: syncLimiter,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down")
		scheduler.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "err", err)
		}
	}()

	slog.Info("mixtaped listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
