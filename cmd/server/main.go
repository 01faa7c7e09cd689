package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"tracklink/internal/audio"
	"tracklink/internal/cache"
	"tracklink/internal/config"
	"tracklink/internal/fingerprint"
	"tracklink/internal/handlers"
	"tracklink/internal/matching"
	"tracklink/internal/models"
	"tracklink/internal/repositories"
	"tracklink/internal/services"
	"tracklink/internal/syncer"
)

func main() {
	// Load .env file for local development
	_ = godotenv.Load()

	// Initialize structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize database
	db, err := models.NewDatabase(context.Background(), cfg.MongodbURL, "tracklink")
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close(context.Background())

	if err := db.CreateIndexes(context.Background()); err != nil {
		slog.Error("Failed to create indexes", "error", err)
		os.Exit(1)
	}

	// Initialize cache: Valkey when configured, in-memory otherwise
	var store cache.Cache
	if cfg.ValkeyURL != "" {
		store, err = cache.NewValkeyCache(cfg.ValkeyURL)
		if err != nil {
			slog.Error("Failed to connect to Valkey", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Warn("VALKEY_URL not set, using in-memory cache")
		store = cache.NewMemoryCache()
	}
	defer store.Close()

	// Repositories
	sources := repositories.NewMongoTrackSourceRepository(db)
	fingerprints := repositories.NewMongoFingerprintRepository(db)
	localFPs := repositories.NewMongoLocalFingerprintRepository(db)
	syncs := repositories.NewCachedSyncRepository(repositories.NewMongoSyncRepository(db), store)

	// Platform services
	registry := services.NewRegistry()
	if cfg.HasSpotify() {
		registry.Register(services.NewSpotifyService(cfg.SpotifyClientID, cfg.SpotifyClientSecret))
	}
	if cfg.HasYouTube() {
		registry.Register(services.NewYouTubeService(cfg.YouTubeAPIKey))
	}
	if cfg.HasSoundCloud() {
		registry.Register(services.NewSoundCloudService(cfg.SoundCloudClientID))
	}
	if len(registry.Platforms()) == 0 {
		slog.Error("No platform credentials configured")
		os.Exit(1)
	}
	slog.Info("Platforms configured", "platforms", registry.Platforms())

	// Matching pipeline
	scoring := config.GetScoringConfig()
	scorer := matching.NewScorer(scoring)
	mb := matching.NewMusicBrainzClient(cfg.MusicBrainzAgent, scorer)
	searcher := matching.NewSearcher(scorer, mb)

	// Audio pipeline
	downloader := audio.NewDownloader(cfg.AudioCacheDir, sources, cfg.SoundCloudClientID)
	decoder := audio.NewDecoder(cfg.FfmpegPath)

	// Fingerprint engine. AcoustID stages need an API key; the recognition
	// stage needs the wrapper binary enabled.
	engineDeps := fingerprint.EngineDeps{
		Fingerprints:            fingerprints,
		LocalFPs:                localFPs,
		Sources:                 sources,
		Fetcher:                 downloader,
		Decoder:                 decoder,
		Features:                fingerprint.NewAcousticBrainzClient(),
		ISRCs:                   mb,
		LocalFingerprintEnabled: cfg.LocalFingerprintEnabled,
	}
	if cfg.AcoustIDAPIKey != "" {
		engineDeps.Fpcalc = fingerprint.NewFpcalc(cfg.FpcalcPath)
		engineDeps.AcoustID = fingerprint.NewAcoustIDClient(cfg.AcoustIDAPIKey)
	}
	if cfg.ShazamEnabled {
		engineDeps.Recognizer = fingerprint.NewRecognizer(cfg.RecognizerPath)
	}
	engine := fingerprint.NewEngine(engineDeps)
	linker := fingerprint.NewLinker(scoring, fingerprints, sources, localFPs)

	// Sync engine
	orchestrator := syncer.NewOrchestrator(syncer.OrchestratorDeps{
		Registry:     registry,
		Searcher:     searcher,
		Scorer:       scorer,
		Syncs:        syncs,
		Sources:      sources,
		Fingerprints: fingerprints,
		LocalFPs:     localFPs,
		Engine:       engine,
		Linker:       linker,
		Fetcher:      downloader,
		Parallelism:  cfg.AnalysisParallelism,
	})
	feedback := syncer.NewFeedback(syncs, sources, fingerprints, registry, searcher, scorer)

	// HTTP surface
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	handlers.NewSyncHandler(orchestrator, feedback, syncs, registry).RegisterRoutes(router)
	handlers.NewAdminHandler(db, registry).RegisterRoutes(router)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		slog.Info("Starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Forced shutdown", "error", err)
	}
	slog.Info("Server stopped")
}
