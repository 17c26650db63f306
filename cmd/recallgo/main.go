package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"recallgo/internal/api"
	"recallgo/pkg/audio"
	"recallgo/pkg/config"
	"recallgo/pkg/db"
	"recallgo/pkg/logging"
	"recallgo/pkg/recovery"
	"recallgo/pkg/request"
	"recallgo/pkg/sequencer"
	"recallgo/pkg/session"
	"recallgo/pkg/srs"
	"recallgo/pkg/store"
	"recallgo/pkg/tracker"
	"recallgo/pkg/version"

	"github.com/joho/godotenv"
)

var initConfig = flag.Bool("init-config", false, "Generate default config file and exit")

func main() {
	flag.Parse()

	// Handle --init-config flag
	if *initConfig {
		if err := config.GenerateDefault("configs/recall.yaml"); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Config file generated: configs/recall.yaml")
		return
	}

	if err := run(context.Background(), "configs/recall.yaml"); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// .env carries STUDY_SERVER_URL / STUDY_SESSION_TOKEN overrides.
	_ = godotenv.Load()

	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&appCfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("RecallGo Started", "version", version.Version, "server", appCfg.Study.BaseURL)

	dbConn, st, err := initDB(appCfg)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	if err := dbConn.PruneCache(30 * 24 * time.Hour); err != nil {
		slog.Warn("Cache pruning failed", "error", err)
	}

	tr := tracker.New()
	reqClient := request.New(request.Options{
		Timeout:      time.Duration(appCfg.Request.Timeout),
		Retries:      appCfg.Request.Retries,
		BackoffBase:  time.Duration(appCfg.Request.Backoff.BaseDelay),
		BackoffMax:   time.Duration(appCfg.Request.Backoff.MaxDelay),
		StudyBaseURL: appCfg.Study.BaseURL,
	}, st, tr)

	srsClient := srs.NewClient(reqClient, appCfg.Study.BaseURL, appCfg.Study.Token, appCfg.Study.BatchSize)
	provider := config.NewProvider(appCfg, st)

	ctrl := audio.NewController(audio.Config{
		Synthesizer: srsClient,
		Fetcher:     reqClient,
		ResolveURL:  srsClient.ResolveMediaURL,
		MediaDir:    appCfg.Audio.MediaDir,
		Volume:      provider.Volume(ctx),
	})
	defer ctrl.Shutdown()

	agent := recovery.NewAgent(srsClient, srsClient.ResolveMediaURL)
	ctrl.SetErrorHook(agent.OnPlaybackError)

	sessionMgr := session.NewManager(srsClient, ctrl, provider, st)
	seq := sequencer.New(ctrl, sessionMgr, provider.AutoplayDelay)
	sessionMgr.AttachNarrator(seq)

	eventsH := api.NewEventsHandler()
	defer eventsH.Close()
	sessionMgr.Subscribe(eventsH.Broadcast)

	// Pull the first batch before the GUI connects so the opening card is
	// ready. A dead study server is fatal here, not mid-session.
	if err := sessionMgr.Begin(ctx); err != nil {
		return fmt.Errorf("failed to start study session: %w", err)
	}

	return runServer(ctx, appCfg, sessionMgr, seq, ctrl, provider, tr, st, eventsH)
}

func initDB(appCfg *config.Config) (*db.DB, store.Store, error) {
	dbConn, err := db.Init(appCfg.DB.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return dbConn, store.NewSQLiteStore(dbConn), nil
}

func runServer(ctx context.Context, cfg *config.Config, sessionMgr *session.Manager, seq *sequencer.Sequencer, ctrl *audio.Controller, provider config.Provider, tr *tracker.Tracker, st store.Store, eventsH *api.EventsHandler) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	shutdownFunc := func() { quit <- syscall.SIGTERM }

	srv := api.NewServer(cfg.Server.Address,
		api.NewSessionHandler(sessionMgr),
		api.NewAudioHandler(ctrl, provider),
		api.NewConfigHandler(provider),
		api.NewStatsHandler(tr, st),
		eventsH,
		shutdownFunc,
	)
	srv.Handler = loggingMiddleware(srv.Handler)

	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}

	seq.Cancel()
	sessionMgr.End()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.RequestLogger.Info("Request Processed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
