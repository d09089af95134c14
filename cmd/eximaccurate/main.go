package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/faisalnh/Exim-Accurate-sub001/internal/adapter/driven/accurate"
	sqliteadapter "github.com/faisalnh/Exim-Accurate-sub001/internal/adapter/driven/sqlite"
	"github.com/faisalnh/Exim-Accurate-sub001/internal/adapter/driven/tabular"
	httphandler "github.com/faisalnh/Exim-Accurate-sub001/internal/adapter/driving/http"
	"github.com/faisalnh/Exim-Accurate-sub001/internal/application"
	"github.com/faisalnh/Exim-Accurate-sub001/internal/config"
	"github.com/faisalnh/Exim-Accurate-sub001/internal/domain/port/driven"
)

// importDrainTimeout bounds how long shutdown waits for running imports.
// Jobs still running afterwards are recovered on the next start.
const importDrainTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on malformed env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"account_url", cfg.AccountURL,
		"rate_limit", cfg.RateLimit,
		"max_concurrent", cfg.MaxConcurrent,
		"import_workers", cfg.ImportWorkers,
		"oauth", cfg.HasOAuth(),
	)
	if cfg.SecretKey == nil {
		slog.Warn("EXIMACCURATE_SECRET_KEY not set, credential storage is disabled")
	}

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire stores.
	credentialStore := sqliteadapter.NewCredentialRepo(db, cfg.SecretKey)
	jobStore := sqliteadapter.NewJobRepo(db)

	// 6. Wire the provider adapters behind one dispatcher.
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	limits := accurate.DefaultLimits()
	limits.RequestsPerSecond = cfg.RateLimit
	limits.MaxConcurrent = cfg.MaxConcurrent
	limits.RequestTimeout = cfg.RequestTimeout
	httpClient := &http.Client{}
	dispatcher := accurate.NewDispatcher(httpClient, limits, accurate.NewMetrics(reg))
	client := accurate.NewClient(dispatcher)
	resolver := accurate.NewHostResolver(dispatcher, cfg.AccountURL)

	// The exchanger stays a nil interface when OAuth is not configured.
	var oauth driven.OAuthExchanger
	if cfg.HasOAuth() {
		exchange, err := accurate.NewOAuthExchange(accurate.OAuthConfig{
			ClientID:     cfg.OAuthClientID,
			ClientSecret: cfg.OAuthClientSecret,
			RedirectURL:  cfg.OAuthRedirectURL,
			Scopes:       cfg.OAuthScopes,
			AccountURL:   cfg.AccountURL,
		}, httpClient)
		if err != nil {
			return err
		}
		oauth = exchange
		slog.Info("oauth client configured", "client_id", cfg.OAuthClientID)
	} else {
		slog.Info("no oauth client configured, only manual credentials are accepted")
	}

	// 7. Create application services.
	resources := application.NewRegistry(application.NewAdjustmentResource(client))
	codec := tabular.NewCodec()

	connectSvc := application.NewConnectService(oauth, resolver, credentialStore, cfg.OAuthClientID, cfg.SignatureSecret)
	exportSvc := application.NewExportService(credentialStore, resources, codec)
	importSvc := application.NewImportService(jobStore, credentialStore, resources, codec, cfg.ImportWorkers)

	// 7b. Finalize jobs a previous process left behind.
	recovered, err := importSvc.RecoverInterrupted(ctx)
	if err != nil {
		return err
	}
	if recovered > 0 {
		slog.Info("interrupted import jobs recovered", "count", recovered)
	}

	// 8. Create HTTP handler and register API routes.
	apiHandler := httphandler.NewHandler(connectSvc, exportSvc, importSvc, reg, slog.Default())
	mux := http.NewServeMux()
	httphandler.RegisterAPIRoutes(mux, apiHandler)

	handler := httphandler.ApplyMiddleware(mux, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("eximaccurate started", "listen_addr", cfg.ListenAddr)

	// 9. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 10. Graceful shutdown: drain HTTP, then let running imports finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	drained := make(chan struct{})
	go func() {
		importSvc.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(importDrainTimeout):
		slog.Warn("import jobs still running at shutdown, they will be recovered on next start")
	}

	slog.Info("shutdown complete")
	return nil
}
