package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"expenses/internal/auth"
	"expenses/internal/backend"
	"expenses/internal/cli"
	"expenses/internal/config"
	apphttp "expenses/internal/http"
	applog "expenses/internal/log"
	"expenses/internal/services"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)

	if err := run(logger); err != nil {
		cli.Fatal(logger, "Server error", err)
	}
	logger.InfoContext(context.Background(), "Server stopped gracefully")
}

func run(logger *applog.Logger) error {
	cfg, err := cli.LoadAndValidateConfig((*config.Config).Validate)
	if err != nil {
		return err
	}

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	res, err := backend.NewFactory(logger.Logger.With(applog.FieldComponent, applog.ComponentBackend)).CreateBackend(ctx, backendCfg)
	if err != nil {
		return err
	}
	defer func() {
		if res.Cleanup == nil {
			return
		}
		if err := res.Cleanup(); err != nil {
			logger.ErrorContext(context.Background(), "Backend cleanup failed", applog.FieldError, err)
		}
	}()

	// a nil *amqp.Client must stay a nil interface
	var publisher services.Publisher
	if res.Events != nil {
		publisher = res.Events
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		Expenses:      services.NewExpenseService(res.Repository, publisher),
		Auth:          services.NewAuthService(res.Repository, auth.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)),
		Verifier:      auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer),
		Ready:         res.Repository,
		Logger:        logger,
		AuthRateLimit: cfg.AuthRateLimit,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.InfoContext(gctx, "Starting expenses server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"events", publisher != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
