package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/type-rush-backend/internal/config"
	"github.com/DoyleJ11/type-rush-backend/internal/httpapi"
	"github.com/DoyleJ11/type-rush-backend/internal/hub"
	"github.com/DoyleJ11/type-rush-backend/internal/logging"
	"github.com/DoyleJ11/type-rush-backend/internal/passage"
	"github.com/DoyleJ11/type-rush-backend/internal/ws"
)

const (
	releaseVersion  = "0.1.0"
	shutdownTimeout = 10 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := &config.Server{}
	cobra.CheckErr(newCmd(cfg).ExecuteContext(ctx))
}

func newCmd(cfg *config.Server) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "type-rush-server",
		Short:         "Room relay for multiplayer typing races.",
		Args:          cobra.ExactArgs(0),
		Version:       releaseVersion,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Load(cmd.Flags()); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cfg.BindFlags(cmd.Flags())

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("type-rush-server v{{.Version}}\n")
	return cmd
}

func serve(ctx context.Context, cfg *config.Server) (err error) {
	log, err := logging.New(cfg.LogLevel, cfg.Dev)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	src, closeSrc, err := openSource(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, closeSrc()) }()

	h := hub.NewHub(ctx, log)

	wsOpts := ws.DefaultOptions()
	wsOpts.ReadTimeout = cfg.ReadTimeout
	wsOpts.WriteTimeout = cfg.WriteTimeout
	wsOpts.OutboxSize = cfg.OutboxSize
	wsOpts.OriginPatterns = cfg.Origins

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           httpapi.SetupRoutes(httpapi.Deps{Hub: h, Source: src, WS: wsOpts, Log: log}),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	err = g.Wait()
	h.Send(hub.ShutdownHub{})
	<-h.Done()
	return err
}

// openSource chains the passage bank, when configured, in front of the
// embedded word list.
func openSource(ctx context.Context, cfg *config.Server, log *zap.Logger) (passage.Source, func() error, error) {
	words, err := passage.NewWords(cfg.Language, cfg.WordCount, 0)
	if err != nil {
		return nil, nil, err
	}
	if cfg.DatabaseURL == "" {
		return passage.NewFallback(log, words), func() error { return nil }, nil
	}

	store, err := passage.OpenStore(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		return nil, nil, multierr.Append(err, store.Close())
	}

	seed := make([]string, 0, cfg.SeedCount)
	for range cfg.SeedCount {
		text, _ := words.Next(ctx)
		seed = append(seed, text)
	}
	if err := store.Seed(ctx, seed); err != nil {
		return nil, nil, multierr.Append(err, store.Close())
	}
	log.Info("passage bank ready", zap.Int("seeded", len(seed)))
	return passage.NewFallback(log, store, words), store.Close, nil
}
