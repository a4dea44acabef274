package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quarrysearch/quarry/config"
	"github.com/quarrysearch/quarry/indexwriter"
	"github.com/quarrysearch/quarry/searcher"
	"github.com/quarrysearch/quarry/service"
)

func runServe(ctx context.Context, logger *slog.Logger, cfg config.Config, local bool) error {
	b, err := newBackend(ctx, cfg, local)
	if err != nil {
		return err
	}

	provider := b.provider(logger)
	client := indexwriter.NewClient(b.bucket, b.queue, logger)
	svc := service.New(b.schemas, client, searcher.New(provider, logger), provider, logger)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: svc.Handler(),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if local {
		worker := indexwriter.NewWorker(provider, b.bucket, b.queue, logger,
			indexwriter.WithReceiveWait(100*time.Millisecond))
		g.Go(func() error {
			return worker.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
