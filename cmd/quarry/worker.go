package main

import (
	"context"
	"log/slog"

	"github.com/quarrysearch/quarry/config"
	"github.com/quarrysearch/quarry/indexwriter"
)

func runWorker(ctx context.Context, logger *slog.Logger, cfg config.Config) error {
	b, err := newBackend(ctx, cfg, false)
	if err != nil {
		return err
	}

	worker := indexwriter.NewWorker(b.provider(logger), b.bucket, b.queue, logger)
	return worker.Run(ctx)
}
