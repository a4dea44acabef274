package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/quarrysearch/quarry/config"
	"github.com/quarrysearch/quarry/filestore"
)

func runStats(ctx context.Context, logger *slog.Logger, cfg config.Config, indexID string) error {
	b, err := newBackend(ctx, cfg, false)
	if err != nil {
		return err
	}

	idx, err := b.provider(logger).LoadIndex(ctx, indexID)
	if err != nil {
		return err
	}
	r, err := idx.Reload(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("index:      %s\n", indexID)
	fmt.Printf("documents:  %d\n", r.DocCount())
	fmt.Printf("segments:   %d\n", r.SegmentCount())
	fmt.Printf("generation: %d\n", r.Generation())

	// Deletions drop file headers but leave content items behind. Backends
	// that track those report the count here.
	if b.stores != nil {
		if oc, ok := b.stores(indexID).(filestore.OrphanCounter); ok {
			n, err := oc.OrphanedContent(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("orphaned:   %d\n", n)
		}
	}
	return nil
}
