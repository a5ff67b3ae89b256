package conversation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"reverie/internal/domain"
)

// Enricher writes one slice of the state. Implementations must be safe to
// run concurrently with every other enricher.
type Enricher interface {
	Name() string
	Enrich(ctx context.Context, state *State) error
}

// Orchestrator fans the registered enrichers out in parallel and joins them.
type Orchestrator struct {
	enrichers []Enricher
	logger    *slog.Logger
}

// NewOrchestrator creates an orchestrator over the given roster
func NewOrchestrator(logger *slog.Logger, enrichers ...Enricher) *Orchestrator {
	return &Orchestrator{enrichers: enrichers, logger: logger}
}

// Run executes every enricher concurrently and waits for all of them. The
// first failure cancels the rest and is returned wrapped as an
// EnrichmentError; caller cancellation is passed through untouched so it
// stays distinguishable.
func (o *Orchestrator) Run(ctx context.Context, state *State) error {
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for _, enricher := range o.enrichers {
		g.Go(func() error {
			if err := enricher.Enrich(gctx, state); err != nil {
				return &domain.EnrichmentError{Enricher: enricher.Name(), Cause: err}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return ctxErr
		}
		return err
	}

	o.logger.Debug("enrichment complete",
		"enrichers", len(o.enrichers),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
