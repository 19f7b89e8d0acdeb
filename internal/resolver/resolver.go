// Package resolver orchestrates the resolution tiers into an ordered
// fallback chain and turns successful results into delivery packages.
package resolver

import (
	"context"
	"log/slog"

	"github.com/tikrelay/tikrelay/internal/domain"
	"github.com/tikrelay/tikrelay/internal/extract"
)

// Resolver composes the extraction tiers per content kind:
//
//	slideshow: scrape -> api
//	video:     engine (with retry budget) -> api
//
// Tiers run strictly in priority order, never raced. A tier's empty
// result means "fall through"; only total exhaustion surfaces as
// ErrNoMediaFound. The resolver owns every temp artifact of a request
// and guarantees none survives a failure path.
type Resolver struct {
	scrape  extract.Extractor
	engine  extract.Extractor
	api     extract.Extractor
	retry   RetryPolicy
	tempDir string
	logger  *slog.Logger
}

// New creates a Resolver over the three tiers.
func New(scrape, engine, api extract.Extractor, retry RetryPolicy, tempDir string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		scrape:  scrape,
		engine:  engine,
		api:     api,
		retry:   retry,
		tempDir: tempDir,
		logger:  logger,
	}
}

// Resolve runs the fallback chain for the request and returns the
// assets of the first tier that produced any. On every failure path all
// partial artifacts of the request are removed before returning.
func (r *Resolver) Resolve(ctx context.Context, req domain.MediaRequest) (domain.ResolutionResult, error) {
	result, err := r.resolve(ctx, req)
	if err != nil {
		r.Cleanup(req.ID)
		return domain.ResolutionResult{}, err
	}
	return result, nil
}

func (r *Resolver) resolve(ctx context.Context, req domain.MediaRequest) (domain.ResolutionResult, error) {
	switch req.Kind {
	case domain.KindSlideshow:
		return r.resolveSlideshow(ctx, req)
	default:
		return r.resolveVideo(ctx, req)
	}
}

func (r *Resolver) resolveSlideshow(ctx context.Context, req domain.MediaRequest) (domain.ResolutionResult, error) {
	result, err := r.scrape.Resolve(ctx, req)
	if err != nil {
		r.logger.Warn("scrape tier failed", "request_id", req.ID, "error", err)
	}
	if !result.Empty() {
		r.logger.Info("resolved", "request_id", req.ID, "strategy", result.Strategy, "assets", len(result.Assets))
		return result, nil
	}

	if err := ctx.Err(); err != nil {
		return domain.ResolutionResult{}, err
	}

	result, err = r.api.Resolve(ctx, req)
	if err != nil {
		r.logger.Warn("api tier failed", "request_id", req.ID, "error", err)
	}
	if result.Empty() {
		return domain.ResolutionResult{}, domain.NewResolveError(req.ID, "resolve", domain.ErrNoMediaFound)
	}

	r.logger.Info("resolved", "request_id", req.ID, "strategy", result.Strategy, "assets", len(result.Assets))
	return result, nil
}

func (r *Resolver) resolveVideo(ctx context.Context, req domain.MediaRequest) (domain.ResolutionResult, error) {
	// The engine tier gets the full retry budget before any fallback;
	// the API tier is attempted only after the budget is exhausted.
	result, err := Retry(ctx, r.retry, func() (domain.ResolutionResult, error) {
		return r.engine.Resolve(ctx, req)
	})
	if err == nil && !result.Empty() {
		r.logger.Info("resolved", "request_id", req.ID, "strategy", result.Strategy, "assets", len(result.Assets))
		return result, nil
	}
	if err != nil {
		r.logger.Warn("engine tier exhausted", "request_id", req.ID, "attempts", r.retry.MaxAttempts, "error", err)
	}

	if err := ctx.Err(); err != nil {
		return domain.ResolutionResult{}, err
	}

	result, err = r.api.Resolve(ctx, req)
	if err != nil {
		r.logger.Warn("api tier failed", "request_id", req.ID, "error", err)
	}
	if _, ok := result.Video(); !ok {
		return domain.ResolutionResult{}, domain.NewResolveError(req.ID, "resolve", domain.ErrNoMediaFound)
	}

	r.logger.Info("resolved", "request_id", req.ID, "strategy", result.Strategy, "assets", len(result.Assets))
	return result, nil
}
