// Package extract implements the resolution tiers that turn a post link
// into locally downloaded assets. Each tier sits behind the same
// Extractor interface so the orchestrator can chain them without caring
// which one produced a result.
package extract

import (
	"context"

	"github.com/tikrelay/tikrelay/internal/domain"
)

// Extractor resolves a media request into assets on local disk.
//
// An empty result with a nil error means the tier found nothing usable;
// the caller should fall through to the next tier. A non-nil error is
// reserved for tiers whose failure is worth distinguishing (the
// extraction engine exhausting an attempt); transient per-asset fetch
// failures are swallowed inside the tier.
type Extractor interface {
	Resolve(ctx context.Context, req domain.MediaRequest) (domain.ResolutionResult, error)
}

// Fetcher is the slice of the asset fetcher the tiers need.
// *fetch.Client satisfies it.
type Fetcher interface {
	// Fetch retrieves the full body at url.
	Fetch(ctx context.Context, url string) ([]byte, error)

	// FetchFile retrieves url and writes the body to dest, leaving no
	// partial file behind on failure.
	FetchFile(ctx context.Context, url, dest string) error
}
