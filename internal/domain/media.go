package domain

import (
	"github.com/google/uuid"
)

// MediaKind classifies a post by the media it carries.
type MediaKind string

const (
	// KindVideo is a single-video post.
	KindVideo MediaKind = "video"

	// KindSlideshow is a photo post: multiple still images plus an
	// optional shared background audio track.
	KindSlideshow MediaKind = "slideshow"
)

// AssetKind classifies one resolved binary asset.
type AssetKind string

const (
	AssetImage AssetKind = "image"
	AssetAudio AssetKind = "audio"
	AssetVideo AssetKind = "video"
)

// Strategy identifies which resolution tier produced a result.
type Strategy string

const (
	// StrategyScrape is the page-scrape tier (embedded script payloads).
	StrategyScrape Strategy = "scrape"

	// StrategyEngine is the external media-extraction engine tier.
	StrategyEngine Strategy = "engine"

	// StrategyAPI is the third-party resolution API fallback tier.
	StrategyAPI Strategy = "api"
)

// MediaRequest is one inbound resolution request. ID seeds every temp
// filename for the request so concurrent resolutions never collide.
type MediaRequest struct {
	URL  string
	Kind MediaKind
	ID   string
}

// NewMediaRequest classifies a raw link and assigns a correlation ID.
// Returns ErrUnsupportedURL for links outside the supported platform.
func NewMediaRequest(rawURL string) (MediaRequest, error) {
	kind, err := ClassifyLink(rawURL)
	if err != nil {
		return MediaRequest{}, err
	}
	return MediaRequest{
		URL:  rawURL,
		Kind: kind,
		ID:   uuid.NewString(),
	}, nil
}

// ResolvedAsset is one asset already written to a scoped temp location.
// Owned by the resolver for the duration of the request; it must be
// removed after packaging or on any failure path.
type ResolvedAsset struct {
	LocalPath string
	Kind      AssetKind
}

// ResolutionResult is the ordered output of one successful tier.
// For a slideshow: zero or more images in source-scan order, then at
// most one audio asset last. For a video: exactly one video asset,
// fully merged (audio is never a separate asset for video posts).
type ResolutionResult struct {
	Assets   []ResolvedAsset
	Strategy Strategy
}

// Empty reports whether the tier yielded nothing. An empty result means
// "try the next tier", never a hard failure.
func (r ResolutionResult) Empty() bool {
	return len(r.Assets) == 0
}

// Video returns the single video asset, if any.
func (r ResolutionResult) Video() (ResolvedAsset, bool) {
	for _, a := range r.Assets {
		if a.Kind == AssetVideo {
			return a, true
		}
	}
	return ResolvedAsset{}, false
}

// Paths returns the local paths of all assets in order.
func (r ResolutionResult) Paths() []string {
	paths := make([]string, 0, len(r.Assets))
	for _, a := range r.Assets {
		paths = append(paths, a.LocalPath)
	}
	return paths
}

// PackagingMode describes how a result is handed to the transport.
type PackagingMode string

const (
	PackageSingleFile PackagingMode = "single-file"
	PackageZipArchive PackagingMode = "zip-archive"
)

// DeliveryPackage is the final artifact for one request: either the raw
// video file or a zip archive of slideshow images plus audio. It exists
// only long enough to be handed to the transport, then is deleted.
type DeliveryPackage struct {
	Path       string
	Mode       PackagingMode
	Kind       MediaKind
	AssetCount int
	Strategy   Strategy
}
