package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strconv"
	"time"

	"github.com/tikrelay/tikrelay/internal/config"
	"github.com/tikrelay/tikrelay/internal/domain"
)

var _ Extractor = (*APIExtractor)(nil)

// APIExtractor resolves posts through a third-party resolution API.
// It is the last tier in every fallback chain: the API is queried with
// the original link and its JSON response is mapped to asset URLs.
type APIExtractor struct {
	endpoint string
	hd       bool
	timeout  time.Duration
	fetcher  Fetcher
	tempDir  string
	logger   *slog.Logger
}

// apiResponse is the resolver service's wire format. A non-zero code or
// a missing data section means "no result", not an error.
type apiResponse struct {
	Code int      `json:"code"`
	Msg  string   `json:"msg"`
	Data *apiData `json:"data"`
}

type apiData struct {
	Play   string   `json:"play"`
	Music  string   `json:"music"`
	Images []string `json:"images"`
}

// NewAPIExtractor creates the structured-API fallback tier.
func NewAPIExtractor(cfg config.APIConfig, fetcher Fetcher, tempDir string, logger *slog.Logger) *APIExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIExtractor{
		endpoint: cfg.Endpoint,
		hd:       cfg.HD,
		timeout:  cfg.Timeout,
		fetcher:  fetcher,
		tempDir:  tempDir,
		logger:   logger.With("tier", domain.StrategyAPI),
	}
}

// Resolve queries the API and downloads whatever assets it maps for the
// request's kind. Query failures and unusable responses yield an empty
// result so the orchestrator's control flow stays uniform.
func (e *APIExtractor) Resolve(ctx context.Context, req domain.MediaRequest) (domain.ResolutionResult, error) {
	queryCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		queryCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	body, err := e.fetcher.Fetch(queryCtx, e.queryURL(req.URL))
	if err != nil {
		e.logger.Warn("api query failed", "request_id", req.ID, "error", err)
		return domain.ResolutionResult{}, nil
	}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		e.logger.Warn("api response unparseable", "request_id", req.ID, "error", err)
		return domain.ResolutionResult{}, nil
	}
	if resp.Code != 0 || resp.Data == nil {
		e.logger.Info("api yielded no result", "request_id", req.ID, "code", resp.Code, "msg", resp.Msg)
		return domain.ResolutionResult{}, nil
	}

	switch req.Kind {
	case domain.KindSlideshow:
		return e.resolveSlideshow(ctx, req, resp.Data), nil
	default:
		return e.resolveVideo(ctx, req, resp.Data), nil
	}
}

// resolveSlideshow maps data.images to sequential image assets and
// data.music to a single trailing audio asset. The naming scheme
// matches the scrape tier so packaging stays format-agnostic.
func (e *APIExtractor) resolveSlideshow(ctx context.Context, req domain.MediaRequest, data *apiData) domain.ResolutionResult {
	result := domain.ResolutionResult{Strategy: domain.StrategyAPI}

	for i, imgURL := range data.Images {
		dest := filepath.Join(e.tempDir, fmt.Sprintf("%s_%d.jpg", req.ID, i))
		if err := e.fetcher.FetchFile(ctx, e.absolute(imgURL), dest); err != nil {
			e.logger.Warn("image fetch failed", "request_id", req.ID, "index", i, "error", err)
			continue
		}
		result.Assets = append(result.Assets, domain.ResolvedAsset{
			LocalPath: dest,
			Kind:      domain.AssetImage,
		})
	}

	if data.Music != "" {
		dest := filepath.Join(e.tempDir, req.ID+"_music.mp3")
		if err := e.fetcher.FetchFile(ctx, e.absolute(data.Music), dest); err != nil {
			e.logger.Warn("audio fetch failed", "request_id", req.ID, "error", err)
		} else {
			result.Assets = append(result.Assets, domain.ResolvedAsset{
				LocalPath: dest,
				Kind:      domain.AssetAudio,
			})
		}
	}

	return result
}

// resolveVideo maps data.play to the single video asset. The video
// contract is "always fully merged": data.music is ignored for video
// posts, a separate audio file only ever accompanies slideshows.
func (e *APIExtractor) resolveVideo(ctx context.Context, req domain.MediaRequest, data *apiData) domain.ResolutionResult {
	if data.Play == "" {
		return domain.ResolutionResult{}
	}

	dest := filepath.Join(e.tempDir, req.ID+".mp4")
	if err := e.fetcher.FetchFile(ctx, e.absolute(data.Play), dest); err != nil {
		e.logger.Warn("video fetch failed", "request_id", req.ID, "error", err)
		return domain.ResolutionResult{}
	}

	return domain.ResolutionResult{
		Strategy: domain.StrategyAPI,
		Assets: []domain.ResolvedAsset{
			{LocalPath: dest, Kind: domain.AssetVideo},
		},
	}
}

func (e *APIExtractor) queryURL(link string) string {
	q := url.Values{}
	q.Set("url", link)
	q.Set("hd", strconv.Itoa(boolToInt(e.hd)))
	return e.endpoint + "?" + q.Encode()
}

// absolute resolves API-relative asset paths against the endpoint host.
// The resolver service returns some asset URLs as bare paths.
func (e *APIExtractor) absolute(assetURL string) string {
	u, err := url.Parse(assetURL)
	if err != nil || u.Scheme != "" {
		return assetURL
	}
	base, err := url.Parse(e.endpoint)
	if err != nil {
		return assetURL
	}
	return base.ResolveReference(u).String()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
