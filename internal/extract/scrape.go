package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/tikrelay/tikrelay/internal/domain"
)

// CDN path markers the platform embeds in signed image URLs.
var signedImageMarkers = []string{"p16-sign", "p26-sign"}

// imageExtensions accepted for scraped image URLs.
var imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

// audioCDNHost is the media CDN domain that legitimizes a playUrl hit.
const audioCDNHost = "tiktokcdn.com"

var _ Extractor = (*ScrapeExtractor)(nil)

// ScrapeExtractor resolves slideshow posts by scanning the inline
// script payloads of the post's HTML page for signed CDN asset URLs.
//
// The platform has no stable public API for slideshow posts; asset URLs
// sit as opaque strings inside bootstrap JSON embedded in script tags.
// Substring scanning is the only scrape surface, and it is expected to
// break whenever the page format changes, which is why the orchestrator
// always keeps a fallback tier behind this one.
type ScrapeExtractor struct {
	fetcher Fetcher
	tempDir string
	logger  *slog.Logger
}

// NewScrapeExtractor creates the page-scrape tier.
func NewScrapeExtractor(fetcher Fetcher, tempDir string, logger *slog.Logger) *ScrapeExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScrapeExtractor{
		fetcher: fetcher,
		tempDir: tempDir,
		logger:  logger.With("tier", domain.StrategyScrape),
	}
}

// Resolve fetches the post page and downloads every asset it can
// discover. Returns an empty result, never an error: a page we cannot
// read or parse is a normal "try the next tier" outcome.
func (e *ScrapeExtractor) Resolve(ctx context.Context, req domain.MediaRequest) (domain.ResolutionResult, error) {
	page, err := e.fetcher.Fetch(ctx, req.URL)
	if err != nil {
		e.logger.Warn("page fetch failed", "request_id", req.ID, "error", err)
		return domain.ResolutionResult{}, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		e.logger.Warn("page parse failed", "request_id", req.ID, "error", err)
		return domain.ResolutionResult{}, nil
	}

	imageURLs, audioURL := scanScripts(doc)
	if len(imageURLs) == 0 && audioURL == "" {
		return domain.ResolutionResult{}, nil
	}

	result := domain.ResolutionResult{Strategy: domain.StrategyScrape}

	// Images keep source-scan order; a failed fetch skips that asset
	// but never aborts the rest.
	for i, imgURL := range imageURLs {
		dest := filepath.Join(e.tempDir, fmt.Sprintf("%s_%d.jpg", req.ID, i))
		if err := e.fetcher.FetchFile(ctx, imgURL, dest); err != nil {
			e.logger.Warn("image fetch failed", "request_id", req.ID, "index", i, "error", err)
			continue
		}
		result.Assets = append(result.Assets, domain.ResolvedAsset{
			LocalPath: dest,
			Kind:      domain.AssetImage,
		})
	}

	// At most one audio asset per request, always appended last.
	if audioURL != "" {
		dest := filepath.Join(e.tempDir, req.ID+"_music.mp3")
		if err := e.fetcher.FetchFile(ctx, audioURL, dest); err != nil {
			e.logger.Warn("audio fetch failed", "request_id", req.ID, "error", err)
		} else {
			result.Assets = append(result.Assets, domain.ResolvedAsset{
				LocalPath: dest,
				Kind:      domain.AssetAudio,
			})
		}
	}

	return result, nil
}

// scanScripts walks every inline script block and collects signed image
// URLs in discovery order plus the first acceptable audio URL.
func scanScripts(doc *goquery.Document) (images []string, audio string) {
	seen := make(map[string]bool)

	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		text := s.Text()
		if text == "" {
			return
		}

		for _, u := range scanImageURLs(text) {
			if seen[u] {
				continue
			}
			seen[u] = true
			images = append(images, u)
		}

		if audio == "" {
			audio = scanAudioURL(text)
		}
	})

	return images, audio
}

// scanImageURLs scans a script body for https:// runs terminated by a
// quote, URL-decodes each, and keeps those that look like signed CDN
// image URLs.
func scanImageURLs(script string) []string {
	var out []string

	pos := 0
	for {
		start := strings.Index(script[pos:], "https://")
		if start == -1 {
			break
		}
		start += pos

		end := strings.IndexByte(script[start:], '"')
		if end == -1 {
			break
		}
		end += start

		if decoded, err := url.QueryUnescape(script[start:end]); err == nil && isSignedImageURL(decoded) {
			out = append(out, decoded)
		}

		pos = end
	}

	return out
}

func isSignedImageURL(u string) bool {
	marked := false
	for _, m := range signedImageMarkers {
		if strings.Contains(u, m) {
			marked = true
			break
		}
	}
	if !marked {
		return false
	}

	lower := strings.ToLower(u)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// scanAudioURL looks for a playUrl JSON key and accepts its value only
// when it points at the platform's media CDN or carries an audio
// extension.
func scanAudioURL(script string) string {
	const key = `"playUrl":"`

	pos := strings.Index(script, key)
	if pos == -1 {
		return ""
	}
	pos += len(key)

	end := strings.IndexByte(script[pos:], '"')
	if end == -1 {
		return ""
	}

	decoded, err := url.QueryUnescape(script[pos : pos+end])
	if err != nil {
		return ""
	}

	if !isAudioURL(decoded) {
		return ""
	}
	return decoded
}

func isAudioURL(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Scheme == "" {
		return false
	}

	host := strings.ToLower(parsed.Hostname())
	if host == audioCDNHost || strings.HasSuffix(host, "."+audioCDNHost) {
		return true
	}

	lower := strings.ToLower(parsed.Path)
	return strings.HasSuffix(lower, ".mp3") || strings.HasSuffix(lower, ".m4a")
}
