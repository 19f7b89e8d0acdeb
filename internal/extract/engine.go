package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/tikrelay/tikrelay/internal/config"
	"github.com/tikrelay/tikrelay/internal/domain"
)

var _ Extractor = (*EngineExtractor)(nil)

// EngineExtractor resolves video posts through an external
// media-extraction engine (yt-dlp) invoked as a black box with
// declarative options: a format selector capped at the target
// resolution, a merge container, a spoofed user agent, an
// origin-appropriate referer, and optionally a browser-exported cookies
// file for login-gated content.
//
// One Resolve call is one full engine invocation. The orchestrator owns
// the retry policy around it.
type EngineExtractor struct {
	cfg       config.EngineConfig
	userAgent string
	referer   string
	tempDir   string
	logger    *slog.Logger
}

// NewEngineExtractor creates the primary video extraction tier.
func NewEngineExtractor(cfg config.EngineConfig, dl config.DownloadConfig, tempDir string, logger *slog.Logger) *EngineExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &EngineExtractor{
		cfg:       cfg,
		userAgent: dl.UserAgent,
		referer:   dl.Referer,
		tempDir:   tempDir,
		logger:    logger.With("tier", domain.StrategyEngine),
	}
}

// Resolve runs one engine invocation. The merged output lands at
// {tempDir}/{requestID}.{ext}; the produced file is located by its
// request-ID prefix since the engine picks the final extension.
func (e *EngineExtractor) Resolve(ctx context.Context, req domain.MediaRequest) (domain.ResolutionResult, error) {
	runCtx := ctx
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	outTpl := filepath.Join(e.tempDir, req.ID+".%(ext)s")
	cmd := exec.CommandContext(runCtx, e.cfg.BinPath, e.buildArgs(req.URL, outTpl)...)

	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// A failed attempt may still leave partial output behind.
		e.removeOutputs(req.ID)
		return domain.ResolutionResult{}, fmt.Errorf("%w: %v: %s", domain.ErrExtractionFailed, err, strings.TrimSpace(stderr.String()))
	}

	path, err := e.findOutput(req.ID)
	if err != nil {
		return domain.ResolutionResult{}, err
	}

	return domain.ResolutionResult{
		Strategy: domain.StrategyEngine,
		Assets: []domain.ResolvedAsset{
			{LocalPath: path, Kind: domain.AssetVideo},
		},
	}, nil
}

func (e *EngineExtractor) buildArgs(link, outTpl string) []string {
	args := []string{
		"-f", e.cfg.Format,
		"--merge-output-format", e.cfg.MergeFormat,
		"--no-playlist",
		"-q", "--no-warnings", "--no-progress",
		"--user-agent", e.userAgent,
		"-o", outTpl,
	}
	if e.referer != "" {
		args = append(args, "--referer", e.referer)
	}
	if e.cfg.CookiesFile != "" {
		args = append(args, "--cookies", e.cfg.CookiesFile)
	}
	return append(args, link)
}

// findOutput locates the file the engine produced for this request.
func (e *EngineExtractor) findOutput(requestID string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(e.tempDir, requestID+".*"))
	if err != nil {
		return "", fmt.Errorf("scan output: %w", err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("engine produced no output for %s", requestID)
	}
	if len(matches) > 1 {
		// Unmerged leftovers mean the merge step failed.
		e.removeOutputs(requestID)
		return "", fmt.Errorf("engine produced %d files for %s, expected one", len(matches), requestID)
	}
	return matches[0], nil
}

func (e *EngineExtractor) removeOutputs(requestID string) {
	matches, _ := filepath.Glob(filepath.Join(e.tempDir, requestID+".*"))
	for _, m := range matches {
		if err := os.Remove(m); err != nil {
			e.logger.Warn("failed to remove partial output", "path", m, "error", err)
		}
	}
}
