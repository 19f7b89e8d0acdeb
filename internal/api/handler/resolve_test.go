package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/tikrelay/tikrelay/internal/domain"
)

type fakeResolver struct {
	result     domain.ResolutionResult
	resolveErr error
	pkg        domain.DeliveryPackage
	packageErr error
	cleaned    []string
}

func (f *fakeResolver) Resolve(ctx context.Context, req domain.MediaRequest) (domain.ResolutionResult, error) {
	if f.resolveErr != nil {
		return domain.ResolutionResult{}, f.resolveErr
	}
	return f.result, nil
}

func (f *fakeResolver) Package(req domain.MediaRequest, result domain.ResolutionResult) (domain.DeliveryPackage, error) {
	if f.packageErr != nil {
		return domain.DeliveryPackage{}, f.packageErr
	}
	return f.pkg, nil
}

func (f *fakeResolver) Cleanup(requestID string) {
	f.cleaned = append(f.cleaned, requestID)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func postResolve(t *testing.T, h *ResolveHandler, url string) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(ResolveRequest{URL: url})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/resolve", bytes.NewBuffer(body))
	w := httptest.NewRecorder()
	h.Resolve(w, req)
	return w
}

func TestResolveHandler_InvalidJSON(t *testing.T) {
	h := NewResolveHandler(&fakeResolver{}, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/resolve", bytes.NewBufferString("invalid json"))
	w := httptest.NewRecorder()

	h.Resolve(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestResolveHandler_UnsupportedLink(t *testing.T) {
	h := NewResolveHandler(&fakeResolver{}, testLogger())

	w := postResolve(t, h, "https://example.com/watch?v=1")

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestResolveHandler_NoMediaFound(t *testing.T) {
	res := &fakeResolver{resolveErr: domain.ErrNoMediaFound}
	h := NewResolveHandler(res, testLogger())

	w := postResolve(t, h, "https://www.tiktok.com/@u/video/1")

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestResolveHandler_WrappedNoMediaFound(t *testing.T) {
	res := &fakeResolver{resolveErr: domain.NewResolveError("r1", "resolve", domain.ErrNoMediaFound)}
	h := NewResolveHandler(res, testLogger())

	w := postResolve(t, h, "https://www.tiktok.com/@u/video/1")

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestResolveHandler_VideoDelivery(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "req.mp4")
	if err := os.WriteFile(path, []byte("merged video"), 0644); err != nil {
		t.Fatal(err)
	}

	res := &fakeResolver{
		result: domain.ResolutionResult{
			Strategy: domain.StrategyEngine,
			Assets:   []domain.ResolvedAsset{{LocalPath: path, Kind: domain.AssetVideo}},
		},
		pkg: domain.DeliveryPackage{
			Path:       path,
			Mode:       domain.PackageSingleFile,
			Kind:       domain.KindVideo,
			AssetCount: 1,
			Strategy:   domain.StrategyEngine,
		},
	}
	h := NewResolveHandler(res, testLogger())

	w := postResolve(t, h, "https://www.tiktok.com/@u/video/1")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Body.String() != "merged video" {
		t.Errorf("body = %q", w.Body.String())
	}
	if got := w.Header().Get("Content-Type"); got != "video/mp4" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := w.Header().Get("X-Strategy"); got != "engine" {
		t.Errorf("X-Strategy = %q", got)
	}
	if got := w.Header().Get("X-Media-Kind"); got != "video" {
		t.Errorf("X-Media-Kind = %q", got)
	}
	if w.Header().Get("X-Resolve-ID") == "" {
		t.Error("X-Resolve-ID missing")
	}
	if len(res.cleaned) != 1 {
		t.Errorf("cleanup calls = %d, want 1", len(res.cleaned))
	}
}

func TestResolveHandler_SlideshowDelivery(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "req.zip")
	if err := os.WriteFile(path, []byte("zip bytes"), 0644); err != nil {
		t.Fatal(err)
	}

	res := &fakeResolver{
		result: domain.ResolutionResult{
			Strategy: domain.StrategyScrape,
			Assets:   []domain.ResolvedAsset{{LocalPath: path, Kind: domain.AssetImage}},
		},
		pkg: domain.DeliveryPackage{
			Path:       path,
			Mode:       domain.PackageZipArchive,
			Kind:       domain.KindSlideshow,
			AssetCount: 3,
			Strategy:   domain.StrategyScrape,
		},
	}
	h := NewResolveHandler(res, testLogger())

	w := postResolve(t, h, "https://www.tiktok.com/@u/photo/9")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := w.Header().Get("Content-Type"); got != "application/zip" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := w.Header().Get("Content-Disposition"); got != `attachment; filename="req.zip"` {
		t.Errorf("Content-Disposition = %q", got)
	}
}

func TestResolveHandler_PackagingFailure(t *testing.T) {
	res := &fakeResolver{
		result:     domain.ResolutionResult{Strategy: domain.StrategyScrape},
		packageErr: domain.ErrPackagingFailed,
	}
	h := NewResolveHandler(res, testLogger())

	w := postResolve(t, h, "https://www.tiktok.com/@u/photo/9")

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

func TestResolveHandler_UpstreamFailure(t *testing.T) {
	res := &fakeResolver{resolveErr: domain.ErrExtractionFailed}
	h := NewResolveHandler(res, testLogger())

	w := postResolve(t, h, "https://www.tiktok.com/@u/video/1")

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadGateway)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body["error"] == "" {
		t.Error("error body missing message")
	}
}
