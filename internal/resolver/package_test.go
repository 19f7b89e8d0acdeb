package resolver

import (
	"archive/zip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/tikrelay/tikrelay/internal/domain"
)

func writeAsset(t *testing.T, dir, name, content string) domain.ResolvedAsset {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	kind := domain.AssetImage
	switch filepath.Ext(name) {
	case ".mp3":
		kind = domain.AssetAudio
	case ".mp4":
		kind = domain.AssetVideo
	}
	return domain.ResolvedAsset{LocalPath: path, Kind: kind}
}

func testResolver(dir string) *Resolver {
	return New(nil, nil, nil, quickPolicy(3), dir, nil)
}

func readArchive(t *testing.T, path string) map[string]string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer zr.Close()

	entries := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open entry %s: %v", f.Name, err)
		}
		data, _ := io.ReadAll(rc)
		rc.Close()
		entries[f.Name] = string(data)
	}
	return entries
}

func archiveOrder(t *testing.T, path string) []string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names
}

func TestPackage_Slideshow(t *testing.T) {
	dir := t.TempDir()
	req := slideshowRequest("req-pkg-1")
	result := domain.ResolutionResult{
		Strategy: domain.StrategyScrape,
		Assets: []domain.ResolvedAsset{
			writeAsset(t, dir, "req-pkg-1_0.jpg", "first"),
			writeAsset(t, dir, "req-pkg-1_1.jpg", "second"),
			writeAsset(t, dir, "req-pkg-1_music.mp3", "track"),
		},
	}

	pkg, err := testResolver(dir).Package(req, result)
	if err != nil {
		t.Fatalf("Package failed: %v", err)
	}

	if pkg.Mode != domain.PackageZipArchive {
		t.Errorf("mode = %q, want zip-archive", pkg.Mode)
	}
	if pkg.AssetCount != 3 {
		t.Errorf("asset count = %d, want 3", pkg.AssetCount)
	}
	if want := filepath.Join(dir, "req-pkg-1.zip"); pkg.Path != want {
		t.Errorf("path = %q, want %q", pkg.Path, want)
	}

	entries := readArchive(t, pkg.Path)
	if len(entries) != 3 {
		t.Fatalf("archive entries = %d, want 3", len(entries))
	}
	if entries["req-pkg-1_0.jpg"] != "first" || entries["req-pkg-1_music.mp3"] != "track" {
		t.Errorf("archive contents wrong: %v", entries)
	}

	order := archiveOrder(t, pkg.Path)
	want := []string{"req-pkg-1_0.jpg", "req-pkg-1_1.jpg", "req-pkg-1_music.mp3"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("entry order = %v, want %v", order, want)
		}
	}

	// Individual assets are consumed into the archive.
	files, _ := os.ReadDir(dir)
	if len(files) != 1 {
		t.Errorf("scratch dir holds %d files after packaging, want just the archive", len(files))
	}
}

func TestPackage_Video(t *testing.T) {
	dir := t.TempDir()
	req := videoRequest("req-pkg-2")
	asset := writeAsset(t, dir, "req-pkg-2.mp4", "merged")
	result := domain.ResolutionResult{
		Strategy: domain.StrategyEngine,
		Assets:   []domain.ResolvedAsset{asset},
	}

	pkg, err := testResolver(dir).Package(req, result)
	if err != nil {
		t.Fatalf("Package failed: %v", err)
	}

	if pkg.Mode != domain.PackageSingleFile {
		t.Errorf("mode = %q, want single-file", pkg.Mode)
	}
	if pkg.Path != asset.LocalPath {
		t.Errorf("path = %q, want the video file itself", pkg.Path)
	}
	if pkg.Strategy != domain.StrategyEngine {
		t.Errorf("strategy = %q", pkg.Strategy)
	}
}

func TestPackage_EmptyResult(t *testing.T) {
	_, err := testResolver(t.TempDir()).Package(slideshowRequest("req-pkg-3"), domain.ResolutionResult{})
	if !errors.Is(err, domain.ErrNoMediaFound) {
		t.Fatalf("err = %v, want ErrNoMediaFound", err)
	}
}

func TestPackage_MissingAssetFails(t *testing.T) {
	dir := t.TempDir()
	req := slideshowRequest("req-pkg-4")
	result := domain.ResolutionResult{
		Strategy: domain.StrategyScrape,
		Assets: []domain.ResolvedAsset{
			{LocalPath: filepath.Join(dir, "req-pkg-4_0.jpg"), Kind: domain.AssetImage},
		},
	}

	_, err := testResolver(dir).Package(req, result)
	if !errors.Is(err, domain.ErrPackagingFailed) {
		t.Fatalf("err = %v, want ErrPackagingFailed", err)
	}

	// No partial archive survives a packaging failure.
	files, _ := os.ReadDir(dir)
	if len(files) != 0 {
		t.Errorf("scratch dir holds %d files after failed packaging", len(files))
	}
}

func TestPackage_Idempotent(t *testing.T) {
	var archives []map[string]string
	var orders [][]string

	for run := 0; run < 2; run++ {
		dir := t.TempDir()
		req := slideshowRequest("req-pkg-5")
		result := domain.ResolutionResult{
			Strategy: domain.StrategyScrape,
			Assets: []domain.ResolvedAsset{
				writeAsset(t, dir, "req-pkg-5_0.jpg", "first"),
				writeAsset(t, dir, "req-pkg-5_1.jpg", "second"),
				writeAsset(t, dir, "req-pkg-5_music.mp3", "track"),
			},
		}

		pkg, err := testResolver(dir).Package(req, result)
		if err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
		archives = append(archives, readArchive(t, pkg.Path))
		orders = append(orders, archiveOrder(t, pkg.Path))
	}

	if len(archives[0]) != len(archives[1]) {
		t.Fatalf("entry counts differ: %d vs %d", len(archives[0]), len(archives[1]))
	}
	for name, content := range archives[0] {
		if archives[1][name] != content {
			t.Errorf("entry %s differs between runs", name)
		}
	}
	for i := range orders[0] {
		if orders[0][i] != orders[1][i] {
			t.Errorf("entry order differs between runs: %v vs %v", orders[0], orders[1])
		}
	}
}

func TestCleanup(t *testing.T) {
	dir := t.TempDir()
	writeAsset(t, dir, "req-clean-1_0.jpg", "a")
	writeAsset(t, dir, "req-clean-1_music.mp3", "b")
	writeAsset(t, dir, "req-clean-1.zip", "c")
	keep := writeAsset(t, dir, "req-other_0.jpg", "keep")

	testResolver(dir).Cleanup("req-clean-1")

	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Fatalf("dir holds %d files, want 1", len(files))
	}
	if _, err := os.Stat(keep.LocalPath); err != nil {
		t.Error("cleanup must not touch other requests' artifacts")
	}
}
