package resolver

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/tikrelay/tikrelay/internal/domain"
)

// Package assembles the delivery artifact for a resolved request: the
// raw file for a single video, a zip archive for a slideshow. Archive
// entries keep the result's asset order, and each asset file is removed
// as soon as it has been archived.
func (r *Resolver) Package(req domain.MediaRequest, result domain.ResolutionResult) (domain.DeliveryPackage, error) {
	if result.Empty() {
		return domain.DeliveryPackage{}, domain.NewResolveError(req.ID, "package", domain.ErrNoMediaFound)
	}

	if req.Kind == domain.KindVideo {
		video, ok := result.Video()
		if !ok {
			return domain.DeliveryPackage{}, domain.NewResolveError(req.ID, "package", domain.ErrNoMediaFound)
		}
		return domain.DeliveryPackage{
			Path:       video.LocalPath,
			Mode:       domain.PackageSingleFile,
			Kind:       req.Kind,
			AssetCount: 1,
			Strategy:   result.Strategy,
		}, nil
	}

	archivePath := filepath.Join(r.tempDir, req.ID+".zip")
	if err := writeArchive(archivePath, result); err != nil {
		// No partial package is ever delivered.
		os.Remove(archivePath)
		r.Cleanup(req.ID)
		return domain.DeliveryPackage{}, domain.NewResolveError(req.ID, "package",
			fmt.Errorf("%w: %v", domain.ErrPackagingFailed, err))
	}

	return domain.DeliveryPackage{
		Path:       archivePath,
		Mode:       domain.PackageZipArchive,
		Kind:       req.Kind,
		AssetCount: len(result.Assets),
		Strategy:   result.Strategy,
	}, nil
}

func writeArchive(archivePath string, result domain.ResolutionResult) error {
	f, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}

	zw := zip.NewWriter(f)
	for _, asset := range result.Assets {
		if err := addEntry(zw, asset.LocalPath); err != nil {
			zw.Close()
			f.Close()
			return err
		}
		os.Remove(asset.LocalPath)
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return fmt.Errorf("finalize archive: %w", err)
	}
	return f.Close()
}

func addEntry(zw *zip.Writer, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open asset %s: %w", filepath.Base(path), err)
	}
	defer src.Close()

	// zip.Writer.Create keeps insertion order, which keeps repeated
	// runs against the same input byte-identical.
	entry, err := zw.Create(filepath.Base(path))
	if err != nil {
		return fmt.Errorf("create entry %s: %w", filepath.Base(path), err)
	}
	if _, err := io.Copy(entry, src); err != nil {
		return fmt.Errorf("write entry %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Cleanup removes every artifact of a request from the scratch
// directory: assets, engine outputs, and the archive, whatever the
// outcome was.
func (r *Resolver) Cleanup(requestID string) {
	if requestID == "" {
		return
	}
	matches, err := filepath.Glob(filepath.Join(r.tempDir, requestID+"*"))
	if err != nil {
		return
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
			r.logger.Warn("failed to remove artifact", "path", m, "error", err)
		}
	}
}
