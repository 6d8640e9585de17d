package library

import (
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"github.com/lumenview/lumenview/types"
)

const defaultScanWorkers = 8

var supportedExtensions = []string{"jpg", "jpeg", "png", "gif", "webp", "bmp"}

type Manager struct {
	logger      types.Logger
	cache       types.MetadataCache
	broker      types.EventBroker
	scanWorkers int
}

func NewManager(config types.ConfigManager, logger types.Logger, cache types.MetadataCache, broker types.EventBroker) *Manager {
	workers := defaultScanWorkers
	if libCfg := config.GetConfig().Library; libCfg != nil && libCfg.ScanWorkers > 0 {
		workers = libCfg.ScanWorkers
	}

	return &Manager{
		logger:      logger,
		cache:       cache,
		broker:      broker,
		scanWorkers: workers,
	}
}

func (m *Manager) BrowseFolder(ctx context.Context, path string) ([]types.FileEntry, error) {
	if path == "" {
		return nil, types.ErrLibraryPathInvalid
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, types.Errorf(types.ErrLibraryPathInvalid, "stat %s: %v", path, err)
	}
	if !info.IsDir() {
		return nil, types.Errorf(types.ErrLibraryNotFolder, "path: %s", path)
	}

	dirEntries, err := os.ReadDir(path)
	if err != nil {
		return nil, types.WrapError(err, "failed to read folder")
	}

	entries := make([]types.FileEntry, 0, len(dirEntries))
	for _, de := range dirEntries {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if strings.HasPrefix(de.Name(), ".") {
			continue
		}

		entry := types.FileEntry{
			Name:        de.Name(),
			Path:        filepath.Join(path, de.Name()),
			IsDirectory: de.IsDir(),
		}

		if !de.IsDir() {
			entry.IsImage = isSupportedImage(de.Name())
			if fi, err := de.Info(); err == nil {
				entry.Size = uint64(fi.Size())
				entry.LastModified = fingerprintFor(fi.ModTime())
			}
		}

		entries = append(entries, entry)
	}

	// Directories first, then files, each group alphabetical.
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].IsDirectory != entries[j].IsDirectory {
			return entries[i].IsDirectory
		}
		return strings.ToLower(entries[i].Name) < strings.ToLower(entries[j].Name)
	})

	if m.broker != nil {
		m.broker.Publish(types.EventFolderOpened, map[string]interface{}{
			"path":    path,
			"entries": len(entries),
		})
	}

	return entries, nil
}

func (m *Manager) ReadImage(ctx context.Context, path string) (*types.ImageData, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if !isSupportedImage(path) {
		return nil, types.Errorf(types.ErrLibraryNotImage, "path: %s", path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, types.Errorf(types.ErrLibraryPathInvalid, "stat %s: %v", path, err)
	}
	if info.IsDir() {
		return nil, types.Errorf(types.ErrLibraryNotImage, "path is a folder: %s", path)
	}

	fingerprint := fingerprintFor(info.ModTime())

	dims, err := m.cache.Get(path, fingerprint)
	if err != nil {
		m.logger.Debug("Cache lookup failed, decoding from file",
			zap.String("path", path), zap.Error(err))
		dims = nil
	}

	if dims == nil {
		decoded, err := decodeDimensions(path)
		if err != nil {
			return nil, err
		}
		dims = decoded

		if err := m.cache.Set(path, fingerprint, dims.Width, dims.Height, uint64(info.Size())); err != nil {
			m.logger.Debug("Cache store failed", zap.String("path", path), zap.Error(err))
		}
	}

	data := &types.ImageData{
		ID:           uuid.NewString(),
		Name:         filepath.Base(path),
		Path:         path,
		Dimensions:   *dims,
		FileSize:     uint64(info.Size()),
		LastModified: fingerprint,
	}

	if m.broker != nil {
		m.broker.Publish(types.EventImageLoaded, map[string]interface{}{
			"path":   path,
			"width":  dims.Width,
			"height": dims.Height,
		})
	}

	return data, nil
}

func (m *Manager) ReadFolderImages(ctx context.Context, path string) ([]types.ImageData, error) {
	entries, err := m.BrowseFolder(ctx, path)
	if err != nil {
		return nil, err
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(m.scanWorkers)

	var mu sync.Mutex
	images := make([]types.ImageData, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDirectory || !entry.IsImage {
			continue
		}

		entry := entry
		g.Go(func() error {
			data, err := m.ReadImage(gCtx, entry.Path)
			if err != nil {
				// Unreadable or corrupt files are skipped, not fatal.
				m.logger.Debug("Skipping unreadable image",
					zap.String("path", entry.Path), zap.Error(err))
				return nil
			}

			mu.Lock()
			images = append(images, *data)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(images, func(i, j int) bool {
		return strings.ToLower(images[i].Name) < strings.ToLower(images[j].Name)
	})

	return images, nil
}

func (m *Manager) SupportedTypes() []string {
	out := make([]string, len(supportedExtensions))
	copy(out, supportedExtensions)
	return out
}

// fingerprintFor renders a file's mtime at second resolution. Filesystems
// round mtimes differently across copies, so sub-second precision would
// invalidate cache entries that are in fact still valid.
func fingerprintFor(mtime time.Time) string {
	return mtime.UTC().Truncate(time.Second).Format("2006-01-02T15:04:05Z07:00")
}

func decodeDimensions(path string) (*types.ImageDimensions, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, types.WrapError(err, "failed to open image")
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return nil, types.Errorf(types.ErrLibraryDecodeFailed, "path %s: %v", path, err)
	}

	if cfg.Width < 0 || cfg.Height < 0 {
		return nil, types.Errorf(types.ErrLibraryDecodeFailed, "negative dimensions for %s", path)
	}

	return &types.ImageDimensions{
		Width:  uint32(cfg.Width),
		Height: uint32(cfg.Height),
	}, nil
}

func isSupportedImage(name string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	for _, supported := range supportedExtensions {
		if ext == supported {
			return true
		}
	}
	return false
}
