package imageresolver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/carplateapi/carplate-go/internal/conf"
	"github.com/carplateapi/carplate-go/internal/errors"
	"github.com/carplateapi/carplate-go/internal/observability/metrics"
	"github.com/carplateapi/carplate-go/internal/registration"
)

const (
	// memoTTL bounds how long a resolved image reference is kept in memory
	// before the disk cache is consulted again.
	memoTTL       = 1 * time.Hour
	memoCleanup   = 10 * time.Minute
	cacheFileMode = 0o644
)

// Resolver resolves car models to image file references. Resolution is
// cache-first: an image already present in the cache directory is reused,
// otherwise the configured ImageSource is consulted and the result written
// to the cache. Models for which the source finds nothing resolve to the
// configured default image.
type Resolver struct {
	source       ImageSource
	cacheDir     string
	defaultImage string
	memo         *gocache.Cache
	group        singleflight.Group
	metrics      *metrics.ImageResolverMetrics
	debug        bool
}

// New creates a Resolver using the image settings from the application
// configuration. The cache directory is created if it does not exist.
func New(settings *conf.Settings, source ImageSource, m *metrics.ImageResolverMetrics) (*Resolver, error) {
	cacheDir := settings.Images.CacheDir

	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, errors.New(err).
			Component("imageresolver").
			Category(errors.CategoryImageCache).
			Context("operation", "create_cache_dir").
			Context("cache_dir", cacheDir).
			Build()
	}

	imageResolverLogger.Info("Image resolver initialized",
		"cache_dir", cacheDir,
		"default_image", settings.Images.DefaultImage,
		"source", source.Name())

	return &Resolver{
		source:       source,
		cacheDir:     cacheDir,
		defaultImage: settings.Images.DefaultImage,
		memo:         gocache.New(memoTTL, memoCleanup),
		metrics:      m,
		debug:        settings.Images.Debug,
	}, nil
}

// DefaultRef returns the image reference used when no image can be found.
func (r *Resolver) DefaultRef() string {
	return filepath.ToSlash(filepath.Join(r.cacheDir, r.defaultImage))
}

// Resolve returns an image reference for the given car model. Concurrent
// resolutions of the same model are collapsed into a single lookup.
func (r *Resolver) Resolve(ctx context.Context, model string) (string, error) {
	key := registration.CacheKey(model)
	if key == "" {
		return "", errors.Newf("cannot resolve image for empty model").
			Component("imageresolver").
			Category(errors.CategoryValidation).
			Context("operation", "resolve").
			Build()
	}

	ref, err, _ := r.group.Do(key, func() (any, error) {
		return r.resolve(ctx, key, model)
	})
	if err != nil {
		return "", err
	}
	return ref.(string), nil
}

func (r *Resolver) resolve(ctx context.Context, key, model string) (string, error) {
	logger := imageResolverLogger.With("model", model, "cache_key", key)

	if cached, found := r.memo.Get(key); found {
		if r.debug {
			logger.Debug("Image reference found in memory cache", "ref", cached)
		}
		r.incrementCacheHits()
		return cached.(string), nil
	}

	if ref, found, err := r.lookupDisk(key); err != nil {
		return "", err
	} else if found {
		if r.debug {
			logger.Debug("Image found in disk cache", "ref", ref)
		}
		r.incrementCacheHits()
		r.memo.SetDefault(key, ref)
		return ref, nil
	}

	r.incrementCacheMisses()
	logger.Info("Image not cached, querying source", "source", r.source.Name())

	start := time.Now()
	image, err := r.source.Fetch(ctx, model)
	if err != nil {
		r.incrementDownloadErrors()
		return "", err
	}

	if image == nil {
		logger.Info("No image found, using default", "default", r.DefaultRef())
		r.incrementDefaultFallbacks()
		ref := r.DefaultRef()
		r.memo.SetDefault(key, ref)
		return ref, nil
	}

	ref, err := r.store(key, image)
	if err != nil {
		return "", err
	}

	r.incrementImageDownloads()
	r.observeDownloadDuration(time.Since(start).Seconds())
	logger.Info("Image cached", "ref", ref, "url", image.URL, "duration_ms", time.Since(start).Milliseconds())

	r.memo.SetDefault(key, ref)
	return ref, nil
}

// lookupDisk scans the cache directory for a file named key.<ext>. When
// multiple extensions exist for the same key the lexicographically last
// match wins, so repeated lookups are deterministic.
func (r *Resolver) lookupDisk(key string) (ref string, found bool, err error) {
	matches, err := filepath.Glob(filepath.Join(r.cacheDir, key+".*"))
	if err != nil {
		return "", false, errors.New(err).
			Component("imageresolver").
			Category(errors.CategoryImageCache).
			Context("operation", "glob_cache_dir").
			Context("cache_dir", r.cacheDir).
			Context("cache_key", key).
			Build()
	}

	if len(matches) == 0 {
		return "", false, nil
	}

	sort.Strings(matches)
	return filepath.ToSlash(matches[len(matches)-1]), true, nil
}

// store writes a fetched image into the cache directory. The write goes
// through a temp file and rename so a concurrent reader never observes a
// partial image.
func (r *Resolver) store(key string, image *CarImage) (string, error) {
	ext := image.Ext
	if ext == "" {
		ext = "jpg"
	}

	target := filepath.Join(r.cacheDir, fmt.Sprintf("%s.%s", key, ext))

	tmp, err := os.CreateTemp(r.cacheDir, key+".tmp-*")
	if err != nil {
		return "", errors.New(err).
			Component("imageresolver").
			Category(errors.CategoryFileIO).
			Context("operation", "create_temp_image").
			Context("cache_dir", r.cacheDir).
			Build()
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(image.Data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", errors.New(err).
			Component("imageresolver").
			Category(errors.CategoryFileIO).
			Context("operation", "write_temp_image").
			Context("path", tmpName).
			Build()
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", errors.New(err).
			Component("imageresolver").
			Category(errors.CategoryFileIO).
			Context("operation", "close_temp_image").
			Context("path", tmpName).
			Build()
	}

	if err := os.Chmod(tmpName, cacheFileMode); err != nil {
		imageResolverLogger.Debug("Failed to set image file mode", "path", tmpName, "error", err)
	}

	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return "", errors.New(err).
			Component("imageresolver").
			Category(errors.CategoryFileIO).
			Context("operation", "rename_temp_image").
			Context("path", target).
			Build()
	}

	return filepath.ToSlash(target), nil
}

func (r *Resolver) incrementCacheHits() {
	if r.metrics != nil {
		r.metrics.IncrementCacheHits()
	}
}

func (r *Resolver) incrementCacheMisses() {
	if r.metrics != nil {
		r.metrics.IncrementCacheMisses()
	}
}

func (r *Resolver) incrementImageDownloads() {
	if r.metrics != nil {
		r.metrics.IncrementImageDownloads()
	}
}

func (r *Resolver) incrementDownloadErrors() {
	if r.metrics != nil {
		r.metrics.IncrementDownloadErrors()
	}
}

func (r *Resolver) incrementDefaultFallbacks() {
	if r.metrics != nil {
		r.metrics.IncrementDefaultFallbacks()
	}
}

func (r *Resolver) observeDownloadDuration(seconds float64) {
	if r.metrics != nil {
		r.metrics.ObserveDownloadDuration(seconds)
	}
}
