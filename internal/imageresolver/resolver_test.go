package imageresolver

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carplateapi/carplate-go/internal/conf"
	"github.com/carplateapi/carplate-go/internal/errors"
)

// mockSource is a controllable ImageSource for resolver tests.
type mockSource struct {
	image      *CarImage
	err        error
	fetchCount atomic.Int32
}

func (m *mockSource) Fetch(ctx context.Context, model string) (*CarImage, error) {
	m.fetchCount.Add(1)
	return m.image, m.err
}

func (m *mockSource) Name() string { return "mock" }

func newTestResolver(t *testing.T, source ImageSource) (*Resolver, string) {
	t.Helper()

	cacheDir := t.TempDir()
	settings := &conf.Settings{}
	settings.Images.CacheDir = cacheDir
	settings.Images.DefaultImage = "404.jpg"

	resolver, err := New(settings, source, nil)
	require.NoError(t, err)

	return resolver, cacheDir
}

func TestResolveDiskCacheHit(t *testing.T) {
	source := &mockSource{}
	resolver, cacheDir := newTestResolver(t, source)

	cached := filepath.Join(cacheDir, "VOLVO_240.jpg")
	require.NoError(t, os.WriteFile(cached, []byte("img"), 0o644))

	ref, err := resolver.Resolve(context.Background(), "Volvo 240")
	require.NoError(t, err)
	assert.Equal(t, filepath.ToSlash(cached), ref)
	assert.Zero(t, source.fetchCount.Load(), "source should not be consulted on a cache hit")
}

func TestResolveSentinelModelHitsCache(t *testing.T) {
	source := &mockSource{}
	resolver, cacheDir := newTestResolver(t, source)

	// The sentinel file doubles as a cache entry for the literal model "404".
	sentinel := filepath.Join(cacheDir, "404.jpg")
	require.NoError(t, os.WriteFile(sentinel, []byte("sentinel"), 0o644))

	ref, err := resolver.Resolve(context.Background(), "404")
	require.NoError(t, err)
	assert.Equal(t, filepath.ToSlash(sentinel), ref)
	assert.Zero(t, source.fetchCount.Load())
}

func TestResolvePicksLexicographicallyLastExtension(t *testing.T) {
	source := &mockSource{}
	resolver, cacheDir := newTestResolver(t, source)

	require.NoError(t, os.WriteFile(filepath.Join(cacheDir, "SAAB_900.jpg"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cacheDir, "SAAB_900.png"), []byte("b"), 0o644))

	ref, err := resolver.Resolve(context.Background(), "Saab 900")
	require.NoError(t, err)
	assert.Equal(t, filepath.ToSlash(filepath.Join(cacheDir, "SAAB_900.png")), ref)
}

func TestResolveFetchesAndStores(t *testing.T) {
	source := &mockSource{image: &CarImage{URL: "http://example.com/a.png", Data: []byte("png-bytes"), Ext: "png"}}
	resolver, cacheDir := newTestResolver(t, source)

	ref, err := resolver.Resolve(context.Background(), "Lada Niva")
	require.NoError(t, err)

	expected := filepath.Join(cacheDir, "LADA_NIVA.png")
	assert.Equal(t, filepath.ToSlash(expected), ref)

	data, err := os.ReadFile(expected)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)

	// Second resolution is served from cache.
	ref2, err := resolver.Resolve(context.Background(), "Lada Niva")
	require.NoError(t, err)
	assert.Equal(t, ref, ref2)
	assert.EqualValues(t, 1, source.fetchCount.Load())
}

func TestResolveFallsBackToDefault(t *testing.T) {
	source := &mockSource{} // no image, no error
	resolver, _ := newTestResolver(t, source)

	ref, err := resolver.Resolve(context.Background(), "Unobtainium GT")
	require.NoError(t, err)
	assert.Equal(t, resolver.DefaultRef(), ref)
	assert.EqualValues(t, 1, source.fetchCount.Load())
}

func TestResolvePropagatesSourceError(t *testing.T) {
	fetchErr := errors.Newf("provider unavailable").
		Component("imageresolver").
		Category(errors.CategoryImageFetch).
		Build()
	source := &mockSource{err: fetchErr}
	resolver, _ := newTestResolver(t, source)

	_, err := resolver.Resolve(context.Background(), "Lada Niva")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryImageFetch))
}

func TestResolveEmptyModel(t *testing.T) {
	resolver, _ := newTestResolver(t, &mockSource{})

	_, err := resolver.Resolve(context.Background(), "   ")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
}

func TestNewUnusableCacheDir(t *testing.T) {
	// A regular file where the cache directory should be makes MkdirAll fail.
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	settings := &conf.Settings{}
	settings.Images.CacheDir = blocker
	settings.Images.DefaultImage = "404.jpg"

	_, err := New(settings, &mockSource{}, nil)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryImageCache))
}
