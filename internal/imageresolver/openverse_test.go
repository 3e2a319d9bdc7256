package imageresolver

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carplateapi/carplate-go/internal/conf"
	"github.com/carplateapi/carplate-go/internal/errors"
)

const testEndpoint = "https://api.openverse.test/v1/images"

func newTestSource(t *testing.T) *openverseSource {
	t.Helper()

	settings := &conf.Settings{Version: "test"}
	settings.Images.Provider = conf.ProviderSettings{
		Name:      "openverse",
		Endpoint:  testEndpoint,
		RateLimit: 100,
		Size:      "large",
		Color:     "orange",
		Licenses:  "commercial,modification",
		Category:  "photograph",
	}

	source := NewOpenverseSource(settings)
	httpmock.ActivateNonDefault(source.client)
	t.Cleanup(httpmock.DeactivateAndReset)

	return source
}

func TestOpenverseFetch(t *testing.T) {
	source := newTestSource(t)

	httpmock.RegisterResponder(http.MethodGet, testEndpoint+"/",
		func(req *http.Request) (*http.Response, error) {
			q := req.URL.Query()
			assert.Equal(t, "VOLVO 240", q.Get("q"))
			assert.Equal(t, "large", q.Get("size"))
			assert.Equal(t, "orange", q.Get("color"))
			assert.Equal(t, "commercial,modification", q.Get("license_type"))
			assert.Equal(t, "photograph", q.Get("category"))

			return httpmock.NewJsonResponse(http.StatusOK, map[string]any{
				"result_count": 1,
				"results": []map[string]any{
					{"url": "https://img.openverse.test/volvo.png"},
				},
			})
		})

	httpmock.RegisterResponder(http.MethodGet, "https://img.openverse.test/volvo.png",
		httpmock.NewBytesResponder(http.StatusOK, []byte("image-bytes")))

	image, err := source.Fetch(context.Background(), "VOLVO 240")
	require.NoError(t, err)
	require.NotNil(t, image)
	assert.Equal(t, "https://img.openverse.test/volvo.png", image.URL)
	assert.Equal(t, []byte("image-bytes"), image.Data)
	assert.Equal(t, "png", image.Ext)
}

func TestOpenverseFetchNoResults(t *testing.T) {
	source := newTestSource(t)

	httpmock.RegisterResponder(http.MethodGet, testEndpoint+"/",
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]any{
			"result_count": 0,
			"results":      []map[string]any{},
		}))

	image, err := source.Fetch(context.Background(), "UNKNOWN MODEL")
	require.NoError(t, err)
	assert.Nil(t, image)
}

func TestOpenverseFetchSearchFailure(t *testing.T) {
	source := newTestSource(t)

	httpmock.RegisterResponder(http.MethodGet, testEndpoint+"/",
		httpmock.NewStringResponder(http.StatusTooManyRequests, "rate limited"))

	_, err := source.Fetch(context.Background(), "VOLVO 240")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryImageFetch))
}

func TestOpenverseFetchDownloadFailure(t *testing.T) {
	source := newTestSource(t)

	httpmock.RegisterResponder(http.MethodGet, testEndpoint+"/",
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]any{
			"result_count": 1,
			"results": []map[string]any{
				{"url": "https://img.openverse.test/missing.jpg"},
			},
		}))

	httpmock.RegisterResponder(http.MethodGet, "https://img.openverse.test/missing.jpg",
		httpmock.NewStringResponder(http.StatusNotFound, "not found"))

	_, err := source.Fetch(context.Background(), "VOLVO 240")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryImageFetch))
}

func TestImageExtension(t *testing.T) {
	assert.Equal(t, "png", imageExtension("https://example.com/a/b/car.PNG", ""))
	assert.Equal(t, "jpg", imageExtension("https://example.com/car", "image/jpeg"))
	assert.Equal(t, "jpg", imageExtension("https://example.com/car", ""))
}
