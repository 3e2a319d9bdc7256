package imageresolver

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"runtime"
	"strings"
	"time"

	"github.com/antonholmquist/jason"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/carplateapi/carplate-go/internal/conf"
	"github.com/carplateapi/carplate-go/internal/errors"
)

const (
	openverseProviderName = "openverse"

	// User-Agent constants following the Openverse API usage guidelines
	userAgentName    = "CarplateAPI"
	userAgentContact = "https://github.com/carplateapi/carplate-go"
	userAgentLibrary = "Go-HTTP-Client"

	// maxImageSize caps downloads so a misbehaving provider cannot fill the disk.
	maxImageSize = 20 << 20 // 20 MiB
)

// openverseSource implements the ImageSource interface for the Openverse
// image search API.
type openverseSource struct {
	endpoint  string
	size      string
	color     string
	licenses  string
	category  string
	limiter   *rate.Limiter
	client    *http.Client
	userAgent string
	debug     bool
}

// buildUserAgent constructs a user-agent string identifying this client.
// Format: <client name>/<version> (<contact information>) <library name>/<version>
func buildUserAgent(appVersion string) string {
	if appVersion == "" {
		appVersion = "unknown"
	}

	return fmt.Sprintf("%s/%s (%s) %s/%s",
		userAgentName, appVersion, userAgentContact, userAgentLibrary, runtime.Version())
}

// NewOpenverseSource creates a new Openverse image source from the provider
// settings in the application configuration.
func NewOpenverseSource(settings *conf.Settings) *openverseSource {
	provider := settings.Images.Provider
	logger := imageResolverLogger.With("provider", openverseProviderName)

	rps := provider.RateLimit
	if rps <= 0 {
		rps = 2
	}

	logger.Info("Initializing Openverse image source",
		"endpoint", provider.Endpoint,
		"rate_limit_rps", rps)

	return &openverseSource{
		endpoint:  provider.Endpoint,
		size:      provider.Size,
		color:     provider.Color,
		licenses:  provider.Licenses,
		category:  provider.Category,
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
		client:    &http.Client{Timeout: 20 * time.Second},
		userAgent: buildUserAgent(settings.Version),
		debug:     settings.Images.Debug,
	}
}

// Name returns the provider identifier.
func (s *openverseSource) Name() string {
	return openverseProviderName
}

// Fetch searches Openverse for an image of the given car model and downloads
// the best match. It returns (nil, nil) when the search yields no results.
func (s *openverseSource) Fetch(ctx context.Context, model string) (*CarImage, error) {
	reqID := uuid.New().String()
	logger := imageResolverLogger.With("provider", openverseProviderName, "request_id", reqID, "model", model)

	imageURL, err := s.search(ctx, reqID, model)
	if err != nil {
		return nil, err
	}
	if imageURL == "" {
		logger.Info("Image search returned no results")
		return nil, nil
	}

	if s.debug {
		logger.Debug("Downloading image", "url", imageURL)
	}

	data, ext, err := s.download(ctx, reqID, imageURL)
	if err != nil {
		return nil, err
	}

	logger.Info("Image fetched",
		"url", imageURL,
		"bytes", len(data),
		"ext", ext)

	return &CarImage{URL: imageURL, Data: data, Ext: ext}, nil
}

// search queries the Openverse search API and returns the URL of the first
// result, or an empty string when the search produced no results.
func (s *openverseSource) search(ctx context.Context, reqID, model string) (string, error) {
	logger := imageResolverLogger.With("provider", openverseProviderName, "request_id", reqID)

	if err := s.limiter.Wait(ctx); err != nil {
		return "", errors.New(err).
			Component("imageresolver").
			Category(errors.CategoryNetwork).
			Context("provider", openverseProviderName).
			Context("request_id", reqID).
			Context("operation", "rate_limiter_wait").
			Build()
	}

	params := url.Values{}
	params.Set("q", model)
	params.Set("page_size", "1")
	if s.size != "" {
		params.Set("size", s.size)
	}
	if s.color != "" {
		params.Set("color", s.color)
	}
	if s.licenses != "" {
		params.Set("license_type", s.licenses)
	}
	if s.category != "" {
		params.Set("category", s.category)
	}

	searchURL := strings.TrimRight(s.endpoint, "/") + "/?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, http.NoBody)
	if err != nil {
		return "", errors.New(err).
			Component("imageresolver").
			Category(errors.CategoryNetwork).
			Context("provider", openverseProviderName).
			Context("request_id", reqID).
			Context("operation", "build_search_request").
			Build()
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", errors.New(err).
			Component("imageresolver").
			Category(errors.CategoryNetwork).
			Context("provider", openverseProviderName).
			Context("request_id", reqID).
			Context("operation", "search_request").
			Build()
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.Debug("Failed to close search response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", errors.Newf("image search returned status %d", resp.StatusCode).
			Component("imageresolver").
			Category(errors.CategoryImageFetch).
			Context("provider", openverseProviderName).
			Context("request_id", reqID).
			Context("operation", "search_request").
			Context("status_code", resp.StatusCode).
			Context("response_body", string(body)).
			Build()
	}

	obj, err := jason.NewObjectFromReader(resp.Body)
	if err != nil {
		return "", errors.New(err).
			Component("imageresolver").
			Category(errors.CategoryImageFetch).
			Context("provider", openverseProviderName).
			Context("request_id", reqID).
			Context("operation", "parse_search_response").
			Build()
	}

	results, err := obj.GetObjectArray("results")
	if err != nil {
		return "", errors.New(err).
			Component("imageresolver").
			Category(errors.CategoryImageFetch).
			Context("provider", openverseProviderName).
			Context("request_id", reqID).
			Context("operation", "extract_results").
			Build()
	}

	if len(results) == 0 {
		return "", nil
	}

	imageURL, err := results[0].GetString("url")
	if err != nil || imageURL == "" {
		return "", errors.Newf("image search result missing url field").
			Component("imageresolver").
			Category(errors.CategoryImageFetch).
			Context("provider", openverseProviderName).
			Context("request_id", reqID).
			Context("operation", "extract_result_url").
			Build()
	}

	return imageURL, nil
}

// download retrieves the image bytes behind the given URL and derives a file
// extension for it.
func (s *openverseSource) download(ctx context.Context, reqID, imageURL string) (data []byte, ext string, err error) {
	logger := imageResolverLogger.With("provider", openverseProviderName, "request_id", reqID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, http.NoBody)
	if err != nil {
		return nil, "", errors.New(err).
			Component("imageresolver").
			Category(errors.CategoryNetwork).
			Context("provider", openverseProviderName).
			Context("request_id", reqID).
			Context("operation", "build_download_request").
			Build()
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", errors.New(err).
			Component("imageresolver").
			Category(errors.CategoryNetwork).
			Context("provider", openverseProviderName).
			Context("request_id", reqID).
			Context("operation", "download_request").
			Build()
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.Debug("Failed to close download response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, "", errors.Newf("image download returned status %d", resp.StatusCode).
			Component("imageresolver").
			Category(errors.CategoryImageFetch).
			Context("provider", openverseProviderName).
			Context("request_id", reqID).
			Context("operation", "download_request").
			Context("status_code", resp.StatusCode).
			Context("url", imageURL).
			Build()
	}

	data, err = io.ReadAll(io.LimitReader(resp.Body, maxImageSize))
	if err != nil {
		return nil, "", errors.New(err).
			Component("imageresolver").
			Category(errors.CategoryImageFetch).
			Context("provider", openverseProviderName).
			Context("request_id", reqID).
			Context("operation", "read_download_body").
			Build()
	}

	return data, imageExtension(imageURL, resp.Header.Get("Content-Type")), nil
}

// imageExtension derives a file extension from the image URL, falling back to
// the response content type and finally to jpg.
func imageExtension(imageURL, contentType string) string {
	if u, err := url.Parse(imageURL); err == nil {
		if ext := strings.TrimPrefix(path.Ext(u.Path), "."); ext != "" {
			return strings.ToLower(ext)
		}
	}

	if contentType != "" {
		if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
			switch mediaType {
			case "image/jpeg":
				return "jpg"
			case "image/png":
				return "png"
			case "image/gif":
				return "gif"
			case "image/webp":
				return "webp"
			}
		}
	}

	return "jpg"
}
