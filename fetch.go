package artstyle

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// FetchOpts configures a remote image download.
type FetchOpts struct {
	MaxBytes  int64         // max response body size (default: 20MB)
	Timeout   time.Duration // per-request timeout (default: 30s)
	UserAgent string        // override config user agent
}

const (
	defaultFetchMaxBytes = 20 << 20
	defaultFetchTimeout  = 30 * time.Second
)

// FetchResult holds downloaded image data.
type FetchResult struct {
	Data     []byte
	MIMEType string
	Filename string // last path segment of the image URL, used as the filename hint

	SourceURL   string // URL as requested
	ImageURL    string // URL the image bytes came from; differs for gallery pages
	PageLicense string // Creative Commons license declared by a gallery page
}

// Fetch downloads an image from rawURL with cfg.HTTPClient. An HTML page is
// followed once to its og:image. Non-200 responses, other content types and
// oversized bodies are ErrFetch.
func (cfg *Config) Fetch(ctx context.Context, rawURL string, opts FetchOpts) (*FetchResult, error) {
	cfg.defaults()

	if opts.MaxBytes <= 0 {
		opts.MaxBytes = defaultFetchMaxBytes
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultFetchTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = cfg.UserAgent
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	data, ct, err := cfg.get(ctx, rawURL, opts)
	if err != nil {
		return nil, err
	}
	res := &FetchResult{SourceURL: rawURL, ImageURL: rawURL}

	if ct == "text/html" {
		page := string(data)
		imgURL := ExtractOGImageURL(page, rawURL)
		if imgURL == "" {
			return nil, errors.Wrapf(ErrFetch, "%s: page has no og:image", rawURL)
		}
		res.ImageURL = imgURL
		res.PageLicense = ExtractCCLicense(page)
		cfg.Logger.Debug("artstyle: following gallery page", "page", rawURL, "image", imgURL)

		if data, ct, err = cfg.get(ctx, imgURL, opts); err != nil {
			return nil, err
		}
	}
	if !strings.HasPrefix(ct, "image/") {
		return nil, errors.Wrapf(ErrFetch, "%s: content type %q is not an image", res.ImageURL, ct)
	}

	res.Data, res.MIMEType, res.Filename = data, ct, urlFilename(res.ImageURL)
	return res, nil
}

// get performs one GET and returns the body and its bare MIME type.
func (cfg *Config) get(ctx context.Context, rawURL string, opts FetchOpts) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", errors.Wrapf(ErrFetch, "build request: %v", err)
	}
	req.Header.Set("User-Agent", opts.UserAgent)

	resp, err := cfg.HTTPClient.Do(req) //nolint:gosec // URL is caller-supplied
	if err != nil {
		return nil, "", errors.Wrapf(ErrFetch, "%s: %v", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", errors.Wrapf(ErrFetch, "%s: status %d", rawURL, resp.StatusCode)
	}

	ct := resp.Header.Get("Content-Type")
	// Strip MIME parameters: "image/jpeg; charset=utf-8" → "image/jpeg"
	if idx := strings.IndexByte(ct, ';'); idx >= 0 {
		ct = strings.TrimSpace(ct[:idx])
	}
	if !strings.HasPrefix(ct, "image/") && ct != "text/html" {
		return nil, "", errors.Wrapf(ErrFetch, "%s: content type %q is not an image", rawURL, ct)
	}

	// Read one byte past the limit to detect truncation.
	data, err := io.ReadAll(io.LimitReader(resp.Body, opts.MaxBytes+1))
	if err != nil {
		return nil, "", errors.Wrapf(ErrFetch, "%s: read body: %v", rawURL, err)
	}
	if int64(len(data)) > opts.MaxBytes {
		return nil, "", errors.Wrapf(ErrFetch, "%s: larger than %d bytes", rawURL, opts.MaxBytes)
	}
	return data, ct, nil
}

func urlFilename(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if base == "/" || base == "." {
		return ""
	}
	if unescaped, err := url.PathUnescape(base); err == nil {
		return unescaped
	}
	return base
}

// ClassifyURL downloads an image and classifies it with the configured
// strategy, using the URL's last path segment as the filename hint.
func (s *Service) ClassifyURL(ctx context.Context, rawURL string) (ClassificationResult, error) {
	r, err := s.cfg.Fetch(ctx, rawURL, FetchOpts{})
	if err != nil {
		return ClassificationResult{}, err
	}
	return s.Classify(ctx, r.Data, r.Filename)
}

// AnalyzeURL downloads an image, analyzes it and assesses its reuse rights
// from the source URL, the page license and the embedded metadata.
func (s *Service) AnalyzeURL(ctx context.Context, rawURL string) (*ImageAnalysis, error) {
	r, err := s.cfg.Fetch(ctx, rawURL, FetchOpts{})
	if err != nil {
		return nil, err
	}
	a, err := s.Analyze(r.Data)
	if err != nil {
		return nil, err
	}
	rights := AssessRights(r.SourceURL, r.PageLicense, a.Metadata)
	if rights.Rights == RightsUnknown && r.ImageURL != r.SourceURL {
		rights = AssessRights(r.ImageURL, r.PageLicense, a.Metadata)
	}
	a.Rights = &rights
	return a, nil
}
