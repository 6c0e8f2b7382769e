package imagefetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultTimeout is the default timeout for image downloads
	DefaultTimeout = 30 * time.Second
	// DefaultMaxSize is the default maximum image size (10MB)
	DefaultMaxSize = 10 * 1024 * 1024
)

var (
	ErrTooLarge    = errors.New("image too large")
	ErrNotAnImage  = errors.New("not an image")
	ErrUnsupported = errors.New("unsupported url")
)

// Image is downloaded image data with its MIME type.
type Image struct {
	Data     []byte
	MIMEType string
}

// Fetcher downloads screenshots by URL.
type Fetcher struct {
	client  *resty.Client
	maxSize int64
}

// NewFetcher creates a Fetcher with default settings.
func NewFetcher() *Fetcher {
	return &Fetcher{
		client:  resty.New().SetDebug(false).SetTimeout(DefaultTimeout),
		maxSize: DefaultMaxSize,
	}
}

// WithTimeout sets a custom timeout for downloads.
func (f *Fetcher) WithTimeout(timeout time.Duration) *Fetcher {
	f.client.SetTimeout(timeout)
	return f
}

// WithMaxSize sets a custom maximum image size.
func (f *Fetcher) WithMaxSize(maxSize int64) *Fetcher {
	f.maxSize = maxSize
	return f
}

// Fetch downloads an image. Only http and https URLs are accepted, the
// response must be an image and at most the configured size.
func (f *Fetcher) Fetch(ctx context.Context, imageURL string) (*Image, error) {
	if !strings.HasPrefix(imageURL, "http://") && !strings.HasPrefix(imageURL, "https://") {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, imageURL)
	}

	log.Info().Str("url", imageURL).Msg("downloading image")

	res, err := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(imageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	body := res.RawBody()
	defer body.Close()

	if res.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("download failed: status %d", res.StatusCode())
	}

	if res.RawResponse.ContentLength > f.maxSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d bytes", ErrTooLarge, res.RawResponse.ContentLength, f.maxSize)
	}

	// LimitReader enforces the size limit even if Content-Length is missing or wrong
	data, err := io.ReadAll(io.LimitReader(body, f.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if int64(len(data)) > f.maxSize {
		return nil, fmt.Errorf("%w: exceeds limit of %d bytes", ErrTooLarge, f.maxSize)
	}

	mimeType, err := DetectMIMEType(res.Header().Get("Content-Type"), data)
	if err != nil {
		return nil, err
	}

	return &Image{Data: data, MIMEType: mimeType}, nil
}

// DetectMIMEType returns the image MIME type from a declared content type,
// falling back to sniffing the data when the declaration is missing or
// generic. Non-image content is rejected with ErrNotAnImage.
func DetectMIMEType(declared string, data []byte) (string, error) {
	if declared != "" {
		if mediaType, _, err := mime.ParseMediaType(declared); err == nil && strings.HasPrefix(mediaType, "image/") {
			return mediaType, nil
		}
	}

	sniffed := http.DetectContentType(data)
	if strings.HasPrefix(sniffed, "image/") {
		return sniffed, nil
	}

	if declared == "" {
		declared = sniffed
	}
	return "", fmt.Errorf("%w: got %s", ErrNotAnImage, declared)
}
