// Package source retrieves the raw bytes behind a descriptor URL: http(s),
// s3://bucket/key, file:// or a plain local path.
package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/brightpath-solar/siteimg/pkg/errors"
	"github.com/gabriel-vasile/mimetype"
)

const userAgent = "siteimg/1.0 (+image-fetcher)"

// FetchError reports a failed retrieval: the request could not be made,
// the remote answered with a non-success status, or the body was unusable.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ObjectDownloader reads objects from a bucket store.
type ObjectDownloader interface {
	Download(ctx context.Context, bucket, key string, maxSize int64) ([]byte, error)
}

// Payload is a retrieved body plus its sniffed content type.
type Payload struct {
	Data        []byte
	ContentType string
}

// Retriever dispatches a descriptor URL to the matching transport.
type Retriever struct {
	httpClient *http.Client
	objects    ObjectDownloader
	maxSize    int64
}

// NewRetriever builds a Retriever. objects may be nil when no descriptor
// uses s3:// URLs.
func NewRetriever(httpClient *http.Client, objects ObjectDownloader, maxSize int64) *Retriever {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Retriever{
		httpClient: httpClient,
		objects:    objects,
		maxSize:    maxSize,
	}
}

// Retrieve fetches rawURL. Every failure is returned as a *FetchError.
func (r *Retriever) Retrieve(ctx context.Context, rawURL string) (*Payload, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: errors.Wrap(err, "parse url")}
	}

	var data []byte
	switch scheme := strings.ToLower(u.Scheme); {
	case scheme == "http" || scheme == "https":
		data, err = r.retrieveHTTP(ctx, rawURL)
	case scheme == "s3":
		data, err = r.retrieveObject(ctx, u)
	case scheme == "file":
		data, err = r.retrieveFile(u.Path)
	case scheme == "" || len(scheme) == 1:
		// Bare paths, including Windows drive letters.
		data, err = r.retrieveFile(rawURL)
	default:
		err = fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			return nil, fe
		}
		return nil, &FetchError{URL: rawURL, Err: err}
	}

	return &Payload{
		Data:        data,
		ContentType: mimetype.Detect(data).String(),
	}, nil
}

func (r *Retriever) retrieveHTTP(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("User-Agent", userAgent)

	slog.Info("http_fetch_start", "url", rawURL)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	if resp.ContentLength > r.maxSize {
		return nil, fmt.Errorf("content length %d exceeds max %d", resp.ContentLength, r.maxSize)
	}

	data, err := r.readLimited(resp.Body)
	if err != nil {
		return nil, err
	}

	slog.Info("http_fetch_complete", "url", rawURL, "status", resp.StatusCode, "size_kb", len(data)/1024)
	return data, nil
}

func (r *Retriever) retrieveObject(ctx context.Context, u *url.URL) ([]byte, error) {
	if r.objects == nil {
		return nil, fmt.Errorf("no S3 client configured")
	}
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("s3 url must look like s3://bucket/key")
	}
	return r.objects.Download(ctx, bucket, key, r.maxSize)
}

func (r *Retriever) retrieveFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open source file")
	}
	defer f.Close()
	return r.readLimited(f)
}

func (r *Retriever) readLimited(body io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, r.maxSize+1))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	if int64(len(data)) > r.maxSize {
		return nil, fmt.Errorf("body exceeds max size %d", r.maxSize)
	}
	return data, nil
}
