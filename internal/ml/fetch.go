package ml

import (
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// ArtifactFetcher downloads serialized model artifacts from a model store
// exposed over HTTP, for deployments that do not ship artifacts on disk.
type ArtifactFetcher struct {
	rest *resty.Client
}

// NewArtifactFetcher creates a fetcher with the given request timeout.
func NewArtifactFetcher(timeout time.Duration) *ArtifactFetcher {
	r := resty.New().
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(10 * time.Second) // default fallback
	}
	return &ArtifactFetcher{rest: r}
}

// Fetch retrieves an artifact by URL and returns its raw bytes.
func (f *ArtifactFetcher) Fetch(url string) ([]byte, error) {
	resp, err := f.rest.R().Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch artifact: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch artifact: %s returned %s", url, resp.Status())
	}
	return resp.Body(), nil
}
