package cot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultReportURL is the CFTC legacy futures-only COT report.
const DefaultReportURL = "https://www.cftc.gov/dea/newcot/deacot.txt"

// Fetcher retrieves a raw COT report.
type Fetcher interface {
	Name() string
	FetchReport(ctx context.Context) (io.ReadCloser, error)
}

// HTTPFetcher downloads the report from the CFTC site.
type HTTPFetcher struct {
	URL    string
	Client *http.Client
}

// NewHTTPFetcher creates a fetcher against url (DefaultReportURL when empty).
func NewHTTPFetcher(url string) *HTTPFetcher {
	if url == "" {
		url = DefaultReportURL
	}
	return &HTTPFetcher{
		URL:    url,
		Client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (h *HTTPFetcher) Name() string { return "cftc" }

func (h *HTTPFetcher) FetchReport(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch cot report: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch cot report: status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// MockFetcher serves a fixed report body for development and testing.
type MockFetcher struct {
	Report string
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchReport(_ context.Context) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(m.Report)), nil
}
