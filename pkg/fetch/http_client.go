package fetch

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/valyala/fasthttp"

	"pricewatch-go/pkg/logger"
)

// NetworkError covers transport failures and non-success HTTP statuses.
// StatusCode is zero when the request never completed.
type NetworkError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// PageFetcher retrieves raw product-page markup. The HTTP client
// implements it for production; tests swap in a counting stub.
type PageFetcher interface {
	FetchPage(ctx context.Context, pageURL string) ([]byte, error)
}

const (
	defaultFetchTimeout = 15 * time.Second
	// Pages shorter than this are bot walls or empty shells, not
	// product pages worth parsing.
	minBodyLen = 100
)

// HTTPClient is a shared fasthttp client with browser-like headers.
type HTTPClient struct {
	client     *fasthttp.Client
	timeout    time.Duration
	userAgents []string
	log        *logger.Logger
}

func NewHTTPClient(timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &HTTPClient{
		client: &fasthttp.Client{
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		},
		timeout: timeout,
		userAgents: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
			"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/127.0",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:109.0) Gecko/20100101 Firefox/127.0",
		},
		log: logger.GetLogger().WithComponent("http_client"),
	}
}

// FetchPage downloads a page with anti-bot headers and returns the
// decoded body.
func (h *HTTPClient) FetchPage(ctx context.Context, pageURL string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &NetworkError{URL: pageURL, Err: err}
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(pageURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	h.setRequestHeaders(req, pageURL)

	if err := h.client.DoTimeout(req, resp, h.timeout); err != nil {
		return nil, &NetworkError{URL: pageURL, Err: err}
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, &NetworkError{URL: pageURL, StatusCode: resp.StatusCode()}
	}

	body, err := decodeBody(resp)
	if err != nil {
		return nil, &NetworkError{URL: pageURL, Err: err}
	}
	if len(body) < minBodyLen {
		return nil, &NetworkError{URL: pageURL, Err: fmt.Errorf("body too short (%d bytes)", len(body))}
	}

	h.log.WithFields(map[string]interface{}{
		"url":   pageURL,
		"bytes": len(body),
	}).Debug("page fetched")

	return body, nil
}

// setRequestHeaders adds browser-like headers to avoid bot detection.
// The user agent rotates by URL hash so repeat checks of the same page
// stay consistent.
func (h *HTTPClient) setRequestHeaders(req *fasthttp.Request, pageURL string) {
	req.Header.SetUserAgent(h.userAgents[urlHash(pageURL)%uint32(len(h.userAgents))])

	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	req.Header.Set("DNT", "1")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Cache-Control", "max-age=0")

	if parsed, err := url.Parse(pageURL); err == nil {
		req.Header.Set("Referer", fmt.Sprintf("%s://%s/", parsed.Scheme, parsed.Host))
	}
}

func decodeBody(resp *fasthttp.Response) ([]byte, error) {
	if string(resp.Header.Peek("Content-Encoding")) == "gzip" {
		gz, err := gzip.NewReader(bytes.NewReader(resp.Body()))
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer gz.Close()
		return io.ReadAll(gz)
	}

	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())
	return body, nil
}

func urlHash(s string) uint32 {
	h := uint32(0)
	for _, c := range s {
		h = h*31 + uint32(c)
	}
	return h
}
