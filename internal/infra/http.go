package infra

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrHTTP is returned for HTTP responses with status >= 400. The body
// excerpt is bounded so upstream error pages cannot bloat logs.
type ErrHTTP struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("HTTP %s: %s", e.Status, e.Body)
}

// DefaultUserAgent is the user agent string used for HTTP requests.
// Some upstream CDNs reject requests without a browser-looking agent.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// DefaultClient is a pre-configured HTTP client with a conservative
// timeout suited to the large upstream workbook downloads.
var DefaultClient = &http.Client{
	Timeout: 60 * time.Second,
}

// DoGet performs a GET request with default headers and returns the
// response body. Status >= 400 is mapped to an *ErrHTTP carrying a
// bounded excerpt of the response body. The caller owns closing the
// returned reader. A nil client uses DefaultClient.
func DoGet(ctx context.Context, client *http.Client, url string, headers map[string]string) (io.ReadCloser, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	// Set default headers.
	req.Header.Set("User-Agent", DefaultUserAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	// Override/add custom headers.
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	if client == nil {
		client = DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("HTTP GET %s: %w", url, err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, resp.StatusCode, &ErrHTTP{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}

	return resp.Body, resp.StatusCode, nil
}

// FetchBytes tries each URL in ranked order and returns the body of the
// first successful response along with the URL that served it. Per-URL
// failures are retained in order; when every candidate fails, all of
// them are returned so the caller can wrap them into its dataset-level
// error.
func FetchBytes(ctx context.Context, client *http.Client, urls []string) (data []byte, servedBy string, errs []error) {
	for _, u := range urls {
		body, _, err := DoGet(ctx, client, u, nil)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", u, err))
			continue
		}
		data, err = io.ReadAll(body)
		body.Close()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: read body: %w", u, err))
			continue
		}
		return data, u, nil
	}
	return nil, "", errs
}

// Probe issues a lightweight reachability check against url. It prefers
// HEAD and falls back to GET for servers that reject HEAD, discarding
// the body either way.
func Probe(ctx context.Context, client *http.Client, url string) error {
	if client == nil {
		client = DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", DefaultUserAgent)

	resp, err := client.Do(req)
	if err == nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		if resp.StatusCode < 400 {
			return nil
		}
		if resp.StatusCode != http.StatusMethodNotAllowed {
			return &ErrHTTP{StatusCode: resp.StatusCode, Status: resp.Status}
		}
	}

	body, _, err := DoGet(ctx, client, url, nil)
	if err != nil {
		return err
	}
	io.Copy(io.Discard, io.LimitReader(body, 1024))
	body.Close()
	return nil
}
