// Package transport performs the single JSON round trip behind each form
// submission.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/Its-donkey/e-verify/internal/ui/model"
)

const maxBodyBytes = 1 << 20

// Request describes one call to the account backend.
type Request struct {
	Method  string
	Path    string
	Payload any
}

// Recorder observes completed round trips.
type Recorder interface {
	ObserveRoundTrip(path string, result string, duration time.Duration)
}

// Client sends form payloads to the account backend. It does exactly one
// round trip per Send and never retries.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Recorder   Recorder
}

// NewClient builds a Client for baseURL. A nil httpClient uses
// http.DefaultClient, which carries no timeout of its own.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(strings.TrimSpace(baseURL), "/"),
		HTTPClient: httpClient,
	}
}

// Send posts req.Payload as JSON and decodes the response envelope. The body
// is decoded whatever the HTTP status code, since failure responses carry the
// message to show. Any network or decoding failure is a *TransportError.
func (c *Client) Send(ctx context.Context, req Request) (model.BackendResponse, error) {
	start := time.Now()
	resp, err := c.send(ctx, req)
	if c.Recorder != nil {
		result := "ok"
		if err != nil {
			result = "transport_error"
		}
		c.Recorder.ObserveRoundTrip(req.Path, result, time.Since(start))
	}
	return resp, err
}

func (c *Client) send(ctx context.Context, req Request) (model.BackendResponse, error) {
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}
	endpoint := c.endpoint(req.Path)
	fail := func(cause error, detail string) (model.BackendResponse, error) {
		return model.BackendResponse{}, &TransportError{Op: method, URL: endpoint, Cause: cause, Detail: detail}
	}

	var body io.Reader
	if req.Payload != nil {
		encoded, err := json.Marshal(req.Payload)
		if err != nil {
			return fail(fmt.Errorf("encode payload: %w", err), "")
		}
		body = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fail(err, "")
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return fail(err, "")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fail(fmt.Errorf("read body: %w", err), "")
	}

	var decoded model.BackendResponse
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return fail(fmt.Errorf("%w: %s", ErrNotJSON, resp.Status), describeBody(resp.Header.Get("Content-Type"), trimmed))
	}
	if err := json.Unmarshal(trimmed, &decoded); err != nil {
		return fail(fmt.Errorf("%w: %v", ErrNotJSON, err), "")
	}
	return decoded, nil
}

func (c *Client) endpoint(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.BaseURL + path
}

// describeBody summarises an unparsable body for logs. HTML error pages are
// reduced to their <title>.
func describeBody(contentType string, body []byte) string {
	if len(body) == 0 {
		return "empty body"
	}
	if strings.Contains(strings.ToLower(contentType), "html") || body[0] == '<' {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err == nil {
			title := strings.TrimSpace(doc.Find("title").First().Text())
			if title == "" {
				title = strings.TrimSpace(doc.Find("h1").First().Text())
			}
			if title != "" {
				return "html: " + title
			}
		}
		return "html body"
	}
	const limit = 80
	text := strings.TrimSpace(string(body))
	if len(text) > limit {
		text = text[:limit] + "..."
	}
	return text
}
