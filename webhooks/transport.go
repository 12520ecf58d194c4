package webhooks

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxDrainBytes int64 = 64 << 10

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Request struct {
	URL     string
	Body    []byte
	Headers map[string]string
}

// Transport performs one delivery attempt and reports the response status.
// A returned error means no response was received.
type Transport interface {
	Post(ctx context.Context, req Request) (int, error)
}

type HTTPTransport struct {
	Client HTTPDoer
}

// NewHTTPClient returns a client that never follows redirects, so a 3xx
// surfaces to the classifier. Timeouts come from the attempt context.
func NewHTTPClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func NewHTTPTransport(client HTTPDoer) *HTTPTransport {
	if client == nil {
		client = NewHTTPClient()
	}
	return &HTTPTransport{Client: client}
}

func (t *HTTPTransport) Post(ctx context.Context, req Request) (int, error) {
	if t == nil || t.Client == nil {
		return 0, fmt.Errorf("%w: http client is required", ErrBuildRequest)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSpace(req.URL), bytes.NewReader(req.Body))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBuildRequest, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for key, value := range req.Headers {
		if strings.TrimSpace(key) == "" {
			continue
		}
		httpReq.Header.Set(strings.TrimSpace(key), strings.TrimSpace(value))
	}

	res, err := t.Client.Do(httpReq)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, maxDrainBytes))
	return res.StatusCode, nil
}
