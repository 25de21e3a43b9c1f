package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tamwil/paygate/pkg/metrics"
)

// httpCaller wraps the injected HTTP client with per-call timeout, raw-body
// capture and latency metrics. All adapter traffic goes through it.
type httpCaller struct {
	client  *http.Client
	timeout time.Duration
	gateway string
}

func newHTTPCaller(client *http.Client, timeout time.Duration, gateway string) *httpCaller {
	if client == nil {
		client = http.DefaultClient
	}
	return &httpCaller{client: client, timeout: timeout, gateway: gateway}
}

// do issues the request and returns status code and raw body. Transport
// errors and timeouts wrap ErrAmbiguousOutcome: the provider may have
// received the request even though the response was lost.
func (h *httpCaller) do(ctx context.Context, method, url string, headers map[string]string, body any) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := h.client.Do(req)
	metrics.GatewayCallDuration.WithLabelValues(h.gateway).Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrAmbiguousOutcome, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%w: read body: %v", ErrAmbiguousOutcome, err)
	}
	if resp.StatusCode >= 500 {
		return resp.StatusCode, raw, fmt.Errorf("%w: provider returned %d: %s", ErrAmbiguousOutcome, resp.StatusCode, raw)
	}
	return resp.StatusCode, raw, nil
}
