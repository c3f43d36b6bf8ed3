package resiliency

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// HTTPClient wraps an *http.Client with a breaker guarding one outbound
// dependency (a HomeKit bridge, a push-notification provider).
type HTTPClient struct {
	client *http.Client
	brk    *Breaker
}

// NewHTTPClient builds an HTTPClient whose probe is a GET against
// probeURL; pass an empty probeURL to skip probing and rely purely on
// ResetTimeout to reopen.
func NewHTTPClient(name string, cfg Config, log *slog.Logger, client *http.Client, probeURL string) *HTTPClient {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	var probe func(ctx context.Context) error
	if probeURL != "" {
		probe = func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, probeURL, nil)
			if err != nil {
				return err
			}
			resp, err := client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			io.Copy(io.Discard, resp.Body)
			if resp.StatusCode >= 500 {
				return fmt.Errorf("probe returned status %d", resp.StatusCode)
			}
			return nil
		}
	}
	return &HTTPClient{client: client, brk: New(name, cfg, log, probe)}
}

// Do performs req through the breaker; a 5xx response counts as a
// breaker failure even though http.Client itself returns no error for it.
func (h *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	err := h.brk.Execute(req.Context(), func(ctx context.Context) error {
		r, err := h.client.Do(req.WithContext(ctx))
		if err != nil {
			return err
		}
		if r.StatusCode >= 500 {
			r.Body.Close()
			return fmt.Errorf("status %d", r.StatusCode)
		}
		resp = r
		return nil
	})
	return resp, err
}

func (h *HTTPClient) State() State { return h.brk.State() }
