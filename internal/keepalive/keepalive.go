package keepalive

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultInterval = 14 * time.Minute
	requestTimeout  = 10 * time.Second
)

// Pinger periodically GETs a URL so free-tier hosts that idle out quiet
// processes keep the server warm.
type Pinger struct {
	url      string
	interval time.Duration
	client   *http.Client
}

// New constructs a Pinger. A non-positive interval falls back to the default.
func New(url string, interval time.Duration) *Pinger {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Pinger{
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: requestTimeout},
	}
}

// Run pings on every tick until ctx is canceled. Failures are logged and
// never stop the loop.
func (p *Pinger) Run(ctx context.Context) {
	if p.url == "" {
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ping(ctx)
		}
	}
}

func (p *Pinger) ping(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		slog.Warn("keepalive request build failed", "url", p.url, "error", err)
		return
	}

	resp, err := p.client.Do(req)
	if err != nil {
		slog.Warn("keepalive ping failed", "url", p.url, "error", err)
		return
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("keepalive ping returned unexpected status", "url", p.url, "status", resp.StatusCode)
	}
}
