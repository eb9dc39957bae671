package decision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/xtrntr/farmduel/internal/models"
)

// Remote asks an external agent over HTTP. The agent receives both farm
// views as JSON and answers with free text ending in a descriptor line.
type Remote struct {
	URL         string
	Timeout     time.Duration
	Client      *http.Client
	rateLimiter *rate.Limiter
}

// NewRemote creates a remote source limited to reqPerSec requests, or
// unlimited when reqPerSec <= 0
func NewRemote(url string, timeout time.Duration, reqPerSec float64) *Remote {
	limit := rate.Limit(reqPerSec)
	if reqPerSec <= 0 {
		limit = rate.Inf
	}
	return &Remote{
		URL:         url,
		Timeout:     timeout,
		Client:      &http.Client{},
		rateLimiter: rate.NewLimiter(limit, 1),
	}
}

type remoteRequest struct {
	Farm     models.FarmView `json:"farm"`
	Rival    models.FarmView `json:"rival"`
	DaysLeft int             `json:"days_left"`
}

// Decide never returns a zero action: on any failure it returns
// Maintenance together with the error.
func (s *Remote) Decide(ctx context.Context, self, rival models.FarmView, daysLeft int) (models.Action, error) {
	fallback := models.Action{Kind: models.Maintenance}
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	if err := s.rateLimiter.Wait(ctx); err != nil {
		return fallback, fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(remoteRequest{Farm: self, Rival: rival, DaysLeft: daysLeft})
	if err != nil {
		return fallback, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return fallback, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return fallback, fmt.Errorf("agent request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fallback, fmt.Errorf("agent returned status %d", resp.StatusCode)
	}

	text, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fallback, fmt.Errorf("failed to read agent response: %w", err)
	}
	return Parse(string(text))
}
