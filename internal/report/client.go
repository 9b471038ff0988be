package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/qualtrack/internal/domain/events"
	"github.com/okian/qualtrack/internal/domain/model"
)

// Client talks to a running qualtrack server.
type Client struct {
	base   string
	client *http.Client
}

// NewClient creates a client for the server at base.
func NewClient(base string, timeout time.Duration) *Client {
	return &Client{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

// RefreshSummary counts the server's answers to a batch of refresh requests.
type RefreshSummary struct {
	Accepted  int64
	Duplicate int64
	Rejected  int64
	Failed    int64
}

// RefreshRequest is the body of POST /refresh.
type RefreshRequest struct {
	Event string `json:"event,omitempty"`
	Age   string `json:"age,omitempty"`
	Sex   string `json:"sex,omitempty"`
	All   bool   `json:"all,omitempty"`
}

// Catalogue fetches the server's event catalogue.
func (c *Client) Catalogue(ctx context.Context) (*events.Catalogue, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/events", nil)
	if err != nil {
		return nil, fmt.Errorf("report: build request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("report: get catalogue: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("report: get catalogue: status %d", resp.StatusCode)
	}
	var cat events.Catalogue
	if err := json.NewDecoder(resp.Body).Decode(&cat); err != nil {
		return nil, fmt.Errorf("report: decode catalogue: %w", err)
	}
	return &cat, nil
}

func (c *Client) postRefresh(ctx context.Context, body RefreshRequest) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/refresh", bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// RefreshSegments asks the server to refresh each segment, with at most workers requests
// in flight. Transport failures are counted, not returned.
func (c *Client) RefreshSegments(ctx context.Context, segs []model.Segment, workers int) (RefreshSummary, error) {
	var sum RefreshSummary
	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for _, seg := range segs {
		seg := seg
		g.Go(func() error {
			code, err := c.postRefresh(gctx, RefreshRequest{Event: seg.Event, Age: seg.AgeGroup, Sex: seg.Sex})
			switch {
			case err != nil:
				atomic.AddInt64(&sum.Failed, 1)
			case code == http.StatusAccepted:
				atomic.AddInt64(&sum.Accepted, 1)
			case code == http.StatusOK:
				atomic.AddInt64(&sum.Duplicate, 1)
			case code == http.StatusTooManyRequests:
				atomic.AddInt64(&sum.Rejected, 1)
			default:
				atomic.AddInt64(&sum.Failed, 1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return sum, err
	}
	return sum, ctx.Err()
}
