// Package source scrapes ranking lists and personal best histories from the results site.
package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/okian/qualtrack/internal/domain/events"
	"github.com/okian/qualtrack/internal/domain/model"
	"github.com/okian/qualtrack/pkg/logger"
	"github.com/okian/qualtrack/pkg/metrics"
)

const (
	defaultTimeout = 20 * time.Second
	defaultWindow  = 4
	maxBodyBytes   = 8 << 20

	// RankingLimit is the size of a ranking page and of a merged both-sexes list.
	RankingLimit = 50
)

// Client fetches and parses results pages.
type Client struct {
	http      *http.Client
	baseURL   string
	limiter   *rate.Limiter
	window    int
	catalogue *events.Catalogue
	userAgent string
	log       logger.Logger
}

// NewClient wires an HTTP client; the default allows 5 requests per second.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:      &http.Client{Timeout: defaultTimeout},
		baseURL:   DefaultBaseURL,
		limiter:   rate.NewLimiter(5, 5),
		window:    defaultWindow,
		catalogue: events.Default(),
		userAgent: "qualtrack/1.0",
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) query(seg model.Segment, sex, date string) (Query, error) {
	ev, err := c.catalogue.Lookup(seg.Event)
	if err != nil {
		return Query{}, err
	}
	return Query{Pool: c.catalogue.Pool, Stroke: ev.Code, Sex: sex, AgeGroup: seg.AgeGroup, Date: date}, nil
}

// fetch performs one rate-limited GET and returns the body.
func (c *Client) fetch(ctx context.Context, kind, pageURL string) ([]byte, error) {
	start := time.Now()
	status := "ok"
	defer func() {
		metrics.RecordSourceFetch(kind, status, float64(time.Since(start).Milliseconds()))
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		status = "cancelled"
		return nil, fmt.Errorf("%s: rate limit wait: %w", kind, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		status = "error"
		return nil, fmt.Errorf("%s: build request: %w", kind, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		status = "error"
		return nil, fmt.Errorf("%s: %w: %w", kind, ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		status = strconv.Itoa(resp.StatusCode)
		return nil, fmt.Errorf("%s: %w: status %s", kind, ErrUpstream, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		status = "error"
		return nil, fmt.Errorf("%s: read body: %w: %w", kind, ErrUpstream, err)
	}
	return body, nil
}

// Rankings returns the ranking list of a segment on the given date (DD/MM/YYYY).
// Sex "All" merges the male and female lists.
func (c *Client) Rankings(ctx context.Context, seg model.Segment, date string) ([]model.RankedSwimmer, error) {
	if seg.Sex == model.SexBoth {
		return c.bothSexes(ctx, seg, date)
	}
	q, err := c.query(seg, seg.Sex, date)
	if err != nil {
		return nil, err
	}
	body, err := c.fetch(ctx, "rankings", RankingsURL(c.baseURL, q))
	if err != nil {
		return nil, err
	}
	rows, err := ParseRankings(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	c.log.Debug(ctx, "fetched rankings",
		logger.String("segment", seg.Key()),
		logger.Int("rows", len(rows)),
	)
	return rows, nil
}

func (c *Client) bothSexes(ctx context.Context, seg model.Segment, date string) ([]model.RankedSwimmer, error) {
	var male, female []model.RankedSwimmer
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s := seg
		s.Sex = model.SexMale
		rows, err := c.Rankings(gctx, s, date)
		male = rows
		return err
	})
	g.Go(func() error {
		s := seg
		s.Sex = model.SexFemale
		rows, err := c.Rankings(gctx, s, date)
		female = rows
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return MergeSexes(male, female, RankingLimit), nil
}

// MergeSexes combines two ranking lists, orders them by time (missing times last),
// keeps the first limit rows and renumbers ranks from 1.
func MergeSexes(a, b []model.RankedSwimmer, limit int) []model.RankedSwimmer {
	out := make([]model.RankedSwimmer, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Time.Or(math.Inf(1)) < out[j].Time.Or(math.Inf(1))
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// PersonalBests returns one swimmer's history for the segment's event.
func (c *Client) PersonalBests(ctx context.Context, seg model.Segment, tiref, date string) ([]model.PersonalBest, error) {
	if tiref == "" {
		return nil, ErrMissingTiref
	}
	sex := seg.Sex
	if sex == model.SexBoth {
		// the page is keyed by tiref; any sex resolves it
		sex = model.SexMale
	}
	q, err := c.query(seg, sex, date)
	if err != nil {
		return nil, err
	}
	body, err := c.fetch(ctx, "personal_bests", PersonalBestURL(c.baseURL, q, tiref))
	if err != nil {
		return nil, err
	}
	return ParsePersonalBests(bytes.NewReader(body), seg.Event)
}

// Cohort fetches the history of every ranked swimmer that has a tiref, a bounded
// number of pages at a time. A failed page yields an empty history; the result keeps
// ranking order.
func (c *Client) Cohort(ctx context.Context, seg model.Segment, rows []model.RankedSwimmer, date string) ([]model.SwimmerTimeline, error) {
	ranked := make([]model.RankedSwimmer, 0, len(rows))
	for _, r := range rows {
		if r.Tiref != "" {
			ranked = append(ranked, r)
		}
	}
	out := make([]model.SwimmerTimeline, len(ranked))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.window)
	for i, r := range ranked {
		i, r := i, r
		g.Go(func() error {
			records, err := c.PersonalBests(gctx, seg, r.Tiref, date)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				metrics.RecordErrorByComponent("source", "personal_bests")
				c.log.Warn(gctx, "personal best fetch failed",
					logger.String("tiref", r.Tiref),
					logger.String("name", r.Name),
					logger.Error(err),
				)
				records = []model.PersonalBest{}
			}
			out[i] = model.SwimmerTimeline{Name: r.Name, Tiref: r.Tiref, Records: records}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("cohort %s: %w", seg.Key(), err)
	}
	return out, nil
}
