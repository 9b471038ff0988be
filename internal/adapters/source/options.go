package source

import (
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/okian/qualtrack/internal/domain/events"
	"github.com/okian/qualtrack/pkg/logger"
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for page requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithBaseURL points the client at another results site (tests use httptest).
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base = strings.TrimSpace(base); base != "" {
			c.baseURL = strings.TrimSuffix(base, "/")
		}
	}
}

// WithRate limits page requests to perSec with the given burst. perSec <= 0 disables limiting.
func WithRate(perSec float64, burst int) Option {
	return func(c *Client) {
		if perSec <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
}

// WithFetchWindow bounds how many personal best pages are fetched at once.
func WithFetchWindow(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.window = n
		}
	}
}

// WithCatalogue sets the event catalogue used to resolve stroke codes.
func WithCatalogue(cat *events.Catalogue) Option {
	return func(c *Client) {
		if cat != nil {
			c.catalogue = cat
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}
