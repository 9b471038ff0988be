package cutoff

import "github.com/okian/qualtrack/internal/domain/identity"

type options struct {
	level string
	keyer identity.Keyer
}

// Option tunes a cutoff computation.
type Option func(*options)

// WithLevel restricts records to one meet level. "" or "All" disables filtering.
func WithLevel(level string) Option {
	return func(o *options) { o.level = level }
}

// WithKeyer sets how swimmers are told apart in rankings.
func WithKeyer(k identity.Keyer) Option {
	return func(o *options) {
		if k != nil {
			o.keyer = k
		}
	}
}

func apply(opts []Option) options {
	o := options{level: "", keyer: identity.TirefThenName}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
