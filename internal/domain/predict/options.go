package predict

// Defaults for cohort shrinkage.
const (
	DefaultK         = 3.0
	DefaultMinPoints = 2
)

type options struct {
	k         float64
	minPoints int
	level     string
}

// Option tunes a prediction.
type Option func(*options)

// WithK sets the shrinkage strength: a swimmer with n points keeps n/(n+k) of their own slope.
func WithK(k float64) Option {
	return func(o *options) {
		if k >= 0 {
			o.k = k
		}
	}
}

// WithMinPoints sets how many points a swimmer needs before their own slope counts.
func WithMinPoints(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.minPoints = n
		}
	}
}

// WithLevel restricts records to one meet level. "" or "All" disables filtering.
func WithLevel(level string) Option {
	return func(o *options) { o.level = level }
}

func apply(opts []Option) options {
	o := options{k: DefaultK, minPoints: DefaultMinPoints}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
