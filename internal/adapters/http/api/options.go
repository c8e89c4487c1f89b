package api

import "github.com/okian/spikecurator/pkg/logger"

const (
	defaultISIBins = 50
	maxISIBins     = 1000
)

type options struct {
	isiBins    int
	isiLog     bool
	maxISIBins int
	logger     logger.Logger
}

func defaultOptions() options {
	return options{
		isiBins:    defaultISIBins,
		isiLog:     true,
		maxISIBins: maxISIBins,
		logger:     logger.Nop(),
	}
}

// Option configures the API server.
type Option func(*options)

// WithISIDefaults sets the histogram used when /isi has no query.
func WithISIDefaults(bins int, logScale bool) Option {
	return func(o *options) {
		if bins > 0 {
			o.isiBins = bins
		}
		o.isiLog = logScale
	}
}

// WithMaxISIBins caps the bins query parameter.
func WithMaxISIBins(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxISIBins = n
		}
	}
}

// WithLogger sets the logger used by command handlers.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
