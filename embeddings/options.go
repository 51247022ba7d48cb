package embeddings

type options struct {
	StripNewLines bool
	BatchSize     int
	MaxConcurrent int
}

type Option func(*options)

func applyOptions(opts ...Option) options {
	o := options{
		StripNewLines: true,
		BatchSize:     32,
		MaxConcurrent: 8,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 32
	}
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = 1
	}
	return o
}

func WithBatchSize(size int) Option {
	return func(opts *options) {
		opts.BatchSize = size
	}
}

func WithStripNewLines(strip bool) Option {
	return func(opts *options) {
		opts.StripNewLines = strip
	}
}

// WithMaxConcurrent bounds the number of batches in flight.
func WithMaxConcurrent(n int) Option {
	return func(opts *options) {
		opts.MaxConcurrent = n
	}
}
