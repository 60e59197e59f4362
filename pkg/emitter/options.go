package emitter

import (
	"net/http"
	"time"

	"github.com/okian/taskpulse/internal/adapters/mq/worker"
	"github.com/okian/taskpulse/pkg/logger"
)

// Defaults applied by DefaultConfig.
const (
	DefaultQueueSize = 1024
	DefaultWorkers   = 2
	DefaultTimeout   = 5 * time.Second
)

// Config controls where and how events are delivered.
type Config struct {
	// URL is the analytics service base URL, e.g. http://analytics:8080.
	URL       string        `validate:"required,url"`
	QueueSize int           `validate:"gte=1"`
	Workers   int           `validate:"gte=1"`
	Timeout   time.Duration `validate:"gt=0"`
}

// DefaultConfig returns a Config for url with default sizing.
func DefaultConfig(url string) Config {
	return Config{
		URL:       url,
		QueueSize: DefaultQueueSize,
		Workers:   DefaultWorkers,
		Timeout:   DefaultTimeout,
	}
}

// Option applies a configuration option to the Emitter.
type Option func(*Emitter)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Emitter) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithHTTPClient replaces the client used by the default sender.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Emitter) {
		if c != nil {
			e.client = c
		}
	}
}

// WithSender replaces HTTP delivery entirely.
func WithSender(s worker.Sender) Option {
	return func(e *Emitter) {
		if s != nil {
			e.sender = s
		}
	}
}
