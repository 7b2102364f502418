package crawler

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerSettings configures the per-host circuit breakers.
type BreakerSettings struct {
	MaxFailures uint32
	OpenTimeout time.Duration
}

// Breaker keeps one gobreaker circuit per host so a failing NOAA endpoint
// does not slow down the others.
type Breaker struct {
	settings BreakerSettings
	logger   *zap.Logger

	mu       sync.Mutex
	circuits map[string]*gobreaker.CircuitBreaker
}

// NewBreaker builds a Breaker. Zero settings trip after five consecutive
// failures and stay open for two minutes.
func NewBreaker(settings BreakerSettings, logger *zap.Logger) *Breaker {
	if settings.MaxFailures == 0 {
		settings.MaxFailures = 5
	}
	if settings.OpenTimeout <= 0 {
		settings.OpenTimeout = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Breaker{
		settings: settings,
		logger:   logger,
		circuits: make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (b *Breaker) circuit(host string) *gobreaker.CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok := b.circuits[host]; ok {
		return cb
	}
	maxFailures := b.settings.MaxFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        host,
		MaxRequests: 1,
		Timeout:     b.settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.Warn("circuit state changed",
				zap.String("host", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			// Client errors say nothing about the host's health.
			var statusErr *StatusError
			if errors.As(err, &statusErr) {
				return !statusErr.Temporary()
			}
			return errors.Is(err, ErrRobotsDisallowed)
		},
	})
	b.circuits[host] = cb
	return cb
}

// Execute runs fn through the circuit for the URL's host.
func (b *Breaker) Execute(rawURL string, fn func() error) error {
	if b == nil {
		return fn()
	}
	host := HostOf(rawURL)
	_, err := b.circuit(host).Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s", ErrCircuitOpen, host)
	}
	return err
}

// State reports the circuit state for a host, "closed" when none exists yet.
func (b *Breaker) State(host string) string {
	b.mu.Lock()
	cb, ok := b.circuits[strings.ToLower(host)]
	b.mu.Unlock()
	if !ok {
		return gobreaker.StateClosed.String()
	}
	return cb.State().String()
}

// HostOf returns the lowercased host of a URL, or the input when it does not parse.
func HostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return strings.ToLower(rawURL)
	}
	return strings.ToLower(u.Host)
}
