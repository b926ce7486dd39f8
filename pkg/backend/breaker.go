package backend

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/goliatone/go-dashboard-model/components/dashboard"
)

// BreakerConfig tunes the circuit breaker guarding remote calls.
type BreakerConfig struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	// FailureThreshold is the failure ratio that opens the breaker once
	// MinRequests calls were observed.
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns the breaker settings used when none are given.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

func (cfg BreakerConfig) withDefaults(name string) BreakerConfig {
	defaults := DefaultBreakerConfig(name)
	if cfg.Name == "" {
		cfg.Name = defaults.Name
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = defaults.MaxRequests
	}
	if cfg.Interval == 0 {
		cfg.Interval = defaults.Interval
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = defaults.FailureThreshold
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = defaults.MinRequests
	}
	return cfg
}

func newBreaker(cfg BreakerConfig, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("backend circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: countsAsSuccess,
	})
}

// Caller errors do not say anything about the remote's health.
func countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	kind, ok := dashboard.BackendErrorKindOf(err)
	if !ok {
		return false
	}
	switch kind {
	case dashboard.BackendNoData, dashboard.BackendDataTooLarge, dashboard.BackendProtectedData,
		dashboard.BackendNotAuthenticated, dashboard.BackendNotSupported, dashboard.BackendNotImplemented:
		return true
	}
	return false
}

func breakerError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return dashboard.NewBackendError(dashboard.BackendUnexpected, err, "backend unavailable")
	}
	return err
}
