package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
)

// CircuitBreakerConfig configures the circuit breaker behavior
type CircuitBreakerConfig struct {
	// MaxConsecutiveFailures is the number of consecutive failures before opening
	MaxConsecutiveFailures uint32
	// Timeout is how long the circuit breaker stays open before trying half-open
	Timeout time.Duration
	// OnStateChange is called whenever the breaker changes state
	OnStateChange func(from, to CircuitBreakerState)
}

// DefaultCircuitBreakerConfig returns sensible defaults
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxConsecutiveFailures: 5,
		Timeout:                30 * time.Second,
	}
}

// CircuitBreakerState represents the circuit breaker state
type CircuitBreakerState int

const (
	CircuitClosed CircuitBreakerState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// BreakerClient is a Client guarded by a circuit breaker
type BreakerClient struct {
	client  Client
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
}

// NewClientWithCircuitBreaker wraps a Client with circuit breaker protection.
// Only connectivity failures count towards opening the breaker; rejected
// credentials are a verdict from a healthy service.
func NewClientWithCircuitBreaker(client Client, config CircuitBreakerConfig) *BreakerClient {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "AccountLogin",
		MaxRequests: 1,
		Interval:    config.Timeout,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.MaxConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !IsConnectivityError(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if config.OnStateChange != nil {
				config.OnStateChange(toState(from), toState(to))
			}
		},
	})

	return &BreakerClient{
		client:  client,
		breaker: cb,
		timeout: config.Timeout,
	}
}

// Login implements Client.Login with circuit breaker protection
func (b *BreakerClient) Login(ctx context.Context, email, password string) (string, error) {
	result, err := b.breaker.Execute(func() (interface{}, error) {
		return b.client.Login(ctx, email, password)
	})
	if err != nil {
		return "", b.wrapError(err)
	}
	return result.(string), nil
}

// wrapError converts circuit breaker errors into ErrUnavailable
func (b *BreakerClient) wrapError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) {
		return fmt.Errorf("%w: circuit breaker is open (will retry after %v)", ErrUnavailable, b.timeout)
	}
	if errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: circuit breaker is half-open", ErrUnavailable)
	}
	return err
}

// State returns the current circuit breaker state
func (b *BreakerClient) State() CircuitBreakerState {
	return toState(b.breaker.State())
}

func toState(s gobreaker.State) CircuitBreakerState {
	switch s {
	case gobreaker.StateOpen:
		return CircuitOpen
	case gobreaker.StateHalfOpen:
		return CircuitHalfOpen
	default:
		return CircuitClosed
	}
}
