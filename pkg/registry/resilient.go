package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/clingen-curation-server/internal/domain"
)

// ResilientClient wraps the registry client with circuit breakers. Reads and
// writes trip independently so a failing update endpoint does not block
// planning, which only reads.
type ResilientClient struct {
	client *Client

	readBreaker  *gobreaker.CircuitBreaker
	writeBreaker *gobreaker.CircuitBreaker
}

// NewResilientClient creates a registry client guarded by circuit breakers.
func NewResilientClient(config *domain.RegistryConfig, log *logrus.Logger) *ResilientClient {
	onStateChange := func(name string, from gobreaker.State, to gobreaker.State) {
		log.WithFields(logrus.Fields{
			"breaker": name,
			"from":    from.String(),
			"to":      to.String(),
		}).Warn("Registry circuit breaker state changed")
	}

	// A miss is an answer, not an outage
	isSuccessful := func(err error) bool {
		return err == nil || errors.Is(err, domain.ErrNotFound)
	}

	readBreaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "registry-read",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: onStateChange,
		IsSuccessful:  isSuccessful,
	})

	// Writes are more conservative: a half-open probe is a real mutation
	writeBreaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "registry-write",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 2 && failureRatio >= 0.5
		},
		OnStateChange: onStateChange,
		IsSuccessful:  isSuccessful,
	})

	return &ResilientClient{
		client:       NewClient(config, log),
		readBreaker:  readBreaker,
		writeBreaker: writeBreaker,
	}
}

// LookupUserPKByEmail resolves a contributor email through the read breaker.
func (r *ResilientClient) LookupUserPKByEmail(ctx context.Context, email string) (string, error) {
	result, err := r.readBreaker.Execute(func() (interface{}, error) {
		return r.client.LookupUserPKByEmail(ctx, email)
	})
	if err != nil {
		return "", r.wrap("user lookup", err)
	}
	return result.(string), nil
}

// LoadGDM fetches a gene-disease record through the read breaker.
func (r *ResilientClient) LoadGDM(ctx context.Context, pk string) (*domain.GDM, error) {
	result, err := r.readBreaker.Execute(func() (interface{}, error) {
		return r.client.LoadGDM(ctx, pk)
	})
	if err != nil {
		return nil, r.wrap("GDM load", err)
	}
	return result.(*domain.GDM), nil
}

// LoadInterpretation fetches an interpretation through the read breaker.
func (r *ResilientClient) LoadInterpretation(ctx context.Context, pk string) (*domain.Interpretation, error) {
	result, err := r.readBreaker.Execute(func() (interface{}, error) {
		return r.client.LoadInterpretation(ctx, pk)
	})
	if err != nil {
		return nil, r.wrap("interpretation load", err)
	}
	return result.(*domain.Interpretation), nil
}

// FindInterpretations runs the duplicate query through the read breaker.
func (r *ResilientClient) FindInterpretations(ctx context.Context, filter domain.InterpretationFilter) ([]domain.Interpretation, error) {
	result, err := r.readBreaker.Execute(func() (interface{}, error) {
		return r.client.FindInterpretations(ctx, filter)
	})
	if err != nil {
		return nil, r.wrap("interpretation query", err)
	}
	return result.([]domain.Interpretation), nil
}

// UpdateObject applies one ownership update through the write breaker.
func (r *ResilientClient) UpdateObject(ctx context.Context, update domain.ObjectUpdate) error {
	_, err := r.writeBreaker.Execute(func() (interface{}, error) {
		return nil, r.client.UpdateObject(ctx, update)
	})
	if err != nil {
		return r.wrap("object update", err)
	}
	return nil
}

// Health probes the registry through the read breaker.
func (r *ResilientClient) Health(ctx context.Context) error {
	_, err := r.readBreaker.Execute(func() (interface{}, error) {
		return nil, r.client.Health(ctx)
	})
	if err != nil {
		return r.wrap("health check", err)
	}
	return nil
}

// wrap keeps domain sentinels visible through the breaker while labelling
// breaker rejections.
func (r *ResilientClient) wrap(operation string, err error) error {
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return fmt.Errorf("registry %s unavailable: %w", operation, err)
	}
	return err
}
