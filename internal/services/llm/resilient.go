package llm

import (
	"context"
	"errors"

	"github.com/ragchat-api-go/internal/models"
	"github.com/ragchat-api-go/internal/resilience"
)

// Resilient wraps a gateway with retry and circuit breaking. The breaker sits
// inside the retry loop so every attempt counts toward its failure threshold,
// and an open circuit is not retried.
type Resilient struct {
	inner   Service
	policy  resilience.RetryPolicy
	breaker *resilience.CircuitBreaker
}

// NewResilient decorates the given gateway.
func NewResilient(inner Service, policy resilience.RetryPolicy, breaker *resilience.CircuitBreaker) *Resilient {
	base := policy.RetryIf
	policy.RetryIf = func(err error) bool {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return false
		}
		if base != nil {
			return base(err)
		}
		return true
	}
	return &Resilient{inner: inner, policy: policy, breaker: breaker}
}

func (r *Resilient) Generate(ctx context.Context, messages []models.Message, opts Options) (*models.GeneratedAnswer, error) {
	return resilience.Do(ctx, r.policy, func(ctx context.Context) (*models.GeneratedAnswer, error) {
		var answer *models.GeneratedAnswer
		err := r.breaker.Execute(ctx, func(ctx context.Context) error {
			var innerErr error
			answer, innerErr = r.inner.Generate(ctx, messages, opts)
			return innerErr
		})
		return answer, err
	})
}

func (r *Resilient) Complete(ctx context.Context, prompt, systemPrompt string) (string, error) {
	return resilience.Do(ctx, r.policy, func(ctx context.Context) (string, error) {
		var result string
		err := r.breaker.Execute(ctx, func(ctx context.Context) error {
			var innerErr error
			result, innerErr = r.inner.Complete(ctx, prompt, systemPrompt)
			return innerErr
		})
		return result, err
	})
}

// Translate is already fail-soft in the gateway, so it passes through without
// retry. A breaker-open state short-circuits to the original text.
func (r *Resilient) Translate(ctx context.Context, text, targetLanguage string) string {
	result := text
	err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		result = r.inner.Translate(ctx, text, targetLanguage)
		return nil
	})
	if err != nil {
		return text
	}
	return result
}

// Health probes bypass retry and breaker so monitoring sees the real state.
func (r *Resilient) Health(ctx context.Context) error {
	return r.inner.Health(ctx)
}
