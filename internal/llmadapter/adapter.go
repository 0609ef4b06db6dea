package llmadapter

import (
	"context"
	"fmt"

	"github.com/powerpulse/analyzer/internal/batching"
	"github.com/powerpulse/analyzer/pkg/circuitbreaker"
	"github.com/powerpulse/analyzer/pkg/retry"
)

// caller is the low-level, provider-specific half of a Provider: send
// one prompt, get back raw text and usage. Retry/circuit-breaking and
// response parsing are shared across providers by Adapter.
type caller interface {
	call(ctx context.Context, prompt string) (text string, usage Usage, err error)
}

// Adapter wraps a provider-specific caller with the shared retry and
// circuit-breaking policy from spec.md §4.6 (base=1s, factor=2,
// attempts=3, jitter up to 0.25*base) and the shared parsing/fallback
// contract from spec.md §4.5.
type Adapter struct {
	name   string
	caller caller
	cb     *circuitbreaker.CircuitBreaker
	retry  retry.Config
}

func newAdapter(name string, c caller, cb *circuitbreaker.CircuitBreaker, retryCfg retry.Config) *Adapter {
	return &Adapter{name: name, caller: c, cb: cb, retry: retryCfg}
}

// AnalyzeBatch implements Provider.
func (a *Adapter) AnalyzeBatch(ctx context.Context, units []batching.Unit) ([]MicroMetrics, Usage, error) {
	if len(units) == 0 {
		return nil, Usage{}, nil
	}

	prompt := BuildPrompt(units)

	var rawText string
	var usage Usage

	callErr := a.cb.Execute(ctx, func() error {
		return retry.Do(ctx, a.retry, func() error {
			text, u, err := a.caller.call(ctx, prompt)
			if err != nil {
				return err
			}
			rawText, usage = text, u
			return nil
		})
	})

	if callErr != nil {
		if IsCancelled(callErr) {
			return fallbackAll(len(units)), usage, fmt.Errorf("cancelled: %w", callErr)
		}
		return fallbackAll(len(units)), usage, fmt.Errorf("analysis_failed: %s call failed after retries: %w", a.name, callErr)
	}

	results, parseErr := ParseResponse(rawText, len(units))
	if parseErr != nil {
		return fallbackAll(len(units)), usage, fmt.Errorf("analysis_failed: %w", parseErr)
	}

	return results, usage, nil
}
