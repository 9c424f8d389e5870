package insights

import (
	"context"
	"log/slog"
	"time"

	"fintrack/internal/core"
)

const defaultTimeout = 30 * time.Second

// Generator is a remote text service. *gemini.Client satisfies it.
type Generator interface {
	// Available is probed before each request.
	Available(ctx context.Context) bool
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Advisor answers budget questions, remotely when it can and from the
// local fallback otherwise. Errors never reach the caller.
type Advisor struct {
	generator Generator
	timeout   time.Duration
	symbol    string
}

type AdvisorOption func(*Advisor)

// WithGenerator sets the remote service; without one every answer is local.
func WithGenerator(g Generator) AdvisorOption {
	return func(a *Advisor) { a.generator = g }
}

// WithTimeout bounds each remote call.
func WithTimeout(d time.Duration) AdvisorOption {
	return func(a *Advisor) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithCurrencySymbol sets the symbol used in summaries.
func WithCurrencySymbol(s string) AdvisorOption {
	return func(a *Advisor) {
		if s != "" {
			a.symbol = s
		}
	}
}

func NewAdvisor(opts ...AdvisorOption) *Advisor {
	a := &Advisor{timeout: defaultTimeout, symbol: core.DefaultCurrencySymbol}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Answer responds to query from snap.
func (a *Advisor) Answer(ctx context.Context, query string, snap core.Snapshot) string {
	if snap.Empty() {
		return NoDataMessage
	}
	agg := Summarize(snap)

	if a.generator != nil && a.generator.Available(ctx) {
		callCtx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()

		text, err := a.generator.Generate(callCtx, SystemInstruction, Prompt(query, agg, a.symbol))
		if err == nil {
			return text
		}
		slog.WarnContext(ctx, "Remote insight generation failed, using local summary", "error", err)
	}

	return Fallback(agg, a.symbol)
}
