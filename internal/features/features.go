// Package features derives capability flags from environment variable
// presence so optional integrations can be switched off instead of failing.
package features

import "github.com/nholik/phenotype-health/internal/envcheck"

// Flags is the full capability set.
type Flags struct {
	RateLimit  bool `json:"rateLimit"`
	Stripe     bool `json:"stripe"`
	Anthropic  bool `json:"anthropic"`
	OpenAI     bool `json:"openAI"`
	Embeddings bool `json:"embeddings"`
	Mapbox     bool `json:"mapbox"`
	Replicate  bool `json:"replicate"`
	Novita     bool `json:"novita"`
}

// Summary is the subset of capabilities published on the public health endpoint.
type Summary struct {
	RateLimit      bool `json:"rateLimit"`
	PremiumReports bool `json:"premiumReports"`
	Payments       bool `json:"payments"`
}

// Evaluator answers capability questions against the current environment.
// Nothing is cached.
type Evaluator struct {
	env *envcheck.Validator
}

// New returns an Evaluator reading through lookup, or the process
// environment when lookup is nil.
func New(lookup envcheck.LookupFunc) *Evaluator {
	return &Evaluator{env: envcheck.NewValidator(lookup)}
}

func (e *Evaluator) has(vars ...envcheck.Var) bool {
	for _, v := range vars {
		if !e.env.Present(v.Name) {
			return false
		}
	}
	return true
}

func (e *Evaluator) RateLimit() bool { return e.has(envcheck.RedisURL) }

// Stripe needs both the secret and the publishable key.
func (e *Evaluator) Stripe() bool {
	return e.has(envcheck.StripeSecretKey, envcheck.StripePublishableKey)
}

func (e *Evaluator) Anthropic() bool { return e.has(envcheck.AnthropicAPIKey) }
func (e *Evaluator) OpenAI() bool { return e.has(envcheck.OpenAIAPIKey) }
func (e *Evaluator) Embeddings() bool { return e.has(envcheck.EmbeddingServiceURL) }
func (e *Evaluator) Mapbox() bool { return e.has(envcheck.MapboxAccessToken) }
func (e *Evaluator) Replicate() bool { return e.has(envcheck.ReplicateAPIToken) }
func (e *Evaluator) Novita() bool { return e.has(envcheck.NovitaAPIKey) }

// Flags evaluates every capability.
func (e *Evaluator) Flags() Flags {
	return Flags{
		RateLimit:  e.RateLimit(),
		Stripe:     e.Stripe(),
		Anthropic:  e.Anthropic(),
		OpenAI:     e.OpenAI(),
		Embeddings: e.Embeddings(),
		Mapbox:     e.Mapbox(),
		Replicate:  e.Replicate(),
		Novita:     e.Novita(),
	}
}

// Summary evaluates the public capability summary. Premium reports are
// paid and LLM generated, so they need billing and Anthropic.
func (e *Evaluator) Summary() Summary {
	payments := e.Stripe()
	return Summary{
		RateLimit:      e.RateLimit(),
		PremiumReports: payments && e.Anthropic(),
		Payments:       payments,
	}
}
