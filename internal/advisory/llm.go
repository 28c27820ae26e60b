package advisory

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/ironlayer/ironlayer/internal/advisory/prompts"
	"github.com/ironlayer/ironlayer/internal/collab"
	ironerrors "github.com/ironlayer/ironlayer/internal/errors"
	"github.com/ironlayer/ironlayer/internal/resilience"
	"github.com/ironlayer/ironlayer/internal/security"
)

// TokenPricing is the per-token USD cost assumed for input and output
// tokens, used to estimate a call's cost against a tenant's daily budget
// before it is placed.
type TokenPricing struct {
	InputUSDPerToken  float64
	OutputUSDPerToken float64
}

// DefaultTokenPricing mirrors commonly quoted per-million-token rates of
// $3 input / $15 output, expressed per single token.
func DefaultTokenPricing() TokenPricing {
	return TokenPricing{InputUSDPerToken: 3e-6, OutputUSDPerToken: 15e-6}
}

// BudgetState tracks a tenant's LLM spend within the current daily period.
// Callers own persistence; Collaborator only reads/updates the in-memory
// value passed to it.
type BudgetState struct {
	DailyBudgetUSD float64
	SpentUSD       float64
}

// Collaborator wraps a raw collab.LLMCollaborator with PII scrubbing,
// circuit breaking, retry, response caching, a per-tenant daily budget
// guard, and an outbound QPS limiter — the full defense-in-depth path
// every advisory LLM call goes through. The QPS limiter uses a token
// bucket (golang.org/x/time/rate) rather than the sliding-window limiter
// used for tenant-facing governance rate limits: outbound call shaping
// tolerates bursts in a way tenant quota enforcement should not.
type Collaborator struct {
	raw     collab.LLMCollaborator
	breaker *resilience.Breaker
	retry   resilience.RetryConfig
	limiter *rate.Limiter
	cache   *ResponseCache
	pricing TokenPricing

	mu     sync.Mutex
	budget map[string]*BudgetState // tenant ID -> budget state
}

// CollaboratorConfig configures a Collaborator.
type CollaboratorConfig struct {
	QPS     float64
	Burst   int
	Pricing TokenPricing
	Cache   *ResponseCache
}

// DefaultCollaboratorConfig returns conservative defaults: 2 calls/sec,
// burst of 4.
func DefaultCollaboratorConfig() CollaboratorConfig {
	return CollaboratorConfig{QPS: 2, Burst: 4, Pricing: DefaultTokenPricing()}
}

// NewCollaborator constructs a Collaborator wrapping raw.
func NewCollaborator(raw collab.LLMCollaborator, cfg CollaboratorConfig) *Collaborator {
	if cfg.Pricing == (TokenPricing{}) {
		cfg.Pricing = DefaultTokenPricing()
	}
	if cfg.Cache == nil {
		cfg.Cache = NewResponseCache(DefaultCacheConfig())
	}
	return &Collaborator{
		raw:     raw,
		breaker: resilience.New(resilience.DefaultConfig("llm")),
		retry:   resilience.DefaultRetryConfig(),
		limiter: rate.NewLimiter(rate.Limit(cfg.QPS), cfg.Burst),
		cache:   cfg.Cache,
		pricing: cfg.Pricing,
		budget:  make(map[string]*BudgetState),
	}
}

// SetBudget installs or replaces the daily budget state tracked for tenant.
func (c *Collaborator) SetBudget(tenantID string, state BudgetState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := state
	c.budget[tenantID] = &s
}

// estimateCostUSD projects a call's cost from estimated token counts,
// matching the pricing-guard arithmetic used at the governance boundary.
func (c *Collaborator) estimateCostUSD(estInputTokens, estOutputTokens int) float64 {
	return float64(estInputTokens)*c.pricing.InputUSDPerToken + float64(estOutputTokens)*c.pricing.OutputUSDPerToken
}

// checkBudget refuses the call with BudgetExceeded if the tenant's spend is
// already at or above its daily budget — matching the budget-cliff
// semantics where only a call placed once spend has already reached the
// cap is refused, not the call that pushes spend up to it.
func (c *Collaborator) checkBudget(tenantID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.budget[tenantID]
	if !ok {
		return nil
	}
	if state.SpentUSD >= state.DailyBudgetUSD {
		return ironerrors.BudgetExceeded("llm_daily", int64(state.DailyBudgetUSD*100), int64(state.SpentUSD*100))
	}
	return nil
}

func (c *Collaborator) recordSpend(tenantID string, costUSD float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.budget[tenantID]
	if !ok {
		return
	}
	state.SpentUSD += costUSD
}

// Complete scrubs prompt of PII/secrets, checks the tenant's budget, and
// consults the response cache keyed on (promptVersion, scrubbed prompt,
// maxTokens). On a miss it waits on the outbound rate limiter, calls the
// underlying collaborator through a circuit breaker with retry, records
// the estimated spend against the tenant's budget and caches the result.
func (c *Collaborator) Complete(ctx context.Context, tenantID, promptID string, data map[string]interface{}, maxTokens int) (string, error) {
	prompt, err := prompts.Get(promptID)
	if err != nil {
		return "", err
	}
	rendered, err := prompt.Render(data)
	if err != nil {
		return "", err
	}
	scrubbed := security.Scrub(rendered)

	if err := c.checkBudget(tenantID); err != nil {
		return "", err
	}

	key, err := Key("llm_completion", prompt.Version, map[string]interface{}{"prompt": scrubbed, "max_tokens": maxTokens})
	if err != nil {
		return "", ironerrors.Unexpected(err)
	}
	if cached, ok := c.cache.Get(key); ok {
		if s, ok := cached.(string); ok {
			return s, nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", ironerrors.CollaboratorTimeout("llm")
	}

	var completion string
	var tokensUsed int
	callErr := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return resilience.Retry(ctx, c.retry, func(ctx context.Context) error {
			out, tokens, err := c.raw.Complete(ctx, prompt.ID, prompt.Version, scrubbed, maxTokens)
			if err != nil {
				return err
			}
			completion, tokensUsed = out, tokens
			return nil
		})
	})
	if callErr != nil {
		return "", ironerrors.CollaboratorUnavailable("llm", callErr)
	}

	estOutputTokens := tokensUsed
	if estOutputTokens == 0 {
		estOutputTokens = maxTokens
	}
	cost := c.estimateCostUSD(len(scrubbed)/4, estOutputTokens)
	c.recordSpend(tenantID, cost)

	c.cache.Set(key, "llm_completion", completion)
	return completion, nil
}
