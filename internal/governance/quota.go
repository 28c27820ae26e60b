package governance

import (
	"sync"

	ironerrors "github.com/ironlayer/ironlayer/internal/errors"
)

// UsageCounter tracks a tenant's consumption of a named quota (e.g. "plans"
// or "ai_calls") within the current period, alongside its limit.
type UsageCounter struct {
	Limit int
	Used  int
}

// QuotaGuard enforces per-tenant, per-quota-name usage ceilings. Callers
// are responsible for period rollover (resetting Used to 0 at the start of
// a new period); the guard only compares Used against Limit.
type QuotaGuard struct {
	mu      sync.Mutex
	usage   map[string]map[string]*UsageCounter // tenantID -> quotaName -> counter
	seatLock map[string]bool                    // tenantID -> held
}

// NewQuotaGuard constructs an empty QuotaGuard.
func NewQuotaGuard() *QuotaGuard {
	return &QuotaGuard{
		usage:    make(map[string]map[string]*UsageCounter),
		seatLock: make(map[string]bool),
	}
}

// SetLimit installs or replaces the limit for tenantID/quotaName, leaving
// any existing usage count intact.
func (g *QuotaGuard) SetLimit(tenantID, quotaName string, limit int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	tenantUsage := g.tenantUsageLocked(tenantID)
	counter, ok := tenantUsage[quotaName]
	if !ok {
		tenantUsage[quotaName] = &UsageCounter{Limit: limit}
		return
	}
	counter.Limit = limit
}

func (g *QuotaGuard) tenantUsageLocked(tenantID string) map[string]*UsageCounter {
	tenantUsage, ok := g.usage[tenantID]
	if !ok {
		tenantUsage = make(map[string]*UsageCounter)
		g.usage[tenantID] = tenantUsage
	}
	return tenantUsage
}

// Consume attempts to charge one unit of quotaName against tenantID,
// refusing with QuotaExceeded if usage is already at or above the limit.
// A quota with no configured limit is treated as unlimited.
func (g *QuotaGuard) Consume(tenantID, quotaName string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	tenantUsage := g.tenantUsageLocked(tenantID)
	counter, ok := tenantUsage[quotaName]
	if !ok {
		tenantUsage[quotaName] = &UsageCounter{Used: 1}
		return nil
	}
	if counter.Limit > 0 && counter.Used >= counter.Limit {
		return ironerrors.QuotaExceeded(quotaName, counter.Limit, counter.Used)
	}
	counter.Used++
	return nil
}

// ResetPeriod zeroes Used for every quota tracked under tenantID, called
// at the start of a new billing/usage period.
func (g *QuotaGuard) ResetPeriod(tenantID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, counter := range g.tenantUsageLocked(tenantID) {
		counter.Used = 0
	}
}

// AcquireSeatLock takes an advisory, tenant-scoped lock guarding
// concurrent seat invitations so two simultaneous invites cannot both
// observe room for the last seat. Returns false if already held.
func (g *QuotaGuard) AcquireSeatLock(tenantID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seatLock[tenantID] {
		return false
	}
	g.seatLock[tenantID] = true
	return true
}

// ReleaseSeatLock releases a lock taken by AcquireSeatLock.
func (g *QuotaGuard) ReleaseSeatLock(tenantID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.seatLock, tenantID)
}

// BudgetGuard enforces a per-tenant, per-budget-name USD ceiling. Cents are
// used internally to avoid floating point drift across many small charges.
type BudgetGuard struct {
	mu     sync.Mutex
	budget map[string]map[string]*budgetState
}

type budgetState struct {
	limitCents int64
	spentCents int64
}

// NewBudgetGuard constructs an empty BudgetGuard.
func NewBudgetGuard() *BudgetGuard {
	return &BudgetGuard{budget: make(map[string]map[string]*budgetState)}
}

// SetLimit installs or replaces limitUSD for tenantID/budgetName.
func (g *BudgetGuard) SetLimit(tenantID, budgetName string, limitUSD float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	tenantBudgets := g.tenantBudgetsLocked(tenantID)
	state, ok := tenantBudgets[budgetName]
	if !ok {
		tenantBudgets[budgetName] = &budgetState{limitCents: usdToCents(limitUSD)}
		return
	}
	state.limitCents = usdToCents(limitUSD)
}

func (g *BudgetGuard) tenantBudgetsLocked(tenantID string) map[string]*budgetState {
	tenantBudgets, ok := g.budget[tenantID]
	if !ok {
		tenantBudgets = make(map[string]*budgetState)
		g.budget[tenantID] = tenantBudgets
	}
	return tenantBudgets
}

// Charge refuses the call with BudgetExceeded if spend is already at or
// above the limit (the budget-cliff semantics: a call that pushes spend up
// to the cap still succeeds; only a call placed once spend already meets
// or exceeds the cap is refused), otherwise records costUSD against the
// running total.
func (g *BudgetGuard) Charge(tenantID, budgetName string, costUSD float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	tenantBudgets := g.tenantBudgetsLocked(tenantID)
	state, ok := tenantBudgets[budgetName]
	if !ok {
		tenantBudgets[budgetName] = &budgetState{spentCents: usdToCents(costUSD)}
		return nil
	}
	if state.limitCents > 0 && state.spentCents >= state.limitCents {
		return ironerrors.BudgetExceeded(budgetName, state.limitCents, state.spentCents)
	}
	state.spentCents += usdToCents(costUSD)
	return nil
}

func usdToCents(usd float64) int64 {
	return int64(usd*100 + 0.5)
}
