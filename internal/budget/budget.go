// Package budget tracks per-tenant token and cost spend against daily,
// weekly and monthly limits, warning as usage approaches the ceiling and
// resetting automatically at each period boundary.
package budget

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-router-gateway/internal/types"
)

// Period identifies a budget accounting window.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"  // ISO week, Monday start
	PeriodMonthly Period = "monthly"
)

// WarningThreshold is the usage ratio at which a budget is flagged as
// approaching its limit.
const WarningThreshold = 0.8

// historyCap bounds the in-memory usage ring; once reached the oldest half
// is trimmed so long-running processes don't grow unbounded.
const historyCap = 1000
const historyTrimTo = 500

// UsageRecord is one recorded spend event.
type UsageRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	Tokens    int       `json:"tokens"`
	Cost      float64   `json:"cost"`
}

// Status reports a tenant's budget state for one period, covering both the
// cost ceiling and the token ceiling named by the QuotaEntry entity.
type Status struct {
	Period       Period    `json:"period"`
	Limit        float64   `json:"limit"`
	Spent        float64   `json:"spent"`
	Remaining    float64   `json:"remaining"`
	Ratio        float64   `json:"ratio"`
	TokenLimit   int64     `json:"token_limit"`
	TokensUsed   int64     `json:"tokens_used"`
	TokensLeft   int64     `json:"tokens_remaining"`
	Warning      bool      `json:"warning"`
	Exceeded     bool      `json:"exceeded"`
	PeriodStart  time.Time `json:"period_start"`
	PeriodEnd    time.Time `json:"period_end"`
}

// Limits configures the cost and token ceilings for each accounting
// period. A zero value means unlimited for that period/dimension.
type Limits struct {
	Daily   float64 `yaml:"daily"`
	Weekly  float64 `yaml:"weekly"`
	Monthly float64 `yaml:"monthly"`

	DailyTokens   int64 `yaml:"daily_tokens"`
	WeeklyTokens  int64 `yaml:"weekly_tokens"`
	MonthlyTokens int64 `yaml:"monthly_tokens"`
}

// EstimateTokens gives a rough pre-call token estimate for gating Authorize
// checks before the upstream's own usage counts are known, the same
// char-count heuristic the provider adapters use for their own estimates.
func EstimateTokens(text string) int {
	return len(text)/4 + 1
}

// PriceTable maps "provider:model" to per-1K-token input/output costs.
type PriceTable map[string]types.CostStructure

type tenantLedger struct {
	history      []UsageRecord
	spent        map[Period]float64
	tokensSpent  map[Period]int64
	start        map[Period]time.Time
}

// Manager tracks spend across tenants and periods.
type Manager struct {
	mu      sync.Mutex
	limits  Limits
	prices  PriceTable
	logger  *logrus.Logger
	ledgers map[string]*tenantLedger
}

// New builds a Manager with the given limits and price table.
func New(limits Limits, prices PriceTable, logger *logrus.Logger) *Manager {
	return &Manager{
		limits:  limits,
		prices:  prices,
		logger:  logger,
		ledgers: make(map[string]*tenantLedger),
	}
}

// Authorize reports whether charging promptTokens+completionTokens at the
// given provider/model would exceed any configured limit for tenant. It
// does not mutate any running total — callers must still call RecordUsage
// once the upstream call actually completes. The triggering request is
// never itself charged when Authorize denies it.
func (m *Manager) Authorize(tenant, provider, model string, promptTokens, completionTokens int) (allowed bool, exceededPeriod Period) {
	cost := m.estimateCost(provider, model, promptTokens, completionTokens)
	tokens := int64(promptTokens + completionTokens)

	m.mu.Lock()
	defer m.mu.Unlock()

	ledger := m.getOrCreateLedgerLocked(tenant)
	now := time.Now()

	for _, p := range []Period{PeriodDaily, PeriodWeekly, PeriodMonthly} {
		m.rolloverLocked(ledger, p, now)

		if limit := m.limitFor(p); limit > 0 && ledger.spent[p]+cost > limit {
			m.logger.WithFields(logrus.Fields{
				"tenant": tenant,
				"period": p,
			}).Warn("cost budget exceeded, denying request")
			return false, p
		}
		if tokenLimit := m.tokenLimitFor(p); tokenLimit > 0 && ledger.tokensSpent[p]+tokens > tokenLimit {
			m.logger.WithFields(logrus.Fields{
				"tenant": tenant,
				"period": p,
			}).Warn("token budget exceeded, denying request")
			return false, p
		}
	}
	return true, ""
}

// RecordUsage appends a usage event for tenant and updates its running
// spend for every period, rolling over any period whose window has elapsed.
// Callers should have called Authorize first; RecordUsage itself does not
// deny.
func (m *Manager) RecordUsage(tenant, provider, model string, promptTokens, completionTokens int) UsageRecord {
	cost := m.estimateCost(provider, model, promptTokens, completionTokens)
	record := UsageRecord{
		Timestamp: time.Now(),
		Provider:  provider,
		Model:     model,
		Tokens:    promptTokens + completionTokens,
		Cost:      cost,
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ledger := m.getOrCreateLedgerLocked(tenant)
	now := record.Timestamp

	for _, p := range []Period{PeriodDaily, PeriodWeekly, PeriodMonthly} {
		m.rolloverLocked(ledger, p, now)
		ledger.spent[p] += cost
		ledger.tokensSpent[p] += int64(record.Tokens)
	}

	ledger.history = append(ledger.history, record)
	if len(ledger.history) > historyCap {
		ledger.history = append([]UsageRecord(nil), ledger.history[len(ledger.history)-historyTrimTo:]...)
	}

	for _, p := range []Period{PeriodDaily, PeriodWeekly, PeriodMonthly} {
		limit := m.limitFor(p)
		if limit <= 0 {
			continue
		}
		ratio := ledger.spent[p] / limit
		if ratio >= WarningThreshold {
			m.logger.WithFields(logrus.Fields{
				"tenant": tenant,
				"period": p,
				"ratio":  ratio,
			}).Warn("budget approaching limit")
		}
	}

	return record
}

// Status returns the current spend status for tenant across all periods.
func (m *Manager) Status(tenant string) map[Period]Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	ledger := m.getOrCreateLedgerLocked(tenant)
	now := time.Now()

	result := make(map[Period]Status, 3)
	for _, p := range []Period{PeriodDaily, PeriodWeekly, PeriodMonthly} {
		m.rolloverLocked(ledger, p, now)
		limit := m.limitFor(p)
		spent := ledger.spent[p]
		tokenLimit := m.tokenLimitFor(p)
		tokensUsed := ledger.tokensSpent[p]

		ratio := 0.0
		if limit > 0 {
			ratio = spent / limit
		}
		tokensLeft := int64(0)
		if tokenLimit > 0 {
			tokensLeft = tokenLimit - tokensUsed
		}

		result[p] = Status{
			Period:      p,
			Limit:       limit,
			Spent:       spent,
			Remaining:   limit - spent,
			Ratio:       ratio,
			TokenLimit:  tokenLimit,
			TokensUsed:  tokensUsed,
			TokensLeft:  tokensLeft,
			Warning:     limit > 0 && ratio >= WarningThreshold,
			Exceeded:    (limit > 0 && spent > limit) || (tokenLimit > 0 && tokensUsed > tokenLimit),
			PeriodStart: ledger.start[p],
			PeriodEnd:   periodEnd(p, ledger.start[p]),
		}
	}
	return result
}

// History returns the tenant's recorded usage events, most recent last.
func (m *Manager) History(tenant string) []UsageRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	ledger, ok := m.ledgers[tenant]
	if !ok {
		return nil
	}
	out := make([]UsageRecord, len(ledger.history))
	copy(out, ledger.history)
	return out
}

func (m *Manager) estimateCost(provider, model string, promptTokens, completionTokens int) float64 {
	structure, ok := m.prices[provider+":"+model]
	if !ok {
		return 0
	}
	return float64(promptTokens)/1000*structure.InputCostPer1K + float64(completionTokens)/1000*structure.OutputCostPer1K
}

func (m *Manager) limitFor(p Period) float64 {
	switch p {
	case PeriodDaily:
		return m.limits.Daily
	case PeriodWeekly:
		return m.limits.Weekly
	case PeriodMonthly:
		return m.limits.Monthly
	default:
		return 0
	}
}

func (m *Manager) tokenLimitFor(p Period) int64 {
	switch p {
	case PeriodDaily:
		return m.limits.DailyTokens
	case PeriodWeekly:
		return m.limits.WeeklyTokens
	case PeriodMonthly:
		return m.limits.MonthlyTokens
	default:
		return 0
	}
}

func (m *Manager) getOrCreateLedgerLocked(tenant string) *tenantLedger {
	ledger, ok := m.ledgers[tenant]
	if !ok {
		now := time.Now()
		ledger = &tenantLedger{
			spent:       make(map[Period]float64),
			tokensSpent: make(map[Period]int64),
			start: map[Period]time.Time{
				PeriodDaily:   periodStart(PeriodDaily, now),
				PeriodWeekly:  periodStart(PeriodWeekly, now),
				PeriodMonthly: periodStart(PeriodMonthly, now),
			},
		}
		m.ledgers[tenant] = ledger
	}
	return ledger
}

// rolloverLocked resets a period's running total once its window has
// elapsed. m.mu must be held.
func (m *Manager) rolloverLocked(ledger *tenantLedger, p Period, now time.Time) {
	if now.Before(periodEnd(p, ledger.start[p])) {
		return
	}
	ledger.start[p] = periodStart(p, now)
	ledger.spent[p] = 0
	ledger.tokensSpent[p] = 0
}

func periodStart(p Period, t time.Time) time.Time {
	switch p {
	case PeriodDaily:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	case PeriodWeekly:
		weekday := int(t.Weekday())
		if weekday == 0 {
			weekday = 7 // ISO week starts Monday
		}
		monday := t.AddDate(0, 0, -(weekday - 1))
		return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, t.Location())
	case PeriodMonthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	default:
		return t
	}
}

func periodEnd(p Period, start time.Time) time.Time {
	switch p {
	case PeriodDaily:
		return start.AddDate(0, 0, 1)
	case PeriodWeekly:
		return start.AddDate(0, 0, 7)
	case PeriodMonthly:
		return start.AddDate(0, 1, 0)
	default:
		return start
	}
}
