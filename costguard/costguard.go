// Package costguard implements the Cost Guard (C12): it rolls every LLM
// usage record into a monthly (provider, model) aggregate, alerts once a
// spend threshold is crossed, and trips a kill-switch the LLM gateway
// checks before placing further calls.
package costguard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vertexsales/salesbot/store"
)

// CostLimitExceeded is returned by Check once the kill-switch has tripped.
type CostLimitExceeded struct {
	Provider string
	Model    string
}

func (e *CostLimitExceeded) Error() string {
	return fmt.Sprintf("costguard: monthly cost limit exceeded for %s/%s", e.Provider, e.Model)
}

// Alerter delivers the CRITICAL threshold/limit alert.
type Alerter interface {
	AlertCritical(ctx context.Context, subject, body string) error
}

// Config mirrors config.CostGuardConfig without importing it, keeping this
// package free of a dependency on the config loader.
type Config struct {
	MonthlyTokenLimit   int64
	MonthlyCostLimitUSD float64
	AlertThreshold      float64
	AutoDisableOnLimit  bool
	AlertEnabled        bool
	WeeklyUsageReport   bool
}

// Guard tracks monthly spend and exposes the kill-switch the LLM gateway
// consults before every call.
type Guard struct {
	cfg     Config
	usage   *store.UsageRecordRepository
	alerter Alerter
	logger  *zap.Logger

	mu       sync.Mutex
	disabled map[string]bool // "provider/model" -> kill-switch tripped
}

// New returns a Guard.
func New(cfg Config, usage *store.UsageRecordRepository, alerter Alerter, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{
		cfg:      cfg,
		usage:    usage,
		alerter:  alerter,
		logger:   logger,
		disabled: make(map[string]bool),
	}
}

func key(provider, model string) string { return provider + "/" + model }

// Check is consulted by the LLM gateway before placing a call. It returns
// CostLimitExceeded if the kill-switch has tripped for (provider, model).
func (g *Guard) Check(provider, model string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.disabled[key(provider, model)] {
		return &CostLimitExceeded{Provider: provider, Model: model}
	}
	return nil
}

// ClearLimit clears a tripped kill-switch for (provider, model), the
// operator's manual reset.
func (g *Guard) ClearLimit(provider, model string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.disabled, key(provider, model))
}

// RecordUsage rolls tokens/cost into the monthly aggregate for (provider,
// model) and evaluates the alert/kill-switch thresholds.
func (g *Guard) RecordUsage(ctx context.Context, provider, model string, tokens int64, pricePer1K float64) error {
	now := time.Now()
	year, month := now.Year(), int(now.Month())

	if err := g.usage.AddUsage(ctx, provider, model, year, month, tokens, pricePer1K); err != nil {
		return fmt.Errorf("record usage: %w", err)
	}

	return g.evaluate(ctx, provider, model, year, month)
}

// evaluate re-derives the month-to-date spend across every provider and
// model, fires the threshold alert once per month (tracked by the usage rows'
// alert_fired flag) and trips the (provider, model) kill-switch once until it
// is cleared.
func (g *Guard) evaluate(ctx context.Context, provider, model string, year, month int) error {
	monthTokens, monthCost, err := g.usage.MonthTotal(ctx, year, month)
	if err != nil {
		return fmt.Errorf("evaluate usage: %w", err)
	}

	if g.cfg.MonthlyCostLimitUSD <= 0 {
		return nil
	}

	projected := monthCost
	ratio := projected / g.cfg.MonthlyCostLimitUSD

	if g.cfg.AlertEnabled && ratio >= g.cfg.AlertThreshold {
		records, err := g.usage.ForMonth(ctx, year, month)
		if err != nil {
			return fmt.Errorf("evaluate usage: %w", err)
		}
		alreadyFired, currentID := false, uint(0)
		for _, r := range records {
			alreadyFired = alreadyFired || r.AlertFired
			if r.Provider == provider && r.Model == model {
				currentID = r.ID
			}
		}
		if !alreadyFired {
			g.fireThresholdAlert(ctx, provider, model, projected, ratio)
			if err := g.usage.MarkAlertFired(ctx, currentID); err != nil {
				g.logger.Error("cost guard: failed to record alert watermark", zap.Error(err))
			}
		}
	}

	if ratio >= 1.0 && g.cfg.AutoDisableOnLimit {
		g.tripKillSwitch(ctx, provider, model, projected)
	}

	g.logger.Debug("cost guard evaluated",
		zap.String("provider", provider), zap.String("model", model),
		zap.Int64("month_tokens", monthTokens), zap.Float64("month_cost_usd", monthCost))
	return nil
}

func (g *Guard) fireThresholdAlert(ctx context.Context, provider, model string, projected, ratio float64) {
	subject := "LLM spend threshold exceeded"
	body := fmt.Sprintf("%s/%s projected monthly cost $%.2f is %.0f%% of the $%.2f limit",
		provider, model, projected, ratio*100, g.cfg.MonthlyCostLimitUSD)
	g.logger.Warn(subject, zap.String("provider", provider), zap.String("model", model), zap.Float64("ratio", ratio))
	if g.alerter == nil {
		return
	}
	if err := g.alerter.AlertCritical(ctx, subject, body); err != nil {
		g.logger.Error("cost guard: failed to send threshold alert", zap.Error(err))
	}
}

func (g *Guard) tripKillSwitch(ctx context.Context, provider, model string, projected float64) {
	g.mu.Lock()
	alreadyTripped := g.disabled[key(provider, model)]
	g.disabled[key(provider, model)] = true
	g.mu.Unlock()
	if alreadyTripped {
		return
	}

	g.logger.Error("cost guard: kill-switch tripped", zap.String("provider", provider), zap.String("model", model))
	if g.alerter == nil {
		return
	}
	subject := "LLM spend limit reached, provider disabled"
	body := fmt.Sprintf("%s/%s reached $%.2f, exceeding the $%.2f monthly limit. Calls will fail until cleared.",
		provider, model, projected, g.cfg.MonthlyCostLimitUSD)
	if err := g.alerter.AlertCritical(ctx, subject, body); err != nil {
		g.logger.Error("cost guard: failed to send limit alert", zap.Error(err))
	}
}

// WeeklyReport summarizes the current month's spend across all providers,
// emitted once a week when Config.WeeklyUsageReport is enabled.
func (g *Guard) WeeklyReport(ctx context.Context) (string, error) {
	now := time.Now()
	records, err := g.usage.ForMonth(ctx, now.Year(), int(now.Month()))
	if err != nil {
		return "", fmt.Errorf("weekly report: %w", err)
	}
	var totalTokens int64
	var totalCost float64
	for _, r := range records {
		totalTokens += r.TotalTokens
		totalCost += float64(r.TotalTokens) / 1000 * r.PricePer1K
	}
	return fmt.Sprintf("Usage this month: %d tokens, $%.2f across %d provider/model pairs",
		totalTokens, totalCost, len(records)), nil
}
