package shadow

import (
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-router-gateway/internal/types"
)

// OptimizerConfig tunes the periodic weight rebalancing job.
type OptimizerConfig struct {
	UpdateInterval time.Duration `yaml:"update_interval"` // default 24h
	Eta            float64       `yaml:"eta"`              // learning rate, default 0.2
	MinComparisons int           `yaml:"min_comparisons"`  // default 20
	MinWeight      float64       `yaml:"min_weight"`       // default 1
	MaxWeight      float64       `yaml:"max_weight"`       // default 80
	MaxChange      float64       `yaml:"max_change"`       // default 5
}

func (c *OptimizerConfig) applyDefaults() {
	if c.UpdateInterval == 0 {
		c.UpdateInterval = 24 * time.Hour
	}
	if c.Eta == 0 {
		c.Eta = 0.2
	}
	if c.MinComparisons == 0 {
		c.MinComparisons = 20
	}
	if c.MinWeight == 0 {
		c.MinWeight = 1
	}
	if c.MaxWeight == 0 {
		c.MaxWeight = 80
	}
	if c.MaxChange == 0 {
		c.MaxChange = 5
	}
}

// WeightUpdate describes one upstream's weight change from a single
// optimizer run.
type WeightUpdate struct {
	Upstream   string
	OldWeight  float64
	NewWeight  float64
	WinRate    float64
	Accepted   bool // false when the computed delta was too small to apply
}

// Optimizer periodically nudges upstream weights toward whichever upstream
// the judge is scoring higher, within configured guardrails.
type Optimizer struct {
	config    OptimizerConfig
	logger    *logrus.Logger
	metrics   *MetricsCollector
	taskType  types.TaskType // metrics are aggregated per task type; GENERAL covers untyped traffic

	mu      sync.Mutex
	weights map[string]float64
}

// NewOptimizer builds an Optimizer seeded with the current config weights.
// initialWeights need not sum to 100; the first Run normalizes them.
func NewOptimizer(config OptimizerConfig, metrics *MetricsCollector, initialWeights map[string]float64, logger *logrus.Logger) *Optimizer {
	config.applyDefaults()
	weights := make(map[string]float64, len(initialWeights))
	for k, v := range initialWeights {
		weights[k] = v
	}
	return &Optimizer{
		config:   config,
		logger:   logger,
		metrics:  metrics,
		taskType: types.TaskGeneral,
		weights:  weights,
	}
}

// Weights returns a snapshot of the current normalized weight map.
func (o *Optimizer) Weights() map[string]float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]float64, len(o.weights))
	for k, v := range o.weights {
		out[k] = v
	}
	return out
}

// Run performs one optimizer pass: recompute each eligible upstream's
// weight from its rolling win rate, then renormalize everything to sum
// to 100. Upstreams below MinComparisons are left untouched by the
// per-upstream step but still participate in renormalization.
func (o *Optimizer) Run() []WeightUpdate {
	o.mu.Lock()
	defer o.mu.Unlock()

	updates := make([]WeightUpdate, 0, len(o.weights))

	for name, current := range o.weights {
		agg := o.metrics.Aggregate(name, o.taskType)
		if agg.Count < o.config.MinComparisons {
			continue
		}

		raw := current * (1 + o.config.Eta*(agg.WinRate-0.5))
		clamped := clampFloat(raw, o.config.MinWeight, o.config.MaxWeight)
		delta := clamped - current
		if math.Abs(delta) > o.config.MaxChange {
			if delta > 0 {
				delta = o.config.MaxChange
			} else {
				delta = -o.config.MaxChange
			}
			clamped = current + delta
		}
		clamped = roundTo1Decimal(clamped)
		delta = clamped - current

		update := WeightUpdate{Upstream: name, OldWeight: current, NewWeight: clamped, WinRate: agg.WinRate}
		if math.Abs(delta) >= 0.5 {
			update.Accepted = true
			o.weights[name] = clamped
			o.logger.WithFields(logrus.Fields{
				"upstream":   name,
				"old_weight": current,
				"new_weight": clamped,
				"win_rate":   agg.WinRate,
			}).Info("weight optimizer adjusted upstream weight")
		}
		updates = append(updates, update)
	}

	o.normalizeLocked()
	return updates
}

// normalizeLocked rescales all weights so they sum to 100. Called with mu
// held.
func (o *Optimizer) normalizeLocked() {
	var sum float64
	for _, w := range o.weights {
		sum += w
	}
	if sum == 0 {
		return
	}
	for name, w := range o.weights {
		o.weights[name] = roundTo1Decimal(w * 100 / sum)
	}
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func roundTo1Decimal(v float64) float64 {
	return math.Round(v*10) / 10
}
