// Package resource periodically samples host CPU load, memory pressure
// and scheduler lag and reduces them to a single health label the router
// uses to prefer faster upstreams when the process itself is under load.
package resource

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-router-gateway/internal/types"
)

// Config tunes sampling cadence and the thresholds that separate
// HEALTHY/DEGRADED/CRITICAL.
type Config struct {
	SampleInterval    time.Duration `yaml:"sample_interval"`     // default 5s
	CPUWarnPercent    float64       `yaml:"cpu_warn_percent"`    // default 75
	CPUCriticalPercent float64      `yaml:"cpu_critical_percent"` // default 90
	MemWarnFraction   float64       `yaml:"mem_warn_fraction"`   // default 0.80
	MemCriticalFraction float64     `yaml:"mem_critical_fraction"` // default 0.92
	LagWarnMs         int64         `yaml:"lag_warn_ms"`         // default 50
	LagCriticalMs     int64         `yaml:"lag_critical_ms"`     // default 200
}

func (c *Config) applyDefaults() {
	if c.SampleInterval == 0 {
		c.SampleInterval = 5 * time.Second
	}
	if c.CPUWarnPercent == 0 {
		c.CPUWarnPercent = 75
	}
	if c.CPUCriticalPercent == 0 {
		c.CPUCriticalPercent = 90
	}
	if c.MemWarnFraction == 0 {
		c.MemWarnFraction = 0.80
	}
	if c.MemCriticalFraction == 0 {
		c.MemCriticalFraction = 0.92
	}
	if c.LagWarnMs == 0 {
		c.LagWarnMs = 50
	}
	if c.LagCriticalMs == 0 {
		c.LagCriticalMs = 200
	}
}

// Sample is one reading taken by the monitor.
type Sample struct {
	CPUPercent  float64
	MemFraction float64
	LagMs       int64
	Health      types.HealthLabel
	At          time.Time
}

// Monitor runs a background sampling loop and exposes the most recent
// Sample to readers under a read-mostly lock.
type Monitor struct {
	config Config
	logger *logrus.Logger

	mu      sync.RWMutex
	current Sample

	stop chan struct{}
	wg   sync.WaitGroup
}

// New builds a Monitor. Call Start to begin sampling.
func New(config Config, logger *logrus.Logger) *Monitor {
	config.applyDefaults()
	return &Monitor{
		config:  config,
		logger:  logger,
		current: Sample{Health: types.HealthHealthy, At: time.Now()},
		stop:    make(chan struct{}),
	}
}

// Start launches the background sampling loop. Safe to call once.
func (m *Monitor) Start(ctx context.Context) {
	m.wg.Add(1)
	go m.loop(ctx)
}

// Stop halts the sampling loop and waits for it to exit.
func (m *Monitor) Stop() {
	close(m.stop)
	m.wg.Wait()
}

func (m *Monitor) loop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.config.SampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		case <-ticker.C:
			m.sample()
		}
	}
}

func (m *Monitor) sample() {
	cpuPercent := m.readCPUPercent()
	memFraction := m.readMemFraction()
	lagMs := m.readSchedulerLag()

	health := classify(cpuPercent, memFraction, lagMs, m.config)

	sample := Sample{CPUPercent: cpuPercent, MemFraction: memFraction, LagMs: lagMs, Health: health, At: time.Now()}

	m.mu.Lock()
	previous := m.current.Health
	m.current = sample
	m.mu.Unlock()

	if previous != health {
		m.logger.WithFields(logrus.Fields{
			"from": previous,
			"to":   health,
			"cpu":  cpuPercent,
			"mem":  memFraction,
			"lag_ms": lagMs,
		}).Info("resource health transitioned")
	}
}

func (m *Monitor) readCPUPercent() float64 {
	percentages, err := cpu.Percent(0, false)
	if err != nil || len(percentages) == 0 {
		m.logger.WithError(err).Debug("cpu sampling failed")
		return 0
	}
	return percentages[0]
}

func (m *Monitor) readMemFraction() float64 {
	stats, err := mem.VirtualMemory()
	if err != nil {
		m.logger.WithError(err).Debug("memory sampling failed")
		return 0
	}
	return stats.UsedPercent / 100
}

// readSchedulerLag measures how long it takes a goroutine scheduled right
// now to actually run, as a proxy for runtime scheduling pressure.
func (m *Monitor) readSchedulerLag() int64 {
	start := time.Now()
	done := make(chan struct{})
	go func() { close(done) }()
	<-done
	return time.Since(start).Milliseconds()
}

func classify(cpuPercent, memFraction float64, lagMs int64, config Config) types.HealthLabel {
	if cpuPercent >= config.CPUCriticalPercent || memFraction >= config.MemCriticalFraction || lagMs >= config.LagCriticalMs {
		return types.HealthCritical
	}
	if cpuPercent >= config.CPUWarnPercent || memFraction >= config.MemWarnFraction || lagMs >= config.LagWarnMs {
		return types.HealthDegraded
	}
	return types.HealthHealthy
}

// Current returns the most recent sample taken.
func (m *Monitor) Current() Sample {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Health is a convenience accessor for the current health label alone.
func (m *Monitor) Health() types.HealthLabel {
	return m.Current().Health
}
