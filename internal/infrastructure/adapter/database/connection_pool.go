package database

import (
	"context"
	"database/sql"
	"sync"
	"time"

	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
)

// DefaultMonitorInterval is used when Run is given a non-positive interval
const DefaultMonitorInterval = 30 * time.Second

// DefaultPoolSaturation is the in-use share of MaxOpenConnections that triggers a warning
const DefaultPoolSaturation = 0.8

// PoolSample is one reading of the connection pool
type PoolSample struct {
	Open         int
	Idle         int
	InUse        int
	MaxOpen      int
	WaitCount    int64
	WaitDuration time.Duration
	SampledAt    time.Time
}

// Saturation returns InUse as a share of MaxOpen, or 0 for an unbounded pool
func (s PoolSample) Saturation() float64 {
	if s.MaxOpen <= 0 {
		return 0
	}
	return float64(s.InUse) / float64(s.MaxOpen)
}

// StatsFunc reads the current pool statistics
type StatsFunc func() (sql.DBStats, error)

// PoolMonitor samples the pool and warns when balance writers are close to queueing for connections
type PoolMonitor struct {
	stats        StatsFunc
	logger       coreport.Logger
	timeProvider coreport.TimeProvider
	saturation   float64

	mu        sync.RWMutex
	last      PoolSample
	peakInUse int
}

// NewPoolMonitor creates a monitor that warns above DefaultPoolSaturation
func NewPoolMonitor(stats StatsFunc, logger coreport.Logger, timeProvider coreport.TimeProvider) *PoolMonitor {
	return &PoolMonitor{
		stats:        stats,
		logger:       logger,
		timeProvider: timeProvider,
		saturation:   DefaultPoolSaturation,
	}
}

// Run samples every interval until ctx is cancelled
func (m *PoolMonitor) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultMonitorInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Sample(); err != nil {
				m.logger.Error("Failed to sample connection pool", map[string]any{"error": err.Error()})
			}
		}
	}
}

// Sample reads the pool once and records the result
func (m *PoolMonitor) Sample() (PoolSample, error) {
	stats, err := m.stats()
	if err != nil {
		return PoolSample{}, err
	}

	sample := PoolSample{
		Open:         stats.OpenConnections,
		Idle:         stats.Idle,
		InUse:        stats.InUse,
		MaxOpen:      stats.MaxOpenConnections,
		WaitCount:    stats.WaitCount,
		WaitDuration: stats.WaitDuration,
		SampledAt:    m.timeProvider.Now(),
	}

	m.mu.Lock()
	m.last = sample
	if sample.InUse > m.peakInUse {
		m.peakInUse = sample.InUse
	}
	m.mu.Unlock()

	// a single-connection pool (sqlite :memory:) is always "saturated"
	if sample.MaxOpen > 1 && sample.Saturation() > m.saturation {
		m.logger.Warn("Database connection pool nearly exhausted", map[string]any{
			"inUse":     sample.InUse,
			"maxOpen":   sample.MaxOpen,
			"idle":      sample.Idle,
			"waitCount": sample.WaitCount,
			"waitTime":  sample.WaitDuration.String(),
		})
	}
	return sample, nil
}

// Last returns the most recent sample
func (m *PoolMonitor) Last() PoolSample {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// PeakInUse returns the highest in-use count seen since the monitor was created
func (m *PoolMonitor) PeakInUse() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.peakInUse
}
