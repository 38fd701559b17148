package rslimiter

import (
	"context"
	"sync"
	"time"

	"github.com/aleister1102/driftwatch/internal/config"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// ResourceLimiter samples process/system resource usage on an interval and
// exposes a single OverThreshold signal the scheduler treats like queue
// backpressure.
type ResourceLimiter struct {
	cfg    config.LimiterConfig
	logger zerolog.Logger

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup

	mu            sync.RWMutex
	overThreshold bool
	isRunning     bool
}

// NewResourceLimiter creates a limiter from config.
func NewResourceLimiter(cfg config.LimiterConfig, logger zerolog.Logger) *ResourceLimiter {
	ctx, cancel := context.WithCancel(context.Background())
	return &ResourceLimiter{
		cfg:        cfg,
		logger:     logger.With().Str("component", "ResourceLimiter").Logger(),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start launches the sampling loop. Disabled limiters never report
// over-threshold.
func (rl *ResourceLimiter) Start() {
	if !rl.cfg.Enabled {
		rl.logger.Info().Msg("Resource limiter disabled")
		return
	}

	rl.mu.Lock()
	if rl.isRunning {
		rl.mu.Unlock()
		return
	}
	rl.isRunning = true
	rl.mu.Unlock()

	rl.wg.Add(1)
	go rl.loop()
	rl.logger.Info().
		Int("max_memory_mb", rl.cfg.MaxMemoryMB).
		Float64("cpu_threshold", rl.cfg.CPUThreshold).
		Msg("Resource limiter started")
}

// Stop halts sampling.
func (rl *ResourceLimiter) Stop() {
	rl.mu.Lock()
	running := rl.isRunning
	rl.isRunning = false
	rl.mu.Unlock()
	if !running {
		return
	}
	rl.cancelFunc()
	rl.wg.Wait()
}

// OverThreshold reports whether the last sample exceeded a configured
// limit.
func (rl *ResourceLimiter) OverThreshold() bool {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return rl.overThreshold
}

func (rl *ResourceLimiter) loop() {
	defer rl.wg.Done()
	interval := time.Duration(rl.cfg.CheckIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.ctx.Done():
			return
		case <-ticker.C:
			rl.sample()
		}
	}
}

func (rl *ResourceLimiter) sample() {
	over := false

	if vm, err := mem.VirtualMemory(); err == nil {
		usedMB := float64(vm.Used) / (1024 * 1024)
		limitMB := float64(rl.cfg.MaxMemoryMB) * rl.cfg.MemoryThreshold
		if rl.cfg.MaxMemoryMB > 0 && usedMB > limitMB {
			rl.logger.Warn().Float64("used_mb", usedMB).Float64("limit_mb", limitMB).Msg("Memory usage over threshold")
			over = true
		}
	}

	if !over {
		if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
			if percents[0]/100 > rl.cfg.CPUThreshold {
				rl.logger.Warn().Float64("cpu_percent", percents[0]).Msg("CPU usage over threshold")
				over = true
			}
		}
	}

	rl.mu.Lock()
	rl.overThreshold = over
	rl.mu.Unlock()
}
