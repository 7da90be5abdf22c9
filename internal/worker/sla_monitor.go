package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-guard/internal/service"
)

// TickRunner executes one monitor pass at the given instant.
type TickRunner interface {
	RunTick(ctx context.Context, now time.Time) service.TickReport
}

// SLAMonitorConfig configures the background monitor.
type SLAMonitorConfig struct {
	Interval   time.Duration
	RunOnStart bool
	Clock      func() time.Time
	Logger     *zap.Logger
}

// SLAMonitor drives RunTick on a fixed interval. Ticks never overlap: a tick
// that comes due while another is still running is skipped.
type SLAMonitor struct {
	runner     TickRunner
	interval   time.Duration
	runOnStart bool
	clock      func() time.Time
	logger     *zap.Logger

	inFlight sync.Mutex

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
	abort   context.CancelFunc
}

// NewSLAMonitor creates the monitor. It does nothing until Start.
func NewSLAMonitor(runner TickRunner, cfg SLAMonitorConfig) *SLAMonitor {
	m := &SLAMonitor{
		runner:     runner,
		interval:   cfg.Interval,
		runOnStart: cfg.RunOnStart,
		clock:      cfg.Clock,
		logger:     cfg.Logger,
	}
	if m.interval <= 0 {
		m.interval = 5 * time.Minute
	}
	if m.clock == nil {
		m.clock = func() time.Time { return time.Now().UTC() }
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	return m
}

// Start launches the timer loop. Ticks run under a context detached from ctx's
// cancellation so that Stop, not the caller, decides when they end.
func (m *SLAMonitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		m.logger.Warn("sla monitor already running")
		return
	}

	tickCtx, abort := context.WithCancel(context.WithoutCancel(ctx))
	m.running = true
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	m.abort = abort

	m.logger.Info("sla monitor started", zap.Duration("interval", m.interval), zap.Bool("run_on_start", m.runOnStart))
	go m.run(tickCtx, m.stop, m.done)
}

// Stop prevents further ticks and waits for an in-flight tick to finish. If
// ctx expires first, the in-flight tick's context is cancelled and ctx.Err()
// is returned.
func (m *SLAMonitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	close(m.stop)
	done, abort := m.done, m.abort
	m.mu.Unlock()

	select {
	case <-done:
		abort()
		m.logger.Info("sla monitor stopped")
		return nil
	case <-ctx.Done():
		abort()
		m.logger.Warn("sla monitor stop timed out; in-flight tick cancelled", zap.Error(ctx.Err()))
		return ctx.Err()
	}
}

// TriggerNow runs a tick immediately on the caller's goroutine. It returns
// false without running anything when a tick is already in flight.
func (m *SLAMonitor) TriggerNow(ctx context.Context) (service.TickReport, bool) {
	return m.tick(ctx)
}

func (m *SLAMonitor) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	if m.runOnStart {
		m.tick(ctx)
	}

	for {
		select {
		case <-ticker.C:
			select {
			case <-stop:
				return
			default:
			}
			m.tick(ctx)
		case <-stop:
			return
		}
	}
}

func (m *SLAMonitor) tick(ctx context.Context) (report service.TickReport, ran bool) {
	if !m.inFlight.TryLock() {
		m.logger.Warn("sla monitor tick skipped; previous tick still running")
		return service.TickReport{}, false
	}
	defer m.inFlight.Unlock()

	defer func() {
		if r := recover(); r != nil {
			report.Err = fmt.Errorf("sla monitor tick panicked: %v", r)
			m.logger.Error("sla monitor tick panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	ran = true
	report = m.runner.RunTick(ctx, m.clock())
	return report, ran
}
