package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sla-guard/internal/service"
)

type fakeRunner struct {
	mu      sync.Mutex
	calls   int32
	nows    []time.Time
	entered   chan struct{}
	release   chan struct{}
	cancelled chan struct{}
	panics    bool
}

func (r *fakeRunner) RunTick(ctx context.Context, now time.Time) service.TickReport {
	atomic.AddInt32(&r.calls, 1)
	r.mu.Lock()
	r.nows = append(r.nows, now)
	r.mu.Unlock()
	if r.entered != nil {
		r.entered <- struct{}{}
	}
	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
			if r.cancelled != nil {
				close(r.cancelled)
			}
			return service.TickReport{Now: now, Err: ctx.Err()}
		}
	}
	if r.panics {
		panic("boom")
	}
	return service.TickReport{Now: now, Scanned: 3}
}

func (r *fakeRunner) count() int { return int(atomic.LoadInt32(&r.calls)) }

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestTriggerNowUsesInjectedClock(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	runner := &fakeRunner{}
	m := NewSLAMonitor(runner, SLAMonitorConfig{Clock: fixedClock(at)})

	report, ran := m.TriggerNow(context.Background())
	require.True(t, ran)
	assert.Equal(t, at, report.Now)
	assert.Equal(t, 3, report.Scanned)
	assert.Equal(t, []time.Time{at}, runner.nows)
}

func TestTriggerNowSkipsWhileTickInFlight(t *testing.T) {
	runner := &fakeRunner{entered: make(chan struct{}, 1), release: make(chan struct{})}
	m := NewSLAMonitor(runner, SLAMonitorConfig{})

	finished := make(chan bool)
	go func() {
		_, ran := m.TriggerNow(context.Background())
		finished <- ran
	}()
	<-runner.entered

	_, ran := m.TriggerNow(context.Background())
	assert.False(t, ran)

	close(runner.release)
	assert.True(t, <-finished)
	assert.Equal(t, 1, runner.count())
}

func TestStartTicksOnIntervalUntilStopped(t *testing.T) {
	runner := &fakeRunner{}
	m := NewSLAMonitor(runner, SLAMonitorConfig{Interval: 5 * time.Millisecond, RunOnStart: true})

	m.Start(context.Background())
	require.Eventually(t, func() bool { return runner.count() >= 3 }, time.Second, time.Millisecond)

	require.NoError(t, m.Stop(context.Background()))
	stopped := runner.count()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, runner.count())
}

func TestStartTwiceKeepsOneLoop(t *testing.T) {
	runner := &fakeRunner{}
	m := NewSLAMonitor(runner, SLAMonitorConfig{Interval: time.Hour, RunOnStart: true})

	m.Start(context.Background())
	m.Start(context.Background())
	require.Eventually(t, func() bool { return runner.count() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, m.Stop(context.Background()))
	assert.Equal(t, 1, runner.count())
}

func TestStopWaitsForInFlightTick(t *testing.T) {
	runner := &fakeRunner{entered: make(chan struct{}, 1), release: make(chan struct{})}
	m := NewSLAMonitor(runner, SLAMonitorConfig{Interval: time.Hour, RunOnStart: true})
	m.Start(context.Background())
	<-runner.entered

	stopped := make(chan error)
	go func() { stopped <- m.Stop(context.Background()) }()

	select {
	case <-stopped:
		t.Fatal("stop returned before the in-flight tick finished")
	case <-time.After(20 * time.Millisecond):
	}

	close(runner.release)
	assert.NoError(t, <-stopped)
}

func TestStopTimesOutAndCancelsTick(t *testing.T) {
	runner := &fakeRunner{entered: make(chan struct{}, 1), release: make(chan struct{}), cancelled: make(chan struct{})}
	m := NewSLAMonitor(runner, SLAMonitorConfig{Interval: time.Hour, RunOnStart: true})
	m.Start(context.Background())
	<-runner.entered

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, m.Stop(ctx), context.DeadlineExceeded)

	select {
	case <-runner.cancelled:
	case <-time.After(time.Second):
		t.Fatal("in-flight tick was not cancelled")
	}
}

func TestStopWithoutStart(t *testing.T) {
	m := NewSLAMonitor(&fakeRunner{}, SLAMonitorConfig{})
	assert.NoError(t, m.Stop(context.Background()))
}

func TestTickRecoversFromPanic(t *testing.T) {
	m := NewSLAMonitor(&fakeRunner{panics: true}, SLAMonitorConfig{})
	report, ran := m.TriggerNow(context.Background())
	assert.True(t, ran)
	assert.Error(t, report.Err)
}
