package chat

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/portfolio-chat/internal/backend"
	"github.com/ashureev/portfolio-chat/internal/domain"
)

const (
	// DefaultHealthInterval is the polling period of the health monitor.
	DefaultHealthInterval = 30 * time.Second
	// DefaultProbeTimeout bounds a single probe.
	DefaultProbeTimeout = 5 * time.Second
)

// HealthMonitor probes the answering service and tracks its reachability.
type HealthMonitor struct {
	prober  backend.Prober
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	status domain.HealthStatus
}

// NewHealthMonitor creates a monitor. Status starts Online.
func NewHealthMonitor(prober backend.Prober, probeTimeout time.Duration, logger *slog.Logger) *HealthMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	if probeTimeout <= 0 {
		probeTimeout = DefaultProbeTimeout
	}
	return &HealthMonitor{
		prober:  prober,
		timeout: probeTimeout,
		logger:  logger,
		status:  domain.HealthOnline,
	}
}

// Status returns the most recently reported status.
func (m *HealthMonitor) Status() domain.HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// CheckOnce runs one bounded probe. Any failure reads as Offline.
func (m *HealthMonitor) CheckOnce(ctx context.Context) domain.HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := m.prober.Probe(ctx); err != nil {
		m.logger.Debug("Health probe failed", "error", err)
		return domain.HealthOffline
	}
	return domain.HealthOnline
}

// ErrReportedOffline is returned by a StatusProber while its monitor reports
// Offline.
var ErrReportedOffline = errors.New("answering service reported offline")

// StatusProber answers probes from the monitor's last reported status without
// contacting the answering service, so many sessions can share one upstream
// poller.
func (m *HealthMonitor) StatusProber() backend.Prober {
	return statusProber{m: m}
}

type statusProber struct {
	m *HealthMonitor
}

func (p statusProber) Probe(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !p.m.Status().Online() {
		return ErrReportedOffline
	}
	return nil
}

// PollHandle cancels a polling loop started by StartPolling.
type PollHandle struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	stopped bool
}

// Done is closed once the polling goroutine has exited.
func (h *PollHandle) Done() <-chan struct{} {
	return h.done
}

// report delivers a probe result unless the handle was stopped first.
func (h *PollHandle) report(fn func()) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return false
	}
	fn()
	return true
}

// StartPolling probes immediately, reports the result, then repeats every
// interval until ctx ends or the handle is stopped. Probes run on the polling
// goroutine, never on the caller's.
func (m *HealthMonitor) StartPolling(ctx context.Context, interval time.Duration, onChange func(domain.HealthStatus)) *PollHandle {
	if interval <= 0 {
		interval = DefaultHealthInterval
	}
	pollCtx, cancel := context.WithCancel(ctx)
	h := &PollHandle{cancel: cancel, done: make(chan struct{})}

	tick := func() {
		status := m.CheckOnce(pollCtx)
		h.report(func() {
			m.mu.Lock()
			m.status = status
			m.mu.Unlock()
			if onChange != nil {
				onChange(status)
			}
		})
	}

	go func() {
		defer close(h.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		tick()
		for {
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
				tick()
			}
		}
	}()

	return h
}

// Stop cancels future polling. A probe still in flight completes but its result
// is discarded. Once Stop returns no further reports are delivered, so it must
// not be called from inside the onChange callback.
func (m *HealthMonitor) Stop(h *PollHandle) {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()
	h.cancel()
}
