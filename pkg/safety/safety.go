// Package safety latches the printer into a halted state on an emergency
// stop (M112) or when the main loop stops ticking, and releases it on a
// restart (M999).
package safety

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"idleguard/pkg/errors"
	"idleguard/pkg/log"
)

// State is the halt latch state.
type State int

const (
	// StateRunning indicates normal operation.
	StateRunning State = iota

	// StateShutdown indicates the printer is halted until restarted.
	StateShutdown
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Reason describes why the printer was halted.
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonEmergencyStop Reason = "emergency_stop"
	ReasonLoopStalled   Reason = "loop_stalled"
	ReasonUserRequest   Reason = "user_request"
)

// ErrShutdown is wrapped by every error returned while halted.
var ErrShutdown = stderrors.New("printer is shut down")

// Action runs once when the latch closes. Actions must not block.
type Action func(reason Reason, msg string)

// Config holds the watchdog settings.
type Config struct {
	// StallTimeout is how long the main loop may go without a heartbeat.
	// Zero disables the watchdog.
	StallTimeout time.Duration
	// Poll is how often the watchdog looks at the heartbeat.
	Poll time.Duration
}

// Manager holds the halt latch and the loop watchdog.
type Manager struct {
	cfg    Config
	logger *log.Logger

	mu      sync.RWMutex
	state   State
	reason  Reason
	msg     string
	since   time.Time
	actions []Action

	hbMu          sync.Mutex
	lastHeartbeat time.Time

	now func() time.Time
}

func New(cfg Config) *Manager {
	if cfg.Poll <= 0 {
		cfg.Poll = 500 * time.Millisecond
	}
	return &Manager{
		cfg:    cfg,
		logger: log.GetLogger("safety"),
		now:    time.Now,
	}
}

// OnShutdown registers an action run when the printer halts.
func (m *Manager) OnShutdown(fn Action) {
	m.mu.Lock()
	m.actions = append(m.actions, fn)
	m.mu.Unlock()
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsShutdown reports whether the latch is closed.
func (m *Manager) IsShutdown() bool {
	return m.State() == StateShutdown
}

// CheckOperational returns an error wrapping ErrShutdown while halted.
func (m *Manager) CheckOperational() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state == StateRunning {
		return nil
	}
	return errors.Wrap(fmt.Errorf("%w: %s", ErrShutdown, m.msg), errors.ErrRuntime,
		"use M999 to restart")
}

// EmergencyStop halts the printer (M112).
func (m *Manager) EmergencyStop(msg string) {
	m.shutdown(ReasonEmergencyStop, msg)
}

// RequestShutdown halts the printer on operator request.
func (m *Manager) RequestShutdown(msg string) {
	m.shutdown(ReasonUserRequest, msg)
}

func (m *Manager) shutdown(reason Reason, msg string) {
	m.mu.Lock()
	if m.state == StateShutdown {
		m.mu.Unlock()
		return
	}
	m.state = StateShutdown
	m.reason = reason
	m.msg = msg
	m.since = m.now()
	actions := append([]Action(nil), m.actions...)
	m.mu.Unlock()

	m.logger.WithField("reason", string(reason)).Error("printer halted: %s", msg)
	for _, fn := range actions {
		fn(reason, msg)
	}
}

// Reset reopens the latch (M999). It fails when the printer is running.
func (m *Manager) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateRunning {
		return errors.New(errors.ErrRuntime, "printer is not shut down")
	}
	m.state = StateRunning
	m.reason = ReasonNone
	m.msg = ""
	m.since = time.Time{}
	m.logger.Info("printer restarted")
	return nil
}

// Heartbeat records that the main loop ran. Call it once per tick.
func (m *Manager) Heartbeat() {
	m.hbMu.Lock()
	m.lastHeartbeat = m.now()
	m.hbMu.Unlock()
}

// checkStall halts the printer when the heartbeat is older than the stall
// timeout. It reports whether it halted.
func (m *Manager) checkStall() bool {
	if m.cfg.StallTimeout <= 0 || m.IsShutdown() {
		return false
	}
	m.hbMu.Lock()
	last := m.lastHeartbeat
	m.hbMu.Unlock()
	if last.IsZero() {
		return false
	}
	if elapsed := m.now().Sub(last); elapsed > m.cfg.StallTimeout {
		m.shutdown(ReasonLoopStalled, fmt.Sprintf("main loop stalled for %s", elapsed.Round(time.Millisecond)))
		return true
	}
	return false
}

// RunWatchdog checks the heartbeat until ctx is done. The watchdog stays
// quiet until the first heartbeat.
func (m *Manager) RunWatchdog(ctx context.Context) error {
	if m.cfg.StallTimeout <= 0 {
		return nil
	}
	ticker := time.NewTicker(m.cfg.Poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.checkStall()
		}
	}
}

// Status is a snapshot for reporting.
type Status struct {
	State  string    `json:"state"`
	Reason string    `json:"reason,omitempty"`
	Msg    string    `json:"message,omitempty"`
	Since  time.Time `json:"since,omitempty"`
}

func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Status{
		State:  m.state.String(),
		Reason: string(m.reason),
		Msg:    m.msg,
		Since:  m.since,
	}
}
