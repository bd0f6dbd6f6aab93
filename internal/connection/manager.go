// Package connection owns the single logical session to the messaging
// network: its state machine, the pairing artifact, and the
// cause-specific reconnect policy.
package connection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"checador-bot/internal/transport"
	"checador-bot/pkg/logger"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateQRReady      State = "qr_ready"
	StateConnected    State = "connected"
)

// Handler receives the non-connection events the transport delivers.
type Handler interface {
	HandleMessage(ctx context.Context, msg transport.Message)
	HandleContactsSync(ctx context.Context, contacts []transport.Contact)
}

// Manager maintains one session at a time. Reconnects run from an
// explicit scheduler with a per-cause initial cool-down and a constant
// pace between failed attempts; there is no attempt ceiling, the
// session is retried until it opens or the process stops.
type Manager struct {
	t       transport.Transport
	handler Handler
	log     *zap.Logger

	sf singleflight.Group

	mu        sync.Mutex
	state     State
	qr        string
	inflight  bool
	suspended bool // operator tore the session down; no auto-reconnect
	retrying  bool // a scheduled retry loop is already running
	runCtx    context.Context

	delays     map[transport.DisconnectCause]time.Duration
	retryEvery time.Duration
}

func defaultDelays() map[transport.DisconnectCause]time.Duration {
	return map[transport.DisconnectCause]time.Duration{
		transport.CauseLoggedOut:          3 * time.Second,
		transport.CauseSessionReplaced:    10 * time.Second,
		transport.CausePairingTimeout:     2 * time.Second,
		transport.CauseServiceUnavailable: 15 * time.Second,
		transport.CauseUnknown:            5 * time.Second,
	}
}

type Option func(*Manager)

// WithRetryPacing overrides the per-cause cool-downs and the pace
// between failed attempts.
func WithRetryPacing(delays map[transport.DisconnectCause]time.Duration, retryEvery time.Duration) Option {
	return func(m *Manager) {
		m.delays = delays
		m.retryEvery = retryEvery
	}
}

func NewManager(t transport.Transport, handler Handler, log *zap.Logger, opts ...Option) *Manager {
	m := &Manager{
		t:          t,
		handler:    handler,
		log:        log,
		state:      StateDisconnected,
		delays:     defaultDelays(),
		retryEvery: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Status() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// PairingArtifact returns the current pairing code, or "" when none is
// pending.
func (m *Manager) PairingArtifact() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.qr
}

// Connect begins a connection attempt. Concurrent calls collapse into
// the one in-flight attempt; calling while connected is a no-op.
func (m *Manager) Connect(ctx context.Context) error {
	_, err, _ := m.sf.Do("connect", func() (any, error) {
		return nil, m.connect(ctx)
	})
	return err
}

func (m *Manager) connect(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateConnected || m.inflight {
		m.mu.Unlock()
		return nil
	}
	m.inflight = true
	m.suspended = false
	m.setStateLocked(StateConnecting)
	m.mu.Unlock()

	if err := m.t.Connect(ctx); err != nil {
		m.mu.Lock()
		m.inflight = false
		reschedule := !m.suspended && !m.retrying
		m.setStateLocked(StateDisconnected)
		m.mu.Unlock()
		if reschedule {
			m.scheduleReconnect(transport.CauseUnknown)
		}
		return fmt.Errorf("transport connect: %w", err)
	}
	return nil
}

// Disconnect logs the session out and tears it down. Automatic
// reconnects stay off until the next Connect.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	m.suspended = true
	m.mu.Unlock()

	err := m.t.Logout(ctx)
	if err != nil {
		m.log.Warn("logout failed", zap.Error(err))
	}
	m.t.Disconnect()

	m.mu.Lock()
	m.qr = ""
	m.inflight = false
	m.setStateLocked(StateDisconnected)
	m.mu.Unlock()
	return err
}

// ResetCredentials tears the session down and wipes the persisted
// credentials so the next Connect starts a fresh pairing. Teardown
// errors are tolerated; a failed wipe is not.
func (m *Manager) ResetCredentials(ctx context.Context) error {
	teardownErr := m.Disconnect(ctx)
	if err := m.t.ClearCredentials(); err != nil {
		return multierr.Append(teardownErr, fmt.Errorf("clear credentials: %w", err))
	}
	m.log.Info("session credentials erased")
	return nil
}

// Run consumes transport events until ctx is done. Connection events
// drive the state machine; messages and contact syncs go to the
// handler.
func (m *Manager) Run(ctx context.Context) error {
	m.mu.Lock()
	m.runCtx = ctx
	m.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-m.t.Events():
			if !ok {
				return nil
			}
			m.handleEvent(ctx, ev)
		}
	}
}

func (m *Manager) handleEvent(ctx context.Context, ev transport.Event) {
	switch e := ev.(type) {
	case transport.QREvent:
		m.mu.Lock()
		m.qr = e.Code
		m.setStateLocked(StateQRReady)
		m.mu.Unlock()
		m.log.Info("pairing artifact ready, waiting for scan")

	case transport.ConnectedEvent:
		m.mu.Lock()
		m.qr = ""
		m.inflight = false
		m.setStateLocked(StateConnected)
		m.mu.Unlock()
		m.log.Info("session open")

	case transport.DisconnectedEvent:
		m.onDisconnected(e.Cause)

	case transport.ContactsSyncEvent:
		m.handler.HandleContactsSync(ctx, e.Contacts)

	case transport.MessageEvent:
		go m.dispatchMessage(ctx, e.Message)
	}
}

// dispatchMessage shields the event loop from handler panics; one bad
// message must not stop processing for later ones.
func (m *Manager) dispatchMessage(ctx context.Context, msg transport.Message) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("message handler panic",
				zap.Any("panic", r),
				zap.String(logger.FieldJID, msg.Sender))
		}
	}()
	m.handler.HandleMessage(ctx, msg)
}

func (m *Manager) onDisconnected(cause transport.DisconnectCause) {
	m.mu.Lock()
	m.qr = ""
	m.inflight = false
	suspended := m.suspended
	m.setStateLocked(StateDisconnected)
	m.mu.Unlock()

	m.log.Warn("session closed", zap.String(logger.FieldCause, cause.String()))

	if cause == transport.CauseLoggedOut {
		// Credentials are invalid now; wipe them so the retry surfaces
		// a fresh pairing artifact.
		if err := m.t.ClearCredentials(); err != nil {
			m.log.Error("credential wipe failed", zap.Error(err))
		} else {
			m.log.Info("credentials wiped, new pairing required")
		}
	}

	if suspended {
		return
	}
	m.scheduleReconnect(cause)
}

func (m *Manager) scheduleReconnect(cause transport.DisconnectCause) {
	delay, ok := m.delays[cause]
	if !ok {
		delay = m.delays[transport.CauseUnknown]
	}

	m.mu.Lock()
	if m.retrying {
		m.mu.Unlock()
		return
	}
	m.retrying = true
	ctx := m.runCtx
	m.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	m.log.Info("reconnect scheduled",
		zap.String(logger.FieldCause, cause.String()),
		zap.Duration("delay", delay))

	go func() {
		defer func() {
			m.mu.Lock()
			m.retrying = false
			m.mu.Unlock()
		}()

		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		backoff := retry.NewConstant(m.retryEvery)
		_ = retry.Do(ctx, backoff, func(ctx context.Context) error {
			m.mu.Lock()
			suspended := m.suspended
			m.mu.Unlock()
			if suspended {
				return nil
			}
			if err := m.Connect(ctx); err != nil {
				return retry.RetryableError(err)
			}
			return nil
		})
	}()
}

func (m *Manager) setStateLocked(next State) {
	if m.state == next {
		return
	}
	m.log.Info("connection state change",
		zap.String("from", string(m.state)),
		zap.String(logger.FieldState, string(next)))
	m.state = next
}
