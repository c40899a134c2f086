package wallet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ajohq/ajolink/service/metrics"
	"github.com/ajohq/ajolink/service/session"
	"github.com/ajohq/ajolink/service/signer"
)

var (
	// ErrExtensionNotFound means no signing-agent runtime was detected.
	// User-actionable: install the wallet app/extension.
	ErrExtensionNotFound = errors.New("wallet: signing agent not detected")

	// ErrInitialization means SDK setup failed. Calling Initialize again
	// retries it.
	ErrInitialization = errors.New("wallet: initialization failed")
)

// InstallLink is offered alongside ErrExtensionNotFound as a UX aid.
const InstallLink = "https://www.hashpack.app/download"

// persistTimeout bounds session-store writes triggered by agent events.
const persistTimeout = 5 * time.Second

// ConnectResult describes the outcome of a Connect call.
type ConnectResult struct {
	AlreadyPaired bool
	Session       *session.Session
	InstallLink   string
}

// Snapshot is a point-in-time view of connector state, consumed by the
// diagnostics reporter and the CLI.
type Snapshot struct {
	State             State
	ExtensionDetected bool
	Initializing      bool
	Initialized       bool
	AccountID         string
	Network           string
	SignerAvailable   bool
}

// Connector owns the lifecycle of the connection to the signing agent. It is
// the single source of truth for whether an agent is reachable and paired.
// Construct one at application start and share it; there is no implicit
// global instance.
type Connector struct {
	agent    Agent
	sessions *session.Store
	network  string
	logger   *slog.Logger
	metrics  *metrics.Metrics
	txOpts   signer.Options

	mu            sync.Mutex
	state         State
	detected      bool
	initializing  bool
	initialized   bool
	initInflight  chan struct{}
	lastInitErr   error
	sess          *session.Session
	adapter       *signer.Adapter
	reader        signer.Reader
	pairedWaiters map[chan *session.Session]struct{}
	pairingInfo   PairingInfo
	unsubscribe   func()
}

// NewConnector creates a connector. The connection starts disconnected with
// the initializing flag set until the first Initialize completes.
// If logger is nil, logging is discarded; metrics may be nil.
func NewConnector(agent Agent, sessions *session.Store, network string, logger *slog.Logger, m *metrics.Metrics, txOpts signer.Options) *Connector {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	txOpts.Metrics = m
	return &Connector{
		agent:         agent,
		sessions:      sessions,
		network:       network,
		logger:        logger,
		metrics:       m,
		txOpts:        txOpts,
		state:         StateDisconnected,
		initializing:  true,
		pairedWaiters: make(map[chan *session.Session]struct{}),
	}
}

// AttachProvider attaches the read provider used by signer adapters for
// receipt polling. Applies to the current adapter and any rebuilt later.
func (c *Connector) AttachProvider(reader signer.Reader) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reader = reader
	if c.adapter != nil {
		c.adapter.ConnectProvider(reader)
	}
}

// Initialize performs one-time setup of the agent SDK. Safe to call
// concurrently and repeatedly: concurrent callers share one in-flight
// initialization, later callers after success are no-ops, and callers after
// a failure re-attempt it.
func (c *Connector) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		return nil
	}
	if c.initInflight != nil {
		inflight := c.initInflight
		c.mu.Unlock()
		select {
		case <-inflight:
			c.mu.Lock()
			err := c.lastInitErr
			c.mu.Unlock()
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	inflight := make(chan struct{})
	c.initInflight = inflight
	c.initializing = true
	c.mu.Unlock()

	err := c.doInit(ctx)

	c.mu.Lock()
	c.initializing = false
	c.initInflight = nil
	c.lastInitErr = err
	if err == nil {
		c.initialized = true
	}
	close(inflight)
	c.mu.Unlock()

	return err
}

func (c *Connector) doInit(ctx context.Context) error {
	if err := c.agent.Init(ctx); err != nil {
		c.logger.ErrorContext(ctx, "signing agent init failed", "error", err)
		return fmt.Errorf("%w: %v", ErrInitialization, err)
	}

	cancel := c.agent.Subscribe(c.handleEvent)
	detected := c.agent.Detected()

	c.mu.Lock()
	c.unsubscribe = cancel
	c.detected = detected
	c.mu.Unlock()

	// Restore a previously saved session matching the configured network.
	saved, err := c.sessions.Load(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "could not load saved session", "error", err)
		return nil
	}
	if saved == nil {
		return nil
	}
	if saved.Network != c.network {
		c.logger.InfoContext(ctx, "ignoring saved session for different network",
			"saved_network", saved.Network,
			"network", c.network,
		)
		return nil
	}

	if err := c.agent.ResumeSession(ctx, saved); err != nil {
		c.logger.WarnContext(ctx, "saved session could not be resumed",
			"account", saved.AccountID,
			"error", err,
		)
		if c.metrics != nil {
			c.metrics.RecordPairingEvent("restore_failed")
		}
		return nil
	}

	c.mu.Lock()
	c.state = StatePaired
	c.sess = saved
	c.rebuildAdapterLocked()
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.RecordPairingEvent("restored")
	}
	c.logger.InfoContext(ctx, "restored wallet session",
		"account", saved.AccountID,
		"network", saved.Network,
	)
	return nil
}

// Connect opens a pairing flow and waits for the asynchronous pairing event.
// If already paired it is a no-op with an informational result. If no agent
// runtime is detected it fails with ErrExtensionNotFound and the result
// carries an install deep link. onPairing, if non-nil, is invoked with the
// pairing URI once the flow is open (for QR/deep-link display).
//
// Concurrent calls share one pairing flow: only the first caller opens it,
// later callers join as waiters on the same completion event.
func (c *Connector) Connect(ctx context.Context, onPairing func(PairingInfo)) (ConnectResult, error) {
	c.mu.Lock()
	if c.state == StatePaired {
		sess := c.sess
		c.mu.Unlock()
		c.logger.InfoContext(ctx, "already paired, connect is a no-op")
		return ConnectResult{AlreadyPaired: true, Session: sess}, nil
	}
	if !c.detected {
		c.mu.Unlock()
		return ConnectResult{InstallLink: InstallLink}, ErrExtensionNotFound
	}
	waiter := make(chan *session.Session, 1)
	c.pairedWaiters[waiter] = struct{}{}
	joining := c.state == StateConnecting
	info := c.pairingInfo
	if !joining {
		c.state = StateConnecting
	}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pairedWaiters, waiter)
		c.mu.Unlock()
	}()

	if !joining {
		opened, err := c.agent.OpenPairing(ctx)
		if err != nil {
			c.abortPairing()
			return ConnectResult{}, fmt.Errorf("open pairing: %w", err)
		}
		c.mu.Lock()
		c.pairingInfo = opened
		c.mu.Unlock()
		info = opened
	}
	// A joiner that arrived before the flow finished opening has no URI yet;
	// it still pairs via the shared completion event.
	if onPairing != nil && info.URI != "" {
		onPairing(info)
	}

	select {
	case sess, ok := <-waiter:
		if !ok || sess == nil {
			return ConnectResult{}, fmt.Errorf("open pairing: pairing flow aborted")
		}
		return ConnectResult{Session: sess}, nil
	case <-ctx.Done():
		c.mu.Lock()
		// Reset only when this is the last waiter; others still share the flow.
		if c.state == StateConnecting && len(c.pairedWaiters) <= 1 {
			c.state = StateDisconnected
			c.pairingInfo = PairingInfo{}
		}
		c.mu.Unlock()
		return ConnectResult{}, ctx.Err()
	}
}

// abortPairing resets a failed pairing flow and releases every caller
// waiting on it.
func (c *Connector) abortPairing() {
	c.mu.Lock()
	if c.state == StateConnecting {
		c.state = StateDisconnected
	}
	c.pairingInfo = PairingInfo{}
	waiters := make([]chan *session.Session, 0, len(c.pairedWaiters))
	for w := range c.pairedWaiters {
		waiters = append(waiters, w)
		delete(c.pairedWaiters, w)
	}
	c.mu.Unlock()
	for _, w := range waiters {
		close(w)
	}
}

// Disconnect tears down the pairing, clears the session store, and resets
// connection state. Local state resets unconditionally — a failed remote
// teardown must not leave the connector looking paired — but the teardown
// error is still returned.
func (c *Connector) Disconnect(ctx context.Context) error {
	teardownErr := c.agent.Disconnect(ctx)
	if teardownErr != nil {
		c.logger.WarnContext(ctx, "agent teardown failed, resetting local state anyway",
			"error", teardownErr,
		)
	}

	c.mu.Lock()
	c.state = StateDisconnected
	c.sess = nil
	c.adapter = nil
	c.pairingInfo = PairingInfo{}
	c.mu.Unlock()

	if err := c.sessions.Clear(ctx); err != nil {
		c.logger.WarnContext(ctx, "could not clear session store", "error", err)
		if teardownErr == nil {
			teardownErr = err
		}
	}

	if c.metrics != nil {
		c.metrics.RecordPairingEvent("disconnected")
	}
	return teardownErr
}

// Close releases the agent event subscription.
func (c *Connector) Close() {
	c.mu.Lock()
	cancel := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// handleEvent maps agent events onto connection state. It must not assume
// any ordering relative to method calls.
func (c *Connector) handleEvent(ev Event) {
	var (
		toPersist *session.Session
		toClear   bool
		notify    []chan *session.Session
	)

	c.mu.Lock()
	prev := c.state
	c.state = Transition(c.state, ev)

	switch e := ev.(type) {
	case PairingCompleted:
		sess := e.Session
		c.sess = &sess
		c.rebuildAdapterLocked()
		c.pairingInfo = PairingInfo{}
		toPersist = &sess
		for w := range c.pairedWaiters {
			notify = append(notify, w)
			delete(c.pairedWaiters, w)
		}
	case Disconnected:
		c.sess = nil
		c.adapter = nil
		c.pairingInfo = PairingInfo{}
		toClear = true
	case StatusChanged:
		if !e.Connected {
			// Stale signer must not survive a dropped connection. The
			// saved session stays on disk so the next init can resume.
			c.adapter = nil
		}
	}
	state := c.state
	c.mu.Unlock()

	c.logger.Debug("wallet event",
		"event", fmt.Sprintf("%T", ev),
		"prev_state", prev.String(),
		"state", state.String(),
	)

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	switch {
	case toPersist != nil:
		if err := c.sessions.Save(ctx, toPersist); err != nil {
			c.logger.Warn("could not persist session", "error", err)
		}
		if c.metrics != nil {
			c.metrics.RecordPairingEvent("paired")
		}
	case toClear:
		if err := c.sessions.Clear(ctx); err != nil {
			c.logger.Warn("could not clear session store", "error", err)
		}
		if c.metrics != nil {
			c.metrics.RecordPairingEvent("disconnected")
		}
	default:
		if c.metrics != nil {
			c.metrics.RecordPairingEvent("status_changed")
		}
	}

	for _, w := range notify {
		w <- toPersist
	}
}

// rebuildAdapterLocked rebuilds the signer adapter when the session identity
// changed. Rebuild is keyed off the account identifier, not off adapter
// presence, so concurrent triggers cannot thrash a fresh adapter.
func (c *Connector) rebuildAdapterLocked() {
	if c.sess == nil {
		c.adapter = nil
		return
	}
	if c.adapter != nil && c.adapter.AccountID() == c.sess.AccountID {
		return
	}
	channel, err := c.agent.Channel(c.sess.AccountID)
	if err != nil {
		c.logger.Warn("could not open signer channel",
			"account", c.sess.AccountID,
			"error", err,
		)
		c.adapter = nil
		return
	}
	adapter := signer.NewAdapter(c.sess.AccountID, channel, c.logger, c.txOpts)
	if c.reader != nil {
		adapter.ConnectProvider(c.reader)
	}
	c.adapter = adapter
}

// State returns the current connection state.
func (c *Connector) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns the active session, or nil.
func (c *Connector) Session() *session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}

// AccountID returns the paired account identifier. ok is false unless the
// connection state is paired.
func (c *Connector) AccountID() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePaired || c.sess == nil {
		return "", false
	}
	return c.sess.AccountID, true
}

// Signer returns the signer for the paired account. ok is false whenever the
// connection state is not paired or no signer could be derived; callers must
// treat that as "contract not ready", never as a retryable handle.
func (c *Connector) Signer() (signer.TxSender, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePaired || c.adapter == nil {
		return nil, false
	}
	return c.adapter, true
}

// Snapshot returns a point-in-time view of the connector.
func (c *Connector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{
		State:             c.state,
		ExtensionDetected: c.detected,
		Initializing:      c.initializing,
		Initialized:       c.initialized,
		Network:           c.network,
		SignerAvailable:   c.state == StatePaired && c.adapter != nil,
	}
	if c.sess != nil {
		snap.AccountID = c.sess.AccountID
	}
	return snap
}
