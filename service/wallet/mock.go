package wallet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ajohq/ajolink/service/session"
	"github.com/ajohq/ajolink/service/signer"
)

// MockAgent is an in-process Agent used by tests and by the CLI's dev mode.
// It auto-completes pairing for a configured account and its signer channel
// acknowledges every dispatch.
type MockAgent struct {
	mu        sync.Mutex
	handlers  map[int]EventHandler
	nextID    int
	detected  bool
	initErr   error
	resumeErr error

	// PairAccount is the account the agent pairs as.
	PairAccount string
	// PairNetwork is the network reported in the pairing session.
	PairNetwork string
	// PairDelay delays the PairingCompleted event after OpenPairing.
	PairDelay time.Duration
	// AutoPair controls whether OpenPairing completes on its own.
	AutoPair bool
	// OpenDelay delays OpenPairing before it returns.
	OpenDelay time.Duration
	// OpenErr makes OpenPairing fail.
	OpenErr error
	// DisconnectErr is returned from Disconnect (local reset must still happen).
	DisconnectErr error

	openCalls int
}

// NewMockAgent creates a detected mock agent that auto-pairs as accountID on
// the given network.
func NewMockAgent(accountID, network string) *MockAgent {
	return &MockAgent{
		handlers:    make(map[int]EventHandler),
		detected:    true,
		PairAccount: accountID,
		PairNetwork: network,
		AutoPair:    true,
	}
}

// SetDetected controls whether the agent runtime reports as reachable.
func (m *MockAgent) SetDetected(detected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detected = detected
}

// SetInitErr makes Init fail with err.
func (m *MockAgent) SetInitErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initErr = err
}

// SetResumeErr makes ResumeSession fail with err.
func (m *MockAgent) SetResumeErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resumeErr = err
}

func (m *MockAgent) Init(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initErr
}

func (m *MockAgent) Detected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detected
}

func (m *MockAgent) OpenPairing(ctx context.Context) (PairingInfo, error) {
	m.mu.Lock()
	m.openCalls++
	openDelay := m.OpenDelay
	openErr := m.OpenErr
	m.mu.Unlock()

	if openDelay > 0 {
		select {
		case <-time.After(openDelay):
		case <-ctx.Done():
			return PairingInfo{}, ctx.Err()
		}
	}
	if openErr != nil {
		return PairingInfo{}, openErr
	}

	info := PairingInfo{
		URI: fmt.Sprintf("wc:ajolink-%s@2?relay-protocol=irn", m.PairAccount),
	}
	if !m.AutoPair {
		return info, nil
	}
	delay := m.PairDelay
	go func() {
		if delay > 0 {
			time.Sleep(delay)
		}
		m.Emit(PairingCompleted{Session: session.Session{
			AccountID:    m.PairAccount,
			Network:      m.PairNetwork,
			PairingTopic: "mock-topic",
			PeerName:     "mock-agent",
			CreatedAt:    time.Now().UTC(),
		}})
	}()
	return info, nil
}

// OpenPairingCalls reports how many pairing flows were opened.
func (m *MockAgent) OpenPairingCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openCalls
}

func (m *MockAgent) ResumeSession(ctx context.Context, sess *session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resumeErr
}

func (m *MockAgent) Disconnect(ctx context.Context) error {
	return m.DisconnectErr
}

func (m *MockAgent) Channel(accountID string) (signer.Channel, error) {
	return &loopbackChannel{listeners: make(map[string]func(signer.Response))}, nil
}

func (m *MockAgent) Subscribe(h EventHandler) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.handlers[id] = h
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.handlers, id)
	}
}

// Emit delivers an event to all subscribed handlers, simulating an
// out-of-band agent signal (e.g. remote revocation).
func (m *MockAgent) Emit(ev Event) {
	m.mu.Lock()
	handlers := make([]EventHandler, 0, len(m.handlers))
	for _, h := range m.handlers {
		handlers = append(handlers, h)
	}
	m.mu.Unlock()
	for _, h := range handlers {
		h(ev)
	}
}

// loopbackChannel acknowledges every dispatched transaction immediately.
type loopbackChannel struct {
	mu        sync.Mutex
	listeners map[string]func(signer.Response)
}

func (c *loopbackChannel) Dispatch(ctx context.Context, requestID string, payload []byte) error {
	go func() {
		c.mu.Lock()
		fn := c.listeners[requestID]
		c.mu.Unlock()
		if fn != nil {
			fn(signer.Response{RequestID: requestID})
		}
	}()
	return nil
}

func (c *loopbackChannel) Subscribe(requestID string, fn func(signer.Response)) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners[requestID] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, requestID)
	}, nil
}

func (c *loopbackChannel) Capabilities() signer.Capabilities {
	return signer.Capabilities{SignMessage: false}
}

func (c *loopbackChannel) SignMessage(ctx context.Context, requestID string, message []byte) ([]byte, error) {
	return nil, signer.ErrUnsupportedOperation
}
