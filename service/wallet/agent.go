package wallet

import (
	"context"

	"github.com/ajohq/ajolink/service/session"
	"github.com/ajohq/ajolink/service/signer"
)

// Event is a signal emitted by the signing-agent SDK. Events may arrive out
// of band relative to in-flight method calls (e.g. a remote revocation
// produces Disconnected without a local Disconnect call).
type Event interface {
	walletEvent()
}

// PairingCompleted is emitted when the pairing handshake succeeds.
type PairingCompleted struct {
	Session session.Session
}

// Disconnected is emitted when the pairing is torn down, locally or remotely.
type Disconnected struct {
	Reason string
}

// StatusChanged is emitted when relay connectivity to the agent changes.
type StatusChanged struct {
	Connected bool
}

func (PairingCompleted) walletEvent() {}
func (Disconnected) walletEvent()     {}
func (StatusChanged) walletEvent()    {}

// EventHandler receives agent events on the agent's dispatch goroutine.
type EventHandler func(Event)

// PairingInfo describes an open pairing flow. The URI is rendered to the
// user (QR code or deep link) so the wallet app can complete the handshake.
type PairingInfo struct {
	URI string
}

// Agent is the signing-agent SDK boundary. The real implementation wraps a
// wallet-connect style SDK; tests and dev tooling use MockAgent. Everything
// past this interface is opaque to the connectivity layer.
type Agent interface {
	// Init performs one-time SDK setup.
	Init(ctx context.Context) error

	// Detected reports whether the signing-agent runtime is reachable.
	Detected() bool

	// OpenPairing starts a pairing flow. Completion arrives asynchronously
	// as a PairingCompleted event.
	OpenPairing(ctx context.Context) (PairingInfo, error)

	// ResumeSession re-establishes a previously saved pairing.
	ResumeSession(ctx context.Context, sess *session.Session) error

	// Disconnect tears down the active pairing.
	Disconnect(ctx context.Context) error

	// Channel returns the session request channel used to reach the
	// signer for the given account.
	Channel(accountID string) (signer.Channel, error)

	// Subscribe registers an event handler. The returned cancel func
	// removes it.
	Subscribe(h EventHandler) (cancel func())
}
