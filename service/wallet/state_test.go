package wallet

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ajohq/ajolink/service/session"
)

func TestTransition(t *testing.T) {
	paired := PairingCompleted{Session: session.Session{AccountID: "0.0.1234", Network: "testnet"}}

	tests := []struct {
		name string
		from State
		ev   Event
		want State
	}{
		{"pairing from disconnected", StateDisconnected, paired, StatePaired},
		{"pairing from connecting", StateConnecting, paired, StatePaired},
		{"pairing while paired is idempotent", StatePaired, paired, StatePaired},
		{"disconnect from paired", StatePaired, Disconnected{Reason: "user"}, StateDisconnected},
		{"remote disconnect without local call", StateConnecting, Disconnected{Reason: "revoked"}, StateDisconnected},
		{"disconnect while disconnected is idempotent", StateDisconnected, Disconnected{}, StateDisconnected},
		{"status offline resets paired", StatePaired, StatusChanged{Connected: false}, StateDisconnected},
		{"status online keeps paired", StatePaired, StatusChanged{Connected: true}, StatePaired},
		{"status online cannot invent a pairing", StateDisconnected, StatusChanged{Connected: true}, StateDisconnected},
		{"status online keeps connecting", StateConnecting, StatusChanged{Connected: true}, StateConnecting},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Transition(tt.from, tt.ev))
		})
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "paired", StatePaired.String())
}
