package wallet

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajohq/ajolink/service/session"
	"github.com/ajohq/ajolink/service/signer"
)

func newTestStore(t *testing.T) *session.Store {
	t.Helper()
	kv, err := session.OpenKV(filepath.Join(t.TempDir(), "ajolink.db"))
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	return session.NewStore(kv)
}

func newTestConnector(t *testing.T, agent Agent) (*Connector, *session.Store) {
	t.Helper()
	store := newTestStore(t)
	c := NewConnector(agent, store, "testnet", nil, nil, signer.Options{})
	t.Cleanup(c.Close)
	return c, store
}

func TestConnector_InitialState(t *testing.T) {
	c, _ := newTestConnector(t, NewMockAgent("0.0.1234", "testnet"))

	snap := c.Snapshot()
	assert.Equal(t, StateDisconnected, snap.State)
	assert.True(t, snap.Initializing)
	assert.False(t, snap.Initialized)
}

func TestConnector_PairScenario(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	agent := NewMockAgent("0.0.1234", "testnet")
	c, store := newTestConnector(t, agent)

	require.NoError(t, c.Initialize(ctx))

	var pairingURI string
	res, err := c.Connect(ctx, func(info PairingInfo) { pairingURI = info.URI })
	require.NoError(t, err)
	require.NotNil(t, res.Session)
	assert.NotEmpty(t, pairingURI)

	assert.Equal(t, StatePaired, c.State())

	saved, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "0.0.1234", saved.AccountID)
	assert.Equal(t, "testnet", saved.Network)

	// A paired connector exposes a signer.
	s, ok := c.Signer()
	assert.True(t, ok)
	assert.NotNil(t, s)

	account, ok := c.AccountID()
	assert.True(t, ok)
	assert.Equal(t, "0.0.1234", account)
}

func TestConnector_ConnectAlreadyPaired(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	agent := NewMockAgent("0.0.1234", "testnet")
	c, _ := newTestConnector(t, agent)
	require.NoError(t, c.Initialize(ctx))

	_, err := c.Connect(ctx, nil)
	require.NoError(t, err)

	res, err := c.Connect(ctx, nil)
	require.NoError(t, err)
	assert.True(t, res.AlreadyPaired)
}

func TestConnector_ConnectExtensionNotFound(t *testing.T) {
	ctx := context.Background()

	agent := NewMockAgent("0.0.1234", "testnet")
	agent.SetDetected(false)
	c, _ := newTestConnector(t, agent)
	require.NoError(t, c.Initialize(ctx))

	res, err := c.Connect(ctx, nil)
	assert.ErrorIs(t, err, ErrExtensionNotFound)
	assert.Equal(t, InstallLink, res.InstallLink)
	assert.Equal(t, StateDisconnected, c.State())
}

func TestConnector_InitializeFailureIsRetryable(t *testing.T) {
	ctx := context.Background()

	agent := NewMockAgent("0.0.1234", "testnet")
	agent.SetInitErr(errors.New("relay down"))
	c, _ := newTestConnector(t, agent)

	err := c.Initialize(ctx)
	assert.ErrorIs(t, err, ErrInitialization)
	assert.Equal(t, StateDisconnected, c.State())
	assert.False(t, c.Snapshot().Initialized)

	// A later call re-attempts and succeeds.
	agent.SetInitErr(nil)
	require.NoError(t, c.Initialize(ctx))
	assert.True(t, c.Snapshot().Initialized)
}

func TestConnector_InitializeConcurrentCallersShareOneInit(t *testing.T) {
	ctx := context.Background()

	agent := NewMockAgent("0.0.1234", "testnet")
	c, _ := newTestConnector(t, agent)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = c.Initialize(ctx)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.True(t, c.Snapshot().Initialized)
}

func TestConnector_InitializeRestoresSavedSession(t *testing.T) {
	ctx := context.Background()

	agent := NewMockAgent("0.0.1234", "testnet")
	c, store := newTestConnector(t, agent)

	require.NoError(t, store.Save(ctx, &session.Session{
		AccountID: "0.0.1234",
		Network:   "testnet",
		CreatedAt: time.Now().UTC(),
	}))

	require.NoError(t, c.Initialize(ctx))
	assert.Equal(t, StatePaired, c.State())

	_, ok := c.Signer()
	assert.True(t, ok)
}

func TestConnector_InitializeIgnoresOtherNetworkSession(t *testing.T) {
	ctx := context.Background()

	agent := NewMockAgent("0.0.1234", "testnet")
	c, store := newTestConnector(t, agent)

	require.NoError(t, store.Save(ctx, &session.Session{
		AccountID: "0.0.1234",
		Network:   "mainnet",
		CreatedAt: time.Now().UTC(),
	}))

	require.NoError(t, c.Initialize(ctx))
	assert.Equal(t, StateDisconnected, c.State())
}

func TestConnector_InitializeToleratesUnresumableSession(t *testing.T) {
	ctx := context.Background()

	agent := NewMockAgent("0.0.1234", "testnet")
	agent.SetResumeErr(errors.New("session expired"))
	c, store := newTestConnector(t, agent)

	require.NoError(t, store.Save(ctx, &session.Session{
		AccountID: "0.0.1234",
		Network:   "testnet",
		CreatedAt: time.Now().UTC(),
	}))

	require.NoError(t, c.Initialize(ctx))
	assert.Equal(t, StateDisconnected, c.State())
}

func TestConnector_DisconnectResetsStateEvenIfTeardownFails(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	agent := NewMockAgent("0.0.1234", "testnet")
	agent.DisconnectErr = errors.New("relay unreachable")
	c, store := newTestConnector(t, agent)
	require.NoError(t, c.Initialize(ctx))

	_, err := c.Connect(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, StatePaired, c.State())

	err = c.Disconnect(ctx)
	assert.Error(t, err) // teardown failure still reported

	assert.Equal(t, StateDisconnected, c.State())
	_, ok := c.Signer()
	assert.False(t, ok)

	saved, loadErr := store.Load(ctx)
	require.NoError(t, loadErr)
	assert.Nil(t, saved, "session store must be empty after disconnect")
}

func TestConnector_RemoteDisconnectResetsState(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	agent := NewMockAgent("0.0.1234", "testnet")
	c, store := newTestConnector(t, agent)
	require.NoError(t, c.Initialize(ctx))

	_, err := c.Connect(ctx, nil)
	require.NoError(t, err)

	// Remote revocation arrives with no local Disconnect call.
	agent.Emit(Disconnected{Reason: "revoked by wallet"})

	assert.Equal(t, StateDisconnected, c.State())
	_, ok := c.Signer()
	assert.False(t, ok)

	saved, loadErr := store.Load(ctx)
	require.NoError(t, loadErr)
	assert.Nil(t, saved)
}

func TestConnector_StatusDropInvalidatesSigner(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	agent := NewMockAgent("0.0.1234", "testnet")
	c, _ := newTestConnector(t, agent)
	require.NoError(t, c.Initialize(ctx))

	_, err := c.Connect(ctx, nil)
	require.NoError(t, err)

	agent.Emit(StatusChanged{Connected: false})

	assert.Equal(t, StateDisconnected, c.State())
	_, ok := c.Signer()
	assert.False(t, ok, "write-capable signer must be unavailable when not paired")
}

func TestConnector_SignerUnavailableWhenNotPaired(t *testing.T) {
	c, _ := newTestConnector(t, NewMockAgent("0.0.1234", "testnet"))

	_, ok := c.Signer()
	assert.False(t, ok)
	_, ok = c.AccountID()
	assert.False(t, ok)
}

func TestConnector_ConcurrentConnectsShareOnePairing(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	agent := NewMockAgent("0.0.1234", "testnet")
	agent.PairDelay = 100 * time.Millisecond
	c, _ := newTestConnector(t, agent)
	require.NoError(t, c.Initialize(ctx))

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Connect(ctx, nil)
		errCh <- err
	}()
	require.Eventually(t, func() bool {
		return c.State() == StateConnecting
	}, time.Second, 5*time.Millisecond)

	// Joiners ride the in-flight flow rather than opening their own.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := c.Connect(ctx, nil)
			assert.NoError(t, err)
			if assert.NotNil(t, res.Session) {
				assert.Equal(t, "0.0.1234", res.Session.AccountID)
			}
		}()
	}
	wg.Wait()
	require.NoError(t, <-errCh)

	assert.Equal(t, 1, agent.OpenPairingCalls())
	assert.Equal(t, StatePaired, c.State())
}

func TestConnector_FailedPairingReleasesJoiners(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	agent := NewMockAgent("0.0.1234", "testnet")
	agent.OpenDelay = 100 * time.Millisecond
	agent.OpenErr = errors.New("relay unreachable")
	c, _ := newTestConnector(t, agent)
	require.NoError(t, c.Initialize(ctx))

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Connect(ctx, nil)
		errCh <- err
	}()
	require.Eventually(t, func() bool {
		return c.State() == StateConnecting
	}, time.Second, 5*time.Millisecond)

	// Joiner must not hang on a flow the opener could not open.
	_, joinErr := c.Connect(ctx, nil)
	require.Error(t, joinErr)
	require.Error(t, <-errCh)

	assert.Equal(t, 1, agent.OpenPairingCalls())
	assert.Equal(t, StateDisconnected, c.State())
}
