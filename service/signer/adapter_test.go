package signer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockChannel implements Channel for testing. It's behavior-focused: we set
// what it should respond with, not verify call sequences.
type mockChannel struct {
	mu           sync.Mutex
	listeners    map[string]func(Response)
	respond      func(requestID string) *Response // nil response means stay silent
	dispatchErr  error
	capabilities Capabilities
	signMessage  func(message []byte) ([]byte, error)
}

func newMockChannel() *mockChannel {
	return &mockChannel{listeners: make(map[string]func(Response))}
}

func (m *mockChannel) Dispatch(ctx context.Context, requestID string, payload []byte) error {
	if m.dispatchErr != nil {
		return m.dispatchErr
	}
	if m.respond == nil {
		return nil
	}
	resp := m.respond(requestID)
	if resp == nil {
		return nil
	}
	// Deliver asynchronously like a real agent event.
	go func() {
		m.mu.Lock()
		fn := m.listeners[requestID]
		m.mu.Unlock()
		if fn != nil {
			fn(*resp)
		}
	}()
	return nil
}

func (m *mockChannel) Subscribe(requestID string, fn func(Response)) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners[requestID] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, requestID)
	}, nil
}

func (m *mockChannel) Capabilities() Capabilities {
	return m.capabilities
}

func (m *mockChannel) SignMessage(ctx context.Context, requestID string, message []byte) ([]byte, error) {
	if m.signMessage == nil {
		return nil, errors.New("no signing capability")
	}
	return m.signMessage(message)
}

func (m *mockChannel) listenerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}

func testTx() *types.Transaction {
	to := common.HexToAddress("0x00000000000000000000000000000000004d2f15")
	return types.NewTx(&types.LegacyTx{
		Nonce:    7,
		To:       &to,
		Value:    big.NewInt(0),
		Gas:      300_000,
		GasPrice: big.NewInt(1_000_000_000),
	})
}

func newTestAdapter(ch Channel, opts Options) *Adapter {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAdapter("0.0.1234", ch, logger, opts)
}

func TestAccountIDToAddress(t *testing.T) {
	addr, err := AccountIDToAddress("0.0.1234")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x00000000000000000000000000000000000004d2"), addr)

	_, err = AccountIDToAddress("not-an-account")
	assert.Error(t, err)

	_, err = AccountIDToAddress("0.0.abc")
	assert.Error(t, err)
}

func TestAdapter_Address(t *testing.T) {
	a := newTestAdapter(newMockChannel(), Options{})
	addr, err := a.Address()
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x00000000000000000000000000000000000004d2"), addr)

	bad := NewAdapter("nope", newMockChannel(), nil, Options{})
	_, err = bad.Address()
	assert.ErrorIs(t, err, ErrAddressUnavailable)
}

func TestSendTransaction_Success(t *testing.T) {
	ctx := context.Background()
	hash := common.HexToHash("0xabc123")

	ch := newMockChannel()
	ch.respond = func(requestID string) *Response {
		return &Response{RequestID: requestID, TxHash: hash}
	}

	a := newTestAdapter(ch, Options{Timeout: time.Second})
	pending, err := a.SendTransaction(ctx, testTx())
	require.NoError(t, err)
	assert.Equal(t, hash, pending.Hash())
	assert.Equal(t, 0, ch.listenerCount(), "listener must be released after success")
}

func TestSendTransaction_UserRejected(t *testing.T) {
	ctx := context.Background()

	ch := newMockChannel()
	ch.respond = func(requestID string) *Response {
		return &Response{RequestID: requestID, Rejected: true}
	}

	a := newTestAdapter(ch, Options{Timeout: time.Second})
	_, err := a.SendTransaction(ctx, testTx())
	assert.ErrorIs(t, err, ErrUserRejected)
	assert.Equal(t, 0, ch.listenerCount())
}

func TestSendTransaction_TimeoutReleasesListener(t *testing.T) {
	ctx := context.Background()

	ch := newMockChannel() // never responds
	baseline := ch.listenerCount()

	a := newTestAdapter(ch, Options{Timeout: 50 * time.Millisecond})
	_, err := a.SendTransaction(ctx, testTx())
	assert.ErrorIs(t, err, ErrTransactionTimeout)
	assert.Equal(t, baseline, ch.listenerCount(), "listener count must return to pre-call baseline")
}

func TestSendTransaction_AgentErrorPropagates(t *testing.T) {
	ctx := context.Background()
	agentErr := errors.New("relay unreachable")

	ch := newMockChannel()
	ch.respond = func(requestID string) *Response {
		return &Response{RequestID: requestID, Err: agentErr}
	}

	a := newTestAdapter(ch, Options{Timeout: time.Second})
	_, err := a.SendTransaction(ctx, testTx())
	require.Error(t, err)
	assert.ErrorIs(t, err, agentErr)
	assert.Equal(t, 0, ch.listenerCount())
}

func TestSendTransaction_LegacyShapeErrorTolerated(t *testing.T) {
	ctx := context.Background()
	hash := common.HexToHash("0xdef456")

	ch := newMockChannel()
	ch.respond = func(requestID string) *Response {
		return &Response{RequestID: requestID, TxHash: hash, Err: ErrLegacyResponseShape}
	}

	a := newTestAdapter(ch, Options{Timeout: time.Second})
	pending, err := a.SendTransaction(ctx, testTx())
	require.NoError(t, err)
	assert.Equal(t, hash, pending.Hash())
}

func TestSendTransaction_DispatchError(t *testing.T) {
	ctx := context.Background()

	ch := newMockChannel()
	ch.dispatchErr = errors.New("channel closed")

	a := newTestAdapter(ch, Options{Timeout: time.Second})
	_, err := a.SendTransaction(ctx, testTx())
	require.Error(t, err)
	assert.Equal(t, 0, ch.listenerCount())
}

func TestSendTransaction_NoChannel(t *testing.T) {
	a := NewAdapter("0.0.1234", nil, nil, Options{})
	_, err := a.SendTransaction(context.Background(), testTx())
	assert.ErrorIs(t, err, ErrNoChannel)
}

func TestSignMessage_Unsupported(t *testing.T) {
	a := newTestAdapter(newMockChannel(), Options{})
	_, err := a.SignMessage(context.Background(), []byte("hello"))
	assert.ErrorIs(t, err, ErrUnsupportedOperation)
}

func TestSignMessage_Delegates(t *testing.T) {
	ch := newMockChannel()
	ch.capabilities = Capabilities{SignMessage: true}
	ch.signMessage = func(message []byte) ([]byte, error) {
		return append([]byte("signed:"), message...), nil
	}

	a := newTestAdapter(ch, Options{})
	sig, err := a.SignMessage(context.Background(), []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, []byte("signed:hello"), sig)
}

// mockReader returns a receipt after a configurable number of polls.
type mockReader struct {
	mu       sync.Mutex
	misses   int
	receipt  *types.Receipt
	notFound error
}

func (m *mockReader) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.misses > 0 {
		m.misses--
		return nil, m.notFound
	}
	return m.receipt, nil
}

func TestPendingTx_WaitPollsReceipt(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	hash := common.HexToHash("0xabc")
	reader := &mockReader{
		misses:   2,
		notFound: errors.New("not found"),
		receipt:  &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: hash},
	}

	ch := newMockChannel()
	ch.respond = func(requestID string) *Response {
		return &Response{RequestID: requestID, TxHash: hash}
	}

	a := newTestAdapter(ch, Options{Timeout: time.Second, PollInterval: 10 * time.Millisecond})
	a.ConnectProvider(reader)

	pending, err := a.SendTransaction(ctx, testTx())
	require.NoError(t, err)

	receipt, err := pending.Wait(ctx)
	require.NoError(t, err)
	require.NotNil(t, receipt)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
}

func TestPendingTx_WaitRevertedReceipt(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	hash := common.HexToHash("0xbad")
	reader := &mockReader{
		receipt: &types.Receipt{Status: types.ReceiptStatusFailed, TxHash: hash},
	}

	pending := &PendingTx{
		hash:         hash,
		reader:       reader,
		pollInterval: 10 * time.Millisecond,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	_, err := pending.Wait(ctx)
	assert.ErrorIs(t, err, ErrTransactionReverted)
}

func TestPendingTx_WaitContextCanceled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	reader := &mockReader{misses: 1 << 30, notFound: errors.New("not found")}
	pending := &PendingTx{
		hash:         common.HexToHash("0xabc"),
		reader:       reader,
		pollInterval: 10 * time.Millisecond,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	_, err := pending.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConnectProvider_ConcurrentWithSends(t *testing.T) {
	ch := newMockChannel()
	ch.respond = func(requestID string) *Response {
		return &Response{RequestID: requestID}
	}
	a := newTestAdapter(ch, Options{Timeout: time.Second})
	reader := &mockReader{
		receipt: &types.Receipt{Status: types.ReceiptStatusSuccessful},
	}

	// Provider attachment races sends when the adapter has already been
	// handed out; both directions must stay safe.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			a.ConnectProvider(reader)
			a.ConnectProvider(nil)
		}
	}()
	for i := 0; i < 20; i++ {
		_, err := a.SendTransaction(context.Background(), testTx())
		require.NoError(t, err)
	}
	wg.Wait()

	a.ConnectProvider(reader)
	pending, err := a.SendTransaction(context.Background(), testTx())
	require.NoError(t, err)
	receipt, err := pending.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
}
