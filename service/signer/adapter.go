package signer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"

	"github.com/ajohq/ajolink/service/metrics"
)

var (
	// ErrAddressUnavailable means the session account identifier could not
	// be converted to a chain address.
	ErrAddressUnavailable = errors.New("signer: address unavailable")

	// ErrUserRejected means the user declined the transaction in the
	// signing agent.
	ErrUserRejected = errors.New("signer: transaction rejected by user")

	// ErrTransactionTimeout means no correlated response arrived from the
	// signing agent within the configured timeout.
	ErrTransactionTimeout = errors.New("signer: transaction timed out waiting for signing agent")

	// ErrUnsupportedOperation means the signing agent offers no capability
	// for the requested operation.
	ErrUnsupportedOperation = errors.New("signer: operation not supported by signing agent")

	// ErrNoChannel means the adapter has no session channel, i.e. the
	// wallet is not paired.
	ErrNoChannel = errors.New("signer: no session channel")
)

// ErrLegacyResponseShape is reported by some agent integrations when the
// response envelope arrives in the legacy payload shape. The transaction
// itself succeeded; only the envelope type differs. This is the single
// known-harmless compatibility quirk the adapter tolerates — every other
// agent error propagates.
var ErrLegacyResponseShape = errors.New("signer: legacy response payload shape")

// Response is a signing-agent reply correlated to a dispatched request.
type Response struct {
	RequestID string
	TxHash    common.Hash
	Signature []byte
	Rejected  bool
	Err       error
}

// Capabilities describes what the paired signing agent can do.
type Capabilities struct {
	SignMessage bool
}

// Channel is the session request channel to the signing agent. Implementations
// wrap the agent SDK's transport; this interface keeps the adapter testable
// without a live agent.
type Channel interface {
	// Dispatch sends a serialized transaction to the agent. The reply
	// arrives asynchronously via a subscription on the same request id.
	Dispatch(ctx context.Context, requestID string, payload []byte) error

	// Subscribe registers a listener for responses correlated to requestID.
	// The returned cancel func releases the listener and must always be called.
	Subscribe(requestID string, fn func(Response)) (cancel func(), err error)

	// Capabilities reports the agent's optional capabilities.
	Capabilities() Capabilities

	// SignMessage asks the agent to sign an arbitrary message. Only valid
	// when Capabilities().SignMessage is true.
	SignMessage(ctx context.Context, requestID string, message []byte) ([]byte, error)
}

// Reader is the subset of a read provider the adapter needs for
// receipt polling. *ethclient.Client satisfies it.
type Reader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// TxSender is the narrow signing contract the contract gateway builds
// write handles against.
type TxSender interface {
	Address() (common.Address, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) (*PendingTx, error)
	SignMessage(ctx context.Context, message []byte) ([]byte, error)
}

// Adapter presents the signing agent's session channel as a typed signer.
// All unsafe shape conversion between the agent SDK and the contract layer
// is isolated here.
type Adapter struct {
	accountID    string
	channel      Channel
	timeout      time.Duration
	pollInterval time.Duration
	logger       *slog.Logger
	metrics      *metrics.Metrics

	// mu guards reader; adapters escape to other goroutines via Signer()
	// while the provider may still be attaching.
	mu     sync.Mutex
	reader Reader
}

// Options tunes adapter behavior. Zero values select defaults
// (60s send timeout, 2s receipt poll interval).
type Options struct {
	Timeout      time.Duration
	PollInterval time.Duration
	Metrics      *metrics.Metrics
}

// NewAdapter creates a signer adapter for the given paired account.
// If logger is nil, logging is discarded.
func NewAdapter(accountID string, channel Channel, logger *slog.Logger, opts Options) *Adapter {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Adapter{
		accountID:    accountID,
		channel:      channel,
		timeout:      timeout,
		pollInterval: pollInterval,
		logger:       logger,
		metrics:      opts.Metrics,
	}
}

// AccountID returns the paired account identifier backing this adapter.
func (a *Adapter) AccountID() string {
	return a.accountID
}

// ConnectProvider attaches a read provider used for receipt polling.
// Without one, PendingTx.Wait falls back to a fixed-delay approximation.
func (a *Adapter) ConnectProvider(reader Reader) {
	a.mu.Lock()
	a.reader = reader
	a.mu.Unlock()
}

// Address derives the EVM address for the session account identifier.
func (a *Adapter) Address() (common.Address, error) {
	addr, err := AccountIDToAddress(a.accountID)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrAddressUnavailable, err)
	}
	return addr, nil
}

// SendTransaction serializes tx, dispatches it to the signing agent over the
// session channel, and awaits the correlated response. The wait is bounded by
// the configured timeout; the response listener is released on every path.
func (a *Adapter) SendTransaction(ctx context.Context, tx *types.Transaction) (*PendingTx, error) {
	if a.channel == nil {
		return nil, ErrNoChannel
	}

	payload, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("serialize transaction: %w", err)
	}

	requestID := uuid.New().String()
	respCh := make(chan Response, 1)
	cancel, err := a.channel.Subscribe(requestID, func(resp Response) {
		select {
		case respCh <- resp:
		default:
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe for response: %w", err)
	}
	defer cancel()

	start := time.Now()
	if err := a.channel.Dispatch(ctx, requestID, payload); err != nil {
		if a.metrics != nil {
			a.metrics.RecordTxDispatch("error", time.Since(start).Seconds())
		}
		return nil, fmt.Errorf("dispatch transaction: %w", err)
	}

	a.logger.DebugContext(ctx, "transaction dispatched to signing agent",
		"request_id", requestID,
		"account", a.accountID,
	)

	timer := time.NewTimer(a.timeout)
	defer timer.Stop()

	select {
	case resp := <-respCh:
		duration := time.Since(start).Seconds()
		if resp.Rejected {
			if a.metrics != nil {
				a.metrics.RecordTxDispatch("rejected", duration)
			}
			return nil, ErrUserRejected
		}
		if resp.Err != nil {
			if !errors.Is(resp.Err, ErrLegacyResponseShape) {
				if a.metrics != nil {
					a.metrics.RecordTxDispatch("error", duration)
				}
				return nil, fmt.Errorf("signing agent: %w", resp.Err)
			}
			// Known-harmless envelope mismatch; the transaction went through.
			a.logger.DebugContext(ctx, "ignoring legacy response payload shape",
				"request_id", requestID,
			)
		}
		if a.metrics != nil {
			a.metrics.RecordTxDispatch("accepted", duration)
		}
		hash := resp.TxHash
		if hash == (common.Hash{}) {
			hash = tx.Hash()
		}
		a.mu.Lock()
		reader := a.reader
		a.mu.Unlock()
		return &PendingTx{
			hash:         hash,
			reader:       reader,
			pollInterval: a.pollInterval,
			logger:       a.logger,
		}, nil

	case <-timer.C:
		if a.metrics != nil {
			a.metrics.RecordTxDispatch("timeout", time.Since(start).Seconds())
		}
		return nil, ErrTransactionTimeout

	case <-ctx.Done():
		if a.metrics != nil {
			a.metrics.RecordTxDispatch("canceled", time.Since(start).Seconds())
		}
		return nil, ctx.Err()
	}
}

// SignMessage delegates to the agent's message-signing capability.
func (a *Adapter) SignMessage(ctx context.Context, message []byte) ([]byte, error) {
	if a.channel == nil {
		return nil, ErrNoChannel
	}
	if !a.channel.Capabilities().SignMessage {
		return nil, ErrUnsupportedOperation
	}
	sig, err := a.channel.SignMessage(ctx, uuid.New().String(), message)
	if err != nil {
		return nil, fmt.Errorf("sign message: %w", err)
	}
	return sig, nil
}
