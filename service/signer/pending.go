package signer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrTransactionReverted means the transaction was mined but its receipt
// reports failure.
var ErrTransactionReverted = errors.New("signer: transaction reverted")

// fallbackConfirmationDelay approximates consensus finality when no read
// provider is attached. This is a best-effort approximation, not a
// guarantee; prefer attaching a provider so Wait can poll real receipts.
const fallbackConfirmationDelay = 5 * time.Second

// PendingTx is a dispatched transaction awaiting confirmation.
type PendingTx struct {
	hash         common.Hash
	reader       Reader
	pollInterval time.Duration
	logger       *slog.Logger
}

// Hash returns the transaction hash.
func (p *PendingTx) Hash() common.Hash {
	return p.hash
}

// Wait blocks until the transaction is confirmed or ctx is done. With a read
// provider attached it polls for the receipt and returns it; a failed receipt
// yields ErrTransactionReverted. Without a provider it sleeps a fixed delay
// and returns a nil receipt — callers needing event logs must have a provider.
func (p *PendingTx) Wait(ctx context.Context) (*types.Receipt, error) {
	if p.reader == nil {
		p.logger.Warn("no read provider attached, approximating confirmation with fixed delay",
			"tx_hash", p.hash.Hex(),
			"delay", fallbackConfirmationDelay,
		)
		select {
		case <-time.After(fallbackConfirmationDelay):
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := p.reader.TransactionReceipt(ctx, p.hash)
		if err == nil && receipt != nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return receipt, fmt.Errorf("%w: tx %s", ErrTransactionReverted, p.hash.Hex())
			}
			return receipt, nil
		}
		// Not found yet is expected while the network reaches consensus;
		// real transport errors surface on the next UI-driven retry too,
		// so keep polling until ctx expires.

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
