package contract

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ajohq/ajolink/service/metrics"
	"github.com/ajohq/ajolink/service/signer"
)

// Fallbacks when the read provider cannot supply gas values. The signing
// agent may still override them before submission.
const (
	defaultGasLimit = 1_000_000
	defaultGasPrice = 620_000_000_000 // weibar
)

// Caller is the subset of an RPC client the gateway needs for reads and for
// assembling write transactions. *ethclient.Client satisfies it; tests mock it.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
}

// SignerSource supplies the paired account identity and its signer. Both
// report ok=false whenever the wallet is not paired; a write handle is never
// exposed in that case.
type SignerSource interface {
	AccountID() (string, bool)
	Signer() (signer.TxSender, bool)
}

// writeHandle pairs a signer with its derived from-address. Single-owner,
// rebuilt on identity change, never mutated in place.
type writeHandle struct {
	account string
	sender  signer.TxSender
	from    common.Address
}

// Gateway exposes the factory's domain operations without leaking
// binding-library details to callers. The read handle is built eagerly at
// construction; the write handle lazily, keyed off the paired account.
type Gateway struct {
	abi         abi.ABI
	factoryAddr common.Address
	caller      Caller
	signers     SignerSource
	logger      *slog.Logger
	metrics     *metrics.Metrics

	groupList   GroupListSink
	groupStatus GroupStatusSink
	member      MemberSink

	mu    sync.Mutex
	write *writeHandle
}

// NewGateway constructs a gateway against the factory at factoryAddress.
// caller is the read handle; it must be non-nil and the address must be a
// valid hex address, otherwise construction fails fast with ErrConfiguration.
// signers may be nil for a read-only gateway. If logger is nil, logging is
// discarded; metrics may be nil.
func NewGateway(caller Caller, factoryAddress string, signers SignerSource, logger *slog.Logger, m *metrics.Metrics) (*Gateway, error) {
	if caller == nil {
		return nil, fmt.Errorf("%w: no RPC client", ErrConfiguration)
	}
	if !common.IsHexAddress(factoryAddress) {
		return nil, fmt.Errorf("%w: invalid factory address %q", ErrConfiguration, factoryAddress)
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Gateway{
		abi:         mustParseFactoryABI(),
		factoryAddr: common.HexToAddress(factoryAddress),
		caller:      caller,
		signers:     signers,
		logger:      logger,
		metrics:     m,
	}, nil
}

// AttachSinks wires the client caches the gateway writes completed results
// into. Any sink may be nil.
func (g *Gateway) AttachSinks(list GroupListSink, status GroupStatusSink, member MemberSink) {
	g.groupList = list
	g.groupStatus = status
	g.member = member
}

// FactoryAddress returns the configured factory contract address.
func (g *Gateway) FactoryAddress() common.Address {
	return g.factoryAddr
}

// ReadReady reports whether the read handle exists.
func (g *Gateway) ReadReady() bool {
	return g.caller != nil
}

// WriteReady reports whether a write handle is currently available.
func (g *Gateway) WriteReady() bool {
	_, err := g.writeHandle()
	return err == nil
}

// writeHandle returns the current write handle, building or rebuilding it
// only when the paired identity or the signer behind it changed. The account
// check alone is not enough: a drop-and-repair for the same account swaps in
// a fresh signer whose old channel is dead, so the handle is keyed on both.
func (g *Gateway) writeHandle() (*writeHandle, error) {
	if g.signers == nil {
		return nil, ErrWriteUnavailable
	}
	account, ok := g.signers.AccountID()
	if !ok {
		g.mu.Lock()
		g.write = nil
		g.mu.Unlock()
		return nil, ErrWriteUnavailable
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	sender, ok := g.signers.Signer()
	if !ok {
		g.write = nil
		return nil, ErrWriteUnavailable
	}
	if g.write != nil && g.write.account == account && g.write.sender == sender {
		return g.write, nil
	}

	from, err := sender.Address()
	if err != nil {
		g.write = nil
		return nil, fmt.Errorf("%w: %v", ErrWriteUnavailable, err)
	}

	g.write = &writeHandle{account: account, sender: sender, from: from}
	g.logger.Debug("write handle rebuilt", "account", account, "from", from.Hex())
	return g.write, nil
}

// call performs a read against the factory and unpacks the outputs.
func (g *Gateway) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	if g.caller == nil {
		return nil, ErrReadUnavailable
	}
	input, err := g.abi.Pack(method, args...)
	if err != nil {
		return nil, &ReadFailedError{Method: method, Err: err}
	}

	start := time.Now()
	output, err := g.caller.CallContract(ctx, ethereum.CallMsg{To: &g.factoryAddr, Data: input}, nil)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
	}
	if g.metrics != nil {
		g.metrics.RecordRPCCall(method, status, duration)
	}
	if err != nil {
		return nil, &ReadFailedError{Method: method, Err: err}
	}

	out, err := g.abi.Unpack(method, output)
	if err != nil {
		return nil, &ReadFailedError{Method: method, Err: err}
	}
	return out, nil
}

// FactoryStats fetches aggregate statistics across all groups.
func (g *Gateway) FactoryStats(ctx context.Context) (*FactoryStats, error) {
	out, err := g.call(ctx, "getFactoryStats")
	if err != nil {
		return nil, err
	}
	return &FactoryStats{
		TotalGroups:      (*abi.ConvertType(out[0], new(*big.Int)).(**big.Int)).Uint64(),
		ActiveGroups:     (*abi.ConvertType(out[1], new(*big.Int)).(**big.Int)).Uint64(),
		TotalMembers:     (*abi.ConvertType(out[2], new(*big.Int)).(**big.Int)).Uint64(),
		TotalValueLocked: *abi.ConvertType(out[3], new(*big.Int)).(**big.Int),
	}, nil
}

// ListGroups fetches a page of groups. On success the group-list cache is
// fully replaced with this page — never merged — so it cannot mix data from
// two pagination calls.
func (g *Gateway) ListGroups(ctx context.Context, offset, limit uint64) ([]GroupInfo, bool, error) {
	out, err := g.call(ctx, "getGroups", new(big.Int).SetUint64(offset), new(big.Int).SetUint64(limit))
	if err != nil {
		return nil, false, err
	}

	raw := *abi.ConvertType(out[0], new([]rawGroup)).(*[]rawGroup)
	hasMore := *abi.ConvertType(out[1], new(bool)).(*bool)

	groups := make([]GroupInfo, len(raw))
	for i, r := range raw {
		groups[i] = r.toGroupInfo()
	}

	if g.groupList != nil {
		g.groupList.ReplaceAll(groups)
		if g.metrics != nil {
			g.metrics.RecordCacheReplace("group_list")
		}
	}
	return groups, hasMore, nil
}

// GetGroup fetches a single group by id.
func (g *Gateway) GetGroup(ctx context.Context, groupID uint64) (*GroupInfo, error) {
	out, err := g.call(ctx, "getGroup", new(big.Int).SetUint64(groupID))
	if err != nil {
		return nil, err
	}
	raw := *abi.ConvertType(out[0], new(rawGroup)).(*rawGroup)
	info := raw.toGroupInfo()
	return &info, nil
}

// GroupStatus fetches a group's operational status and merges it into the
// details cache.
func (g *Gateway) GroupStatus(ctx context.Context, groupID uint64) (*GroupStatus, error) {
	out, err := g.call(ctx, "getGroupStatus", new(big.Int).SetUint64(groupID))
	if err != nil {
		return nil, err
	}
	status := GroupStatus{
		GroupID:             groupID,
		TotalMembers:        (*abi.ConvertType(out[0], new(*big.Int)).(**big.Int)).Uint64(),
		CurrentCycle:        (*abi.ConvertType(out[1], new(*big.Int)).(**big.Int)).Uint64(),
		CanAcceptMembers:    *abi.ConvertType(out[2], new(bool)).(*bool),
		HasActiveGovernance: *abi.ConvertType(out[3], new(bool)).(*bool),
		HasActiveScheduling: *abi.ConvertType(out[4], new(bool)).(*bool),
	}
	if g.groupStatus != nil {
		g.groupStatus.SetStatus(groupID, status)
	}
	return &status, nil
}

// MemberInfo fetches the member snapshot for account within a group.
func (g *Gateway) MemberInfo(ctx context.Context, groupID uint64, account common.Address) (*MemberInfo, error) {
	out, err := g.call(ctx, "getMemberInfo", new(big.Int).SetUint64(groupID), account)
	if err != nil {
		return nil, err
	}
	info := MemberInfo{
		GroupID:           groupID,
		Account:           account,
		QueuePosition:     (*abi.ConvertType(out[0], new(*big.Int)).(**big.Int)).Uint64(),
		GuarantorPosition: (*abi.ConvertType(out[1], new(*big.Int)).(**big.Int)).Uint64(),
		Reputation:        (*abi.ConvertType(out[2], new(*big.Int)).(**big.Int)).Uint64(),
		LockedCollateral:  *abi.ConvertType(out[3], new(*big.Int)).(**big.Int),
		PaidThisCycle:     *abi.ConvertType(out[4], new(bool)).(*bool),
		ReceivedPayout:    *abi.ConvertType(out[5], new(bool)).(*bool),
	}
	if g.member != nil {
		g.member.Set(info)
	}
	return &info, nil
}

// buildTx assembles an unsigned transaction for the signing agent. Nonce and
// gas come from the read provider; failures fall back to defaults the agent
// can override.
func (g *Gateway) buildTx(ctx context.Context, wh *writeHandle, input []byte) *types.Transaction {
	var nonce uint64
	if n, err := g.caller.PendingNonceAt(ctx, wh.from); err == nil {
		nonce = n
	} else {
		g.logger.DebugContext(ctx, "could not fetch nonce, agent will assign", "error", err)
	}

	gasPrice := big.NewInt(defaultGasPrice)
	if p, err := g.caller.SuggestGasPrice(ctx); err == nil {
		gasPrice = p
	}

	gasLimit := uint64(defaultGasLimit)
	msg := ethereum.CallMsg{From: wh.from, To: &g.factoryAddr, Data: input}
	if est, err := g.caller.EstimateGas(ctx, msg); err == nil {
		// Headroom for state growth between estimate and execution.
		gasLimit = est + est/5
	}

	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &g.factoryAddr,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     input,
	})
}

// writeCall packs and dispatches a state-changing call, then waits for its
// receipt. Fails with ErrWriteUnavailable before any dispatch when no write
// handle exists; no cache is mutated on any failure path.
func (g *Gateway) writeCall(ctx context.Context, method string, args ...interface{}) (*types.Receipt, error) {
	wh, err := g.writeHandle()
	if err != nil {
		return nil, err
	}

	input, err := g.abi.Pack(method, args...)
	if err != nil {
		return nil, &WriteFailedError{Method: method, Err: err}
	}

	tx := g.buildTx(ctx, wh, input)
	pending, err := wh.sender.SendTransaction(ctx, tx)
	if err != nil {
		return nil, &WriteFailedError{Method: method, Err: err}
	}

	g.logger.InfoContext(ctx, "transaction dispatched",
		"method", method,
		"tx_hash", pending.Hash().Hex(),
		"account", wh.account,
	)

	receipt, err := pending.Wait(ctx)
	if err != nil {
		return nil, &WriteFailedError{Method: method, Err: err}
	}
	return receipt, nil
}

// CreateGroup creates a new group and recovers its assigned id from the
// GroupCreated event in the receipt. A receipt without the expected event
// is a failure — the gateway never guesses an identifier.
func (g *Gateway) CreateGroup(ctx context.Context, name string, flags GroupFlags) (uint64, error) {
	receipt, err := g.writeCall(ctx, "createAjoGroup", name, flags.WithGovernance, flags.WithScheduling)
	if err != nil {
		return 0, err
	}
	if receipt == nil {
		return 0, fmt.Errorf("%w: no receipt available", ErrEventNotFound)
	}
	return g.extractGroupCreated(receipt)
}

// extractGroupCreated locates and decodes the GroupCreated event emitted by
// the factory.
func (g *Gateway) extractGroupCreated(receipt *types.Receipt) (uint64, error) {
	ev := g.abi.Events["GroupCreated"]
	for _, lg := range receipt.Logs {
		if lg.Address != g.factoryAddr {
			continue
		}
		if len(lg.Topics) == 0 || lg.Topics[0] != ev.ID {
			continue
		}
		if len(lg.Topics) < 2 {
			return 0, fmt.Errorf("%w: missing groupId topic", ErrEventDecodeFailed)
		}
		id := new(big.Int).SetBytes(lg.Topics[1].Bytes())
		if !id.IsUint64() || id.Sign() <= 0 {
			return 0, fmt.Errorf("%w: group id out of range", ErrEventDecodeFailed)
		}
		return id.Uint64(), nil
	}
	return 0, ErrEventNotFound
}

// InitPhase advances a group through its ordered initialization phases
// (2, 3, then 4).
func (g *Gateway) InitPhase(ctx context.Context, groupID uint64, phase int) error {
	var method string
	switch phase {
	case 2:
		method = "initPhase2"
	case 3:
		method = "initPhase3"
	case 4:
		method = "initPhase4"
	default:
		return fmt.Errorf("contract: unknown initialization phase %d", phase)
	}
	_, err := g.writeCall(ctx, method, new(big.Int).SetUint64(groupID))
	return err
}

// FinalizeGroup completes a group's initialization.
func (g *Gateway) FinalizeGroup(ctx context.Context, groupID uint64) error {
	_, err := g.writeCall(ctx, "finalizeGroup", new(big.Int).SetUint64(groupID))
	return err
}

// DeactivateGroup deactivates a group.
func (g *Gateway) DeactivateGroup(ctx context.Context, groupID uint64) error {
	_, err := g.writeCall(ctx, "deactivateGroup", new(big.Int).SetUint64(groupID))
	return err
}
