package cache

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ajohq/ajolink/service/contract"
	"github.com/ajohq/ajolink/service/session"
)

// memberStorageKey is versioned so format changes invalidate the persisted
// snapshot instead of producing partial decodes.
const memberStorageKey = "ajolink_member_v1"

// Member caches the authenticated member's snapshot. Persistence is an
// explicit opt-in (WithPersistence): member identity is long-lived
// session-shaped data, so it survives restarts; passing no KV keeps the
// cache memory-only.
type Member struct {
	mu     sync.RWMutex
	info   contract.MemberInfo
	loaded bool
	kv     *session.KV
	logger *slog.Logger
}

// persistedMember is the stored shape of a member snapshot.
type persistedMember struct {
	GroupID           uint64 `json:"group_id"`
	Account           string `json:"account"`
	QueuePosition     uint64 `json:"queue_position"`
	GuarantorPosition uint64 `json:"guarantor_position"`
	Reputation        uint64 `json:"reputation"`
	LockedCollateral  string `json:"locked_collateral"`
	PaidThisCycle     bool   `json:"paid_this_cycle"`
	ReceivedPayout    bool   `json:"received_payout"`
}

// NewMember creates a memory-only member cache.
func NewMember(logger *slog.Logger) *Member {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Member{logger: logger}
}

// WithPersistence enables durable storage and restores any previously
// persisted snapshot. A snapshot that fails to decode is discarded.
func (s *Member) WithPersistence(ctx context.Context, kv *session.KV) *Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kv = kv

	payload, err := kv.Get(ctx, memberStorageKey)
	if errors.Is(err, session.ErrNotFound) {
		return s
	}
	if err != nil {
		s.logger.Warn("could not load persisted member snapshot", "error", err)
		return s
	}

	var p persistedMember
	if err := json.Unmarshal(payload, &p); err != nil {
		s.logger.Warn("discarding undecodable member snapshot", "error", err)
		return s
	}
	collateral, ok := new(big.Int).SetString(p.LockedCollateral, 10)
	if !ok {
		collateral = big.NewInt(0)
	}
	s.info = contract.MemberInfo{
		GroupID:           p.GroupID,
		Account:           common.HexToAddress(p.Account),
		QueuePosition:     p.QueuePosition,
		GuarantorPosition: p.GuarantorPosition,
		Reputation:        p.Reputation,
		LockedCollateral:  collateral,
		PaidThisCycle:     p.PaidThisCycle,
		ReceivedPayout:    p.ReceivedPayout,
	}
	s.loaded = true
	return s
}

// Set replaces the cached snapshot, implementing contract.MemberSink.
func (s *Member) Set(info contract.MemberInfo) {
	s.mu.Lock()
	s.info = info
	s.loaded = true
	kv := s.kv
	s.mu.Unlock()

	if kv == nil {
		return
	}
	collateral := "0"
	if info.LockedCollateral != nil {
		collateral = info.LockedCollateral.String()
	}
	payload, err := json.Marshal(persistedMember{
		GroupID:           info.GroupID,
		Account:           info.Account.Hex(),
		QueuePosition:     info.QueuePosition,
		GuarantorPosition: info.GuarantorPosition,
		Reputation:        info.Reputation,
		LockedCollateral:  collateral,
		PaidThisCycle:     info.PaidThisCycle,
		ReceivedPayout:    info.ReceivedPayout,
	})
	if err != nil {
		return
	}
	if err := kv.Put(context.Background(), memberStorageKey, payload); err != nil {
		s.logger.Warn("could not persist member snapshot", "error", err)
	}
}

// Get returns the cached snapshot. ok is false before the first fetch.
func (s *Member) Get() (contract.MemberInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info, s.loaded
}

// Clear empties the cache and removes any persisted snapshot.
func (s *Member) Clear(ctx context.Context) {
	s.mu.Lock()
	s.info = contract.MemberInfo{}
	s.loaded = false
	kv := s.kv
	s.mu.Unlock()

	if kv != nil {
		if err := kv.Delete(ctx, memberStorageKey); err != nil {
			s.logger.Warn("could not clear persisted member snapshot", "error", err)
		}
	}
}
