// Package cache holds last-known-good copies of on-chain-derived data for
// synchronous rendering. Stores are passive: they never fetch anything and
// are written to only by the wallet connector and the contract gateway in
// response to completed operations.
package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ajohq/ajolink/service/contract"
)

// recentStatusCap bounds how many per-group status records are kept for
// groups other than the active one.
const recentStatusCap = 32

// GroupList caches the canonical group listing. Collections are always
// fully replaced, never merged, so two pagination fetches cannot mix.
type GroupList struct {
	mu     sync.RWMutex
	groups []contract.GroupInfo
	loaded bool
}

// NewGroupList creates an empty group-list cache.
func NewGroupList() *GroupList {
	return &GroupList{}
}

// ReplaceAll replaces the entire cached listing.
func (s *GroupList) ReplaceAll(groups []contract.GroupInfo) {
	copied := make([]contract.GroupInfo, len(groups))
	copy(copied, groups)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups = copied
	s.loaded = true
}

// All returns the cached listing. ok is false before the first fetch.
func (s *GroupList) All() ([]contract.GroupInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		return nil, false
	}
	copied := make([]contract.GroupInfo, len(s.groups))
	copy(copied, s.groups)
	return copied, true
}

// Clear empties the cache.
func (s *GroupList) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups = nil
	s.loaded = false
}

// StatusPatch is a partial update to a group's cached status. Nil fields
// are left untouched; detail records are the only caches that merge.
type StatusPatch struct {
	TotalMembers        *uint64
	CurrentCycle        *uint64
	CanAcceptMembers    *bool
	HasActiveGovernance *bool
	HasActiveScheduling *bool
}

// GroupDetails caches per-group operational status scoped to one active
// group at a time. Switching the active group resets the record to defaults
// so no stale data leaks across groups. Recently viewed statuses are kept
// in a small LRU for instant back-navigation.
type GroupDetails struct {
	mu     sync.RWMutex
	active uint64
	status contract.GroupStatus
	recent *lru.Cache[uint64, contract.GroupStatus]
}

// NewGroupDetails creates an empty details cache.
func NewGroupDetails() *GroupDetails {
	recent, _ := lru.New[uint64, contract.GroupStatus](recentStatusCap)
	return &GroupDetails{recent: recent}
}

// SetActive switches the cache to groupID. A change of group resets the
// record to defaults; setting the same id again is a no-op.
func (s *GroupDetails) SetActive(groupID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == groupID {
		return
	}
	s.active = groupID
	if cached, ok := s.recent.Get(groupID); ok {
		s.status = cached
		return
	}
	s.status = contract.GroupStatus{GroupID: groupID}
}

// SetStatus stores a full status record, implementing contract.GroupStatusSink.
func (s *GroupDetails) SetStatus(groupID uint64, status contract.GroupStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recent.Add(groupID, status)
	if groupID != s.active {
		return
	}
	s.status = status
}

// Merge applies a partial update to the active group's record.
func (s *GroupDetails) Merge(patch StatusPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if patch.TotalMembers != nil {
		s.status.TotalMembers = *patch.TotalMembers
	}
	if patch.CurrentCycle != nil {
		s.status.CurrentCycle = *patch.CurrentCycle
	}
	if patch.CanAcceptMembers != nil {
		s.status.CanAcceptMembers = *patch.CanAcceptMembers
	}
	if patch.HasActiveGovernance != nil {
		s.status.HasActiveGovernance = *patch.HasActiveGovernance
	}
	if patch.HasActiveScheduling != nil {
		s.status.HasActiveScheduling = *patch.HasActiveScheduling
	}
	s.recent.Add(s.active, s.status)
}

// Active returns the active group's cached status.
func (s *GroupDetails) Active() contract.GroupStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Clear resets the cache entirely.
func (s *GroupDetails) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = 0
	s.status = contract.GroupStatus{}
	s.recent.Purge()
}

// Balances caches display-only token balances. Volatile per-request data:
// never persisted.
type Balances struct {
	mu       sync.RWMutex
	balances TokenBalances
	loaded   bool
}

// TokenBalances is the display snapshot of the user's balances.
type TokenBalances struct {
	WHBARTinybar int64
	USDCUnits    int64
	NairaPerHBAR float64
}

// NewBalances creates an empty balances cache.
func NewBalances() *Balances {
	return &Balances{}
}

// Set replaces the cached balances.
func (s *Balances) Set(b TokenBalances) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances = b
	s.loaded = true
}

// Get returns the cached balances. ok is false before the first refresh.
func (s *Balances) Get() (TokenBalances, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances, s.loaded
}

// Clear empties the cache.
func (s *Balances) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances = TokenBalances{}
	s.loaded = false
}
