package contract

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// GroupInfo is one rotating-savings-group record as recorded by the factory.
// Immutable once constructed; decoded from the factory's positional tuple.
type GroupInfo struct {
	ID                uint64
	CoreAddress       common.Address
	MembersAddress    common.Address
	CollateralAddress common.Address
	PaymentsAddress   common.Address
	GovernanceAddress common.Address
	Creator           common.Address
	CreatedAt         time.Time
	Name              string
	IsActive          bool
}

// GroupStatus is the per-group operational status.
type GroupStatus struct {
	GroupID             uint64
	TotalMembers        uint64
	CurrentCycle        uint64
	CanAcceptMembers    bool
	HasActiveGovernance bool
	HasActiveScheduling bool
}

// MemberInfo is the authenticated member's snapshot within a group.
type MemberInfo struct {
	GroupID           uint64
	Account           common.Address
	QueuePosition     uint64
	GuarantorPosition uint64
	Reputation        uint64
	LockedCollateral  *big.Int
	PaidThisCycle     bool
	ReceivedPayout    bool
}

// FactoryStats are aggregate statistics across all groups.
type FactoryStats struct {
	TotalGroups      uint64
	ActiveGroups     uint64
	TotalMembers     uint64
	TotalValueLocked *big.Int
}

// GroupFlags are the feature flags chosen at group creation.
type GroupFlags struct {
	WithGovernance bool
	WithScheduling bool
}

// GroupListSink receives canonical group listings. Listings always fully
// replace the previous contents so the cache never mixes two fetches.
type GroupListSink interface {
	ReplaceAll(groups []GroupInfo)
}

// GroupStatusSink receives per-group status updates.
type GroupStatusSink interface {
	SetStatus(groupID uint64, status GroupStatus)
}

// MemberSink receives member snapshot updates.
type MemberSink interface {
	Set(info MemberInfo)
}

// rawGroup mirrors the factory's group tuple layout for ABI decoding.
type rawGroup struct {
	Id         *big.Int
	Core       common.Address
	Members    common.Address
	Collateral common.Address
	Payments   common.Address
	Governance common.Address
	Creator    common.Address
	CreatedAt  *big.Int
	Name       string
	IsActive   bool
}

func (r rawGroup) toGroupInfo() GroupInfo {
	return GroupInfo{
		ID:                r.Id.Uint64(),
		CoreAddress:       r.Core,
		MembersAddress:    r.Members,
		CollateralAddress: r.Collateral,
		PaymentsAddress:   r.Payments,
		GovernanceAddress: r.Governance,
		Creator:           r.Creator,
		CreatedAt:         time.Unix(int64(r.CreatedAt.Uint64()), 0).UTC(),
		Name:              r.Name,
		IsActive:          r.IsActive,
	}
}
