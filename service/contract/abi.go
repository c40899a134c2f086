package contract

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// groupComponents is the factory's positional group tuple, shared by
// getGroup and getGroups.
const groupComponents = `[
	{"name": "id", "type": "uint256"},
	{"name": "core", "type": "address"},
	{"name": "members", "type": "address"},
	{"name": "collateral", "type": "address"},
	{"name": "payments", "type": "address"},
	{"name": "governance", "type": "address"},
	{"name": "creator", "type": "address"},
	{"name": "createdAt", "type": "uint256"},
	{"name": "name", "type": "string"},
	{"name": "isActive", "type": "bool"}
]`

// factoryABIJSON covers the factory surface the gateway uses: aggregate
// stats, paginated listings, per-group queries, phased group creation, and
// the GroupCreated event.
const factoryABIJSON = `[
	{
		"type": "function", "name": "getFactoryStats", "stateMutability": "view",
		"inputs": [],
		"outputs": [
			{"name": "totalGroups", "type": "uint256"},
			{"name": "activeGroups", "type": "uint256"},
			{"name": "totalMembers", "type": "uint256"},
			{"name": "totalValueLocked", "type": "uint256"}
		]
	},
	{
		"type": "function", "name": "getGroups", "stateMutability": "view",
		"inputs": [
			{"name": "offset", "type": "uint256"},
			{"name": "limit", "type": "uint256"}
		],
		"outputs": [
			{"name": "groups", "type": "tuple[]", "components": ` + groupComponents + `},
			{"name": "hasMore", "type": "bool"}
		]
	},
	{
		"type": "function", "name": "getGroup", "stateMutability": "view",
		"inputs": [{"name": "groupId", "type": "uint256"}],
		"outputs": [{"name": "group", "type": "tuple", "components": ` + groupComponents + `}]
	},
	{
		"type": "function", "name": "getGroupStatus", "stateMutability": "view",
		"inputs": [{"name": "groupId", "type": "uint256"}],
		"outputs": [
			{"name": "totalMembers", "type": "uint256"},
			{"name": "currentCycle", "type": "uint256"},
			{"name": "canAcceptMembers", "type": "bool"},
			{"name": "hasActiveGovernance", "type": "bool"},
			{"name": "hasActiveScheduling", "type": "bool"}
		]
	},
	{
		"type": "function", "name": "getMemberInfo", "stateMutability": "view",
		"inputs": [
			{"name": "groupId", "type": "uint256"},
			{"name": "member", "type": "address"}
		],
		"outputs": [
			{"name": "queuePosition", "type": "uint256"},
			{"name": "guarantorPosition", "type": "uint256"},
			{"name": "reputation", "type": "uint256"},
			{"name": "lockedCollateral", "type": "uint256"},
			{"name": "paidThisCycle", "type": "bool"},
			{"name": "receivedPayout", "type": "bool"}
		]
	},
	{
		"type": "function", "name": "createAjoGroup", "stateMutability": "nonpayable",
		"inputs": [
			{"name": "name", "type": "string"},
			{"name": "withGovernance", "type": "bool"},
			{"name": "withScheduling", "type": "bool"}
		],
		"outputs": []
	},
	{
		"type": "function", "name": "initPhase2", "stateMutability": "nonpayable",
		"inputs": [{"name": "groupId", "type": "uint256"}], "outputs": []
	},
	{
		"type": "function", "name": "initPhase3", "stateMutability": "nonpayable",
		"inputs": [{"name": "groupId", "type": "uint256"}], "outputs": []
	},
	{
		"type": "function", "name": "initPhase4", "stateMutability": "nonpayable",
		"inputs": [{"name": "groupId", "type": "uint256"}], "outputs": []
	},
	{
		"type": "function", "name": "finalizeGroup", "stateMutability": "nonpayable",
		"inputs": [{"name": "groupId", "type": "uint256"}], "outputs": []
	},
	{
		"type": "function", "name": "deactivateGroup", "stateMutability": "nonpayable",
		"inputs": [{"name": "groupId", "type": "uint256"}], "outputs": []
	},
	{
		"type": "event", "name": "GroupCreated", "anonymous": false,
		"inputs": [
			{"name": "groupId", "type": "uint256", "indexed": true},
			{"name": "creator", "type": "address", "indexed": true},
			{"name": "name", "type": "string", "indexed": false}
		]
	}
]`

// mustParseFactoryABI parses the embedded ABI. The JSON is a compile-time
// constant, so a parse failure is a programming error.
func mustParseFactoryABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(factoryABIJSON))
	if err != nil {
		panic("contract: invalid embedded factory ABI: " + err.Error())
	}
	return parsed
}
