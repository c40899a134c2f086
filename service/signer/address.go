package signer

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// AccountIDToAddress converts a shard.realm.num account identifier
// (e.g. "0.0.1234") to its long-zero EVM address: 4 big-endian bytes of
// shard, 8 of realm, 8 of account number.
func AccountIDToAddress(accountID string) (common.Address, error) {
	parts := strings.Split(accountID, ".")
	if len(parts) != 3 {
		return common.Address{}, fmt.Errorf("malformed account id %q", accountID)
	}

	shard, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return common.Address{}, fmt.Errorf("malformed shard in account id %q: %w", accountID, err)
	}
	realm, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return common.Address{}, fmt.Errorf("malformed realm in account id %q: %w", accountID, err)
	}
	num, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return common.Address{}, fmt.Errorf("malformed account number in account id %q: %w", accountID, err)
	}

	var addr common.Address
	binary.BigEndian.PutUint32(addr[0:4], uint32(shard))
	binary.BigEndian.PutUint64(addr[4:12], realm)
	binary.BigEndian.PutUint64(addr[12:20], num)
	return addr, nil
}
