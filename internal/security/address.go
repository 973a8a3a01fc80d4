package security

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/tutu-network/bounty/internal/domain"
)

// DeriveAddress maps an ordered list of seeds to a stable address.
// Each seed is length-prefixed so ("ab","c") and ("a","bc") never collide.
func DeriveAddress(seeds ...[]byte) domain.Address {
	h := sha256.New()
	var n [4]byte
	for _, s := range seeds {
		binary.BigEndian.PutUint32(n[:], uint32(len(s)))
		h.Write(n[:])
		h.Write(s)
	}
	return domain.Address(hex.EncodeToString(h.Sum(nil)))
}

// BoardAddress locates the board owned by authority.
func BoardAddress(authority domain.Identity) domain.Address {
	return DeriveAddress([]byte(domain.BoardSeed), []byte(authority))
}

// TaskAddress locates task number id on board. The id is encoded
// little-endian, matching the on-chain seed layout.
func TaskAddress(board domain.Address, id uint64) domain.Address {
	var le [8]byte
	binary.LittleEndian.PutUint64(le[:], id)
	return DeriveAddress([]byte(domain.TaskSeed), []byte(board), le[:])
}
