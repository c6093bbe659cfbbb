// Package merkle implements sorted-pair Merkle proof verification over
// keccak-256, the scheme used by the allowlist distributor.
//
// Leaves commit to (identity, amount, round). Interior nodes hash the
// concatenation of the pair sorted bytewise, so proofs carry no left/right
// position bits.
package merkle

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/sha3"

	id "mintgate/pkg/domain"
	dErrors "mintgate/pkg/domain-errors"
)

// Hash is a 32-byte keccak-256 digest.
type Hash [32]byte

// ZeroHash is the null root; never a valid allowlist commitment.
var ZeroHash Hash

// IsZero reports whether the hash is the null hash.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// String returns the 0x-prefixed hex form.
func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// MarshalText implements encoding.TextMarshaler for JSON round-trips.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ParseHash validates a 0x-prefixed 64-hex-digit hash at trust boundaries.
func ParseHash(s string) (Hash, error) {
	var h Hash
	if len(s) != 2+2*len(h) || (s[:2] != "0x" && s[:2] != "0X") {
		return ZeroHash, dErrors.New(dErrors.CodeInvalidInput, "hash must be a 0x-prefixed 64-hex-digit string")
	}
	b, err := hex.DecodeString(s[2:])
	if err != nil {
		return ZeroHash, dErrors.Wrap(err, dErrors.CodeInvalidInput, "hash is not valid hex")
	}
	copy(h[:], b)
	return h, nil
}

// LeafHash commits to a single allowlist entry:
// keccak256(identity bytes || amount as big-endian uint64 || round as big-endian uint64).
func LeafHash(identity id.Identity, amount uint64, round id.Round) Hash {
	buf := make([]byte, 0, 36)
	buf = append(buf, identity.Bytes()...)
	buf = binary.BigEndian.AppendUint64(buf, amount)
	buf = binary.BigEndian.AppendUint64(buf, uint64(round))
	return keccak(buf)
}

// Verify reconstructs the root from leaf and proof using sorted-pair hashing
// and reports whether it matches root.
func Verify(leaf Hash, proof []Hash, root Hash) bool {
	computed := leaf
	for _, sibling := range proof {
		computed = hashPair(computed, sibling)
	}
	return computed == root
}

func hashPair(a, b Hash) Hash {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	buf := make([]byte, 0, 64)
	buf = append(buf, a[:]...)
	buf = append(buf, b[:]...)
	return keccak(buf)
}

func keccak(data []byte) Hash {
	var h Hash
	d := sha3.NewLegacyKeccak256()
	d.Write(data)
	copy(h[:], d.Sum(nil))
	return h
}

// BuildTree constructs a sorted-pair tree over the given leaves and returns
// the root plus a proof per leaf index. Odd nodes are promoted unhashed.
// Intended for operators preparing allowlist commitments and for tests.
func BuildTree(leaves []Hash) (Hash, [][]Hash, error) {
	if len(leaves) == 0 {
		return ZeroHash, nil, dErrors.New(dErrors.CodeInvalidInput, "cannot build a tree with no leaves")
	}
	proofs := make([][]Hash, len(leaves))
	// index of each original leaf within the current level
	positions := make([]int, len(leaves))
	for i := range positions {
		positions[i] = i
	}
	level := append([]Hash(nil), leaves...)
	for len(level) > 1 {
		next := make([]Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			next = append(next, hashPair(level[i], level[i+1]))
		}
		for leafIdx, pos := range positions {
			sibling := pos ^ 1
			if sibling < len(level) {
				proofs[leafIdx] = append(proofs[leafIdx], level[sibling])
			}
			positions[leafIdx] = pos / 2
		}
		level = next
	}
	return level[0], proofs, nil
}

var _ fmt.Stringer = Hash{}
