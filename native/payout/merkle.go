package payout

import (
	"bytes"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"tokenvest/native/common"
)

// ComputeLeaf hashes an (address, balance) pair into a merkle leaf. The
// balance is encoded as a 32-byte big-endian word so leaves are independent of
// the balance's decimal representation.
func ComputeLeaf(addr [20]byte, balance *big.Int) [32]byte {
	var leaf [32]byte
	bal := new(uint256.Int)
	if balance != nil && balance.Sign() > 0 {
		bal.SetFromBig(balance)
	}
	word := bal.Bytes32()
	copy(leaf[:], ethcrypto.Keccak256(addr[:], word[:]))
	return leaf
}

// combineNodes pairs two nodes in byte order before hashing, so verification
// does not depend on left/right position within the tree.
func combineNodes(a, b [32]byte) [32]byte {
	var node [32]byte
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	copy(node[:], ethcrypto.Keccak256(a[:], b[:]))
	return node
}

// VerifyProof reports whether the (address, balance) pair is a leaf of the
// tree committed to by (root, depth). The function is fail-closed: a proof
// whose length differs from the declared depth, a non-positive depth or
// balance, and any hash mismatch all yield false rather than an error.
func VerifyProof(root [32]byte, depth int, addr [20]byte, balance *big.Int, proof [][32]byte) bool {
	if depth <= 0 || len(proof) != depth {
		return false
	}
	if balance == nil || balance.Sign() <= 0 {
		return false
	}
	node := ComputeLeaf(addr, balance)
	for _, sibling := range proof {
		node = combineNodes(node, sibling)
	}
	return node == root
}

// SnapshotEntry is one holder row of an off-chain balance snapshot.
type SnapshotEntry struct {
	Address [20]byte
	Balance *big.Int
}

// SnapshotTree commits to a holder-balance snapshot. The holder set is
// enumerated off-chain; only the root and depth need to be stored with a
// payout, keeping the on-ledger footprint independent of the holder count.
type SnapshotTree struct {
	root    [32]byte
	depth   int
	entries []SnapshotEntry
	proofs  map[[20]byte][][32]byte
	total   *big.Int
}

// BuildSnapshotTree constructs the merkle commitment for the snapshot and
// precomputes a proof per holder. Entries with nil or non-positive balances
// are rejected; duplicate addresses are rejected since each holder may appear
// in a payout exactly once.
func BuildSnapshotTree(entries []SnapshotEntry) (*SnapshotTree, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("payout: %w: snapshot has no holders", common.ErrValidation)
	}
	seen := make(map[[20]byte]struct{}, len(entries))
	total := big.NewInt(0)
	for _, entry := range entries {
		if entry.Balance == nil || entry.Balance.Sign() <= 0 {
			return nil, fmt.Errorf("payout: %w: holder balance must be positive", common.ErrValidation)
		}
		if _, dup := seen[entry.Address]; dup {
			return nil, fmt.Errorf("payout: %w: duplicate holder in snapshot", common.ErrValidation)
		}
		seen[entry.Address] = struct{}{}
		total = total.Add(total, entry.Balance)
	}

	depth := 1
	for width := 2; width < len(entries); width *= 2 {
		depth++
	}
	width := 1 << depth

	level := make([][32]byte, width)
	for i, entry := range entries {
		level[i] = ComputeLeaf(entry.Address, entry.Balance)
	}
	// Unused slots stay the zero node; the byte-ordered pairing keeps padded
	// proofs verifiable regardless of leaf position.

	paths := make([][][32]byte, len(entries))
	for len(level) > 1 {
		next := make([][32]byte, len(level)/2)
		for i := 0; i < len(next); i++ {
			left, right := level[2*i], level[2*i+1]
			for leafIdx := range paths {
				pos := leafPosition(leafIdx, len(paths[leafIdx]))
				if pos == 2*i {
					paths[leafIdx] = append(paths[leafIdx], right)
				} else if pos == 2*i+1 {
					paths[leafIdx] = append(paths[leafIdx], left)
				}
			}
			next[i] = combineNodes(left, right)
		}
		level = next
	}

	tree := &SnapshotTree{
		root:    level[0],
		depth:   depth,
		entries: append([]SnapshotEntry(nil), entries...),
		proofs:  make(map[[20]byte][][32]byte, len(entries)),
		total:   total,
	}
	for i, entry := range entries {
		tree.proofs[entry.Address] = paths[i]
	}
	return tree, nil
}

// leafPosition maps a leaf index to its node index at the level reached after
// consuming `consumed` proof elements.
func leafPosition(leafIdx, consumed int) int {
	return leafIdx >> consumed
}

// Root returns the tree's merkle root.
func (t *SnapshotTree) Root() [32]byte { return t.root }

// Depth returns the number of proof elements each membership proof carries.
func (t *SnapshotTree) Depth() int { return t.depth }

// TotalBalance returns the sum of all snapshot balances, the denominator for
// proportional reward division.
func (t *SnapshotTree) TotalBalance() *big.Int { return new(big.Int).Set(t.total) }

// Proof returns the sibling path for the holder, or false when the holder is
// not part of the snapshot.
func (t *SnapshotTree) Proof(addr [20]byte) ([][32]byte, bool) {
	proof, ok := t.proofs[addr]
	if !ok {
		return nil, false
	}
	return append([][32]byte(nil), proof...), true
}
