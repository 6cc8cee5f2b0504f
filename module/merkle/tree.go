package merkle

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/exp/slices"

	"github.com/sensorledger/integrity/model/commitment"
)

// ErrNoLeaves is returned when a tree is built over an empty leaf set.
var ErrNoLeaves = errors.New("expected non-zero number of leaves")

// leafArguments is the ABI layout of a leaf: (uint256 index, string value).
var leafArguments = func() abi.Arguments {
	uint256, err := abi.NewType("uint256", "", nil)
	if err != nil {
		panic(err)
	}
	str, err := abi.NewType("string", "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{{Type: uint256}, {Type: str}}
}()

// Tree is a complete binary tree of keccak256 hashes stored in an array: the
// root is at index 0 and the children of node i are at 2i+1 and 2i+2. Leaf
// hashes are sorted before they are placed and node pairs are sorted before
// they are hashed, so the root does not depend on the order of the input.
type Tree struct {
	nodes []common.Hash
}

// Builder builds standard Merkle trees over commitment leaves.
type Builder struct{}

func NewBuilder() *Builder {
	return &Builder{}
}

// BuildRoot returns the root of the tree over the leaves.
func (b *Builder) BuildRoot(leaves []commitment.Leaf) (common.Hash, error) {
	tree, err := Build(leaves)
	if err != nil {
		return common.Hash{}, err
	}
	return tree.Root(), nil
}

// LeafHash returns keccak256(keccak256(abi.encode(index, value))).
func LeafHash(leaf commitment.Leaf) (common.Hash, error) {
	encoded, err := leafArguments.Pack(new(big.Int).SetUint64(leaf.Index), leaf.Value)
	if err != nil {
		return common.Hash{}, fmt.Errorf("could not encode leaf %d: %w", leaf.Index, err)
	}
	return crypto.Keccak256Hash(crypto.Keccak256(encoded)), nil
}

// Build hashes and sorts the leaves and builds the tree over them.
func Build(leaves []commitment.Leaf) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, ErrNoLeaves
	}

	hashes := make([]common.Hash, 0, len(leaves))
	for _, l := range leaves {
		h, err := LeafHash(l)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, h)
	}
	slices.SortFunc(hashes, func(a, b common.Hash) int {
		return bytes.Compare(a[:], b[:])
	})

	nodes := make([]common.Hash, 2*len(hashes)-1)
	for i, h := range hashes {
		nodes[len(nodes)-1-i] = h
	}
	for i := len(nodes) - 1 - len(hashes); i >= 0; i-- {
		nodes[i] = hashPair(nodes[2*i+1], nodes[2*i+2])
	}

	return &Tree{nodes: nodes}, nil
}

// Root returns the root hash of the tree.
func (t *Tree) Root() common.Hash {
	return t.nodes[0]
}

func hashPair(a, b common.Hash) common.Hash {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return crypto.Keccak256Hash(a[:], b[:])
}
