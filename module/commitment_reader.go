package module

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/sensorledger/integrity/model/commitment"
)

// ErrBlockNotFound is returned by CommitmentReader.BlockTimestamp for blocks
// the ledger does not know.
var ErrBlockNotFound = errors.New("block not found")

// CommitmentReader provides read-only access to the commitment contract on the ledger.
type CommitmentReader interface {
	// ReadEvents returns the contract's decoded event history. Request and
	// update events are restricted to blocks >= fromBlock; configuration
	// events are returned in full.
	ReadEvents(ctx context.Context, fromBlock uint64) (*commitment.EventLog, error)

	// BlockTimestamp returns the timestamp of the given block.
	// Expected errors:
	//   - ErrBlockNotFound if the ledger does not know the block
	BlockTimestamp(ctx context.Context, blockNumber uint64) (uint64, error)

	// CurrentRoot returns the aggregate root currently stored by the contract.
	CurrentRoot(ctx context.Context) (common.Hash, error)
}

// ContentFetcher resolves content references against content-addressed storage.
type ContentFetcher interface {
	// Fetch returns the bytes stored under ref.
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// TreeBuilder computes the aggregate root over a set of leaves. The result must
// not depend on the order of the leaves.
type TreeBuilder interface {
	BuildRoot(leaves []commitment.Leaf) (common.Hash, error)
}
