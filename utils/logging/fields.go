package logging

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/sensorledger/integrity/model/commitment"
)

// Root renders a root for log output.
func Root(root common.Hash) string {
	return root.Hex()
}

// UpdateBlocks returns the block numbers of the given updates.
func UpdateBlocks(updates []commitment.RootUpdated) []uint64 {
	blocks := make([]uint64, 0, len(updates))
	for _, u := range updates {
		blocks = append(blocks, u.BlockNumber)
	}
	return blocks
}

// ReadingBlocks returns the request block numbers the given readings answer.
func ReadingBlocks(readings []commitment.Reading) []uint64 {
	blocks := make([]uint64, 0, len(readings))
	for _, r := range readings {
		blocks = append(blocks, r.BlockNumber)
	}
	return blocks
}
