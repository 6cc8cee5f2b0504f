package normalizer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	testifymock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/sensorledger/integrity/engine/verification"
	"github.com/sensorledger/integrity/model/commitment"
	"github.com/sensorledger/integrity/module"
	"github.com/sensorledger/integrity/module/mock"
	"github.com/sensorledger/integrity/utils/unittest"
)

func leafFor(store *unittest.ContentStore, requestBlock uint64, salt int) string {
	return store.Put([]byte(fmt.Sprintf(`{"blockNumber": %d, "salt": %d}`, requestBlock, salt)))
}

// TestNormalizeDeduplicates covers two updates answering the same request: the
// later one is retained and the earlier one reported as superseded.
func TestNormalizeDeduplicates(t *testing.T) {
	store := unittest.NewContentStore()
	reader := mock.NewCommitmentReader(t)

	events := commitment.NewEventLog()
	events.RequestedBlocks = []uint64{100, 200, 300}
	events.Updated[150] = commitment.LeafUpdate{LeafRef: leafFor(store, 100, 1), RootValue: unittest.RootFixture(1)}
	events.Updated[205] = commitment.LeafUpdate{LeafRef: leafFor(store, 100, 2), RootValue: unittest.RootFixture(2)}

	reader.On("BlockTimestamp", testifymock.Anything, uint64(100)).Return(uint64(1000), nil)
	reader.On("BlockTimestamp", testifymock.Anything, uint64(200)).Return(uint64(2000), nil)
	reader.On("BlockTimestamp", testifymock.Anything, uint64(300)).Return(uint64(0), module.ErrBlockNotFound)

	n := New(unittest.Logger(), reader, store, 2)
	normalized, err := n.Normalize(context.Background(), events)
	require.NoError(t, err)

	updates := normalized.Sequence.Updates()
	require.Len(t, updates, 1)
	assert.Equal(t, uint64(205), updates[0].BlockNumber)
	assert.Equal(t, uint64(100), updates[0].LeafBlockRef)
	assert.False(t, updates[0].DataPresent)

	require.Len(t, normalized.Superseded, 1)
	assert.Equal(t, uint64(150), normalized.Superseded[0].BlockNumber)

	requests := normalized.Sequence.Requests()
	require.Len(t, requests, 3)
	assert.Equal(t, uint64(1000), requests[0].Timestamp)
	assert.True(t, requests[0].TimestampKnown)
	assert.False(t, requests[2].TimestampKnown)

	var heights []uint64
	for _, e := range normalized.Sequence {
		heights = append(heights, e.Height())
	}
	assert.Equal(t, []uint64{100, 200, 205, 300}, heights)
}

func TestNormalizeStorageFailure(t *testing.T) {
	reader := mock.NewCommitmentReader(t)
	content := mock.NewContentFetcher(t)

	events := commitment.NewEventLog()
	events.Updated[150] = commitment.LeafUpdate{LeafRef: "bafy-missing"}

	content.On("Fetch", testifymock.Anything, "bafy-missing").Return(nil, errors.New("gateway unavailable"))

	n := New(unittest.Logger(), reader, content, 1)
	_, err := n.Normalize(context.Background(), events)
	require.Error(t, err)
	assert.True(t, verification.IsStorageFetchError(err))
}

func TestNormalizeMalformedLeaf(t *testing.T) {
	store := unittest.NewContentStore()
	reader := mock.NewCommitmentReader(t)

	events := commitment.NewEventLog()
	events.Updated[150] = commitment.LeafUpdate{LeafRef: store.Put([]byte(`{"blockNumber": "x"}`))}

	n := New(unittest.Logger(), reader, store, 1)
	_, err := n.Normalize(context.Background(), events)
	require.Error(t, err)
	assert.True(t, verification.IsStorageFetchError(err))
}

func TestNormalizeLedgerFailure(t *testing.T) {
	store := unittest.NewContentStore()
	reader := mock.NewCommitmentReader(t)

	events := commitment.NewEventLog()
	events.RequestedBlocks = []uint64{100}
	reader.On("BlockTimestamp", testifymock.Anything, uint64(100)).Return(uint64(0), errors.New("rpc down"))

	n := New(unittest.Logger(), reader, store, 1)
	_, err := n.Normalize(context.Background(), events)
	require.Error(t, err)
	assert.False(t, verification.IsStorageFetchError(err))
}

// TestDeduplicateCardinality checks that exactly one update per reference is
// retained, that it is the latest one and that nothing is lost.
func TestDeduplicateCardinality(t *testing.T) {
	rapid.Check(t, func(tt *rapid.T) {
		blocks := rapid.SliceOfNDistinct(rapid.Uint64Range(0, 9_999), 0, 30, rapid.ID[uint64]).Draw(tt, "blocks")
		updates := make([]commitment.RootUpdated, 0, len(blocks))
		for _, block := range blocks {
			updates = append(updates, commitment.RootUpdated{
				BlockNumber:  block,
				LeafBlockRef: rapid.Uint64Range(0, 4).Draw(tt, "ref"),
			})
		}

		retained, superseded := Deduplicate(updates)
		require.Equal(tt, len(updates), len(retained)+len(superseded))

		maxByRef := make(map[uint64]uint64)
		for _, u := range updates {
			if u.BlockNumber >= maxByRef[u.LeafBlockRef] {
				maxByRef[u.LeafBlockRef] = u.BlockNumber
			}
		}
		require.Len(tt, retained, len(maxByRef))
		for _, u := range retained {
			require.Equal(tt, maxByRef[u.LeafBlockRef], u.BlockNumber)
		}
		for _, s := range superseded {
			require.Less(tt, s.BlockNumber, maxByRef[s.LeafBlockRef])
		}
	})
}
