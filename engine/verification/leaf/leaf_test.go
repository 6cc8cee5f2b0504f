package leaf

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	testifymock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sensorledger/integrity/engine/verification"
	"github.com/sensorledger/integrity/model/commitment"
	"github.com/sensorledger/integrity/module/metrics"
	"github.com/sensorledger/integrity/module/mock"
	"github.com/sensorledger/integrity/utils/unittest"
)

type fixture struct {
	store      *unittest.ContentStore
	reader     *mock.CommitmentReader
	tree       *mock.TreeBuilder
	deployment commitment.Deployment
	format     commitment.CidFormatConfig
	seq        commitment.Sequence
	leaves     []string
}

func newFixture(t *testing.T) *fixture {
	key, address := unittest.SensorKeyFixture(t)
	store := unittest.NewContentStore()
	templateRef := store.Put([]byte(unittest.LeafTemplate))
	format := unittest.CidFormatFixture(10, templateRef)
	deployment := unittest.DeploymentFixture()

	f := &fixture{
		store:      store,
		reader:     mock.NewCommitmentReader(t),
		tree:       mock.NewTreeBuilder(t),
		deployment: deployment,
		format:     format,
	}

	var updates []commitment.Update
	for _, block := range []uint64{100, 200} {
		reading := unittest.ReadingFixture(t, key, block, block*10+5)
		value, err := BuildLeaf([]byte(unittest.LeafTemplate), format, deployment, reading)
		require.NoError(t, err)
		f.leaves = append(f.leaves, value)

		updates = append(updates, commitment.Update{
			RootUpdated: commitment.RootUpdated{BlockNumber: block + 5, LeafBlockRef: block, LeafValue: value},
			DataPresent: true,
			Reading:     reading,
			CidFormat:   format,
			Sensor:      commitment.SensorConfig{BlockNumber: 10, SignerAddress: address},
		})
	}
	updates = append(updates, commitment.Update{
		RootUpdated: commitment.RootUpdated{BlockNumber: 305, LeafBlockRef: 300, LeafValue: "bafy-no-data"},
		CidFormat:   format,
	})
	f.seq = commitment.NewSequence(nil, updates)
	return f
}

func (f *fixture) verifier() *Verifier {
	return NewVerifier(unittest.Logger(), metrics.NewNoopCollector(), f.reader, f.store, f.tree, f.deployment, 2)
}

func TestBuildLeafDeterministic(t *testing.T) {
	key, _ := unittest.SensorKeyFixture(t)
	reading := unittest.ReadingFixture(t, key, 100, 1500)
	format := unittest.CidFormatFixture(10, "template")

	first, err := BuildLeaf([]byte(unittest.LeafTemplate), format, unittest.DeploymentFixture(), reading)
	require.NoError(t, err)
	second, err := BuildLeaf([]byte(unittest.LeafTemplate), format, unittest.DeploymentFixture(), reading)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other := unittest.DeploymentFixture()
	other.ChainID = 1
	third, err := BuildLeaf([]byte(unittest.LeafTemplate), format, other, reading)
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
}

func TestVerifyRootMatch(t *testing.T) {
	f := newFixture(t)
	root := unittest.RootFixture(1)

	f.reader.On("CurrentRoot", testifymock.Anything).Return(root, nil)
	f.tree.On("BuildRoot", []commitment.Leaf{
		{Index: 100, Value: f.leaves[0]},
		{Index: 200, Value: f.leaves[1]},
	}).Return(root, nil)

	verified, outcome, err := f.verifier().Verify(context.Background(), f.seq)
	require.NoError(t, err)
	assert.True(t, outcome.RootMatch)
	assert.Empty(t, outcome.Mismatches)

	updates := verified.Updates()
	assert.True(t, updates[0].MerkleRootOK)
	assert.True(t, updates[1].MerkleRootOK)
	assert.False(t, updates[2].MerkleRootOK)
	assert.Empty(t, updates[2].GeneratedLeaf)

	// the template is fetched once for all updates
	assert.Equal(t, 1, f.store.Fetches(f.format.TemplateRef))
}

// TestVerifyLeafMismatch covers a rebuilt leaf that differs from the committed
// one: the event is flagged and the computed root no longer matches.
func TestVerifyLeafMismatch(t *testing.T) {
	f := newFixture(t)
	updates := f.seq.Updates()
	tampered := updates[1]
	tampered.Reading.Humidity = commitment.RawValue("99")
	seq := commitment.NewSequence(nil, []commitment.Update{updates[0], tampered, updates[2]})

	f.reader.On("CurrentRoot", testifymock.Anything).Return(unittest.RootFixture(1), nil)
	f.tree.On("BuildRoot", testifymock.Anything).Return(unittest.RootFixture(2), nil)

	verified, outcome, err := f.verifier().Verify(context.Background(), seq)
	require.NoError(t, err)
	assert.False(t, outcome.RootMatch)
	require.Len(t, outcome.Mismatches, 1)
	assert.Equal(t, uint64(205), outcome.Mismatches[0].BlockNumber)
	assert.Equal(t, f.leaves[1], outcome.Mismatches[0].Committed)
	assert.NotEqual(t, f.leaves[1], outcome.Mismatches[0].Generated)

	checked := verified.Updates()
	assert.True(t, checked[0].MerkleRootOK)
	assert.False(t, checked[1].MerkleRootOK)
	assert.NotEmpty(t, checked[1].GeneratedLeaf)
}

func TestVerifyInvalidFormatIsNotFatal(t *testing.T) {
	f := newFixture(t)
	updates := f.seq.Updates()
	broken := updates[0]
	broken.CidFormat.MultihashAlgorithm = "unknown"
	seq := commitment.NewSequence(nil, []commitment.Update{broken, updates[1]})

	f.reader.On("CurrentRoot", testifymock.Anything).Return(unittest.RootFixture(1), nil)
	f.tree.On("BuildRoot", []commitment.Leaf{{Index: 200, Value: f.leaves[1]}}).Return(unittest.RootFixture(3), nil)

	_, outcome, err := f.verifier().Verify(context.Background(), seq)
	require.NoError(t, err)
	assert.False(t, outcome.RootMatch)
	require.Len(t, outcome.Mismatches, 1)
	assert.Contains(t, outcome.Mismatches[0].Reason, "unknown multihash algorithm")
}

func TestVerifyTemplateFetchFailure(t *testing.T) {
	f := newFixture(t)
	updates := f.seq.Updates()
	missing := updates[0]
	missing.CidFormat.TemplateRef = "bafy-missing"
	seq := commitment.NewSequence(nil, []commitment.Update{missing})

	_, _, err := f.verifier().Verify(context.Background(), seq)
	require.Error(t, err)
	assert.True(t, verification.IsStorageFetchError(err))
	assert.True(t, errors.Is(err, unittest.ErrContentNotFound))
}

// TestVerifyNoLeavesRootMismatch covers a sequence without any rebuilt leaf:
// no root is built and the root check fails even when the ledger root is zero.
func TestVerifyNoLeavesRootMismatch(t *testing.T) {
	f := newFixture(t)
	updates := f.seq.Updates()
	seq := commitment.NewSequence(nil, []commitment.Update{updates[2]})

	f.reader.On("CurrentRoot", testifymock.Anything).Return(common.Hash{}, nil)

	_, outcome, err := f.verifier().Verify(context.Background(), seq)
	require.NoError(t, err)
	assert.False(t, outcome.RootMatch)
	assert.Equal(t, common.Hash{}, outcome.ComputedRoot)
	f.tree.AssertNotCalled(t, "BuildRoot", testifymock.Anything)
}
