package verifier

import (
	"context"
	"crypto/ecdsa"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	testifymock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/sensorledger/integrity/engine/verification"
	"github.com/sensorledger/integrity/engine/verification/leaf"
	"github.com/sensorledger/integrity/model/commitment"
	"github.com/sensorledger/integrity/module"
	"github.com/sensorledger/integrity/module/merkle"
	"github.com/sensorledger/integrity/module/metrics"
	"github.com/sensorledger/integrity/module/mock"
	"github.com/sensorledger/integrity/utils/unittest"
)

// VerifierEngineTestSuite runs complete verification runs against a mocked
// ledger and an in-memory content store.
type VerifierEngineTestSuite struct {
	suite.Suite

	key         *ecdsa.PrivateKey
	signer      common.Address
	deployment  commitment.Deployment
	store       *unittest.ContentStore
	templateRef string
	reader      *mock.CommitmentReader
	events      *commitment.EventLog
	committed   []commitment.Leaf
}

func TestVerifierEngine(t *testing.T) {
	suite.Run(t, new(VerifierEngineTestSuite))
}

func (s *VerifierEngineTestSuite) SetupTest() {
	s.key, s.signer = unittest.SensorKeyFixture(s.T())
	s.deployment = unittest.DeploymentFixture()
	s.store = unittest.NewContentStore()
	s.templateRef = s.store.Put([]byte(unittest.LeafTemplate))
	s.reader = mock.NewCommitmentReader(s.T())
	s.events = unittest.EventLogFixture(10, s.templateRef, s.signer)
	s.committed = nil
}

// request registers a request event with the given ledger timestamp.
func (s *VerifierEngineTestSuite) request(block, timestamp uint64) {
	s.events.RequestedBlocks = append(s.events.RequestedBlocks, block)
	s.reader.On("BlockTimestamp", testifymock.Anything, block).Return(timestamp, nil).Maybe()
}

// commit stores the leaf of the reading and registers an update event at the
// given block committing it. It returns the committed leaf reference.
func (s *VerifierEngineTestSuite) commit(block uint64, reading commitment.Reading) string {
	template, err := leaf.ParseTemplate([]byte(unittest.LeafTemplate))
	s.Require().NoError(err)
	document, err := leaf.Document(template, s.deployment, reading)
	s.Require().NoError(err)

	ref := s.store.Put(document)
	s.committed = append(s.committed, commitment.Leaf{Index: reading.BlockNumber, Value: ref})
	s.events.Updated[block] = commitment.LeafUpdate{LeafRef: ref, RootValue: unittest.RootFixture(byte(block))}
	return ref
}

// ledgerRoot makes the ledger report the root over all committed leaves.
func (s *VerifierEngineTestSuite) ledgerRoot() {
	root, err := merkle.NewBuilder().BuildRoot(s.committed)
	s.Require().NoError(err)
	s.reader.On("CurrentRoot", testifymock.Anything).Return(root, nil).Maybe()
}

func (s *VerifierEngineTestSuite) reading(block uint64, timestamps ...uint64) commitment.Reading {
	return unittest.ReadingFixture(s.T(), s.key, block, timestamps...)
}

func (s *VerifierEngineTestSuite) verify(readings ...commitment.Reading) (*Result, error) {
	return s.verifyWith(metrics.NewNoopCollector(), readings...)
}

func (s *VerifierEngineTestSuite) verifyWith(collector module.IntegrityMetrics, readings ...commitment.Reading) (*Result, error) {
	s.reader.On("ReadEvents", testifymock.Anything, Floor(readings)).Return(s.events, nil).Maybe()
	e := New(unittest.Logger(), collector, s.reader, s.store, merkle.NewBuilder(), s.deployment, 4)
	return e.Verify(context.Background(), readings)
}

// stageRecorder records the stages whose duration was reported.
type stageRecorder struct {
	*metrics.NoopCollector
	stages []string
}

func (r *stageRecorder) StageDuration(stage string, _ time.Duration) {
	r.stages = append(r.stages, stage)
}

// TestStageDurations checks that every stage of a passing run reports its duration.
func (s *VerifierEngineTestSuite) TestStageDurations() {
	s.request(100, 1000)
	s.request(200, 2000)
	r := s.reading(200, 1500)
	s.commit(205, r)
	s.ledgerRoot()

	recorder := &stageRecorder{NoopCollector: metrics.NewNoopCollector()}
	result, err := s.verifyWith(recorder, r)
	s.Require().NoError(err)
	s.Require().True(result.Passed)
	s.Equal([]string{
		string(StageEvents),
		string(StageNormalize),
		string(StageResolve),
		string(StageCorrelate),
		string(StageSignatures),
		string(StageMerkleRoot),
		string(StageOrdering),
		string(StageIntervals),
	}, recorder.stages)
}

// TestPass covers a single update answering the second request with a reading
// taken between both requests.
func (s *VerifierEngineTestSuite) TestPass() {
	s.request(100, 1000)
	s.request(200, 2000)
	r := s.reading(200, 1500)
	s.commit(205, r)
	s.ledgerRoot()

	result, err := s.verify(r)
	s.Require().NoError(err)
	s.Require().True(result.Passed)
	s.Equal(StageNone, result.FailedStage)
	s.True(result.Root.RootMatch)
	s.Empty(result.SignatureFailures)

	s.Require().NotNil(result.Report.Range)
	s.Equal(commitment.Range{Start: 1000, End: 2000}, *result.Report.Range)
	s.Require().Len(result.Report.Valid, 1)

	updates := result.Sequence.Updates()
	s.Require().Len(updates, 1)
	u := updates[0]
	s.True(u.DataPresent)
	s.True(u.SignatureOK)
	s.True(u.MerkleRootOK)
	s.True(u.BlockNumberOK)
	s.True(u.TimestampOK)
	s.Equal(uint64(10), u.CidFormat.BlockNumber)
	s.Equal(s.signer, u.Sensor.SignerAddress)
}

// TestPartition covers a gap after a verified interval: the covered interval
// stays valid, the uncovered one is invalid and the run fails.
func (s *VerifierEngineTestSuite) TestPartition() {
	s.request(100, 1000)
	s.request(200, 2000)
	s.request(300, 3000)
	r := s.reading(200, 1500)
	s.commit(205, r)
	s.ledgerRoot()

	result, err := s.verify(r)
	s.Require().NoError(err)
	s.False(result.Passed)
	s.Equal(StageIntervals, result.FailedStage)
	s.True(result.Root.RootMatch)

	s.Require().Len(result.Report.Valid, 1)
	s.Equal(commitment.Interval{Start: 1000, End: 2000, RequestBlock: 200, Valid: true}, result.Report.Valid[0])
	s.Require().Len(result.Report.Invalid, 1)
	s.Equal(commitment.Interval{Start: 2000, End: 3000, RequestBlock: 300}, result.Report.Invalid[0])
	s.Nil(result.Report.Range)
}

// TestAnswerAfterNextRequest covers an update answering the first request only
// after the second request was made. The request is not followed by its answer,
// so no interval is covered.
func (s *VerifierEngineTestSuite) TestAnswerAfterNextRequest() {
	s.request(100, 1000)
	s.request(200, 2000)
	s.request(300, 3000)
	r := s.reading(100, 1500)
	s.commit(205, r)
	s.ledgerRoot()

	result, err := s.verify(r)
	s.Require().NoError(err)
	s.False(result.Passed)
	s.Len(result.Report.Invalid, 2)
	s.Equal([]uint64{100}, result.Report.Uncovered)

	u := result.Sequence.Updates()[0]
	s.True(u.SignatureOK)
	s.True(u.MerkleRootOK)
	s.True(u.BlockNumberOK)
	s.False(u.TimestampOK)
	for _, req := range result.Sequence.Requests() {
		s.False(req.OrderOK, "request %d", req.BlockNumber)
	}
}

// TestSuperseded covers two updates answering the same request: only the later
// one is verified and the earlier one is reported as superseded.
func (s *VerifierEngineTestSuite) TestSuperseded() {
	s.request(100, 1000)
	s.request(200, 2000)
	r := s.reading(200, 1500)

	stale := r
	stale.Humidity = commitment.RawValue("1")
	s.commit(203, stale)
	s.committed = nil
	s.commit(205, r)
	s.ledgerRoot()

	result, err := s.verify(r)
	s.Require().NoError(err)
	s.True(result.Passed)
	s.Require().Len(result.Superseded, 1)
	s.Equal(uint64(203), result.Superseded[0].BlockNumber)
	s.Equal(uint64(200), result.Superseded[0].LeafBlockRef)

	updates := result.Sequence.Updates()
	s.Require().Len(updates, 1)
	s.Equal(uint64(205), updates[0].BlockNumber)
}

// TestTimestampAfterRequest covers a reading taken after the request it answers.
func (s *VerifierEngineTestSuite) TestTimestampAfterRequest() {
	s.request(100, 1000)
	s.request(200, 2000)
	r := s.reading(200, 2500)
	s.commit(205, r)
	s.ledgerRoot()

	result, err := s.verify(r)
	s.Require().NoError(err)
	s.False(result.Passed)
	s.Equal(StageIntervals, result.FailedStage)
	s.False(result.Sequence.Updates()[0].TimestampOK)
	s.Require().Len(result.Report.Invalid, 1)
	s.Equal(uint64(200), result.Report.Invalid[0].RequestBlock)
}

// TestLeafMismatch covers a reading that differs from what was committed: the
// run stops after the root comparison and names the failing update.
func (s *VerifierEngineTestSuite) TestLeafMismatch() {
	s.request(100, 1000)
	s.request(200, 2000)
	s.request(300, 3000)
	good := s.reading(200, 1500)
	s.commit(205, good)

	committed := s.reading(300, 2500)
	s.commit(305, committed)
	s.ledgerRoot()

	// same request, different measurement, properly signed
	tampered := committed
	tampered.Temperature = commitment.RawValue("99.9")
	tampered.Signature = unittest.SignMessage(s.T(), s.key, tampered.Message())

	result, err := s.verify(good, tampered)
	s.Require().NoError(err)
	s.False(result.Passed)
	s.Equal(StageMerkleRoot, result.FailedStage)
	s.Nil(result.Report)
	s.False(result.Root.RootMatch)
	s.Require().Len(result.Root.Mismatches, 1)
	s.Equal(uint64(305), result.Root.Mismatches[0].BlockNumber)

	updates := result.Sequence.Updates()
	s.True(updates[0].MerkleRootOK)
	s.False(updates[1].MerkleRootOK)
	// ordering checks never ran
	s.False(updates[0].BlockNumberOK)
}

func (s *VerifierEngineTestSuite) TestSignatureFailure() {
	s.request(100, 1000)
	s.request(200, 2000)
	r := s.reading(200, 1500)
	s.commit(205, r)

	other, _ := unittest.SensorKeyFixture(s.T())
	r.Signature = unittest.SignMessage(s.T(), other, r.Message())

	result, err := s.verify(r)
	s.Require().NoError(err)
	s.False(result.Passed)
	s.Equal(StageSignatures, result.FailedStage)
	s.Equal([]uint64{200}, result.SignatureFailures)
	s.Nil(result.Root)
	s.Nil(result.Report)
}

func (s *VerifierEngineTestSuite) TestUnmatchedReadings() {
	s.request(100, 1000)
	s.request(200, 2000)
	r := s.reading(200, 1500)
	s.commit(205, r)

	orphan := s.reading(150, 1200)
	_, err := s.verify(r, orphan)
	s.Require().Error(err)
	s.True(verification.IsUnmatchedDataError(err))

	var unmatched *verification.UnmatchedDataError
	s.Require().ErrorAs(err, &unmatched)
	s.Require().Len(unmatched.Readings, 1)
	s.Equal(uint64(150), unmatched.Readings[0].BlockNumber)
}

func (s *VerifierEngineTestSuite) TestMissingConfiguration() {
	s.events = unittest.EventLogFixture(205, s.templateRef, s.signer)
	s.request(100, 1000)
	s.request(200, 2000)
	r := s.reading(200, 1500)
	s.commit(205, r)

	_, err := s.verify(r)
	s.Require().Error(err)
	s.True(verification.IsMissingConfigurationError(err))
}

func (s *VerifierEngineTestSuite) TestStorageFailure() {
	s.request(100, 1000)
	s.request(200, 2000)
	r := s.reading(200, 1500)
	s.events.Updated[205] = commitment.LeafUpdate{LeafRef: "bafy-unknown"}

	_, err := s.verify(r)
	s.Require().Error(err)
	s.True(verification.IsStorageFetchError(err))
}

func (s *VerifierEngineTestSuite) TestUnknownRequestBlock() {
	s.events.RequestedBlocks = append(s.events.RequestedBlocks, 100)
	s.reader.On("BlockTimestamp", testifymock.Anything, uint64(100)).Return(uint64(0), module.ErrBlockNotFound)
	s.request(200, 2000)
	r := s.reading(200, 1500)
	s.commit(205, r)
	s.ledgerRoot()

	result, err := s.verify(r)
	s.Require().NoError(err)
	s.False(result.Passed)
	s.False(result.Sequence.Updates()[0].TimestampOK)
}

func (s *VerifierEngineTestSuite) TestNoReadings() {
	result, err := s.verify()
	s.Require().NoError(err)
	s.False(result.Passed)
	s.Equal(StageReadings, result.FailedStage)
}

func TestFloor(t *testing.T) {
	require.Equal(t, uint64(0), Floor(nil))
	require.Equal(t, uint64(100), Floor([]commitment.Reading{{BlockNumber: 300}, {BlockNumber: 100}, {BlockNumber: 200}}))
}
