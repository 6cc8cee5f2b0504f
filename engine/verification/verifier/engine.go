package verifier

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sensorledger/integrity/engine/verification/correlator"
	"github.com/sensorledger/integrity/engine/verification/leaf"
	"github.com/sensorledger/integrity/engine/verification/normalizer"
	"github.com/sensorledger/integrity/engine/verification/ordering"
	"github.com/sensorledger/integrity/engine/verification/report"
	"github.com/sensorledger/integrity/engine/verification/signature"
	"github.com/sensorledger/integrity/model/commitment"
	"github.com/sensorledger/integrity/module"
	"github.com/sensorledger/integrity/utils/logging"
)

// Stage names a pipeline stage of a verification run.
type Stage string

const (
	StageNone       Stage = ""
	StageReadings   Stage = "readings"
	StageEvents     Stage = "events"
	StageNormalize  Stage = "normalize"
	StageResolve    Stage = "resolve"
	StageCorrelate  Stage = "correlate"
	StageSignatures Stage = "signatures"
	StageMerkleRoot Stage = "merkle_root"
	StageOrdering   Stage = "ordering"
	StageIntervals  Stage = "intervals"
)

// Result is the outcome of a verification run. Sequence holds the state of
// every request and update as annotated by the last stage that ran.
type Result struct {
	Passed bool `json:"passed"`
	// FailedStage is the stage that decided a failed run.
	FailedStage       Stage                    `json:"failed_stage,omitempty"`
	Sequence          commitment.Sequence      `json:"sequence"`
	Superseded        []commitment.RootUpdated `json:"superseded"`
	Root              *leaf.Outcome            `json:"root,omitempty"`
	Report            *commitment.Report       `json:"report,omitempty"`
	SignatureFailures []uint64                 `json:"signature_failures,omitempty"`
}

// Engine runs the verification pipeline for one contract deployment.
type Engine struct {
	log        zerolog.Logger          // used to log relevant actions
	metrics    module.IntegrityMetrics // used to track run progress
	reader     module.CommitmentReader // used to read the contract state
	normalizer *normalizer.Normalizer  // used to build the merged event sequence
	signatures *signature.Verifier     // used to check reading signatures
	leaves     *leaf.Verifier          // used to rebuild leaves and compare roots
}

// New creates a new verification engine for the given deployment.
func New(
	log zerolog.Logger,
	metrics module.IntegrityMetrics,
	reader module.CommitmentReader,
	content module.ContentFetcher,
	tree module.TreeBuilder,
	deployment commitment.Deployment,
	workers int,
) *Engine {
	log = log.With().Str("engine", "verifier").Logger()
	return &Engine{
		log:        log,
		metrics:    metrics,
		reader:     reader,
		normalizer: normalizer.New(log, reader, content, workers),
		signatures: signature.NewVerifier(log, metrics, workers),
		leaves:     leaf.NewVerifier(log, metrics, reader, content, tree, deployment, workers),
	}
}

// Verify checks the readings against the commitments recorded on the ledger.
//
// Failed checks are reported through the returned Result. Signature or root
// failures end the run before the ordering checks.
//
// Expected errors:
//   - verification.MissingConfigurationError if an update has no preceding configuration
//   - verification.UnmatchedDataError if readings match no update
//   - verification.StorageFetchError if stored content cannot be resolved
//
// All other errors are failures of the ledger collaborator.
func (e *Engine) Verify(ctx context.Context, readings []commitment.Reading) (*Result, error) {
	if len(readings) == 0 {
		e.log.Warn().Msg("no readings to verify")
		return e.finish(&Result{FailedStage: StageReadings}), nil
	}

	floor := Floor(readings)
	e.log.Info().
		Int("readings", len(readings)).
		Uint64("floor_block", floor).
		Msg("starting verification run")
	e.log.Debug().Uints64("reading_blocks", logging.ReadingBlocks(readings)).Msg("readings to verify")

	var events *commitment.EventLog
	err := e.stage(StageEvents, func() error {
		var err error
		events, err = e.reader.ReadEvents(ctx, floor)
		if err != nil {
			return fmt.Errorf("could not read contract events: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var normalized *normalizer.Normalized
	err = e.stage(StageNormalize, func() error {
		var err error
		normalized, err = e.normalizer.Normalize(ctx, events)
		if err != nil {
			return fmt.Errorf("could not normalize events: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.metrics.EventsNormalized(len(events.RequestedBlocks), len(normalized.Sequence.Updates()), len(normalized.Superseded))

	result := &Result{
		Sequence:   normalized.Sequence,
		Superseded: normalized.Superseded,
	}

	err = e.stage(StageResolve, func() error {
		seq, err := normalizer.ResolveConfigs(result.Sequence, events)
		if err != nil {
			return fmt.Errorf("could not resolve configurations: %w", err)
		}
		result.Sequence = seq
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = e.stage(StageCorrelate, func() error {
		seq, err := correlator.Correlate(result.Sequence, readings)
		if err != nil {
			return fmt.Errorf("could not correlate readings: %w", err)
		}
		result.Sequence = seq
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.metrics.ReadingsCorrelated(len(readings))

	var signaturesOK bool
	err = e.stage(StageSignatures, func() error {
		seq, ok, err := e.signatures.Verify(ctx, result.Sequence)
		if err != nil {
			return err
		}
		result.Sequence, signaturesOK = seq, ok
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.SignatureFailures = signatureFailures(result.Sequence)
	if !signaturesOK {
		e.log.Warn().
			Uints64("leaf_block_refs", result.SignatureFailures).
			Msg("readings with invalid signatures, skipping remaining checks")
		result.FailedStage = StageSignatures
		return e.finish(result), nil
	}

	err = e.stage(StageMerkleRoot, func() error {
		seq, outcome, err := e.leaves.Verify(ctx, result.Sequence)
		if err != nil {
			return fmt.Errorf("could not verify leaves: %w", err)
		}
		result.Sequence, result.Root = seq, outcome
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !result.Root.RootMatch {
		e.log.Warn().
			Str("computed_root", logging.Root(result.Root.ComputedRoot)).
			Str("ledger_root", logging.Root(result.Root.LedgerRoot)).
			Int("leaf_mismatches", len(result.Root.Mismatches)).
			Msg("aggregate root mismatch, skipping remaining checks")
		result.FailedStage = StageMerkleRoot
		return e.finish(result), nil
	}

	e.timed(StageOrdering, func() {
		result.Sequence = ordering.Validate(e.log, result.Sequence)
	})

	e.timed(StageIntervals, func() {
		r := report.Build(result.Sequence)
		result.Report = &r
	})
	e.metrics.IntervalsReported(len(result.Report.Valid), len(result.Report.Invalid))

	result.Passed = result.Report.Passed
	if !result.Passed {
		result.FailedStage = StageIntervals
	}
	return e.finish(result), nil
}

// stage runs fn and tracks its duration.
// timed records the duration of a stage that cannot fail.
func (e *Engine) timed(stage Stage, fn func()) {
	start := time.Now()
	fn()
	e.metrics.StageDuration(string(stage), time.Since(start))
}

func (e *Engine) stage(stage Stage, fn func() error) error {
	start := time.Now()
	err := fn()
	e.metrics.StageDuration(string(stage), time.Since(start))
	if err != nil {
		e.log.Error().Err(err).Str("stage", string(stage)).Msg("verification run aborted")
	}
	return err
}

func (e *Engine) finish(result *Result) *Result {
	e.metrics.RunFinished(result.Passed)
	e.log.Info().
		Bool("passed", result.Passed).
		Str("failed_stage", string(result.FailedStage)).
		Msg("verification run finished")
	return result
}

// Floor returns the lowest request block any reading answers. Request and
// update events before it are irrelevant to a run.
func Floor(readings []commitment.Reading) uint64 {
	if len(readings) == 0 {
		return 0
	}
	floor := readings[0].BlockNumber
	for _, r := range readings[1:] {
		if r.BlockNumber < floor {
			floor = r.BlockNumber
		}
	}
	return floor
}

func signatureFailures(seq commitment.Sequence) []uint64 {
	var failed []uint64
	_, updates := seq.DataUpdates()
	for _, u := range updates {
		if !u.SignatureOK {
			failed = append(failed, u.LeafBlockRef)
		}
	}
	return failed
}
