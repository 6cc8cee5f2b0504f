package normalizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"

	"github.com/sensorledger/integrity/engine/verification"
	"github.com/sensorledger/integrity/model/commitment"
	"github.com/sensorledger/integrity/module"
	"github.com/sensorledger/integrity/utils/logging"
)

// DefaultWorkers is the default number of concurrent collaborator calls.
const DefaultWorkers = 8

// Normalized is the merged commitment sequence of a run together with the
// updates that were dropped by deduplication.
type Normalized struct {
	Sequence   commitment.Sequence
	Superseded []commitment.RootUpdated
}

// Normalizer turns the raw event log into the merged, deduplicated sequence.
type Normalizer struct {
	log     zerolog.Logger
	reader  module.CommitmentReader
	content module.ContentFetcher
	workers int
}

func New(
	log zerolog.Logger,
	reader module.CommitmentReader,
	content module.ContentFetcher,
	workers int,
) *Normalizer {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Normalizer{
		log:     log.With().Str("component", "event_normalizer").Logger(),
		reader:  reader,
		content: content,
		workers: workers,
	}
}

// Normalize dereferences the leaf of every update, keeps the latest update per
// referenced request and merges the result with the timestamped requests.
//
// Expected errors:
//   - verification.StorageFetchError if a leaf reference cannot be resolved
//
// All other errors are failures of the ledger collaborator.
func (n *Normalizer) Normalize(ctx context.Context, events *commitment.EventLog) (*Normalized, error) {
	updates, err := n.dereferenceUpdates(ctx, events.Updated)
	if err != nil {
		return nil, err
	}
	retained, superseded := Deduplicate(updates)

	requests, err := n.timestampRequests(ctx, events.RequestedBlocks)
	if err != nil {
		return nil, err
	}

	wrapped := make([]commitment.Update, 0, len(retained))
	for _, u := range retained {
		wrapped = append(wrapped, commitment.Update{RootUpdated: u})
	}

	for _, s := range superseded {
		n.log.Warn().
			Uint64("block_number", s.BlockNumber).
			Uint64("leaf_block_ref", s.LeafBlockRef).
			Str("leaf", s.LeafValue).
			Msg("update superseded by a later update for the same request")
	}
	if len(superseded) > 0 {
		n.log.Info().Uints64("superseded_blocks", logging.UpdateBlocks(superseded)).Msg("superseded updates removed")
	}

	n.log.Debug().
		Int("requests", len(requests)).
		Int("retained", len(retained)).
		Int("superseded", len(superseded)).
		Msg("events normalized")

	return &Normalized{
		Sequence:   commitment.NewSequence(requests, wrapped),
		Superseded: superseded,
	}, nil
}

// Deduplicate keeps, for every referenced request, the update with the greatest
// block number. All other updates are returned as superseded, in ascending
// block order.
func Deduplicate(updates []commitment.RootUpdated) (retained, superseded []commitment.RootUpdated) {
	latest := make(map[uint64]commitment.RootUpdated)
	for _, u := range updates {
		current, ok := latest[u.LeafBlockRef]
		switch {
		case !ok:
			latest[u.LeafBlockRef] = u
		case current.BlockNumber < u.BlockNumber:
			superseded = append(superseded, current)
			latest[u.LeafBlockRef] = u
		default:
			superseded = append(superseded, u)
		}
	}

	retained = maps.Values(latest)
	byBlock := func(a, b commitment.RootUpdated) int {
		switch {
		case a.BlockNumber < b.BlockNumber:
			return -1
		case a.BlockNumber > b.BlockNumber:
			return 1
		}
		return 0
	}
	slices.SortFunc(retained, byBlock)
	slices.SortFunc(superseded, byBlock)
	return retained, superseded
}

// leafObject is the part of a stored leaf needed to find the request it answers.
type leafObject struct {
	BlockNumber json.Number `json:"blockNumber"`
}

// LeafBlockRef resolves the request block number a stored leaf references.
//
// Expected errors:
//   - verification.StorageFetchError if the leaf cannot be fetched or decoded
func LeafBlockRef(ctx context.Context, content module.ContentFetcher, ref string) (uint64, error) {
	data, err := content.Fetch(ctx, ref)
	if err != nil {
		return 0, verification.NewStorageFetchError(ref, err)
	}

	var leaf leafObject
	err = json.Unmarshal(data, &leaf)
	if err != nil {
		return 0, verification.NewStorageFetchError(ref, fmt.Errorf("could not decode leaf: %w", err))
	}
	blockNumber, err := strconv.ParseUint(leaf.BlockNumber.String(), 10, 64)
	if err != nil {
		return 0, verification.NewStorageFetchError(ref, fmt.Errorf("invalid leaf block number %q: %w", leaf.BlockNumber, err))
	}
	return blockNumber, nil
}

func (n *Normalizer) dereferenceUpdates(ctx context.Context, updated map[uint64]commitment.LeafUpdate) ([]commitment.RootUpdated, error) {
	blocks := maps.Keys(updated)
	slices.Sort(blocks)

	updates := make([]commitment.RootUpdated, len(blocks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.workers)
	for i, block := range blocks {
		i, block := i, block
		raw := updated[block]
		g.Go(func() error {
			ref, err := LeafBlockRef(gctx, n.content, raw.LeafRef)
			if err != nil {
				return fmt.Errorf("could not dereference leaf of update at block %d: %w", block, err)
			}
			updates[i] = commitment.RootUpdated{
				BlockNumber:  block,
				LeafBlockRef: ref,
				LeafValue:    raw.LeafRef,
				RootValue:    raw.RootValue,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return updates, nil
}

func (n *Normalizer) timestampRequests(ctx context.Context, blocks []uint64) ([]commitment.Request, error) {
	requests := make([]commitment.Request, len(blocks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.workers)
	for i, block := range blocks {
		i, block := i, block
		g.Go(func() error {
			ts, err := n.reader.BlockTimestamp(gctx, block)
			if errors.Is(err, module.ErrBlockNotFound) {
				n.log.Warn().Uint64("block_number", block).Msg("ledger does not know request block, timestamp unavailable")
				requests[i] = commitment.Request{RootRequested: commitment.RootRequested{BlockNumber: block}}
				return nil
			}
			if err != nil {
				return fmt.Errorf("could not read timestamp of block %d: %w", block, err)
			}
			requests[i] = commitment.Request{RootRequested: commitment.RootRequested{
				BlockNumber:    block,
				Timestamp:      ts,
				TimestampKnown: true,
			}}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return requests, nil
}
