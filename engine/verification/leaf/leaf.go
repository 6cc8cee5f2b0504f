package leaf

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/sensorledger/integrity/engine/verification"
	"github.com/sensorledger/integrity/model/commitment"
	"github.com/sensorledger/integrity/module"
)

const DefaultWorkers = 8

// BuildLeaf fills the template with the deployment context and the reading,
// serializes it and returns the resulting content identifier.
func BuildLeaf(template []byte, format commitment.CidFormatConfig, deployment commitment.Deployment, reading commitment.Reading) (string, error) {
	parsed, err := ParseTemplate(template)
	if err != nil {
		return "", err
	}
	data, err := Document(parsed, deployment, reading)
	if err != nil {
		return "", err
	}
	return EncodeLeaf(data, format)
}

// Document returns the serialized leaf object for the reading.
func Document(template *Template, deployment commitment.Deployment, reading commitment.Reading) ([]byte, error) {
	filled, err := template.Fill(deployment, reading)
	if err != nil {
		return nil, fmt.Errorf("could not fill template: %w", err)
	}
	return filled.Marshal()
}

// Mismatch describes an update whose rebuilt leaf differs from the committed one.
type Mismatch struct {
	BlockNumber  uint64 `json:"block_number"`
	LeafBlockRef uint64 `json:"leaf_block_ref"`
	Committed    string `json:"committed"`
	Generated    string `json:"generated"`
	Reason       string `json:"reason,omitempty"`
}

// Outcome is the aggregate result of the leaf and root checks.
type Outcome struct {
	RootMatch    bool        `json:"root_match"`
	ComputedRoot common.Hash `json:"computed_root"`
	LedgerRoot   common.Hash `json:"ledger_root"`
	Mismatches   []Mismatch  `json:"mismatches,omitempty"`
}

// Verifier rebuilds the leaf of every update with an attached reading and
// compares the aggregate root over the rebuilt leaves with the ledger's root.
type Verifier struct {
	log        zerolog.Logger
	metrics    module.IntegrityMetrics
	reader     module.CommitmentReader
	content    module.ContentFetcher
	tree       module.TreeBuilder
	deployment commitment.Deployment
	workers    int
}

func NewVerifier(
	log zerolog.Logger,
	metrics module.IntegrityMetrics,
	reader module.CommitmentReader,
	content module.ContentFetcher,
	tree module.TreeBuilder,
	deployment commitment.Deployment,
	workers int,
) *Verifier {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Verifier{
		log:        log.With().Str("component", "leaf_verifier").Logger(),
		metrics:    metrics,
		reader:     reader,
		content:    content,
		tree:       tree,
		deployment: deployment,
		workers:    workers,
	}
}

// Verify sets GeneratedLeaf and MerkleRootOK on every update with an attached
// reading and compares the root over all rebuilt leaves with the ledger.
//
// Expected errors:
//   - verification.StorageFetchError if a template cannot be fetched or decoded
//
// All other errors are failures of the ledger or tree collaborators.
func (v *Verifier) Verify(ctx context.Context, seq commitment.Sequence) (commitment.Sequence, *Outcome, error) {
	positions, updates := seq.DataUpdates()

	templates, err := v.fetchTemplates(ctx, updates)
	if err != nil {
		return nil, nil, err
	}

	built := make([]commitment.Update, len(updates))
	reasons := make([]string, len(updates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.workers)
	for i, u := range updates {
		i, u := i, u
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			generated, err := v.rebuild(templates[u.CidFormat.TemplateRef], u)
			if err != nil {
				reasons[i] = err.Error()
				v.log.Warn().Err(err).
					Uint64("block_number", u.BlockNumber).
					Uint64("leaf_block_ref", u.LeafBlockRef).
					Msg("could not rebuild leaf")
			}
			u.GeneratedLeaf = generated
			u.MerkleRootOK = err == nil && generated == u.LeafValue
			built[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("leaf reconstruction aborted: %w", err)
	}

	outcome := &Outcome{}
	leaves := make([]commitment.Leaf, 0, len(built))
	for i, u := range built {
		v.metrics.LeafChecked(u.MerkleRootOK)
		if !u.MerkleRootOK {
			outcome.Mismatches = append(outcome.Mismatches, Mismatch{
				BlockNumber:  u.BlockNumber,
				LeafBlockRef: u.LeafBlockRef,
				Committed:    u.LeafValue,
				Generated:    u.GeneratedLeaf,
				Reason:       reasons[i],
			})
		}
		if u.GeneratedLeaf != "" {
			leaves = append(leaves, commitment.Leaf{Index: u.Reading.BlockNumber, Value: u.GeneratedLeaf})
		}
	}

	outcome.LedgerRoot, err = v.reader.CurrentRoot(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("could not read current root: %w", err)
	}
	if len(leaves) > 0 {
		outcome.ComputedRoot, err = v.tree.BuildRoot(leaves)
		if err != nil {
			return nil, nil, fmt.Errorf("could not build root over %d leaves: %w", len(leaves), err)
		}
		outcome.RootMatch = outcome.ComputedRoot == outcome.LedgerRoot
	}
	v.metrics.RootCompared(outcome.RootMatch)

	v.log.Info().
		Str("computed_root", outcome.ComputedRoot.Hex()).
		Str("ledger_root", outcome.LedgerRoot.Hex()).
		Bool("root_match", outcome.RootMatch).
		Int("leaf_mismatches", len(outcome.Mismatches)).
		Msg("aggregate root compared")

	return seq.ReplaceAt(positions, built), outcome, nil
}

func (v *Verifier) rebuild(template *Template, u commitment.Update) (string, error) {
	data, err := Document(template, v.deployment, u.Reading)
	if err != nil {
		return "", err
	}
	return EncodeLeaf(data, u.CidFormat)
}

// fetchTemplates fetches and decodes every distinct template referenced by the
// updates once.
func (v *Verifier) fetchTemplates(ctx context.Context, updates []commitment.Update) (map[string]*Template, error) {
	var refs []string
	seen := make(map[string]struct{})
	for _, u := range updates {
		if _, ok := seen[u.CidFormat.TemplateRef]; ok {
			continue
		}
		seen[u.CidFormat.TemplateRef] = struct{}{}
		refs = append(refs, u.CidFormat.TemplateRef)
	}

	parsed := make([]*Template, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.workers)
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			data, err := v.content.Fetch(gctx, ref)
			if err != nil {
				return verification.NewStorageFetchError(ref, err)
			}
			template, err := ParseTemplate(data)
			if err != nil {
				return verification.NewStorageFetchError(ref, err)
			}
			parsed[i] = template
			return nil
		})
	}
	err := g.Wait()
	if err != nil {
		return nil, fmt.Errorf("could not fetch leaf templates: %w", err)
	}

	templates := make(map[string]*Template, len(refs))
	for i, ref := range refs {
		templates[ref] = parsed[i]
	}
	return templates, nil
}

// IsInvalidFormat returns true if err was caused by an unusable cid-format configuration.
func IsInvalidFormat(err error) bool {
	var invalidFormatError *InvalidFormatError
	return errors.As(err, &invalidFormatError)
}
