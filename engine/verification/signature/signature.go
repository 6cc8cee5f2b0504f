package signature

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/sensorledger/integrity/model/commitment"
	"github.com/sensorledger/integrity/module"
)

const DefaultWorkers = 8

// RecoverSigner returns the address that signed the reading's message as an
// EIP-191 personal message.
func RecoverSigner(reading commitment.Reading) (common.Address, error) {
	return recoverMessage(reading.Message(), reading.Signature)
}

func recoverMessage(message string, signature string) (common.Address, error) {
	sig, err := decodeSignature(signature)
	if err != nil {
		return common.Address{}, err
	}

	hash := accounts.TextHash([]byte(message))
	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("could not recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// decodeSignature accepts a 65 byte [R || S || V] signature with or without
// the 0x prefix. Recovery ids of 27/28 are normalized to 0/1.
func decodeSignature(signature string) ([]byte, error) {
	text := strings.TrimSpace(signature)
	if !strings.HasPrefix(text, "0x") && !strings.HasPrefix(text, "0X") {
		text = "0x" + text
	}
	sig, err := hexutil.Decode(text)
	if err != nil {
		return nil, fmt.Errorf("invalid signature encoding: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return nil, fmt.Errorf("invalid signature length: expected %d bytes, got %d", crypto.SignatureLength, len(sig))
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	return sig, nil
}

// Verifier checks that every reading attached to an update was signed by the
// sensor configured for that update.
type Verifier struct {
	log     zerolog.Logger
	metrics module.IntegrityMetrics
	workers int
}

func NewVerifier(log zerolog.Logger, metrics module.IntegrityMetrics, workers int) *Verifier {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Verifier{
		log:     log.With().Str("component", "signature_verifier").Logger(),
		metrics: metrics,
		workers: workers,
	}
}

// Verify sets SignatureOK on every update with an attached reading. Updates
// without data are left untouched. Malformed signatures yield SignatureOK=false.
// The returned bool is true iff all checked updates passed.
func (v *Verifier) Verify(ctx context.Context, seq commitment.Sequence) (commitment.Sequence, bool, error) {
	positions, updates := seq.DataUpdates()

	checked := make([]commitment.Update, len(updates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.workers)
	for i, u := range updates {
		i, u := i, u
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			u.SignatureOK = v.check(u)
			checked[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, false, fmt.Errorf("signature verification aborted: %w", err)
	}

	allOK := true
	for _, u := range checked {
		v.metrics.SignatureChecked(u.SignatureOK)
		allOK = allOK && u.SignatureOK
	}
	return seq.ReplaceAt(positions, checked), allOK, nil
}

func (v *Verifier) check(u commitment.Update) bool {
	lg := v.log.With().
		Uint64("block_number", u.BlockNumber).
		Uint64("leaf_block_ref", u.LeafBlockRef).
		Logger()

	signer, err := RecoverSigner(u.Reading)
	if err != nil {
		lg.Warn().Err(err).Msg("could not recover signer")
		return false
	}
	if signer != u.Sensor.SignerAddress {
		lg.Warn().
			Str("recovered", signer.Hex()).
			Str("expected", u.Sensor.SignerAddress.Hex()).
			Msg("reading not signed by configured sensor")
		return false
	}
	return true
}
