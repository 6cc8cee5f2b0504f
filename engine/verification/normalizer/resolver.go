package normalizer

import (
	"github.com/sensorledger/integrity/engine/verification"
	"github.com/sensorledger/integrity/model/commitment"
)

// ClosestPriorConfig returns the configuration with the greatest block number
// strictly less than blockNumber, together with that block number. A
// configuration emitted in the same block as the update does not govern it.
//
// Expected errors:
//   - verification.MissingConfigurationError if no configuration precedes blockNumber
func ClosestPriorConfig[T any](kind verification.ConfigKind, blockNumber uint64, configsByBlock map[uint64]T) (uint64, T, error) {
	var (
		best  uint64
		found bool
	)
	for block := range configsByBlock {
		if block >= blockNumber {
			continue
		}
		if !found || block > best {
			best = block
			found = true
		}
	}

	if !found {
		var zero T
		return 0, zero, verification.NewMissingConfigurationError(kind, blockNumber)
	}
	return best, configsByBlock[best], nil
}

// ResolveConfigs attaches to every update the cid-format and sensor
// configuration in effect at its block.
//
// Expected errors:
//   - verification.MissingConfigurationError if an update has no preceding configuration
func ResolveConfigs(seq commitment.Sequence, events *commitment.EventLog) (commitment.Sequence, error) {
	return seq.MapUpdatesErr(func(u commitment.Update) (commitment.Update, error) {
		formatBlock, format, err := ClosestPriorConfig(verification.ConfigCidFormat, u.BlockNumber, events.CidFormatConfigs)
		if err != nil {
			return u, err
		}
		sensorBlock, signer, err := ClosestPriorConfig(verification.ConfigSensor, u.BlockNumber, events.SensorConfigs)
		if err != nil {
			return u, err
		}

		format.BlockNumber = formatBlock
		u.CidFormat = format
		u.Sensor = commitment.SensorConfig{
			BlockNumber:   sensorBlock,
			SignerAddress: signer,
		}
		return u, nil
	})
}
