package correlator

import (
	"github.com/sensorledger/integrity/engine/verification"
	"github.com/sensorledger/integrity/model/commitment"
)

// Correlate attaches every reading to the retained update that answers the
// request the reading was produced for.
//
// Updates without a reading keep DataPresent unset. Every update claims at
// most one reading; readings left over are returned as an UnmatchedDataError.
//
// Expected errors:
//   - verification.UnmatchedDataError if any reading matches no update
func Correlate(seq commitment.Sequence, readings []commitment.Reading) (commitment.Sequence, error) {
	pending := make(map[uint64][]int, len(readings))
	for i, r := range readings {
		pending[r.BlockNumber] = append(pending[r.BlockNumber], i)
	}

	matched := make([]bool, len(readings))
	out := seq.MapUpdates(func(u commitment.Update) commitment.Update {
		candidates := pending[u.LeafBlockRef]
		if len(candidates) == 0 {
			return u
		}
		idx := candidates[0]
		pending[u.LeafBlockRef] = candidates[1:]
		matched[idx] = true

		u.Reading = readings[idx]
		u.DataPresent = true
		return u
	})

	var orphaned []commitment.Reading
	for i, ok := range matched {
		if !ok {
			orphaned = append(orphaned, readings[i])
		}
	}
	if len(orphaned) > 0 {
		return nil, verification.NewUnmatchedDataError(orphaned)
	}
	return out, nil
}
