package ordering

import (
	"github.com/rs/zerolog"

	"github.com/sensorledger/integrity/model/commitment"
)

// Validate runs the three ordering checks over the sequence and returns the
// annotated copy. The checks are independent of each other:
//   - OrderOK on a request: the next entry is an update answering it
//   - BlockNumberOK on an update: its leaf references some request
//   - TimestampOK on an update: every reading timestamp lies strictly between
//     the timestamps of the answered request and the request before it
func Validate(log zerolog.Logger, seq commitment.Sequence) commitment.Sequence {
	log = log.With().Str("component", "ordering_validator").Logger()

	requests := seq.Requests()
	requestIndex := make(map[uint64]int, len(requests))
	for k, r := range requests {
		if _, ok := requestIndex[r.BlockNumber]; !ok {
			requestIndex[r.BlockNumber] = k
		}
	}

	out := seq.MapRequests(func(i int, r commitment.Request) commitment.Request {
		r.OrderOK = answeredNext(seq, i, r.BlockNumber)
		return r
	})

	return out.MapUpdates(func(u commitment.Update) commitment.Update {
		k, ok := requestIndex[u.LeafBlockRef]
		u.BlockNumberOK = ok
		u.TimestampOK = ok && timestampsWithin(log, requests, k, u)
		return u
	})
}

func answeredNext(seq commitment.Sequence, i int, requestBlock uint64) bool {
	if i+1 >= len(seq) {
		return false
	}
	next, ok := seq[i+1].(commitment.Update)
	return ok && next.LeafBlockRef == requestBlock
}

// timestampsWithin checks the reading of u against the request at index k and
// its predecessor. The first request has no predecessor and never passes.
func timestampsWithin(log zerolog.Logger, requests []commitment.Request, k int, u commitment.Update) bool {
	if k == 0 || !u.DataPresent {
		return false
	}
	prev, curr := requests[k-1], requests[k]
	if !prev.TimestampKnown || !curr.TimestampKnown {
		return false
	}

	timestamps, err := u.Reading.Timestamps()
	if err != nil {
		log.Warn().Err(err).Uint64("block_number", u.BlockNumber).Msg("could not decode reading timestamps")
		return false
	}
	if len(timestamps) == 0 {
		return false
	}
	for _, ts := range timestamps {
		if !(float64(prev.Timestamp) < ts && ts < float64(curr.Timestamp)) {
			return false
		}
	}
	return true
}
