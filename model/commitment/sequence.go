package commitment

import (
	"golang.org/x/exp/slices"
)

// Entry is one element of the merged commitment sequence. It is implemented by
// the value types Request and Update only.
type Entry interface {
	Height() uint64
	isEntry()
}

// Request is a RootRequested event together with the verdicts computed for it.
type Request struct {
	RootRequested
	OrderOK bool
}

func (r Request) Height() uint64 { return r.BlockNumber }
func (Request) isEntry()         {}

// Update is a retained RootUpdated event together with the state attached to it
// by the verification stages.
type Update struct {
	RootUpdated

	DataPresent bool
	Reading     Reading
	CidFormat   CidFormatConfig
	Sensor      SensorConfig

	// GeneratedLeaf is the leaf rebuilt from Reading; empty until the leaf stage ran.
	GeneratedLeaf string

	SignatureOK   bool
	MerkleRootOK  bool
	BlockNumberOK bool
	TimestampOK   bool
}

func (u Update) Height() uint64 { return u.BlockNumber }
func (Update) isEntry()         {}

// Sequence is an ordered list of requests and updates. Stages never modify a
// Sequence they receive; they return a new one.
type Sequence []Entry

// NewSequence merges requests and updates into a sequence sorted by block number.
// A request sorts before an update of the same block.
func NewSequence(requests []Request, updates []Update) Sequence {
	seq := make(Sequence, 0, len(requests)+len(updates))
	for _, r := range requests {
		seq = append(seq, r)
	}
	for _, u := range updates {
		seq = append(seq, u)
	}
	slices.SortStableFunc(seq, func(a, b Entry) int {
		if a.Height() != b.Height() {
			if a.Height() < b.Height() {
				return -1
			}
			return 1
		}
		_, aIsRequest := a.(Request)
		_, bIsRequest := b.(Request)
		switch {
		case aIsRequest && !bIsRequest:
			return -1
		case !aIsRequest && bIsRequest:
			return 1
		}
		return 0
	})
	return seq
}

// Requests returns the requests of the sequence in order.
func (s Sequence) Requests() []Request {
	var requests []Request
	for _, e := range s {
		if r, ok := e.(Request); ok {
			requests = append(requests, r)
		}
	}
	return requests
}

// Updates returns the updates of the sequence in order.
func (s Sequence) Updates() []Update {
	var updates []Update
	for _, e := range s {
		if u, ok := e.(Update); ok {
			updates = append(updates, u)
		}
	}
	return updates
}

// UpdateFor returns the update answering the request at the given block.
func (s Sequence) UpdateFor(requestBlock uint64) (Update, bool) {
	for _, e := range s {
		if u, ok := e.(Update); ok && u.LeafBlockRef == requestBlock {
			return u, true
		}
	}
	return Update{}, false
}

// MapUpdates returns a copy of the sequence in which every update is replaced by fn(update).
func (s Sequence) MapUpdates(fn func(Update) Update) Sequence {
	out := make(Sequence, len(s))
	for i, e := range s {
		if u, ok := e.(Update); ok {
			out[i] = fn(u)
			continue
		}
		out[i] = e
	}
	return out
}

// MapUpdatesErr is MapUpdates for functions that may fail. The first error aborts the mapping.
func (s Sequence) MapUpdatesErr(fn func(Update) (Update, error)) (Sequence, error) {
	out := make(Sequence, len(s))
	for i, e := range s {
		if u, ok := e.(Update); ok {
			mapped, err := fn(u)
			if err != nil {
				return nil, err
			}
			out[i] = mapped
			continue
		}
		out[i] = e
	}
	return out, nil
}

// MapRequests returns a copy of the sequence in which every request is replaced by
// fn(i, request), where i is the position of the request in the whole sequence.
func (s Sequence) MapRequests(fn func(int, Request) Request) Sequence {
	out := make(Sequence, len(s))
	for i, e := range s {
		if r, ok := e.(Request); ok {
			out[i] = fn(i, r)
			continue
		}
		out[i] = e
	}
	return out
}

// DataUpdates returns the updates with an attached reading together with their
// positions in the sequence.
func (s Sequence) DataUpdates() ([]int, []Update) {
	var (
		positions []int
		updates   []Update
	)
	for i, e := range s {
		if u, ok := e.(Update); ok && u.DataPresent {
			positions = append(positions, i)
			updates = append(updates, u)
		}
	}
	return positions, updates
}

// ReplaceAt returns a copy of the sequence with the entries at the given
// positions replaced.
func (s Sequence) ReplaceAt(positions []int, updates []Update) Sequence {
	out := make(Sequence, len(s))
	copy(out, s)
	for i, pos := range positions {
		out[pos] = updates[i]
	}
	return out
}
