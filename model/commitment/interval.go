package commitment

// Interval is the span between two consecutive RootRequested events.
type Interval struct {
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
	// RequestBlock is the block number of the request closing the interval.
	RequestBlock uint64 `json:"request_block"`
	Valid        bool   `json:"valid"`
}

// Range is a verified time range, in ledger timestamps.
type Range struct {
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
}

// Report is the time-range integrity verdict for a verified sequence.
type Report struct {
	Intervals []Interval `json:"intervals"`
	Valid     []Interval `json:"valid"`
	Invalid   []Interval `json:"invalid"`
	// Range is set only when the report passed.
	Range *Range `json:"range,omitempty"`
	// Uncovered lists the leaf block references of updates that do not close
	// any interval (the update answering the first request).
	Uncovered []uint64 `json:"uncovered,omitempty"`
	Passed    bool     `json:"passed"`
}
