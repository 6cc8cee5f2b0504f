package report

import (
	"github.com/sensorledger/integrity/model/commitment"
)

// Build partitions the time between consecutive requests into intervals and
// decides for each whether it is covered by a correctly ordered, correctly
// referenced and correctly timestamped update.
//
// A report passes iff it has at least one interval and none of them is invalid.
// The update answering the first request closes no interval; its leaf block
// reference is listed in Uncovered.
func Build(seq commitment.Sequence) commitment.Report {
	requests := seq.Requests()
	report := commitment.Report{
		Intervals: []commitment.Interval{},
		Valid:     []commitment.Interval{},
		Invalid:   []commitment.Interval{},
	}

	if len(requests) > 0 {
		if _, ok := seq.UpdateFor(requests[0].BlockNumber); ok {
			report.Uncovered = append(report.Uncovered, requests[0].BlockNumber)
		}
	}

	for k := 1; k < len(requests); k++ {
		prev, curr := requests[k-1], requests[k]
		interval := commitment.Interval{
			Start:        prev.Timestamp,
			End:          curr.Timestamp,
			RequestBlock: curr.BlockNumber,
			Valid:        covered(seq, curr),
		}

		report.Intervals = append(report.Intervals, interval)
		if interval.Valid {
			report.Valid = append(report.Valid, interval)
		} else {
			report.Invalid = append(report.Invalid, interval)
		}
	}

	report.Passed = len(report.Intervals) > 0 && len(report.Invalid) == 0
	if report.Passed {
		report.Range = &commitment.Range{
			Start: report.Intervals[0].Start,
			End:   report.Intervals[len(report.Intervals)-1].End,
		}
	}
	return report
}

func covered(seq commitment.Sequence, curr commitment.Request) bool {
	if !curr.OrderOK {
		return false
	}
	u, ok := seq.UpdateFor(curr.BlockNumber)
	return ok && u.BlockNumberOK && u.TimestampOK
}
