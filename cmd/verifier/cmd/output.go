package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/sensorledger/integrity/engine/verification/verifier"
	"github.com/sensorledger/integrity/model/commitment"
)

const timeLayout = "02.01.2006, 15:04:05"

// Summary renders the outcome of a verification run for humans.
type Summary struct {
	w   io.Writer
	loc *time.Location
}

func NewSummary(w io.Writer, loc *time.Location) *Summary {
	return &Summary{w: w, loc: loc}
}

func (s *Summary) Write(result *verifier.Result) {
	for _, u := range result.Superseded {
		s.printf("superseded update at block %d (leaf block ref %d, leaf %s)\n", u.BlockNumber, u.LeafBlockRef, u.LeafValue)
	}

	s.verdict("signatures", result.FailedStage != verifier.StageSignatures)
	for _, block := range result.SignatureFailures {
		s.printf("  invalid signature for reading of block %d\n", block)
	}
	if result.FailedStage == verifier.StageSignatures {
		s.verdict("integrity", false)
		return
	}

	if result.Root != nil {
		s.verdict("merkle root", result.Root.RootMatch)
		for _, m := range result.Root.Mismatches {
			s.printf("  leaf of block %d: committed %s, generated %s", m.LeafBlockRef, m.Committed, m.Generated)
			if m.Reason != "" {
				s.printf(" (%s)", m.Reason)
			}
			s.printf("\n")
		}
		if !result.Root.RootMatch {
			s.printf("  computed %s, ledger %s\n", result.Root.ComputedRoot.Hex(), result.Root.LedgerRoot.Hex())
		}
	}

	if result.Report != nil {
		s.intervals("valid intervals", result.Report.Valid)
		s.intervals("invalid intervals", result.Report.Invalid)
		if result.Report.Range != nil {
			s.printf("verified range: %s - %s\n", s.time(result.Report.Range.Start), s.time(result.Report.Range.End))
		}
	}

	s.verdict("integrity", result.Passed)
	if !result.Passed && result.FailedStage != verifier.StageNone {
		s.printf("  failed at stage %s\n", result.FailedStage)
	}
}

func (s *Summary) intervals(title string, intervals []commitment.Interval) {
	s.printf("%s: %d\n", title, len(intervals))
	for _, i := range intervals {
		s.printf("  request %d: %s - %s\n", i.RequestBlock, s.time(i.Start), s.time(i.End))
	}
}

func (s *Summary) verdict(check string, ok bool) {
	status := "OK"
	if !ok {
		status = "FAILED"
	}
	s.printf("%s: %s\n", check, status)
}

func (s *Summary) time(timestamp uint64) string {
	return time.Unix(int64(timestamp), 0).In(s.loc).Format(timeLayout)
}

func (s *Summary) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.w, format, args...)
}
