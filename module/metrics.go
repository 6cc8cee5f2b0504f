package module

import (
	"time"
)

// IntegrityMetrics tracks the progress and the verdicts of a verification run.
type IntegrityMetrics interface {
	// EventsNormalized records how many updates were retained and superseded.
	EventsNormalized(requests, retained, superseded int)

	// ReadingsCorrelated records the number of readings attached to updates.
	ReadingsCorrelated(count int)

	// SignatureChecked is called once per checked update.
	SignatureChecked(ok bool)

	// LeafChecked is called once per rebuilt leaf.
	LeafChecked(ok bool)

	// RootCompared records the outcome of the aggregate root comparison.
	RootCompared(ok bool)

	// IntervalsReported records the interval partition of a finished run.
	IntervalsReported(valid, invalid int)

	// StageDuration tracks the time spent in one pipeline stage.
	StageDuration(stage string, duration time.Duration)

	// RunFinished records the overall verdict.
	RunFinished(passed bool)
}

// ContentCacheMetrics tracks the content cache in front of the storage gateway.
type ContentCacheMetrics interface {
	// ContentCacheHit is called when a reference was served from a local cache.
	ContentCacheHit(tier string)

	// ContentCacheMiss is called when a reference had to be fetched remotely.
	ContentCacheMiss()

	// ContentFetchRetried is called on every retried remote fetch.
	ContentFetchRetried()
}
