package metrics

import (
	"time"
)

type NoopCollector struct{}

func NewNoopCollector() *NoopCollector {
	nc := &NoopCollector{}
	return nc
}

func (nc *NoopCollector) EventsNormalized(requests, retained, superseded int) {}
func (nc *NoopCollector) ReadingsCorrelated(count int)                        {}
func (nc *NoopCollector) SignatureChecked(ok bool)                            {}
func (nc *NoopCollector) LeafChecked(ok bool)                                 {}
func (nc *NoopCollector) RootCompared(ok bool)                                {}
func (nc *NoopCollector) IntervalsReported(valid, invalid int)                {}
func (nc *NoopCollector) StageDuration(stage string, duration time.Duration)  {}
func (nc *NoopCollector) RunFinished(passed bool)                             {}
func (nc *NoopCollector) ContentCacheHit(tier string)                         {}
func (nc *NoopCollector) ContentCacheMiss()                                   {}
func (nc *NoopCollector) ContentFetchRetried()                                {}
