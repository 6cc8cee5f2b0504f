package metrics

const (
	namespaceIntegrity = "integrity"

	subsystemNormalizer = "normalizer"
	subsystemSignature  = "signature"
	subsystemLeaf       = "leaf"
	subsystemReport     = "report"
	subsystemPipeline   = "pipeline"
	subsystemContent    = "content"
)

const (
	LabelStage   = "stage"
	LabelResult  = "result"
	LabelTier    = "tier"
	LabelOutcome = "outcome"
)

const (
	ResultPassed = "passed"
	ResultFailed = "failed"

	TierMemory     = "memory"
	TierBlockstore = "blockstore"
)

func result(ok bool) string {
	if ok {
		return ResultPassed
	}
	return ResultFailed
}
