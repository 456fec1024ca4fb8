package models

// Stage represents one phase of the run pipeline.
type Stage string

const (
	// StageInit is the freshly created run, before wave planning completes.
	StageInit Stage = "init"
	// StageWave1 is the first research wave.
	StageWave1 Stage = "wave1"
	// StagePivot is the gap analysis deciding whether wave 2 runs.
	StagePivot Stage = "pivot"
	// StageWave2 is the optional second research wave.
	StageWave2 Stage = "wave2"
	// StageCitations is URL extraction, normalization and validation.
	StageCitations Stage = "citations"
	// StageSummaries is bounded per-perspective summarization.
	StageSummaries Stage = "summaries"
	// StageSynthesis is final synthesis drafting and validation.
	StageSynthesis Stage = "synthesis"
	// StageReview is reviewer verdict aggregation.
	StageReview Stage = "review"
	// StageFinalize is the terminal stage.
	StageFinalize Stage = "finalize"
)

// Valid returns true if the stage is a known value.
func (s Stage) Valid() bool {
	switch s {
	case StageInit, StageWave1, StagePivot, StageWave2, StageCitations,
		StageSummaries, StageSynthesis, StageReview, StageFinalize:
		return true
	default:
		return false
	}
}

// Terminal returns true for the finalize stage.
func (s Stage) Terminal() bool {
	return s == StageFinalize
}

// AllStages lists every pipeline stage in order.
func AllStages() []Stage {
	return []Stage{
		StageInit, StageWave1, StagePivot, StageWave2, StageCitations,
		StageSummaries, StageSynthesis, StageReview, StageFinalize,
	}
}
