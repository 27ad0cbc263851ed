package emotion

// ModalityEmotion is the aggregated view of one modality's window.
type ModalityEmotion struct {
	Emotion    Label              `json:"emotion"`
	Confidence float64            `json:"confidence"`
	Scores     map[string]float64 `json:"scores"`
}

// FusedState is the read model handed to prompt construction and pushed to
// the client. It is recomputed on every read and never stored.
type FusedState struct {
	Dominant     Label              `json:"dominant"`
	Confidence   float64            `json:"confidence"`
	Audio        ModalityEmotion    `json:"audio"`
	Video        ModalityEmotion    `json:"video"`
	FusedScores  map[string]float64 `json:"fused_scores"`
	Incongruence bool               `json:"incongruence"`
}

// NeutralState is the state of an engine that has never received a reading.
func NeutralState() FusedState {
	zero := NewDistribution().ToMap()
	return FusedState{
		Dominant:    Neutral,
		Audio:       ModalityEmotion{Emotion: Neutral, Scores: NewDistribution().ToMap()},
		Video:       ModalityEmotion{Emotion: Neutral, Scores: NewDistribution().ToMap()},
		FusedScores: zero,
	}
}
