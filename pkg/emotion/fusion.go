package emotion

// Weights are the fixed cross-modal fusion weights.
type Weights struct {
	Audio float64
	Video float64
}

// DefaultWeights trusts voice prosody over facial expression.
var DefaultWeights = Weights{Audio: 0.6, Video: 0.4}

// Fuse combines two per-modality distributions label by label. A modality with
// no data contributes zeros; the result is not renormalized.
func Fuse(audio, video Distribution, w Weights) Distribution {
	fused := NewDistribution()
	for _, l := range Labels {
		fused[l] = w.Audio*audio[l] + w.Video*video[l]
	}
	return fused
}
