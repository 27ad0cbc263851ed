package emotion

// DefaultIncongruenceThreshold is the minimum confidence both modalities need
// before a disagreement is flagged.
const DefaultIncongruenceThreshold = 0.4

// Incongruent reports confident disagreement between the two modalities.
func Incongruent(audioEmotion Label, audioConfidence float64, videoEmotion Label, videoConfidence float64) bool {
	return incongruentAt(DefaultIncongruenceThreshold, audioEmotion, audioConfidence, videoEmotion, videoConfidence)
}

func incongruentAt(threshold float64, ae Label, ac float64, ve Label, vc float64) bool {
	return ae != ve && ac >= threshold && vc >= threshold
}
