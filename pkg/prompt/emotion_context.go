package prompt

import (
	"fmt"
	"strings"

	"therapist-bot-be/pkg/emotion"
)

// MinDirectiveConfidence is the fused confidence below which the state is
// treated as "no data" and no directive is emitted.
const MinDirectiveConfidence = 0.15

// FormatEmotionContext renders a fused emotion state as a system prompt
// addendum. It returns "" when the estimate is too weak to act on.
func FormatEmotionContext(state emotion.FusedState) string {
	if state.Confidence < MinDirectiveConfidence {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n\n## Current Emotional State (Detected)\n")
	fmt.Fprintf(&b, "- **Dominant emotion**: %s (confidence: %.0f%%)\n", state.Dominant, state.Confidence*100)

	if state.Audio.Emotion != emotion.Neutral && state.Audio.Confidence > 0 {
		fmt.Fprintf(&b, "- **Voice tone**: %s\n", state.Audio.Emotion)
	}
	if state.Video.Emotion != emotion.Neutral && state.Video.Confidence > 0 {
		fmt.Fprintf(&b, "- **Facial expression**: %s\n", state.Video.Emotion)
	}

	if state.Incongruence {
		fmt.Fprintf(&b,
			"- **Incongruence detected**: the voice suggests '%s' but the facial expression shows '%s'. "+
				"If it feels appropriate, gently reflect the difference between what the user says and how they seem, "+
				"and invite them to explore it. Do not claim to know which signal is the true one.\n",
			state.Audio.Emotion, state.Video.Emotion)
	}

	if guidance := guidanceFor(state.Dominant); guidance != "" {
		b.WriteString("- ")
		b.WriteString(guidance)
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

func guidanceFor(l emotion.Label) string {
	switch l {
	case emotion.Sad, emotion.Fearful:
		return "Approach with extra gentleness and warmth. Prioritize validation."
	case emotion.Angry:
		return "Acknowledge the anger without escalating. Help explore what's underneath."
	case emotion.Happy:
		return "Share in their positive energy. Explore what's going well."
	case emotion.Surprised:
		return "Help them process what surprised them. Check if it's a positive or negative surprise."
	case emotion.Disgusted:
		return "Stay non-judgmental and curious about what feels wrong to them."
	}
	return ""
}
