package constant

// In-process topics (watermill gochannel).
const (
	TopicEmotionUpdated = "emotion.updated"
)

// NATS subjects for durable consumers on the THERAPY stream.
const (
	SubjectReadingAudio = "therapy.READING_AUDIO"
	SubjectReadingVideo = "therapy.READING_VIDEO"

	DurableReadingIngest = "therapist-reading-ingest"
)
