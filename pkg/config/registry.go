package config

// Persistent state keys (Registry).
// Key names match what the rendering layer historically stored in the
// browser, so an exported/imported profile keeps working.
const (
	KeyAutoPlayAudio    = "flashcardAutoPlayAudio"
	KeyAutoplaySettings = "flashcardAutoplaySettings"
	KeyVolume           = "volume"
)
