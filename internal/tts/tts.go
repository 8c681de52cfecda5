// Package tts defines the interface for text-to-speech synthesis.
//
// Audiobridge only ever asks a provider for one utterance at a time and
// stores the result through the speech cache, so providers are plain
// request/response clients.
package tts

import "context"

// SynthesizeOpts controls synthesis behavior.
type SynthesizeOpts struct {
	// Voice is the provider voice name. Empty selects the provider default.
	Voice string
}

// Synthesizer converts text to audio.
type Synthesizer interface {
	// Synthesize generates audio in the provider's native container.
	Synthesize(ctx context.Context, text string, opts SynthesizeOpts) (*SynthesizeResult, error)

	// Close releases any resources held by the synthesizer.
	Close() error
}

// SynthesizeResult holds the output of TTS synthesis.
type SynthesizeResult struct {
	// Audio is the encoded audio.
	Audio []byte

	// Format is the file extension matching Audio, without the dot (e.g., "wav", "mp3").
	Format string

	// ContentType is the MIME type of the audio (e.g., "audio/wav").
	ContentType string
}
