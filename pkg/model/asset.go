package model

import "sync"

// SentinelSourceURL marks an asset whose recording has not been produced yet.
// Some server renderings emit the page's own URL instead of an empty string;
// both mean "must be synthesized before first play".
const SentinelSourceURL = "about:blank"

// AudioAsset is the narration audio for one card side.
//
// SourceURL may be rewritten in place by the recovery agent after an
// error-driven resynthesis; Retried guards that path so a broken asset
// triggers at most one outbound regeneration per session.
type AudioAsset struct {
	mu sync.Mutex

	ContentText string
	SourceURL   string
	Retried     bool
}

// NewAudioAsset creates an asset for the given spoken text and recording URL.
// An empty url means the recording must be synthesized before first play.
func NewAudioAsset(text, url string) *AudioAsset {
	return &AudioAsset{ContentText: text, SourceURL: url}
}

// HasSource reports whether the asset has a playable recording URL.
func (a *AudioAsset) HasSource() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.SourceURL != "" && a.SourceURL != SentinelSourceURL
}

// Source returns the current recording URL.
func (a *AudioAsset) Source() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.SourceURL
}

// SetSource replaces the recording URL in place.
func (a *AudioAsset) SetSource(url string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.SourceURL = url
}

// Text returns the text to be spoken when no recording exists.
func (a *AudioAsset) Text() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ContentText
}

// SetText replaces the spoken text.
func (a *AudioAsset) SetText(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ContentText = text
}

// MarkRetried flips the one-shot retry guard. It returns false if the
// asset had already been retried, in which case the caller must not issue
// another regeneration request.
func (a *AudioAsset) MarkRetried() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Retried {
		return false
	}
	a.Retried = true
	return true
}

// WasRetried reports whether the error-driven repair has already run.
func (a *AudioAsset) WasRetried() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Retried
}
