// Package audio provides narration playback for card sides.
package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"recallgo/pkg/model"

	"github.com/google/uuid"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"
)

// Synthesizer produces a fresh recording URL for an asset that has none.
type Synthesizer interface {
	RegenerateAudio(ctx context.Context, itemID string, side model.Side, text string) (string, error)
}

// Fetcher downloads a recording. Satisfied by *request.Client.
type Fetcher interface {
	Get(ctx context.Context, url, cacheKey string) ([]byte, error)
}

// ErrorHook observes playback failures on an element. It returns true when
// the asset was repaired and the caller may retry ordinary playback.
type ErrorHook func(ctx context.Context, asset *model.AudioAsset, itemID string, side model.Side) bool

// PlaybackError indicates an element could not play its current source.
type PlaybackError struct {
	Side model.Side
	Err  error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("playback failed on %s side: %v", e.Side, e.Err)
}

func (e *PlaybackError) Unwrap() error { return e.Err }

// Options configures a single Play call.
type Options struct {
	// Restart rewinds to position zero before playing. Default true;
	// use NoRestart to resume instead.
	NoRestart bool
	// AwaitCompletion blocks until the element signals completion.
	// Required for sequenced narration; off for manual one-off clicks.
	AwaitCompletion bool
}

// element is the playback state for one card side.
type element struct {
	ctrl     *beep.Ctrl
	volume   *effects.Volume
	streamer beep.StreamSeekCloser
	format   beep.Format
	src      string
	path     string
	done     chan struct{}
	finish   sync.Once
}

// release closes the decoder and signals completion. Both the stop path
// and the mixer's completion callback call it; it runs once.
func (e *element) release() {
	e.finish.Do(func() {
		if e.streamer != nil {
			e.streamer.Close()
		}
		close(e.done)
	})
}

// Controller owns one audio element per card side and serializes all
// mutation of them. Front and back narration never overlap.
type Controller struct {
	mu                 sync.Mutex
	elements           map[model.Side]*element
	volume             float64
	speakerInitialized bool
	sampleRate         beep.SampleRate

	synth      Synthesizer
	fetcher    Fetcher
	resolveURL func(string) string
	onError    ErrorHook
	mediaDir   string
}

// Config wires a Controller's collaborators.
type Config struct {
	Synthesizer Synthesizer
	Fetcher     Fetcher
	// ResolveURL turns server-relative recording paths into absolute URLs.
	ResolveURL func(string) string
	MediaDir   string
	Volume     float64
}

// NewController creates a playback controller.
func NewController(cfg Config) *Controller {
	vol := cfg.Volume
	if vol <= 0 || vol > 1 {
		vol = 1.0
	}
	resolve := cfg.ResolveURL
	if resolve == nil {
		resolve = func(s string) string { return s }
	}
	mediaDir := cfg.MediaDir
	if mediaDir == "" {
		mediaDir = os.TempDir()
	}
	return &Controller{
		elements:   make(map[model.Side]*element),
		volume:     vol,
		synth:      cfg.Synthesizer,
		fetcher:    cfg.Fetcher,
		resolveURL: resolve,
		mediaDir:   mediaDir,
	}
}

// SetErrorHook registers the recovery observer for playback failures.
func (c *Controller) SetErrorHook(hook ErrorHook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = hook
}

// Play makes the given side audible.
//
// An asset with no recording URL is synthesized first via the regenerate
// endpoint. Any other sounding side is stopped before playback starts.
// With AwaitCompletion set, Play returns once the element signals
// completion, the context is cancelled, or playback fails.
func (c *Controller) Play(ctx context.Context, itemID string, side model.Side, asset *model.AudioAsset, opts Options) error {
	if asset == nil {
		return nil
	}

	// Proactive synthesis for assets that never had a recording. This is
	// independent of the error-driven repair path and does not consume
	// the asset's retry budget.
	if !asset.HasSource() {
		if c.synth == nil || asset.Text() == "" {
			slog.Debug("Audio: Nothing to play", "item", itemID, "side", side)
			return nil
		}
		u, err := c.synth.RegenerateAudio(ctx, itemID, side, asset.Text())
		if err != nil {
			return err
		}
		asset.SetSource(c.resolveURL(u))
		slog.Info("Audio: Synthesized recording", "item", itemID, "side", side)
	}

	c.StopAll(side)

	err := c.startPlayback(ctx, side, asset, opts)
	if err != nil {
		pbErr := &PlaybackError{Side: side, Err: err}
		c.mu.Lock()
		hook := c.onError
		c.mu.Unlock()
		if hook != nil && hook(ctx, asset, itemID, side) {
			slog.Info("Audio: Asset repaired after playback error", "item", itemID, "side", side)
		}
		return pbErr
	}

	if !opts.AwaitCompletion {
		return nil
	}

	c.mu.Lock()
	el := c.elements[side]
	c.mu.Unlock()
	if el == nil {
		return nil
	}

	select {
	case <-el.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// startPlayback fetches, decodes and starts the element for one side.
func (c *Controller) startPlayback(ctx context.Context, side model.Side, asset *model.AudioAsset, opts Options) error {
	src := c.resolveURL(asset.Source())

	c.mu.Lock()
	el := c.elements[side]
	// A stopped element's decoder is already closed, so only a side
	// still attached to the mixer can be resumed in place.
	samePath := el != nil && el.ctrl != nil && el.src == src
	c.mu.Unlock()

	// Resume without reloading when the element already holds this
	// recording and the caller asked not to restart.
	if samePath && opts.NoRestart {
		c.Resume(side)
		return nil
	}

	data, err := c.fetcher.Get(ctx, src, "media:"+src)
	if err != nil {
		return fmt.Errorf("fetch recording: %w", err)
	}

	path := filepath.Join(c.mediaDir, uuid.NewString()+".audio")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write recording: %w", err)
	}

	streamer, format, err := decodeFile(path)
	if err != nil {
		os.Remove(path)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureSpeakerLocked(); err != nil {
		streamer.Close()
		os.Remove(path)
		return err
	}

	// Replace the side's previous element and its artifact.
	c.stopElementLocked(side)
	if old := c.elements[side]; old != nil && old.path != "" {
		removeArtifact(old.path)
	}

	resampled := beep.Resample(3, format.SampleRate, c.sampleRate, streamer)
	vol := &effects.Volume{
		Streamer: resampled,
		Base:     2,
		Volume:   volumeToPower(c.volume),
		Silent:   c.volume <= 0.01,
	}
	ctrl := &beep.Ctrl{Streamer: vol}
	done := make(chan struct{})

	el = &element{
		ctrl:     ctrl,
		volume:   vol,
		streamer: streamer,
		format:   format,
		src:      src,
		path:     path,
		done:     done,
	}
	c.elements[side] = el

	speaker.Play(beep.Seq(ctrl, beep.Callback(func() {
		go func() {
			c.mu.Lock()
			if c.elements[side] == el {
				el.ctrl = nil
			}
			c.mu.Unlock()
			el.release()
		}()
	})))

	slog.Debug("Audio: Playing", "side", side, "path", path)
	return nil
}

// StopAll stops every active element except the given ones. Stopped
// sides detach from the mixer, release their decoder and unblock any
// completion waiter. Always safe to call; idempotent.
func (c *Controller) StopAll(except ...model.Side) {
	c.mu.Lock()
	defer c.mu.Unlock()

	skip := make(map[model.Side]bool, len(except))
	for _, s := range except {
		skip[s] = true
	}

	for side := range c.elements {
		if skip[side] {
			continue
		}
		c.stopElementLocked(side)
	}
}

// stopElementLocked halts one side for good: the element is detached
// from the mixer, its decoder closed and its done channel closed so an
// AwaitCompletion waiter never blocks on a dead element. Caller holds
// c.mu.
func (c *Controller) stopElementLocked(side model.Side) {
	el := c.elements[side]
	if el == nil {
		return
	}
	if el.ctrl != nil {
		speaker.Lock()
		// A Ctrl with a nil streamer reads as drained, so the mixer
		// drops the entry on its next pass and the Seq callback fires.
		el.ctrl.Streamer = nil
		speaker.Unlock()
		el.ctrl = nil
	}
	el.release()
}

// Pause pauses the given side without rewinding.
func (c *Controller) Pause(side model.Side) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el := c.elements[side]; el != nil && el.ctrl != nil {
		speaker.Lock()
		el.ctrl.Paused = true
		speaker.Unlock()
	}
}

// Resume continues paused playback on the given side.
func (c *Controller) Resume(side model.Side) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el := c.elements[side]; el != nil && el.ctrl != nil {
		speaker.Lock()
		el.ctrl.Paused = false
		speaker.Unlock()
	}
}

// IsPlaying reports whether the given side is audible right now.
func (c *Controller) IsPlaying(side model.Side) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	el := c.elements[side]
	if el == nil || el.ctrl == nil {
		return false
	}
	speaker.Lock()
	paused := el.ctrl.Paused
	speaker.Unlock()
	return !paused
}

// SetVolume sets playback volume (0.0 to 1.0) on all elements.
func (c *Controller) SetVolume(vol float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if vol < 0 {
		vol = 0
	} else if vol > 1 {
		vol = 1
	}
	c.volume = vol

	for _, el := range c.elements {
		if el.volume == nil {
			continue
		}
		speaker.Lock()
		el.volume.Volume = volumeToPower(vol)
		el.volume.Silent = vol <= 0.01
		speaker.Unlock()
	}
}

// Volume returns the current volume level.
func (c *Controller) Volume() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volume
}

// Position returns the playback position of the given side.
func (c *Controller) Position(side model.Side) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	el := c.elements[side]
	if el == nil || el.ctrl == nil || el.streamer == nil || el.format.SampleRate == 0 {
		return 0
	}
	return el.format.SampleRate.D(el.streamer.Position())
}

// Shutdown stops everything and removes downloaded artifacts.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for side, el := range c.elements {
		c.stopElementLocked(side)
		if el.path != "" {
			removeArtifact(el.path)
		}
	}
	c.elements = make(map[model.Side]*element)
}

func (c *Controller) ensureSpeakerLocked() error {
	const targetSampleRate = 48000
	if c.speakerInitialized {
		return nil
	}
	sr := beep.SampleRate(targetSampleRate)
	if err := speaker.Init(sr, sr.N(time.Second/10)); err != nil {
		slog.Error("Audio: Failed to initialize speaker", "error", err)
		return err
	}
	c.speakerInitialized = true
	c.sampleRate = sr
	return nil
}

func removeArtifact(path string) {
	if err := os.Remove(path); err == nil {
		slog.Debug("Audio: Cleaned up recording artifact", "path", path)
	} else if !os.IsNotExist(err) {
		slog.Warn("Audio: Failed to cleanup recording artifact", "path", path, "error", err)
	}
}
