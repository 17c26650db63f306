// Package sequencer drives the automatic narration timeline for a card:
// narrate front, delay, reveal, narrate back, delay, advance. The whole
// chain is cancellable at every step boundary via a monotonically
// increasing generation token.
package sequencer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"recallgo/pkg/audio"
	"recallgo/pkg/model"
)

// Playback is the subset of the audio controller the sequencer drives.
type Playback interface {
	Play(ctx context.Context, itemID string, side model.Side, asset *model.AudioAsset, opts audio.Options) error
	StopAll(except ...model.Side)
}

// Driver is the session-side collaborator: it owns the displayed card's
// state and loads the next card at the advance step.
type Driver interface {
	// Flipped reports whether the current card already shows its back.
	Flipped() bool
	// Reveal flips the current card and notifies listeners.
	Reveal()
	// Advance requests the next card. Rendering the new card starts a
	// fresh sequence, which establishes a new token generation.
	Advance(ctx context.Context)
}

// DelayFunc returns the configured gap after each narration. It is
// consulted at each wait step, so a preference change applies from the
// next sequence start.
type DelayFunc func(ctx context.Context) time.Duration

// Step identifies where in the timeline a sequence currently is.
type Step int32

const (
	StepIdle Step = iota
	StepNarratingFront
	StepWaitingAfterFront
	StepRevealing
	StepNarratingBack
	StepWaitingAfterBack
	StepAdvancing
	StepCancelled
)

func (s Step) String() string {
	switch s {
	case StepIdle:
		return "idle"
	case StepNarratingFront:
		return "narrating_front"
	case StepWaitingAfterFront:
		return "waiting_after_front"
	case StepRevealing:
		return "revealing"
	case StepNarratingBack:
		return "narrating_back"
	case StepWaitingAfterBack:
		return "waiting_after_back"
	case StepAdvancing:
		return "advancing"
	case StepCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Sequencer runs at most one narration timeline at a time.
//
// Every asynchronous continuation captures the token at schedule time and
// re-checks it before acting; a mismatch means a newer generation has
// started and the continuation must have no observable effect.
type Sequencer struct {
	mu            sync.Mutex
	token         int64
	step          Step
	pendingTimers map[int64]*time.Timer
	timerSeq      int64
	cancelCh      chan struct{}

	playback Playback
	driver   Driver
	delay    DelayFunc
}

// New creates a sequencer. delay may be nil for "no gap".
func New(playback Playback, driver Driver, delay DelayFunc) *Sequencer {
	if delay == nil {
		delay = func(context.Context) time.Duration { return 0 }
	}
	return &Sequencer{
		pendingTimers: make(map[int64]*time.Timer),
		playback:      playback,
		driver:        driver,
		delay:         delay,
	}
}

// Start begins the autoplay timeline for a card. The previous generation
// is retired and the new token captured under a single lock acquisition,
// so two racing Starts can never end up sharing a token: each observes
// its own increment and at most one survives the staleness checks.
func (s *Sequencer) Start(ctx context.Context, card *model.Card) {
	if card == nil {
		return
	}

	s.mu.Lock()
	s.retireLocked()
	s.cancelCh = make(chan struct{})
	s.step = StepIdle
	token := s.token
	cancelCh := s.cancelCh
	s.mu.Unlock()

	if s.playback != nil {
		s.playback.StopAll()
	}

	go s.run(ctx, token, cancelCh, card)
}

// Cancel invalidates the current generation: the token is incremented,
// pending delay timers are cleared, and all audio stops. Idempotent.
func (s *Sequencer) Cancel() {
	s.mu.Lock()
	s.retireLocked()
	s.step = StepCancelled
	s.mu.Unlock()

	if s.playback != nil {
		s.playback.StopAll()
	}
}

// retireLocked invalidates the live generation: bumps the token, stops
// pending timers and closes the generation's cancel channel. Caller
// holds s.mu.
func (s *Sequencer) retireLocked() {
	s.token++
	for id, t := range s.pendingTimers {
		t.Stop()
		delete(s.pendingTimers, id)
	}
	if s.cancelCh != nil {
		close(s.cancelCh)
		s.cancelCh = nil
	}
}

// Token returns the live generation token.
func (s *Sequencer) Token() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// CurrentStep returns the step the live sequence is in.
func (s *Sequencer) CurrentStep() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// PendingTimerCount returns the number of outstanding delay timers.
func (s *Sequencer) PendingTimerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pendingTimers)
}

// run executes one generation of the timeline. Any panic in the chain is
// a sequence fault: logged, and narration for this card simply stops.
func (s *Sequencer) run(ctx context.Context, token int64, cancelCh chan struct{}, card *model.Card) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Sequencer: Sequence fault, stopping narration for card",
				"item", card.ItemID, "panic", r)
		}
	}()

	if !s.setStep(token, StepNarratingFront) {
		return
	}
	s.narrate(ctx, token, card, model.SideFront)
	if s.stale(token) {
		return
	}

	if !s.setStep(token, StepWaitingAfterFront) {
		return
	}
	if !s.wait(ctx, token, cancelCh) {
		return
	}

	if !s.setStep(token, StepRevealing) {
		return
	}
	if !s.driver.Flipped() {
		s.playback.StopAll()
		s.driver.Reveal()
	}
	if s.stale(token) {
		return
	}

	if !s.setStep(token, StepNarratingBack) {
		return
	}
	s.narrate(ctx, token, card, model.SideBack)
	if s.stale(token) {
		return
	}

	if !s.setStep(token, StepWaitingAfterBack) {
		return
	}
	if !s.wait(ctx, token, cancelCh) {
		return
	}

	if !s.setStep(token, StepAdvancing) {
		return
	}
	s.driver.Advance(ctx)
}

// narrate plays one side to completion. Failures degrade to silence; a
// narration aid must never block study progress.
func (s *Sequencer) narrate(ctx context.Context, token int64, card *model.Card, side model.Side) {
	asset := card.Asset(side)
	if asset == nil {
		return
	}

	err := s.playback.Play(ctx, card.ItemID, side, asset, audio.Options{AwaitCompletion: true})
	if err == nil || s.stale(token) {
		return
	}

	// The recovery agent may have replaced the source during the failed
	// attempt; retry ordinary playback exactly once.
	var pbErr *audio.PlaybackError
	if errors.As(err, &pbErr) && asset.WasRetried() && asset.HasSource() {
		if err := s.playback.Play(ctx, card.ItemID, side, asset, audio.Options{AwaitCompletion: true}); err != nil {
			slog.Warn("Sequencer: Narration failed after repair, continuing silent",
				"item", card.ItemID, "side", side, "error", err)
		}
		return
	}

	slog.Warn("Sequencer: Narration failed, continuing without audio",
		"item", card.ItemID, "side", side, "error", err)
}

// wait blocks for the configured delay. Returns false when the generation
// was cancelled. A zero delay resolves immediately without scheduling a
// timer at all.
func (s *Sequencer) wait(ctx context.Context, token int64, cancelCh chan struct{}) bool {
	d := s.delay(ctx)
	if d <= 0 {
		return !s.stale(token)
	}

	timer := time.NewTimer(d)
	id, ok := s.registerTimer(token, timer)
	if !ok {
		timer.Stop()
		return false
	}
	defer s.unregisterTimer(id)

	select {
	case <-timer.C:
		return !s.stale(token)
	case <-cancelCh:
		return false
	case <-ctx.Done():
		return false
	}
}

func (s *Sequencer) registerTimer(token int64, t *time.Timer) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != token {
		return 0, false
	}
	s.timerSeq++
	s.pendingTimers[s.timerSeq] = t
	return s.timerSeq, true
}

func (s *Sequencer) unregisterTimer(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pendingTimers, id)
}

// setStep advances the state machine if the generation is still live.
func (s *Sequencer) setStep(token int64, step Step) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != token {
		return false
	}
	s.step = step
	return true
}

// stale reports whether a newer generation has started since token was
// captured.
func (s *Sequencer) stale(token int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != token
}
