package sequencer

import (
	"context"
	"sync"
	"testing"
	"time"

	"recallgo/pkg/audio"
	"recallgo/pkg/model"
)

type fakePlayback struct {
	mu         sync.Mutex
	plays      []model.Side
	stops      int
	blockFront chan struct{} // when set, front playback waits here
	errs       map[model.Side]error
}

func (f *fakePlayback) Play(ctx context.Context, itemID string, side model.Side, asset *model.AudioAsset, opts audio.Options) error {
	if side == model.SideFront {
		f.mu.Lock()
		block := f.blockFront
		f.mu.Unlock()
		if block != nil {
			select {
			case <-block:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plays = append(f.plays, side)
	if f.errs != nil {
		return f.errs[side]
	}
	return nil
}

func (f *fakePlayback) StopAll(except ...model.Side) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakePlayback) playedSides() []model.Side {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Side, len(f.plays))
	copy(out, f.plays)
	return out
}

type fakeDriver struct {
	mu        sync.Mutex
	flipped   bool
	reveals   int
	advances  int
	advanceCh chan struct{}
	revealFn  func() // optional override
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{advanceCh: make(chan struct{}, 1)}
}

func (d *fakeDriver) Flipped() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flipped
}

func (d *fakeDriver) Reveal() {
	if d.revealFn != nil {
		d.revealFn()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.flipped = true
	d.reveals++
}

func (d *fakeDriver) Advance(ctx context.Context) {
	d.mu.Lock()
	d.advances++
	d.mu.Unlock()
	select {
	case d.advanceCh <- struct{}{}:
	default:
	}
}

func (d *fakeDriver) counts() (reveals, advances int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reveals, d.advances
}

func testCard() *model.Card {
	return &model.Card{
		ItemID: "card-1",
		Front:  model.NewAudioAsset("front text", "/media/front.mp3"),
		Back:   model.NewAudioAsset("back text", "/media/back.mp3"),
	}
}

func waitAdvance(t *testing.T, d *fakeDriver) {
	t.Helper()
	select {
	case <-d.advanceCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for advance")
	}
}

func constantDelay(d time.Duration) DelayFunc {
	return func(context.Context) time.Duration { return d }
}

func TestHappyPath(t *testing.T) {
	pb := &fakePlayback{}
	drv := newFakeDriver()
	seq := New(pb, drv, constantDelay(10*time.Millisecond))

	seq.Start(context.Background(), testCard())
	waitAdvance(t, drv)

	sides := pb.playedSides()
	if len(sides) != 2 || sides[0] != model.SideFront || sides[1] != model.SideBack {
		t.Errorf("played order = %v, want [front back]", sides)
	}
	reveals, advances := drv.counts()
	if reveals != 1 {
		t.Errorf("reveals = %d, want 1", reveals)
	}
	if advances != 1 {
		t.Errorf("advances = %d, want 1", advances)
	}
	if seq.PendingTimerCount() != 0 {
		t.Errorf("pending timers = %d after sequence end", seq.PendingTimerCount())
	}
}

func TestManualInterruptionWins(t *testing.T) {
	pb := &fakePlayback{blockFront: make(chan struct{})}
	drv := newFakeDriver()
	seq := New(pb, drv, constantDelay(10*time.Millisecond))

	seq.Start(context.Background(), testCard())

	// Wait until front narration is actually in flight.
	deadline := time.Now().Add(time.Second)
	for seq.CurrentStep() != StepNarratingFront && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	// Manual flip mid-narration cancels the generation.
	seq.Cancel()
	close(pb.blockFront)

	// The in-flight continuation observes the stale token: no reveal, no
	// back narration, no advance.
	time.Sleep(50 * time.Millisecond)
	reveals, advances := drv.counts()
	if reveals != 0 {
		t.Errorf("reveals = %d, want 0 after cancellation", reveals)
	}
	if advances != 0 {
		t.Errorf("advances = %d, want 0 after cancellation", advances)
	}
	for _, side := range pb.playedSides() {
		if side == model.SideBack {
			t.Error("back audio must never play after a front-stage cancellation")
		}
	}
}

func TestZeroDelayFastPath(t *testing.T) {
	pb := &fakePlayback{}
	drv := newFakeDriver()
	seq := New(pb, drv, constantDelay(0))

	seq.Start(context.Background(), testCard())
	waitAdvance(t, drv)

	seq.mu.Lock()
	scheduled := seq.timerSeq
	seq.mu.Unlock()
	if scheduled != 0 {
		t.Errorf("zero delay scheduled %d timers, want none", scheduled)
	}
}

func TestDelayedPathSchedulesTimers(t *testing.T) {
	pb := &fakePlayback{}
	drv := newFakeDriver()
	seq := New(pb, drv, constantDelay(5*time.Millisecond))

	seq.Start(context.Background(), testCard())
	waitAdvance(t, drv)

	seq.mu.Lock()
	scheduled := seq.timerSeq
	seq.mu.Unlock()
	if scheduled != 2 {
		t.Errorf("scheduled %d timers, want 2 (one per wait step)", scheduled)
	}
}

func TestCancelDuringWaitClearsTimer(t *testing.T) {
	pb := &fakePlayback{}
	drv := newFakeDriver()
	seq := New(pb, drv, constantDelay(5*time.Second))

	seq.Start(context.Background(), testCard())

	deadline := time.Now().Add(time.Second)
	for seq.CurrentStep() != StepWaitingAfterFront && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if seq.PendingTimerCount() != 1 {
		t.Fatalf("pending timers = %d during wait, want 1", seq.PendingTimerCount())
	}

	// Ending the session mid-wait clears the timer immediately.
	seq.Cancel()
	if seq.PendingTimerCount() != 0 {
		t.Errorf("pending timers = %d after cancel, want 0", seq.PendingTimerCount())
	}

	time.Sleep(30 * time.Millisecond)
	reveals, advances := drv.counts()
	if reveals != 0 || advances != 0 {
		t.Errorf("reveals=%d advances=%d after mid-wait cancel, want 0/0", reveals, advances)
	}
}

func TestTokenMonotonicity(t *testing.T) {
	seq := New(&fakePlayback{}, newFakeDriver(), nil)

	t0 := seq.Token()
	seq.Cancel()
	t1 := seq.Token()
	seq.Cancel()
	t2 := seq.Token()

	if !(t0 < t1 && t1 < t2) {
		t.Errorf("tokens not monotonic: %d %d %d", t0, t1, t2)
	}
}

func TestCancelIdempotentWhenIdle(t *testing.T) {
	seq := New(&fakePlayback{}, newFakeDriver(), nil)
	seq.Cancel()
	seq.Cancel()
	if seq.CurrentStep() != StepCancelled {
		t.Errorf("step = %v, want cancelled", seq.CurrentStep())
	}
}

func TestRestartSupersedesPreviousGeneration(t *testing.T) {
	pb := &fakePlayback{blockFront: make(chan struct{})}
	drv := newFakeDriver()
	seq := New(pb, drv, constantDelay(0))

	seq.Start(context.Background(), testCard())

	deadline := time.Now().Add(time.Second)
	for seq.CurrentStep() != StepNarratingFront && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	// Second start while the first front narration is still blocked.
	pb.mu.Lock()
	firstBlock := pb.blockFront
	pb.blockFront = nil
	pb.mu.Unlock()
	second := testCard()
	second.ItemID = "card-2"
	seq.Start(context.Background(), second)
	waitAdvance(t, drv)

	// Release the first generation's narration; its continuation is stale.
	close(firstBlock)
	time.Sleep(30 * time.Millisecond)

	_, advances := drv.counts()
	if advances != 1 {
		t.Errorf("advances = %d, want 1 (only the live generation)", advances)
	}
}

func TestConcurrentStartsSingleLiveGeneration(t *testing.T) {
	pb := &fakePlayback{}
	drv := newFakeDriver()
	seq := New(pb, drv, constantDelay(0))
	card := testCard()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seq.Start(context.Background(), card)
		}()
	}
	wg.Wait()

	// Each Start bumps the token exactly once, so the two racing starts
	// captured distinct tokens and only the later one is live.
	if got := seq.Token(); got != 2 {
		t.Errorf("token = %d after two starts, want 2", got)
	}

	waitAdvance(t, drv)
	time.Sleep(50 * time.Millisecond)
	_, advances := drv.counts()
	if advances != 1 {
		t.Errorf("advances = %d, want 1 (the stale generation must not run)", advances)
	}
}

func TestAlreadyFlippedSkipsReveal(t *testing.T) {
	pb := &fakePlayback{}
	drv := newFakeDriver()
	drv.flipped = true
	seq := New(pb, drv, constantDelay(0))

	seq.Start(context.Background(), testCard())
	waitAdvance(t, drv)

	reveals, _ := drv.counts()
	if reveals != 0 {
		t.Errorf("reveals = %d, want 0 for an already flipped card", reveals)
	}
}

func TestSequenceFaultRecovered(t *testing.T) {
	pb := &fakePlayback{}
	drv := newFakeDriver()
	drv.revealFn = func() { panic("render layer exploded") }
	seq := New(pb, drv, constantDelay(0))

	seq.Start(context.Background(), testCard())
	time.Sleep(100 * time.Millisecond)

	// The fault stops this card's narration but must not crash anything.
	_, advances := drv.counts()
	if advances != 0 {
		t.Errorf("advances = %d, want 0 after sequence fault", advances)
	}

	// A new sequence still works afterwards.
	drv.revealFn = nil
	seq.Start(context.Background(), testCard())
	waitAdvance(t, drv)
}

func TestStartNilCard(t *testing.T) {
	seq := New(&fakePlayback{}, newFakeDriver(), nil)
	seq.Start(context.Background(), nil) // must not panic
}

func TestStepString(t *testing.T) {
	if StepNarratingFront.String() != "narrating_front" {
		t.Errorf("String = %q", StepNarratingFront.String())
	}
	if Step(99).String() != "unknown" {
		t.Errorf("unknown step String = %q", Step(99).String())
	}
}
