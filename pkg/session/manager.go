// Package session owns the runtime state of one study session: the card
// batch, the displayed card, the score, and the autoplay machinery around
// them. The rendering layer talks to it through typed intents (flip,
// answer, end, next) instead of calling internals directly.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"recallgo/pkg/audio"
	"recallgo/pkg/cardtext"
	"recallgo/pkg/config"
	"recallgo/pkg/model"
	"recallgo/pkg/sequencer"
	"recallgo/pkg/srs"
	"recallgo/pkg/store"
)

// Loader is the study-server subset the session needs.
type Loader interface {
	NextBatch(ctx context.Context) (*model.Batch, error)
	SubmitAnswer(ctx context.Context, itemID, answer string) (*model.AnswerResult, error)
}

// Playback is the audio controller subset the session drives directly
// (manual narration on flip; cleanup on end).
type Playback interface {
	Play(ctx context.Context, itemID string, side model.Side, asset *model.AudioAsset, opts audio.Options) error
	StopAll(except ...model.Side)
}

// Narrator runs the autoplay timeline. Satisfied by *sequencer.Sequencer.
type Narrator interface {
	Start(ctx context.Context, card *model.Card)
	Cancel()
	CurrentStep() sequencer.Step
}

// Listener receives fire-and-forget study events. Listeners must not block.
type Listener func(model.StudyEvent)

// ErrNoCard is returned by intents that need a displayed card.
var ErrNoCard = errors.New("no card displayed")

// ErrEnded is returned by intents after the session has completed.
var ErrEnded = errors.New("session has ended")

// Manager is the session controller.
type Manager struct {
	mu      sync.Mutex
	batch   *model.Batch
	index   int
	flipped bool
	score   int
	ended   bool

	// runCtx spans the whole session. Narration started by an intent
	// must outlive the HTTP request that carried the intent, so
	// generations run under this context, not the request's.
	runCtx    context.Context
	cancelRun context.CancelFunc

	srs       Loader
	playback  Playback
	narrator  Narrator
	provider  config.Provider
	reviews   store.ReviewLogStore
	listeners []Listener
}

// NewManager creates a session manager. The narrator is attached
// separately because it needs the manager as its driver.
func NewManager(loader Loader, playback Playback, provider config.Provider, reviews store.ReviewLogStore) *Manager {
	return &Manager{
		srs:      loader,
		playback: playback,
		provider: provider,
		reviews:  reviews,
	}
}

// AttachNarrator wires the autoplay sequencer. Must be called before Begin.
func (m *Manager) AttachNarrator(n Narrator) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.narrator = n
}

// Subscribe registers a study event listener.
func (m *Manager) Subscribe(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// Begin fetches the first batch and, when autoplay is on, starts
// narrating the first card.
func (m *Manager) Begin(ctx context.Context) error {
	m.mu.Lock()
	if m.cancelRun != nil {
		m.cancelRun()
	}
	m.runCtx, m.cancelRun = context.WithCancel(context.Background())
	m.mu.Unlock()

	batch, err := m.srs.NextBatch(ctx)
	if err != nil {
		if errors.Is(err, srs.ErrSessionComplete) {
			m.complete()
			return err
		}
		return fmt.Errorf("failed to load first batch: %w", err)
	}

	m.mu.Lock()
	m.batch = batch
	m.index = 0
	m.flipped = false
	m.mu.Unlock()

	card := m.Card()
	ensureAssets(card)
	slog.Info("Session: Started", "cards", len(batch.Items))

	m.maybeAutoplay(ctx, card)
	return nil
}

// Card returns the currently displayed card, or nil.
func (m *Manager) Card() *model.Card {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cardLocked()
}

func (m *Manager) cardLocked() *model.Card {
	if m.batch == nil || m.index < 0 || m.index >= len(m.batch.Items) {
		return nil
	}
	return m.batch.Items[m.index]
}

// Status is a snapshot of the session for the local API.
type Status struct {
	Index   int    `json:"index"`
	Total   int    `json:"total"`
	Flipped bool   `json:"flipped"`
	Score   int    `json:"score"`
	Ended   bool   `json:"ended"`
	Step    string `json:"autoplay_step"`
}

// Status returns the current session snapshot.
func (m *Manager) Status() Status {
	m.mu.Lock()
	st := Status{
		Index:   m.index,
		Flipped: m.flipped,
		Score:   m.score,
		Ended:   m.ended,
	}
	if m.batch != nil {
		st.Total = len(m.batch.Items)
	}
	narrator := m.narrator
	m.mu.Unlock()

	if narrator != nil {
		st.Step = narrator.CurrentStep().String()
	}
	return st
}

// Flip handles the manual flip intent. It cancels any running sequence,
// toggles the card, and fires a one-off narration of the newly shown side
// when manual audio is enabled.
func (m *Manager) Flip(ctx context.Context) error {
	m.mu.Lock()
	if m.ended {
		m.mu.Unlock()
		return ErrEnded
	}
	card := m.cardLocked()
	if card == nil {
		m.mu.Unlock()
		return ErrNoCard
	}
	narrator := m.narrator
	m.mu.Unlock()

	// Manual interruption wins: the in-flight generation observes its
	// stale token and does nothing.
	if narrator != nil {
		narrator.Cancel()
	}

	m.mu.Lock()
	m.flipped = !m.flipped
	side := model.SideFront
	if m.flipped {
		side = model.SideBack
	}
	m.mu.Unlock()

	m.emit(model.StudyEvent{
		Type:      model.EventCardFlipped,
		ItemID:    card.ItemID,
		Side:      side,
		Timestamp: time.Now(),
	})

	if m.provider != nil && m.provider.AutoPlayAudio(ctx) {
		asset := card.Asset(side)
		playCtx := m.sessionCtx()
		// Fire-and-forget; a failed manual narration is logged, never
		// blocks the flip.
		go func() {
			if err := m.playback.Play(playCtx, card.ItemID, side, asset, audio.Options{}); err != nil {
				slog.Warn("Session: Manual narration failed", "item", card.ItemID, "side", side, "error", err)
			}
		}()
	}
	return nil
}

// Answer submits the user's answer for the current card, records the
// review, emits a stats update and advances to the next card.
func (m *Manager) Answer(ctx context.Context, answer string) (*model.AnswerResult, error) {
	m.mu.Lock()
	if m.ended {
		m.mu.Unlock()
		return nil, ErrEnded
	}
	card := m.cardLocked()
	if card == nil {
		m.mu.Unlock()
		return nil, ErrNoCard
	}
	narrator := m.narrator
	m.mu.Unlock()

	if narrator != nil {
		narrator.Cancel()
	}

	result, err := m.srs.SubmitAnswer(ctx, card.ItemID, answer)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.score = result.UpdatedTotalScore
	m.mu.Unlock()

	if m.reviews != nil {
		rec := &store.ReviewRecord{
			ItemID:      card.ItemID,
			UserAnswer:  answer,
			ScoreChange: result.ScoreChange,
			TotalScore:  result.UpdatedTotalScore,
			AnsweredAt:  time.Now(),
		}
		if err := m.reviews.LogReview(ctx, rec); err != nil {
			slog.Error("Session: Failed to log review", "item", card.ItemID, "error", err)
		}
	}

	m.emit(model.StudyEvent{
		Type:       model.EventStatsUpdated,
		ItemID:     card.ItemID,
		Score:      result.UpdatedTotalScore,
		Statistics: result.Statistics,
		Timestamp:  time.Now(),
	})

	m.Advance(ctx)
	return result, nil
}

// Next handles the explicit next-card intent.
func (m *Manager) Next(ctx context.Context) error {
	m.mu.Lock()
	if m.ended {
		m.mu.Unlock()
		return ErrEnded
	}
	narrator := m.narrator
	m.mu.Unlock()

	if narrator != nil {
		narrator.Cancel()
	}
	m.Advance(ctx)
	return nil
}

// End handles the end-session intent: cancels any sequence mid-step,
// stops all audio, and marks the session done.
func (m *Manager) End() {
	m.mu.Lock()
	narrator := m.narrator
	m.mu.Unlock()

	if narrator != nil {
		narrator.Cancel()
	}
	m.playback.StopAll()
	m.complete()
}

// Flipped implements sequencer.Driver.
func (m *Manager) Flipped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flipped
}

// Reveal implements sequencer.Driver: the automatic flip performed by the
// sequence between front and back narration.
func (m *Manager) Reveal() {
	m.mu.Lock()
	card := m.cardLocked()
	m.flipped = true
	m.mu.Unlock()

	if card == nil {
		return
	}
	m.emit(model.StudyEvent{
		Type:      model.EventCardFlipped,
		ItemID:    card.ItemID,
		Side:      model.SideBack,
		Timestamp: time.Now(),
	})
}

// Advance implements sequencer.Driver: move to the next card, fetching a
// fresh batch when the current one is exhausted. Rendering the new card
// starts a new autoplay generation.
func (m *Manager) Advance(ctx context.Context) {
	m.mu.Lock()
	if m.ended {
		m.mu.Unlock()
		return
	}
	m.index++
	needBatch := m.batch == nil || m.index >= len(m.batch.Items)
	m.mu.Unlock()

	if needBatch {
		batch, err := m.srs.NextBatch(ctx)
		if err != nil {
			if errors.Is(err, srs.ErrSessionComplete) {
				m.complete()
				return
			}
			slog.Error("Session: Failed to fetch next batch", "error", err)
			m.mu.Lock()
			m.index-- // stay on the current card
			m.mu.Unlock()
			return
		}
		m.mu.Lock()
		m.batch = batch
		m.index = 0
		m.mu.Unlock()
	}

	m.mu.Lock()
	m.flipped = false
	card := m.cardLocked()
	m.mu.Unlock()

	ensureAssets(card)
	m.maybeAutoplay(ctx, card)
}

// Ended reports whether the session has completed.
func (m *Manager) Ended() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ended
}

func (m *Manager) maybeAutoplay(ctx context.Context, card *model.Card) {
	m.mu.Lock()
	narrator := m.narrator
	m.mu.Unlock()
	if card == nil || narrator == nil {
		return
	}
	if m.provider != nil && !m.provider.AutoPlayAudio(ctx) {
		return
	}
	// The generation runs under the session context: the intent request
	// that triggered it is torn down as soon as its handler returns.
	narrator.Start(m.sessionCtx(), card)
}

// sessionCtx returns the session-lifetime context, or Background before
// Begin has run.
func (m *Manager) sessionCtx() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.runCtx != nil {
		return m.runCtx
	}
	return context.Background()
}

func (m *Manager) complete() {
	m.mu.Lock()
	if m.ended {
		m.mu.Unlock()
		return
	}
	m.ended = true
	score := m.score
	cancel := m.cancelRun
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	slog.Info("Session: Complete", "score", score)
	m.emit(model.StudyEvent{
		Type:      model.EventSessionComplete,
		Score:     score,
		Timestamp: time.Now(),
	})
}

func (m *Manager) emit(ev model.StudyEvent) {
	m.mu.Lock()
	listeners := make([]Listener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	for _, l := range listeners {
		l(ev)
	}
}

// ensureAssets backfills missing audio assets from the card's HTML so
// every side has spoken text for synthesis.
func ensureAssets(card *model.Card) {
	if card == nil {
		return
	}
	if card.Front == nil {
		card.Front = model.NewAudioAsset(extractText(card.FrontHTML), "")
	} else if card.Front.Text() == "" {
		card.Front.SetText(extractText(card.FrontHTML))
	}
	if card.Back == nil {
		card.Back = model.NewAudioAsset(extractText(card.BackHTML), "")
	} else if card.Back.Text() == "" {
		card.Back.SetText(extractText(card.BackHTML))
	}
}

func extractText(html string) string {
	text, err := cardtext.Extract(html)
	if err != nil {
		slog.Warn("Session: Failed to extract card text", "error", err)
		return ""
	}
	return text
}
