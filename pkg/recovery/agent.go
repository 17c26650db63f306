// Package recovery repairs broken audio assets after playback failures.
package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"recallgo/pkg/model"
)

// Regenerator re-synthesizes a recording server-side. Satisfied by *srs.Client.
type Regenerator interface {
	RegenerateAudio(ctx context.Context, itemID string, side model.Side, text string) (string, error)
}

// Agent performs a bounded, at-most-once remote resynthesis of an asset
// whose recording failed to play. It only repairs the asset; the caller
// retries ordinary playback afterwards.
type Agent struct {
	srs        Regenerator
	resolveURL func(string) string
	now        func() time.Time
}

// NewAgent creates a recovery agent. resolveURL may be nil if the server
// returns absolute recording URLs.
func NewAgent(srs Regenerator, resolveURL func(string) string) *Agent {
	if resolveURL == nil {
		resolveURL = func(s string) string { return s }
	}
	return &Agent{
		srs:        srs,
		resolveURL: resolveURL,
		now:        time.Now,
	}
}

// OnPlaybackError handles a playback failure on one card side.
//
// It is a no-op for assets with no spoken text (nothing to regenerate
// from) and for assets that already consumed their single retry, no
// matter how many times the element re-fires its error. Returns true when
// the asset's source was replaced and playback may be retried.
func (a *Agent) OnPlaybackError(ctx context.Context, asset *model.AudioAsset, itemID string, side model.Side) bool {
	if asset == nil || asset.Text() == "" {
		return false
	}

	if !asset.MarkRetried() {
		slog.Debug("Recovery: Asset already retried, leaving silent", "item", itemID, "side", side)
		return false
	}

	slog.Info("Recovery: Resynthesizing broken recording", "item", itemID, "side", side)

	u, err := a.srs.RegenerateAudio(ctx, itemID, side, asset.Text())
	if err != nil {
		slog.Warn("Recovery: Resynthesis failed, asset stays silent this session",
			"item", itemID, "side", side, "error", err)
		return false
	}

	asset.SetSource(a.cacheBust(a.resolveURL(u)))
	return true
}

// cacheBust appends a timestamp suffix so the transport does not hand back
// the cached broken recording.
func (a *Agent) cacheBust(u string) string {
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%scb=%d", u, sep, a.now().UnixMilli())
}
