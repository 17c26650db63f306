package recovery

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"recallgo/pkg/model"
)

type fakeRegenerator struct {
	calls int
	url   string
	err   error
}

func (f *fakeRegenerator) RegenerateAudio(_ context.Context, itemID string, side model.Side, text string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

func TestOnPlaybackError_RepairsOnce(t *testing.T) {
	regen := &fakeRegenerator{url: "/media/fresh.mp3"}
	agent := NewAgent(regen, nil)
	agent.now = func() time.Time { return time.UnixMilli(1700000000000) }

	asset := model.NewAudioAsset("bonjour", "/media/broken.mp3")

	if !agent.OnPlaybackError(context.Background(), asset, "i1", model.SideFront) {
		t.Fatal("first error should repair the asset")
	}
	if regen.calls != 1 {
		t.Errorf("regenerate called %d times, want 1", regen.calls)
	}
	want := "/media/fresh.mp3?cb=1700000000000"
	if asset.Source() != want {
		t.Errorf("source = %q, want %q", asset.Source(), want)
	}
	if !asset.WasRetried() {
		t.Error("asset should be marked retried")
	}
}

func TestOnPlaybackError_AtMostOneRequest(t *testing.T) {
	regen := &fakeRegenerator{url: "/media/fresh.mp3"}
	agent := NewAgent(regen, nil)

	asset := model.NewAudioAsset("bonjour", "/media/broken.mp3")

	agent.OnPlaybackError(context.Background(), asset, "i1", model.SideFront)
	// The element re-fires its error event; no second outbound request.
	for i := 0; i < 3; i++ {
		if agent.OnPlaybackError(context.Background(), asset, "i1", model.SideFront) {
			t.Error("repeated error events must not repair again")
		}
	}
	if regen.calls != 1 {
		t.Errorf("regenerate called %d times, want exactly 1", regen.calls)
	}
}

func TestOnPlaybackError_EmptyTextNoOp(t *testing.T) {
	regen := &fakeRegenerator{}
	agent := NewAgent(regen, nil)

	asset := model.NewAudioAsset("", "/media/broken.mp3")

	if agent.OnPlaybackError(context.Background(), asset, "i1", model.SideFront) {
		t.Error("empty content text should be a no-op")
	}
	if regen.calls != 0 {
		t.Errorf("regenerate called %d times, want 0", regen.calls)
	}
	if asset.WasRetried() {
		t.Error("no-op must not consume the retry budget")
	}
}

func TestOnPlaybackError_FailureLeavesAssetBroken(t *testing.T) {
	regen := &fakeRegenerator{err: fmt.Errorf("server error")}
	agent := NewAgent(regen, nil)

	asset := model.NewAudioAsset("bonjour", "/media/broken.mp3")

	if agent.OnPlaybackError(context.Background(), asset, "i1", model.SideBack) {
		t.Error("failed resynthesis should report no repair")
	}
	if asset.Source() != "/media/broken.mp3" {
		t.Errorf("source = %q, should be unchanged", asset.Source())
	}
	// Budget is spent even on failure: no further attempts this session.
	if regen.calls != 1 {
		t.Fatalf("regenerate called %d times", regen.calls)
	}
	agent.OnPlaybackError(context.Background(), asset, "i1", model.SideBack)
	if regen.calls != 1 {
		t.Error("second error after failed repair must not issue another request")
	}
}

func TestOnPlaybackError_NilAsset(t *testing.T) {
	agent := NewAgent(&fakeRegenerator{}, nil)
	if agent.OnPlaybackError(context.Background(), nil, "i1", model.SideFront) {
		t.Error("nil asset should be a no-op")
	}
}

func TestCacheBust_ExistingQuery(t *testing.T) {
	agent := NewAgent(&fakeRegenerator{url: "/m.mp3?v=2"}, nil)
	agent.now = func() time.Time { return time.UnixMilli(42) }

	asset := model.NewAudioAsset("text", "/broken.mp3")
	agent.OnPlaybackError(context.Background(), asset, "i1", model.SideFront)

	if !strings.HasSuffix(asset.Source(), "?v=2&cb=42") {
		t.Errorf("source = %q, want & separator for existing query", asset.Source())
	}
}

func TestOnPlaybackError_ResolvesRelativeURL(t *testing.T) {
	regen := &fakeRegenerator{url: "/media/fresh.mp3"}
	agent := NewAgent(regen, func(s string) string { return "http://study.local" + s })
	agent.now = func() time.Time { return time.UnixMilli(7) }

	asset := model.NewAudioAsset("text", "/broken.mp3")
	agent.OnPlaybackError(context.Background(), asset, "i1", model.SideFront)

	if asset.Source() != "http://study.local/media/fresh.mp3?cb=7" {
		t.Errorf("source = %q", asset.Source())
	}
}
