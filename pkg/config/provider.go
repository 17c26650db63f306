package config

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"recallgo/pkg/store"
)

// Provider defines the interface for accessing unified configuration.
type Provider interface {
	// AutoPlayAudio reports whether cards should be narrated automatically.
	AutoPlayAudio(ctx context.Context) bool
	// AutoplayDelay returns the gap after each narration step.
	AutoplayDelay(ctx context.Context) time.Duration
	// Volume returns the playback volume (0.0 to 1.0).
	Volume(ctx context.Context) float64

	SetAutoPlayAudio(ctx context.Context, enabled bool) error
	SetAutoplayDelay(ctx context.Context, delay time.Duration) error
	SetVolume(ctx context.Context, vol float64) error

	// AppConfig returns the raw static configuration.
	AppConfig() *Config
}

// autoplaySettings is the persisted JSON under KeyAutoplaySettings.
type autoplaySettings struct {
	DelaySeconds float64 `json:"delaySeconds"`
}

// UnifiedProvider implements Provider by bridging static Config and the
// persistent state store. Store values win over the config file.
type UnifiedProvider struct {
	base  *Config
	store store.StateStore
}

// NewProvider creates a new UnifiedProvider.
func NewProvider(base *Config, st store.StateStore) *UnifiedProvider {
	return &UnifiedProvider{
		base:  base,
		store: st,
	}
}

func (p *UnifiedProvider) AppConfig() *Config { return p.base }

func (p *UnifiedProvider) AutoPlayAudio(ctx context.Context) bool {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, KeyAutoPlayAudio); ok {
			b, err := strconv.ParseBool(val)
			if err == nil {
				return b
			}
			slog.Warn("Config: Invalid stored autoplay flag", "value", val, "error", err)
		}
	}
	return p.base.Autoplay.Enabled
}

func (p *UnifiedProvider) AutoplayDelay(ctx context.Context) time.Duration {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, KeyAutoplaySettings); ok {
			var s autoplaySettings
			if err := json.Unmarshal([]byte(val), &s); err == nil && s.DelaySeconds >= 0 {
				return time.Duration(s.DelaySeconds * float64(time.Second))
			}
			slog.Warn("Config: Invalid stored autoplay settings", "value", val)
		}
	}
	return time.Duration(p.base.Autoplay.Delay)
}

func (p *UnifiedProvider) Volume(ctx context.Context) float64 {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, KeyVolume); ok {
			if f, err := strconv.ParseFloat(val, 64); err == nil && f >= 0 && f <= 1 {
				return f
			}
		}
	}
	return p.base.Audio.Volume
}

func (p *UnifiedProvider) SetAutoPlayAudio(ctx context.Context, enabled bool) error {
	if p.store == nil {
		return nil
	}
	return p.store.SetState(ctx, KeyAutoPlayAudio, strconv.FormatBool(enabled))
}

func (p *UnifiedProvider) SetAutoplayDelay(ctx context.Context, delay time.Duration) error {
	if p.store == nil {
		return nil
	}
	data, err := json.Marshal(autoplaySettings{DelaySeconds: delay.Seconds()})
	if err != nil {
		return err
	}
	return p.store.SetState(ctx, KeyAutoplaySettings, string(data))
}

func (p *UnifiedProvider) SetVolume(ctx context.Context, vol float64) error {
	if p.store == nil {
		return nil
	}
	return p.store.SetState(ctx, KeyVolume, strconv.FormatFloat(vol, 'f', 2, 64))
}
