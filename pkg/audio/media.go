package audio

import (
	"log/slog"
	"os"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"
)

// decodeFile opens and decodes a recording, trying MP3 first and falling
// back to WAV. The server usually serves MP3 but synthesized clips from
// some voices arrive as WAV.
func decodeFile(path string) (beep.StreamSeekCloser, beep.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		slog.Error("Audio: Failed to open recording", "path", path, "error", err)
		return nil, beep.Format{}, err
	}

	streamer, format, err := mp3.Decode(f)
	if err == nil {
		return streamer, format, nil
	}

	// Reopen for the WAV attempt; a failed MP3 decode leaves the reader
	// position undefined.
	f.Close()
	f, err = os.Open(path)
	if err != nil {
		return nil, beep.Format{}, err
	}

	streamer, format, err = wav.Decode(f)
	if err != nil {
		f.Close()
		slog.Error("Audio: Failed to decode recording", "path", path, "error", err)
		return nil, beep.Format{}, err
	}

	return streamer, format, nil
}
