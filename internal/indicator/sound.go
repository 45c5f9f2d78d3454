package indicator

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jfreymuth/pulse"
	"github.com/rbright/listend/internal/config"
)

type cueKind int

const (
	cueStart cueKind = iota + 1
	cueStop
	cueComplete
	cueError
)

func (k cueKind) String() string {
	switch k {
	case cueStart:
		return "start"
	case cueStop:
		return "stop"
	case cueComplete:
		return "complete"
	case cueError:
		return "error"
	default:
		return fmt.Sprintf("cue(%d)", int(k))
	}
}

// cuePlayer emits one cue; tests swap it out.
type cuePlayer func(context.Context, cueKind, config.IndicatorConfig) error

const (
	cueRate   = 16000
	cueVolume = 0.18
	cueGap    = 22 * time.Millisecond
	cueFade   = 5 * time.Millisecond
)

type tone struct {
	hz  float64
	dur time.Duration
}

// cueTones is the fallback melody for each cue when no sound file is configured.
var cueTones = map[cueKind][]tone{
	cueStart:    {{880, 70 * time.Millisecond}, {1175, 70 * time.Millisecond}},
	cueStop:     {{620, 120 * time.Millisecond}},
	cueComplete: {{740, 65 * time.Millisecond}, {988, 90 * time.Millisecond}},
	cueError:    {{480, 75 * time.Millisecond}, {360, 90 * time.Millisecond}},
}

var renderedCues = sync.OnceValue(func() map[cueKind][]int16 {
	out := make(map[cueKind][]int16, len(cueTones))
	for kind, tones := range cueTones {
		out[kind] = renderMelody(tones)
	}
	return out
})

func cuePCM(kind cueKind) []int16 {
	return renderedCues()[kind]
}

// emitCue plays the configured sound file for kind. The synthesized melody is used
// when no file is set or the file fails to play.
func emitCue(ctx context.Context, kind cueKind, cfg config.IndicatorConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if path := cueFile(kind, cfg); path != "" && playFile(ctx, path) == nil {
		return nil
	}
	pcm := cuePCM(kind)
	if len(pcm) == 0 {
		return nil
	}
	return playPCM(ctx, kind, pcm)
}

func cueFile(kind cueKind, cfg config.IndicatorConfig) string {
	files := map[cueKind]string{
		cueStart:    cfg.SoundStartFile,
		cueStop:     cfg.SoundStopFile,
		cueComplete: cfg.SoundCompleteFile,
		cueError:    cfg.SoundErrorFile,
	}
	return expandHome(files[kind])
}

// expandHome resolves a leading ~ against the user's home directory.
func expandHome(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw != "~" && !strings.HasPrefix(raw, "~/") {
		return raw
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return raw
	}
	return filepath.Join(home, strings.TrimPrefix(raw[1:], "/"))
}

func playFile(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("stat cue file %q: %w", path, err)
	}
	if err := exec.CommandContext(ctx, "pw-play", "--media-role", "Notification", path).Run(); err != nil {
		return fmt.Errorf("play cue file %q: %w", path, err)
	}
	return nil
}

// pcmReader feeds a fixed buffer to a pulse playback stream.
type pcmReader struct {
	pcm []int16
	pos int
}

func (r *pcmReader) read(buf []int16) (int, error) {
	n := copy(buf, r.pcm[r.pos:])
	r.pos += n
	if r.pos >= len(r.pcm) {
		return n, pulse.EndOfData
	}
	return n, nil
}

func playPCM(ctx context.Context, kind cueKind, pcm []int16) error {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("listend"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	src := &pcmReader{pcm: pcm}
	stream, err := client.NewPlayback(
		pulse.Int16Reader(src.read),
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(cueRate),
		pulse.PlaybackLatency(0.02),
		pulse.PlaybackMediaName("listend "+kind.String()+" cue"),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	if err := ctx.Err(); err != nil {
		return err
	}
	stream.Start()
	stream.Drain()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play %s cue: %w", kind, err)
	}
	return nil
}

// renderMelody concatenates tones with a short silence between them.
func renderMelody(tones []tone) []int16 {
	var pcm []int16
	gap := sampleCount(cueGap)
	for i, t := range tones {
		if i > 0 {
			pcm = append(pcm, make([]int16, gap)...)
		}
		pcm = append(pcm, renderTone(t, cueVolume)...)
	}
	return pcm
}

// renderTone produces a sine tone with raised-cosine fades at both ends to avoid clicks.
func renderTone(t tone, volume float64) []int16 {
	n := sampleCount(t.dur)
	if n == 0 || t.hz <= 0 || volume <= 0 {
		return nil
	}
	fade := min(sampleCount(cueFade), n/10)
	fade = max(fade, 1)

	pcm := make([]int16, n)
	step := 2 * math.Pi * t.hz / cueRate
	for i := range pcm {
		gain := volume
		if edge := min(i, n-1-i); edge < fade {
			gain *= 0.5 - 0.5*math.Cos(math.Pi*float64(edge)/float64(fade))
		}
		pcm[i] = int16(math.Round(math.Sin(step*float64(i)) * gain * math.MaxInt16))
	}
	return pcm
}

func sampleCount(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * cueRate))
}
