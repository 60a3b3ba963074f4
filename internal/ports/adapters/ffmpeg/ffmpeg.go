package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Adapter struct {
	ffmpeg  string
	ffprobe string
}

func New(ffmpegPath, ffprobePath string) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Adapter{ffmpeg: ffmpegPath, ffprobe: ffprobePath}
}

// Every rendered part and the final output share one codec pair so the
// concat step never has to reconcile streams.
var encodeArgs = []string{
	"-c:v", "libx264",
	"-preset", "veryfast",
	"-crf", "18",
	"-pix_fmt", "yuv420p",
	"-c:a", "aac",
	"-b:a", "192k",
	"-ar", "48000",
}

func (a *Adapter) ExtractAudioMono16k(ctx context.Context, inMP4, outWav string) error {
	cmd := exec.CommandContext(ctx, a.ffmpeg,
		"-y",
		"-i", inMP4,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-f", "wav",
		outWav,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg extract audio: %w\n%s", err, tail(b))
	}
	return nil
}

func (a *Adapter) RenderClip(ctx context.Context, inMP4 string, start, end time.Duration, outMP4 string) error {
	if end <= start {
		return fmt.Errorf("ffmpeg render clip: empty range %s..%s", start, end)
	}
	args := []string{
		"-y",
		"-ss", fmtSeconds(start),
		"-to", fmtSeconds(end),
		"-i", inMP4,
		"-map", "0:v:0",
		"-map", "0:a:0?",
	}
	args = append(args, encodeArgs...)
	args = append(args, outMP4)
	cmd := exec.CommandContext(ctx, a.ffmpeg, args...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg render clip: %w\n%s", err, tail(b))
	}
	return nil
}

// Concat joins parts in the given order, writing the demuxer list to listPath.
func (a *Adapter) Concat(ctx context.Context, parts []string, listPath, outMP4 string) error {
	if len(parts) == 0 {
		return errors.New("ffmpeg concat: no parts")
	}
	list, err := concatList(parts)
	if err != nil {
		return err
	}
	if err := os.WriteFile(listPath, []byte(list), 0o644); err != nil {
		return fmt.Errorf("ffmpeg concat: write list: %w", err)
	}

	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
	}
	args = append(args, encodeArgs...)
	args = append(args, "-movflags", "+faststart", outMP4)
	cmd := exec.CommandContext(ctx, a.ffmpeg, args...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg concat: %w\n%s", err, tail(b))
	}
	return nil
}

func (a *Adapter) ProbeDuration(ctx context.Context, inMP4 string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, a.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		inMP4,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration: %w\n%s", err, tail(b))
	}
	return parseDuration(string(b))
}

func parseDuration(out string) (time.Duration, error) {
	s := strings.TrimSpace(out)
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	if sec <= 0 {
		return 0, fmt.Errorf("non-positive duration %q", s)
	}
	return time.Duration(sec * float64(time.Second)), nil
}

func concatList(parts []string) (string, error) {
	var b strings.Builder
	for _, p := range parts {
		abs, err := filepath.Abs(p)
		if err != nil {
			return "", fmt.Errorf("ffmpeg concat: %w", err)
		}
		// concat demuxer quoting: close the quote, emit an escaped quote, reopen.
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(abs, "'", `'\''`))
		b.WriteString("'\n")
	}
	return b.String(), nil
}

func fmtSeconds(d time.Duration) string {
	sec := float64(d) / float64(time.Second)
	return strconv.FormatFloat(sec, 'f', 3, 64)
}

// tail keeps the end of ffmpeg's output, where the actual error is printed.
func tail(b []byte) string {
	const limit = 2000
	if len(b) <= limit {
		return string(b)
	}
	return "..." + string(b[len(b)-limit:])
}
