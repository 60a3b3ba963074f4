package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/forPelevin/promptcut/internal/types"
)

const defaultFormat = "bestvideo+bestaudio/best"

// Prober reports a media file's duration.
type Prober interface {
	ProbeDuration(ctx context.Context, path string) (time.Duration, error)
}

type Adapter struct {
	bin        string
	format     string
	allowLocal bool
	probe      Prober
}

// New builds the acquirer. allowLocal enables local paths and file:// URLs;
// leave it off when locators come from remote callers.
func New(binPath, format string, allowLocal bool, probe Prober) *Adapter {
	if binPath == "" {
		binPath = "yt-dlp"
	}
	if format == "" {
		format = defaultFormat
	}
	return &Adapter{bin: binPath, format: format, allowLocal: allowLocal, probe: probe}
}

// Acquire materializes locator as dir/source.mp4. When local sources are
// allowed, local paths and file:// URLs are copied; http(s) URLs are handed to
// yt-dlp and anything else is rejected.
func (a *Adapter) Acquire(ctx context.Context, locator, dir string) (types.MediaHandle, error) {
	out := filepath.Join(dir, "source.mp4")

	if p, ok := a.local(locator); ok {
		if err := copyFile(p, out); err != nil {
			return types.MediaHandle{}, err
		}
	} else if err := a.download(ctx, locator, out); err != nil {
		return types.MediaHandle{}, err
	}

	d, err := a.probe.ProbeDuration(ctx, out)
	if err != nil {
		return types.MediaHandle{}, fmt.Errorf("probe acquired media: %w", err)
	}
	if d <= 0 {
		return types.MediaHandle{}, fmt.Errorf("acquired media has no duration (%s)", d)
	}
	return types.MediaHandle{Locator: locator, Path: out, Duration: d}, nil
}

func (a *Adapter) download(ctx context.Context, locator, out string) error {
	u, err := url.Parse(locator)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("unsupported source locator %q", locator)
	}
	cmd := exec.CommandContext(ctx, a.bin,
		"--no-playlist",
		"--no-progress",
		"-f", a.format,
		"--merge-output-format", "mp4",
		"-o", out,
		locator,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("yt-dlp: %w\n%s", err, string(b))
	}
	if _, err := os.Stat(out); err != nil {
		return fmt.Errorf("yt-dlp produced no file: %w", err)
	}
	return nil
}

func (a *Adapter) local(locator string) (string, bool) {
	if !a.allowLocal {
		return "", false
	}
	return localPath(locator)
}

func localPath(locator string) (string, bool) {
	if strings.HasPrefix(locator, "file://") {
		u, err := url.Parse(locator)
		if err != nil || u.Path == "" {
			return "", false
		}
		return u.Path, true
	}
	if strings.Contains(locator, "://") {
		return "", false
	}
	if fi, err := os.Stat(locator); err == nil && !fi.IsDir() {
		return locator, true
	}
	return "", false
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create source copy: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		return errors.Join(fmt.Errorf("copy source: %w", err), out.Close())
	}
	return out.Close()
}
