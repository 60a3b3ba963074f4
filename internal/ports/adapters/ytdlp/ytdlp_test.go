package ytdlp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type fakeProber struct {
	d   time.Duration
	err error
}

func (f fakeProber) ProbeDuration(_ context.Context, _ string) (time.Duration, error) {
	return f.d, f.err
}

func TestAcquire_LocalFile(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "in.mp4")
	if err := os.WriteFile(src, []byte("video"), 0o644); err != nil {
		t.Fatalf("write src: %v", err)
	}
	ws := filepath.Join(tmp, "ws")
	if err := os.MkdirAll(ws, 0o755); err != nil {
		t.Fatalf("mkdir ws: %v", err)
	}

	for i, loc := range []string{src, "file://" + src} {
		dir := filepath.Join(ws, string(rune('a'+i)))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		a := New("", "", true, fakeProber{d: 40 * time.Second})
		h, err := a.Acquire(context.Background(), loc, dir)
		if err != nil {
			t.Fatalf("acquire %q: %v", loc, err)
		}
		if h.Path != filepath.Join(dir, "source.mp4") || h.Duration != 40*time.Second || h.Locator != loc {
			t.Fatalf("unexpected handle: %+v", h)
		}
		b, err := os.ReadFile(h.Path)
		if err != nil || string(b) != "video" {
			t.Fatalf("expected copied content, got %q (%v)", b, err)
		}
	}
}

func TestAcquire_ProbeFailure(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "in.mp4")
	if err := os.WriteFile(src, []byte("video"), 0o644); err != nil {
		t.Fatalf("write src: %v", err)
	}
	a := New("", "", true, fakeProber{err: errors.New("moov atom not found")})
	if _, err := a.Acquire(context.Background(), src, t.TempDir()); err == nil {
		t.Fatalf("expected probe error")
	}

	a = New("", "", true, fakeProber{d: 0})
	if _, err := a.Acquire(context.Background(), src, t.TempDir()); err == nil {
		t.Fatalf("expected zero-duration error")
	}
}

func TestAcquire_RejectsUnsupportedLocator(t *testing.T) {
	a := New("", "", true, fakeProber{d: time.Second})
	for _, loc := range []string{"ftp://example.com/v.mp4", "not a path", "/does/not/exist.mp4"} {
		if _, err := a.Acquire(context.Background(), loc, t.TempDir()); err == nil {
			t.Fatalf("expected error for %q", loc)
		}
	}
}

func TestAcquire_LocalSourcesDisabled(t *testing.T) {
	src := filepath.Join(t.TempDir(), "private.mp4")
	if err := os.WriteFile(src, []byte("video"), 0o644); err != nil {
		t.Fatalf("write src: %v", err)
	}
	a := New("", "", false, fakeProber{d: 40 * time.Second})
	for _, loc := range []string{src, "file://" + src} {
		dir := t.TempDir()
		_, err := a.Acquire(context.Background(), loc, dir)
		if err == nil || !strings.Contains(err.Error(), "unsupported source locator") {
			t.Fatalf("expected %q to be rejected, got %v", loc, err)
		}
		if _, err := os.Stat(filepath.Join(dir, "source.mp4")); !os.IsNotExist(err) {
			t.Fatalf("local file must not be copied, stat err=%v", err)
		}
	}
}

func TestLocalPath(t *testing.T) {
	if _, ok := localPath("https://www.youtube.com/watch?v=abc"); ok {
		t.Fatalf("remote URL must not be treated as local")
	}
	if p, ok := localPath("file:///tmp/x.mp4"); !ok || p != "/tmp/x.mp4" {
		t.Fatalf("unexpected file URL handling: %q %v", p, ok)
	}
}
