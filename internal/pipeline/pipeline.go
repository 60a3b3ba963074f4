package pipeline

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"lukechampine.com/blake3"

	"github.com/forPelevin/promptcut/internal/ports"
	"github.com/forPelevin/promptcut/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/promptcut/internal/ports/adapters/openrouter"
	"github.com/forPelevin/promptcut/internal/ports/adapters/whispercpp"
	"github.com/forPelevin/promptcut/internal/ports/adapters/ytdlp"
	"github.com/forPelevin/promptcut/internal/usecase"
)

type Config struct {
	// WorkDir is the root for per-request workspaces. If empty, defaults to
	// os.TempDir().
	WorkDir string

	FFmpegPath  string
	FFprobePath string

	YTDLPPath   string
	YTDLPFormat string
	// AllowLocalSources lets locators name local files. Only the CLI sets it;
	// the HTTP server must never read server-side files for a caller.
	AllowLocalSources bool

	WhisperBin      string
	WhisperModel    string
	WhisperLanguage string

	OpenRouterAPIKey       string
	OpenRouterModel        string
	OpenRouterBaseURL      string
	OpenRouterAllowedHosts []string

	// Retries applies to acquisition, transcription and inference only.
	Retries int
	// RequestTimeout bounds one whole request. Zero means no deadline.
	RequestTimeout time.Duration
}

func (c Config) Validate() error {
	if c.OpenRouterAPIKey == "" {
		return errors.New("OPENROUTER_API_KEY is required")
	}
	if c.WhisperModel == "" {
		return errors.New("whisper model path is required")
	}
	if c.Retries < 0 {
		return fmt.Errorf("retries must be >= 0")
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request timeout must be >= 0")
	}
	if c.WorkDir != "" {
		if fi, err := os.Stat(c.WorkDir); err == nil && !fi.IsDir() {
			return fmt.Errorf("work dir %s is not a directory", c.WorkDir)
		}
	}
	return openrouter.ValidateBaseURL(
		c.OpenRouterBaseURL,
		c.OpenRouterAllowedHosts,
	)
}

// Runner executes one request. Implemented by *Pipeline.
type Runner interface {
	Run(ctx context.Context, in usecase.Input) (usecase.Result, error)
}

type Pipeline struct {
	uc      usecase.Usecase
	timeout time.Duration
}

// New wires the real adapters. Adapters are stateless, so one Pipeline serves
// any number of concurrent requests.
func New(cfg Config, log logrus.FieldLogger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	workDir := cfg.WorkDir
	if workDir == "" {
		workDir = os.TempDir()
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}

	// adapters
	v := ffmpeg.New(cfg.FFmpegPath, cfg.FFprobePath)
	acq := ytdlp.New(cfg.YTDLPPath, cfg.YTDLPFormat, cfg.AllowLocalSources, v)
	asr := whispercpp.New(cfg.WhisperBin, cfg.WhisperModel, cfg.WhisperLanguage)
	llm := openrouter.New(cfg.OpenRouterAPIKey, cfg.OpenRouterModel, cfg.OpenRouterBaseURL)

	uc := usecase.New(usecase.Deps{
		Acquirer: acq,
		Video:    v,
		ASR:      asr,
		LLM:      llm,
		Log:      log,
	}, usecase.Options{
		WorkRoot: workDir,
		Retries:  cfg.Retries,
	})
	return &Pipeline{uc: uc, timeout: cfg.RequestTimeout}, nil
}

// Run applies the request timeout and assigns a job id when the caller did
// not.
func (p *Pipeline) Run(ctx context.Context, in usecase.Input) (usecase.Result, error) {
	if in.JobID == "" {
		in.JobID = NewJobID(in.Locator)
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	return p.uc.Run(ctx, in)
}

// NewJobID returns "<locator hash>-<random>". The hash groups logs for the
// same source; the random part keeps identical concurrent requests apart.
func NewJobID(locator string) string {
	id := uuid.New()
	return hash(strings.TrimSpace(locator)) + "-" + hex.EncodeToString(id[:6])
}

// BuildOutPath names a clip file for locator under outRoot.
func BuildOutPath(outRoot, locator string, now time.Time) string {
	name := strings.TrimSpace(locator)
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	name = filepath.Base(strings.TrimRight(name, "/"))
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = normalizePathSegment(name)
	if name == "" {
		name = "clip"
	}
	ts := now.UTC().Format("20060102-150405Z")
	runSeed := fmt.Sprintf("%s|%d", locator, now.UTC().UnixNano())
	suffix := hash(runSeed)[:6]
	return filepath.Join(outRoot, fmt.Sprintf("%s-%s-%s.mp4", name, ts, suffix))
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func hash(s string) string {
	sum := blake3.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}

// ensure adapters implement ports
var _ ports.Acquirer = (*ytdlp.Adapter)(nil)
var _ ports.VideoTool = (*ffmpeg.Adapter)(nil)
var _ ports.ASR = (*whispercpp.Adapter)(nil)
var _ ports.Inferer = (*openrouter.Adapter)(nil)
var _ ytdlp.Prober = (*ffmpeg.Adapter)(nil)
var _ Runner = (*Pipeline)(nil)
