package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/forPelevin/promptcut/internal/logger"
	"github.com/forPelevin/promptcut/internal/pipeline"
	"github.com/forPelevin/promptcut/internal/server"
	"github.com/forPelevin/promptcut/internal/usecase"
)

const shutdownGrace = 30 * time.Second

func runServe(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("addr")

	cfg, err := configFromEnv()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := logger.New()
	p, err := pipeline.New(cfg, log)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.NewHTTPServer(addr, server.New(p, log, os.Getenv("CORS_ORIGIN")).Handler())
	return server.ListenAndServe(ctx, srv, log, shutdownGrace)
}

func runClip(cmd *cobra.Command, locator string) error {
	prompt, _ := cmd.Flags().GetString("prompt")
	out, _ := cmd.Flags().GetString("out")

	cfg, err := configFromEnv()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	cfg.AllowLocalSources = true
	log := logger.New()
	p, err := pipeline.New(cfg, log)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if abs, err := filepath.Abs(locator); err == nil {
		if _, statErr := os.Stat(abs); statErr == nil {
			locator = abs
		}
	}
	if out == "" {
		out = pipeline.BuildOutPath("out", locator, time.Now())
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := p.Run(ctx, usecase.Input{Locator: locator, Instruction: prompt})
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Release(); err != nil {
			log.WithError(err).Warn("release workspace")
		}
	}()

	if err := copyOutput(res.Output.Path, out); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%d intervals, %s)\n", out, len(res.Intervals), res.Output.Duration.Round(time.Millisecond))
	return nil
}

func configFromEnv() (pipeline.Config, error) {
	apiKey := os.Getenv("OPENROUTER_API_KEY")
	if apiKey == "" {
		return pipeline.Config{}, errors.New("OPENROUTER_API_KEY is required (set it in .env)")
	}

	retries, err := strconv.Atoi(getenvDefault("PROMPTCUT_RETRIES", "0"))
	if err != nil {
		return pipeline.Config{}, fmt.Errorf("PROMPTCUT_RETRIES: %w", err)
	}
	timeout, err := time.ParseDuration(getenvDefault("PROMPTCUT_REQUEST_TIMEOUT", "30m"))
	if err != nil {
		return pipeline.Config{}, fmt.Errorf("PROMPTCUT_REQUEST_TIMEOUT: %w", err)
	}

	cfg := pipeline.Config{
		WorkDir: os.Getenv("PROMPTCUT_WORK_DIR"),

		FFmpegPath:  getenvDefault("FFMPEG_PATH", "ffmpeg"),
		FFprobePath: getenvDefault("FFPROBE_PATH", "ffprobe"),

		YTDLPPath: getenvDefault("YTDLP_PATH", "yt-dlp"),

		WhisperBin:      getenvDefault("WHISPER_BIN", ".cache/bin/whisper.cpp"),
		WhisperModel:    getenvDefault("WHISPER_MODEL", ".cache/models/ggml-base.bin"),
		WhisperLanguage: getenvDefault("WHISPER_LANGUAGE", "en"),

		OpenRouterAPIKey:       apiKey,
		OpenRouterModel:        getenvDefault("OPENROUTER_MODEL", "openai/gpt-4o"),
		OpenRouterBaseURL:      getenvDefault("OPENROUTER_BASE_URL", "https://openrouter.ai"),
		OpenRouterAllowedHosts: splitList(os.Getenv("OPENROUTER_ALLOWED_HOSTS")),

		Retries:        retries,
		RequestTimeout: timeout,
	}
	return cfg, cfg.Validate()
}

func copyOutput(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
