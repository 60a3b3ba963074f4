package cli

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "k")
	t.Setenv("OPENROUTER_BASE_URL", "")
	t.Setenv("OPENROUTER_ALLOWED_HOSTS", " proxy.internal , ,openrouter.ai")
	t.Setenv("OPENROUTER_MODEL", "")
	t.Setenv("PROMPTCUT_RETRIES", "2")
	t.Setenv("PROMPTCUT_REQUEST_TIMEOUT", "90s")
	t.Setenv("WHISPER_LANGUAGE", "")

	cfg, err := configFromEnv()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if cfg.Retries != 2 || cfg.RequestTimeout != 90*time.Second {
		t.Fatalf("unexpected retry settings %d/%s", cfg.Retries, cfg.RequestTimeout)
	}
	if cfg.OpenRouterModel != "openai/gpt-4o" || cfg.WhisperLanguage != "en" {
		t.Fatalf("unexpected defaults %q/%q", cfg.OpenRouterModel, cfg.WhisperLanguage)
	}
	if want := []string{"proxy.internal", "openrouter.ai"}; !reflect.DeepEqual(cfg.OpenRouterAllowedHosts, want) {
		t.Fatalf("unexpected allowed hosts %v", cfg.OpenRouterAllowedHosts)
	}
}

func TestConfigFromEnv_Errors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "missing api key",
			env:     map[string]string{"OPENROUTER_API_KEY": ""},
			wantErr: "OPENROUTER_API_KEY is required",
		},
		{
			name:    "bad retries",
			env:     map[string]string{"OPENROUTER_API_KEY": "k", "PROMPTCUT_RETRIES": "many"},
			wantErr: "PROMPTCUT_RETRIES",
		},
		{
			name:    "bad timeout",
			env:     map[string]string{"OPENROUTER_API_KEY": "k", "PROMPTCUT_REQUEST_TIMEOUT": "soon"},
			wantErr: "PROMPTCUT_REQUEST_TIMEOUT",
		},
		{
			name:    "plain http base url",
			env:     map[string]string{"OPENROUTER_API_KEY": "k", "OPENROUTER_BASE_URL": "http://openrouter.ai"},
			wantErr: "https is required",
		},
		{
			name:    "base url host not allowed",
			env:     map[string]string{"OPENROUTER_API_KEY": "k", "OPENROUTER_BASE_URL": "https://evil.example"},
			wantErr: "is not in OPENROUTER_ALLOWED_HOSTS",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("PROMPTCUT_RETRIES", "")
			t.Setenv("PROMPTCUT_REQUEST_TIMEOUT", "")
			t.Setenv("OPENROUTER_BASE_URL", "")
			t.Setenv("OPENROUTER_ALLOWED_HOSTS", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := configFromEnv()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestRootCmd_Args(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "clip without locator", args: []string{"clip", "--prompt", "x"}, wantErr: "accepts 1 arg(s), received 0"},
		{name: "clip too many args", args: []string{"clip", "a", "b", "--prompt", "x"}, wantErr: "accepts 1 arg(s), received 2"},
		{name: "clip without prompt", args: []string{"clip", "a"}, wantErr: `required flag(s) "prompt" not set`},
		{name: "unknown flag", args: []string{"clip", "a", "--wat"}, wantErr: "unknown flag: --wat"},
		{name: "serve with args", args: []string{"serve", "extra"}, wantErr: `unknown command "extra"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRootCmd()
			var buf bytes.Buffer
			cmd.SetOut(&buf)
			cmd.SetErr(&buf)
			cmd.SetArgs(tt.args)
			err := cmd.Execute()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
