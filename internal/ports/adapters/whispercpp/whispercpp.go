package whispercpp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/forPelevin/promptcut/internal/types"
)

type Adapter struct {
	bin      string
	model    string
	language string
}

func New(binPath, modelPath, language string) *Adapter {
	if language == "" {
		language = "en"
	}
	return &Adapter{bin: binPath, model: modelPath, language: language}
}

// output mirrors the parts of whisper.cpp's -oj file we read.
type output struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

func (a *Adapter) Transcribe(ctx context.Context, wavPath, workDir string) (types.Transcript, error) {
	outPrefix := filepath.Join(workDir, "whisper")
	args := []string{
		"-m", a.model,
		"-f", wavPath,
		"-l", a.language,
		"-oj",
		"-of", outPrefix,
	}
	cmd := exec.CommandContext(ctx, a.bin, args...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return types.Transcript{}, fmt.Errorf("whisper.cpp failed: %w\n%s", err, string(b))
	}

	f, err := os.Open(outPrefix + ".json")
	if err != nil {
		return types.Transcript{}, fmt.Errorf("open whisper.cpp result: %w", err)
	}
	defer f.Close()
	return decode(f)
}

func decode(r io.Reader) (types.Transcript, error) {
	var out output
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return types.Transcript{}, fmt.Errorf("decode whisper.cpp json: %w", err)
	}

	tr := types.Transcript{
		Language: out.Result.Language,
		Segments: make([]types.Segment, 0, len(out.Transcription)),
	}
	for _, s := range out.Transcription {
		if s.Offsets.To <= s.Offsets.From || s.Offsets.From < 0 {
			continue
		}
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		tr.Segments = append(tr.Segments, types.Segment{
			Text:  text,
			Start: msToSeconds(s.Offsets.From),
			End:   msToSeconds(s.Offsets.To),
		})
	}
	return tr, nil
}

func msToSeconds(ms int64) float64 {
	f, _ := decimal.New(ms, -3).Float64()
	return f
}
