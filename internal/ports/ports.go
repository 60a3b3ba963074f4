package ports

import (
	"context"
	"time"

	"github.com/forPelevin/promptcut/internal/types"
)

type Acquirer interface {
	Acquire(ctx context.Context, locator, dir string) (types.MediaHandle, error)
}

type VideoTool interface {
	ExtractAudioMono16k(ctx context.Context, inMP4, outWav string) error
	RenderClip(ctx context.Context, inMP4 string, start, end time.Duration, outMP4 string) error
	Concat(ctx context.Context, parts []string, listPath, outMP4 string) error
	ProbeDuration(ctx context.Context, inMP4 string) (time.Duration, error)
}

type ASR interface {
	Transcribe(ctx context.Context, wavPath, workDir string) (types.Transcript, error)
}

// Inferer returns the model's raw reply; callers own parsing it.
type Inferer interface {
	Infer(ctx context.Context, tr types.Transcript, instruction string) (string, error)
}
