package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/forPelevin/promptcut/internal/ports"
	"github.com/forPelevin/promptcut/internal/types"
)

var ErrRender = errors.New("render failed")

// Composer cuts each interval out of the source and joins the cuts, in list
// order, into one file.
type Composer struct {
	Video ports.VideoTool
}

func (c Composer) Compose(
	ctx context.Context,
	src types.MediaHandle,
	ivs []types.Interval,
	workDir string,
	outPath string,
) (types.Rendered, error) {
	if len(ivs) == 0 {
		return types.Rendered{}, fmt.Errorf("%w: no intervals", ErrRender)
	}
	partsDir := filepath.Join(workDir, "parts")
	if err := os.MkdirAll(partsDir, 0o755); err != nil {
		return types.Rendered{}, fmt.Errorf("%w: %w", ErrRender, err)
	}

	parts := make([]string, 0, len(ivs))
	for i, iv := range ivs {
		p := filepath.Join(partsDir, fmt.Sprintf("%03d.mp4", i+1))
		if err := c.Video.RenderClip(ctx, src.Path, iv.Start, iv.End, p); err != nil {
			return types.Rendered{}, fmt.Errorf("%w: interval %d (%s..%s): %w", ErrRender, i+1, iv.Start, iv.End, err)
		}
		parts = append(parts, p)
	}

	if err := c.Video.Concat(ctx, parts, filepath.Join(workDir, "concat.txt"), outPath); err != nil {
		return types.Rendered{}, fmt.Errorf("%w: %w", ErrRender, err)
	}
	d, err := c.Video.ProbeDuration(ctx, outPath)
	if err != nil {
		return types.Rendered{}, fmt.Errorf("%w: probe output: %w", ErrRender, err)
	}
	return types.Rendered{Path: outPath, Duration: d}, nil
}
