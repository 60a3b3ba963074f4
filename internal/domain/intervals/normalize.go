package intervals

import (
	"fmt"
	"time"

	"github.com/forPelevin/promptcut/internal/types"
)

// Normalize clamps intervals into [0, total] and drops the ones that collapse.
// Order is kept and overlaps are left alone: the list order is the render
// order and repeated footage is allowed.
func Normalize(ivs []types.Interval, total time.Duration) ([]types.Interval, error) {
	if total <= 0 {
		return nil, fmt.Errorf("%w: media duration %s", ErrNoValidIntervals, total)
	}
	out := make([]types.Interval, 0, len(ivs))
	for _, iv := range ivs {
		st, en := iv.Start, iv.End
		if st < 0 {
			st = 0
		}
		if st >= total {
			continue
		}
		if en > total {
			en = total
		}
		if en <= st {
			continue
		}
		out = append(out, types.Interval{Start: st, End: en})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: none of %d intervals fall inside %s", ErrNoValidIntervals, len(ivs), total)
	}
	return out, nil
}
