package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/forPelevin/promptcut/internal/domain/intervals"
	"github.com/forPelevin/promptcut/internal/ports"
	"github.com/forPelevin/promptcut/internal/types"
)

type Deps struct {
	Acquirer ports.Acquirer
	Video    ports.VideoTool
	ASR      ports.ASR
	LLM      ports.Inferer
	Log      logrus.FieldLogger
}

type Options struct {
	// WorkRoot is where per-request workspaces are created. Empty means
	// os.TempDir().
	WorkRoot string
	// Retries is the number of extra attempts for acquisition, transcription
	// and inference calls. Core stages are never retried.
	Retries int
}

type Usecase struct {
	d          Deps
	opts       Options
	newBackOff func() backoff.BackOff
}

func New(d Deps, opts Options) Usecase {
	if d.Log == nil {
		d.Log = logrus.New()
	}
	return Usecase{d: d, opts: opts, newBackOff: defaultBackOff}
}

type Input struct {
	// JobID names the workspace and tags logs. Generated when empty.
	JobID       string
	Locator     string
	Instruction string
	// OnStage, if set, observes every state transition.
	OnStage func(Stage)
}

type Result struct {
	JobID     string
	Intervals []types.Interval
	Output    types.Rendered

	workspace string
}

// Release removes the request workspace, output included. Callers must call
// it once they are done with Output.
func (r Result) Release() error {
	if r.workspace == "" {
		return nil
	}
	return os.RemoveAll(r.workspace)
}

type run struct {
	log     logrus.FieldLogger
	onStage func(Stage)
	stage   Stage
}

func (r *run) enter(s Stage) {
	r.stage = s
	r.log.WithField("stage", s).Debug("stage")
	if r.onStage != nil {
		r.onStage(s)
	}
}

func (r *run) fail(reason Reason, err error) error {
	f := &Failure{Stage: r.stage, Reason: reason, Err: err}
	r.log.WithFields(logrus.Fields{
		"stage":  f.Stage,
		"reason": f.Reason,
	}).WithError(err).Warn("pipeline failed")
	if r.onStage != nil {
		r.onStage(StageFailed)
	}
	return f
}

// Run drives one request through acquire, transcribe, infer, extract,
// validate and compose. Stages run strictly in sequence and the first error
// ends the request with a *Failure. Temporary files are removed on every
// path; on success only the output survives, until Result.Release.
func (u Usecase) Run(ctx context.Context, in Input) (res Result, err error) {
	jobID := in.JobID
	if jobID == "" {
		jobID = uuid.NewString()
	}
	r := &run{log: u.d.Log.WithField("job_id", jobID), onStage: in.OnStage}

	r.enter(StageReceived)
	locator := strings.TrimSpace(in.Locator)
	instruction := strings.TrimSpace(in.Instruction)
	if locator == "" || instruction == "" {
		return Result{}, r.fail(ReasonMissingInput, ErrMissingInput)
	}
	r.log.WithField("locator", locator).Info("request received")

	r.enter(StageAcquiring)
	ws, err := os.MkdirTemp(u.opts.WorkRoot, "job-"+jobID+"-")
	if err != nil {
		return Result{}, r.fail(ReasonAcquisition, fmt.Errorf("create workspace: %w", err))
	}
	work := filepath.Join(ws, "work")
	defer func() {
		if rmErr := os.RemoveAll(work); rmErr != nil {
			r.log.WithError(rmErr).Warn("remove intermediates")
		}
		if err != nil {
			if rmErr := os.RemoveAll(ws); rmErr != nil {
				r.log.WithError(rmErr).Warn("remove workspace")
			}
		}
	}()
	if err := os.MkdirAll(work, 0o755); err != nil {
		return Result{}, r.fail(ReasonAcquisition, fmt.Errorf("create workspace: %w", err))
	}

	media, err := callCollaborator(ctx, u.newBackOff, u.opts.Retries, r.log, "acquire", func() (types.MediaHandle, error) {
		return u.d.Acquirer.Acquire(ctx, locator, work)
	})
	if err != nil {
		return Result{}, r.fail(ReasonAcquisition, err)
	}
	r.log.WithField("duration", media.Duration.String()).Info("source acquired")

	r.enter(StageTranscribing)
	wav := filepath.Join(work, "audio.wav")
	tr, err := callCollaborator(ctx, u.newBackOff, u.opts.Retries, r.log, "transcribe", func() (types.Transcript, error) {
		if err := u.d.Video.ExtractAudioMono16k(ctx, media.Path, wav); err != nil {
			return types.Transcript{}, err
		}
		return u.d.ASR.Transcribe(ctx, wav, work)
	})
	if err != nil {
		return Result{}, r.fail(ReasonTranscription, err)
	}
	r.log.WithField("segments", len(tr.Segments)).Info("transcribed")

	r.enter(StageInferring)
	raw, err := callCollaborator(ctx, u.newBackOff, u.opts.Retries, r.log, "infer", func() (string, error) {
		return u.d.LLM.Infer(ctx, tr, instruction)
	})
	if err != nil {
		return Result{}, r.fail(ReasonInference, err)
	}
	r.log.WithField("response", raw).Debug("model response")

	r.enter(StageExtracting)
	ivs, err := intervals.Extract(raw)
	if err != nil {
		return Result{}, r.fail(ReasonExtraction, err)
	}

	r.enter(StageValidating)
	ivs, err = intervals.Normalize(ivs, media.Duration)
	if err != nil {
		return Result{}, r.fail(ReasonNoValidIntervals, err)
	}
	r.log.WithField("intervals", len(ivs)).Info("intervals selected")

	r.enter(StageComposing)
	out, err := Composer{Video: u.d.Video}.Compose(ctx, media, ivs, work, filepath.Join(ws, "output.mp4"))
	if err != nil {
		return Result{}, r.fail(ReasonRender, err)
	}

	r.enter(StageDone)
	r.log.WithFields(logrus.Fields{
		"output":   out.Path,
		"duration": out.Duration.String(),
	}).Info("clip rendered")
	return Result{JobID: jobID, Intervals: ivs, Output: out, workspace: ws}, nil
}
