package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/forPelevin/promptcut/internal/logger"
	"github.com/forPelevin/promptcut/internal/pipeline"
	"github.com/forPelevin/promptcut/internal/usecase"
)

// maxBodyBytes caps the JSON request body.
const maxBodyBytes = 1 << 20

type Server struct {
	runner     pipeline.Runner
	log        *logger.Logger
	corsOrigin string
}

func New(runner pipeline.Runner, log *logger.Logger, corsOrigin string) *Server {
	if corsOrigin == "" {
		corsOrigin = "*"
	}
	return &Server{runner: runner, log: log, corsOrigin: corsOrigin}
}

// clipRequest accepts both the current field names and the older
// youtube_url/user_prompt ones.
type clipRequest struct {
	SourceLocator string `json:"source_locator"`
	Instruction   string `json:"instruction"`
	YoutubeURL    string `json:"youtube_url"`
	UserPrompt    string `json:"user_prompt"`
}

func (r clipRequest) locator() string {
	if r.SourceLocator != "" {
		return r.SourceLocator
	}
	return r.YoutubeURL
}

func (r clipRequest) instruction() string {
	if r.Instruction != "" {
		return r.Instruction
	}
	return r.UserPrompt
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
	Stage  string `json:"stage"`
	JobID  string `json:"job_id,omitempty"`
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// health
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		s.log.WithRequest(r).Debug("health check")
		fmt.Fprint(w, "ok")
	})
	mux.HandleFunc("/clip", s.handleClip)

	return s.cors(mux)
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", s.corsOrigin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		h.Set("Access-Control-Expose-Headers", "Content-Disposition, X-Job-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleClip(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "clip")
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST, OPTIONS")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req clipRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		reqLog.WithError(err).Warn("malformed request body")
		writeError(w, reqLog, http.StatusBadRequest, errorResponse{
			Error:  "malformed JSON body",
			Reason: string(usecase.ReasonMissingInput),
			Stage:  string(usecase.StageReceived),
		})
		return
	}

	jobID := pipeline.NewJobID(req.locator())
	reqLog = reqLog.WithField("job_id", jobID)
	reqLog.Info("clip request received")

	// A disconnecting client does not abort a running pipeline; the
	// configured request timeout still applies.
	ctx := context.WithoutCancel(r.Context())

	start := time.Now()
	res, err := s.runner.Run(ctx, usecase.Input{
		JobID:       jobID,
		Locator:     req.locator(),
		Instruction: req.instruction(),
	})
	reqLog = reqLog.WithField("duration_ms", time.Since(start).Milliseconds())
	if err != nil {
		status, body := failureResponse(err)
		body.JobID = jobID
		reqLog.WithError(err).WithField("reason", body.Reason).Warn("clip request failed")
		writeError(w, reqLog, status, body)
		return
	}
	defer func() {
		if err := res.Release(); err != nil {
			reqLog.WithError(err).Warn("release workspace")
		}
	}()

	f, err := os.Open(res.Output.Path)
	if err != nil {
		reqLog.WithError(err).Error("open output")
		writeError(w, reqLog, http.StatusInternalServerError, errorResponse{
			Error:  "open rendered output",
			Reason: string(usecase.ReasonRender),
			Stage:  string(usecase.StageComposing),
			JobID:  jobID,
		})
		return
	}
	defer f.Close()

	h := w.Header()
	h.Set("Content-Type", "video/mp4")
	h.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="clip-%s.mp4"`, jobID))
	h.Set("X-Job-ID", jobID)
	if fi, err := f.Stat(); err == nil {
		h.Set("Content-Length", fmt.Sprint(fi.Size()))
	}
	w.WriteHeader(http.StatusOK)
	n, err := io.Copy(w, f)
	if err != nil {
		reqLog.WithError(err).Warn("stream output")
		return
	}
	reqLog.WithFields(logrus.Fields{
		"intervals": len(res.Intervals),
		"bytes":     n,
	}).Info("clip delivered")
}

// statusFor maps a failure reason to the HTTP status reported to the caller.
var statusFor = map[usecase.Reason]int{
	usecase.ReasonMissingInput:     http.StatusBadRequest,
	usecase.ReasonAcquisition:      http.StatusFailedDependency,
	usecase.ReasonTranscription:    http.StatusServiceUnavailable,
	usecase.ReasonInference:        http.StatusBadGateway,
	usecase.ReasonExtraction:       http.StatusUnprocessableEntity,
	usecase.ReasonNoValidIntervals: http.StatusRequestedRangeNotSatisfiable,
	usecase.ReasonRender:           http.StatusInternalServerError,
}

// messageFor is the client-facing text per reason. Failure.Err may hold model
// output or tool stderr and is only logged.
var messageFor = map[usecase.Reason]string{
	usecase.ReasonMissingInput:     "source_locator and instruction are required",
	usecase.ReasonAcquisition:      "could not fetch the source video",
	usecase.ReasonTranscription:    "could not transcribe the source audio",
	usecase.ReasonInference:        "the language model request failed",
	usecase.ReasonExtraction:       "the language model reply held no usable intervals",
	usecase.ReasonNoValidIntervals: "no selected interval lies within the video",
	usecase.ReasonRender:           "could not render the clip",
}

func failureResponse(err error) (int, errorResponse) {
	f, ok := usecase.AsFailure(err)
	if !ok {
		return http.StatusInternalServerError, errorResponse{
			Error:  "internal error",
			Reason: "internal_error",
			Stage:  string(usecase.StageFailed),
		}
	}
	status, ok := statusFor[f.Reason]
	if !ok {
		status = http.StatusInternalServerError
	}
	msg, ok := messageFor[f.Reason]
	if !ok {
		msg = "internal error"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		msg = "request timed out: " + msg
	}
	return status, errorResponse{
		Error:  msg,
		Reason: string(f.Reason),
		Stage:  string(f.Stage),
	}
}

func writeError(w http.ResponseWriter, log *logrus.Entry, status int, body errorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Error("failed to write response")
	}
}

// ListenAndServe runs srv until ctx is done, then shuts it down gracefully.
func ListenAndServe(ctx context.Context, srv *http.Server, log *logger.Logger, grace time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// NewHTTPServer sets read and idle timeouts. No WriteTimeout: the pipeline can
// run for minutes before the first byte is written.
func NewHTTPServer(addr string, h http.Handler) *http.Server {
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
