// Package workflow implements the upload/transcription controller: file
// validation, the single in-flight upload, progress, result rendering and
// recovery after failures.
package workflow

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"transcriber-desk/internal/domain"
	"transcriber-desk/internal/jobs"
	"transcriber-desk/internal/render"
	"transcriber-desk/internal/transcribe"
)

// AllowedExtensions lists the accepted audio file extensions.
var AllowedExtensions = []string{".mp3", ".wav", ".m4a"}

// ErrNoFile is returned when submitting without a selected file.
var ErrNoFile = errors.New("no audio file selected")

// ErrUnsupportedFormat is returned for files outside AllowedExtensions.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// ErrClosed is returned when submitting after Close.
var ErrClosed = errors.New("workflow controller closed")

// Transcriber performs the remote transcription call.
type Transcriber interface {
	Transcribe(ctx context.Context, req transcribe.Request) (domain.TranscriptionResult, error)
}

// Notifier surfaces user-facing messages.
type Notifier interface {
	Notify(kind domain.NoticeKind, message string)
}

// Option configures a Controller.
type Option func(*Controller)

// WithLanguage sets the language hint sent with every upload.
func WithLanguage(language string) Option {
	return func(c *Controller) {
		c.language = strings.TrimSpace(language)
	}
}

// WithOnChange registers a callback receiving the view after each change.
func WithOnChange(fn func(render.WorkflowView)) Option {
	return func(c *Controller) {
		c.onChange = fn
	}
}

// WithIDGenerator overrides job ID generation.
func WithIDGenerator(fn func() string) Option {
	return func(c *Controller) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Controller owns the upload lifecycle. It is safe for concurrent use.
type Controller struct {
	jobs        *jobs.Manager
	transcriber Transcriber
	notifier    Notifier
	language    string
	newID       func() string
	onChange    func(render.WorkflowView)
	logger      *slog.Logger

	mu       sync.Mutex
	file     *domain.AudioFile
	progress render.Progress
	result   *domain.TranscriptionResult
	closed   bool
	inflight sync.WaitGroup

	// emitMu orders notices and pushed views; views are built while held.
	emitMu sync.Mutex
}

// New creates a controller in idle phase.
func New(transcriber Transcriber, notifier Notifier, opts ...Option) *Controller {
	c := &Controller{
		jobs:        jobs.NewManager(),
		transcriber: transcriber,
		notifier:    notifier,
		newID:       uuid.NewString,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetLanguage changes the language hint for subsequent uploads.
func (c *Controller) SetLanguage(language string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.language = strings.TrimSpace(language)
}

// ValidateFileName checks the case-insensitive extension allow-list.
func ValidateFileName(name string) error {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(name)))
	if !lo.Contains(AllowedExtensions, ext) {
		return ErrUnsupportedFormat
	}
	return nil
}

// SelectFile stores the candidate file. A file with an empty name clears it.
func (c *Controller) SelectFile(file domain.AudioFile) {
	c.mu.Lock()
	if strings.TrimSpace(file.Name) == "" {
		c.file = nil
	} else {
		c.file = &file
	}
	c.mu.Unlock()

	c.emit()
}

// Submit validates the selected file and starts the upload with model. The
// request runs in the background; validation failures and a second submit
// return immediately without touching the network.
func (c *Controller) Submit(ctx context.Context, model string) (domain.Job, error) {
	if current := c.jobs.Current(); current.Phase == domain.PhaseSubmitting {
		return domain.Job{}, jobs.ErrJobAlreadyRunning
	}

	c.mu.Lock()
	file := c.file
	c.mu.Unlock()

	if file == nil {
		c.notify(domain.NoticeValidation, render.MissingFileMessage)
		return domain.Job{}, ErrNoFile
	}
	if err := ValidateFileName(file.Name); err != nil {
		c.notify(domain.NoticeValidation, render.InvalidFormatMessage)
		return domain.Job{}, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.Job{}, ErrClosed
	}
	job, err := c.jobs.Start(c.newID(), *file, strings.TrimSpace(model))
	if err != nil {
		c.mu.Unlock()
		return domain.Job{}, err
	}
	c.result = nil
	c.progress = render.Progress{Percent: 50, Message: render.ProcessingMessage}
	c.inflight.Add(1)
	c.mu.Unlock()

	c.logger.Info("upload started", "job_id", job.ID, "file", job.File.Name, "model", job.Model)
	c.emit()

	go c.run(ctx, job)
	return job, nil
}

// Reset clears the file and result and returns to idle. A response still in
// flight is discarded when it arrives.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.resetLocked()
	c.mu.Unlock()

	c.emit()
}

// View renders the current state.
func (c *Controller) View() render.WorkflowView {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := render.WorkflowState{
		Phase:    c.jobs.Current().Phase,
		Progress: c.progress,
	}
	if c.file != nil {
		file := *c.file
		state.File = &file
	}
	if c.result != nil {
		result := *c.result
		state.Result = &result
	}
	return render.Workflow(state)
}

// Current returns the current job snapshot.
func (c *Controller) Current() domain.Job {
	return c.jobs.Current()
}

// Result returns the stored transcription result, if any.
func (c *Controller) Result() (domain.TranscriptionResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result == nil {
		return domain.TranscriptionResult{}, false
	}
	return *c.result, true
}

// Wait blocks until every started upload has completed.
func (c *Controller) Wait() {
	c.inflight.Wait()
}

// Close rejects further submits and waits for the upload in flight.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.inflight.Wait()
}

// run performs the request for job and applies its outcome when the job is
// still current.
func (c *Controller) run(ctx context.Context, job domain.Job) {
	defer c.inflight.Done()

	c.mu.Lock()
	language := c.language
	c.mu.Unlock()

	result, err := c.transcriber.Transcribe(ctx, transcribe.Request{
		File:     job.File,
		Model:    job.Model,
		Language: language,
	})
	if err != nil {
		c.fail(job, err)
		return
	}

	c.mu.Lock()
	if finishErr := c.jobs.Finish(job.Generation, domain.PhaseSucceeded); finishErr != nil {
		c.mu.Unlock()
		c.logger.Info("discarding superseded upload result", "job_id", job.ID, "err", finishErr)
		return
	}
	c.result = &result
	c.progress = render.Progress{Percent: 100, Message: render.CompletedMessage}
	c.mu.Unlock()

	c.logger.Info("upload completed",
		"job_id", job.ID,
		"processing_time", result.ProcessingTimeSeconds,
		"suggestions", len(result.Suggestions),
	)
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	if c.jobs.IsCurrent(job.Generation) {
		c.notify(domain.NoticeSuccess, render.CompletedMessage)
	}
	c.emitLocked()
}

// fail records the failure and performs the implicit reset.
func (c *Controller) fail(job domain.Job, err error) {
	c.mu.Lock()
	if finishErr := c.jobs.Finish(job.Generation, domain.PhaseFailed); finishErr != nil {
		c.mu.Unlock()
		c.logger.Info("discarding superseded upload failure", "job_id", job.ID, "err", err)
		return
	}
	c.resetLocked()
	c.mu.Unlock()

	c.logger.Error("upload failed", "job_id", job.ID, "err", err)

	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	c.notify(domain.NoticeError, render.UploadFailedMessage)
	c.emitLocked()
}

// resetLocked clears state and bumps the job generation. Caller holds c.mu.
func (c *Controller) resetLocked() {
	c.file = nil
	c.result = nil
	c.progress = render.Progress{}
	c.jobs.Reset()
}

func (c *Controller) notify(kind domain.NoticeKind, message string) {
	if c.notifier != nil {
		c.notifier.Notify(kind, message)
	}
}

func (c *Controller) emit() {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	c.emitLocked()
}

// emitLocked pushes the current view. Caller holds c.emitMu.
func (c *Controller) emitLocked() {
	if c.onChange != nil {
		c.onChange(c.View())
	}
}
