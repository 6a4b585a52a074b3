package bootstrap

import (
	"context"
	"sync"
	"time"

	"transcriber-desk/internal/domain"
	"transcriber-desk/internal/transcribe"
)

// Backend is the transcription service surface the app depends on.
type Backend interface {
	Transcribe(ctx context.Context, req transcribe.Request) (domain.TranscriptionResult, error)
	SystemInfo(ctx context.Context) (domain.SystemInfo, error)
	Corrections(ctx context.Context) (map[string]string, error)
	AddCorrection(ctx context.Context, wrong, correct string) error
	Models(ctx context.Context) ([]string, error)
}

// newHTTPBackend builds the real client for settings.
func newHTTPBackend(settings domain.Settings) Backend {
	timeout := time.Duration(settings.RequestTimeoutSeconds) * time.Second
	return transcribe.NewClient(settings.BackendURL, timeout)
}

// backendRef lets settings changes swap the client under components that
// were built with the previous one.
type backendRef struct {
	mu      sync.RWMutex
	current Backend
}

func (r *backendRef) get() Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

func (r *backendRef) set(backend Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = backend
}

func (r *backendRef) Transcribe(ctx context.Context, req transcribe.Request) (domain.TranscriptionResult, error) {
	return r.get().Transcribe(ctx, req)
}

func (r *backendRef) SystemInfo(ctx context.Context) (domain.SystemInfo, error) {
	return r.get().SystemInfo(ctx)
}

func (r *backendRef) Corrections(ctx context.Context) (map[string]string, error) {
	return r.get().Corrections(ctx)
}

func (r *backendRef) AddCorrection(ctx context.Context, wrong, correct string) error {
	return r.get().AddCorrection(ctx, wrong, correct)
}

func (r *backendRef) Models(ctx context.Context) ([]string, error) {
	return r.get().Models(ctx)
}
