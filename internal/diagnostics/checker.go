// Package diagnostics runs the startup checks shown in the settings panel.
package diagnostics

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/samber/lo"

	"transcriber-desk/internal/domain"
	"transcriber-desk/internal/transcribe"
)

// probeTimeout bounds the health request.
const probeTimeout = 5 * time.Second

// Prober checks that the service at baseURL answers.
type Prober func(ctx context.Context, baseURL string) error

// Checker validates the backend configuration and reachability.
type Checker struct {
	probe Prober
	now   func() time.Time
}

// NewChecker builds a checker that probes the real service.
func NewChecker() *Checker {
	return &Checker{
		probe: func(ctx context.Context, baseURL string) error {
			return transcribe.NewClient(baseURL, probeTimeout).Health(ctx)
		},
		now: time.Now,
	}
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(probe Prober, now func() time.Time) *Checker {
	if now == nil {
		now = time.Now
	}
	return &Checker{probe: probe, now: now}
}

// Run executes all startup checks and returns a combined report.
func (c *Checker) Run(ctx context.Context, settings domain.Settings) domain.DiagnosticReport {
	urlItem := checkBackendURL(settings.BackendURL)
	items := []domain.DiagnosticItem{
		urlItem,
		c.checkHealth(ctx, settings.BackendURL, urlItem.Status == domain.DiagnosticStatusPass),
		checkModel(settings.Model),
	}

	return domain.DiagnosticReport{
		GeneratedAt: c.now().UTC(),
		BackendURL:  settings.BackendURL,
		HasFailures: lo.ContainsBy(items, func(item domain.DiagnosticItem) bool {
			return item.Status == domain.DiagnosticStatusFail
		}),
		Items: items,
	}
}

// checkBackendURL requires an absolute http(s) URL with a host.
func checkBackendURL(raw string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "backend_url",
		Name: "Backend URL",
	}

	if strings.TrimSpace(raw) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Backend URL is empty."
		item.Hint = "Set the transcription service address, e.g. http://localhost:8000."
		return item
	}

	parsed, err := url.Parse(raw)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Invalid backend URL: %s", raw)
		item.Hint = "Use an absolute http:// or https:// address."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Using %s", raw)
	return item
}

// checkHealth probes the service unless the URL check already failed.
func (c *Checker) checkHealth(ctx context.Context, baseURL string, urlValid bool) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "backend_health",
		Name: "Backend health",
	}

	if !urlValid {
		item.Status = domain.DiagnosticStatusSkip
		item.Message = "Skipped: backend URL is invalid."
		return item
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if err := c.probe(probeCtx, baseURL); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Service not reachable: %v", err)
		item.Hint = "Start the transcription service or fix the backend URL in settings."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = "Service is responding."
	return item
}

// checkModel requires a default model selection.
func checkModel(model string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "model",
		Name: "Default model",
	}

	if strings.TrimSpace(model) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "No default model selected."
		item.Hint = "Pick a model in settings."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Model %s", model)
	return item
}
