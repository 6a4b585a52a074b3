package diagnostics

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"transcriber-desk/internal/backendtest"
	"transcriber-desk/internal/domain"
)

// TestCheckerRunAllPass validates happy-path diagnostics report.
func TestCheckerRunAllPass(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	var probed string
	checker := NewCheckerForTests(func(ctx context.Context, baseURL string) error {
		probed = baseURL
		return nil
	}, func() time.Time { return fixed })

	report := checker.Run(context.Background(), domain.Settings{
		BackendURL: "http://localhost:8000",
		Model:      "base",
	})

	if report.HasFailures {
		t.Fatalf("expected no failures, got %+v", report.Items)
	}
	if probed != "http://localhost:8000" {
		t.Fatalf("probed = %q", probed)
	}
	if !report.GeneratedAt.Equal(fixed) {
		t.Fatalf("generatedAt = %v, want %v", report.GeneratedAt, fixed)
	}
	assertStatusByID(t, report, "backend_url", domain.DiagnosticStatusPass)
	assertStatusByID(t, report, "backend_health", domain.DiagnosticStatusPass)
	assertStatusByID(t, report, "model", domain.DiagnosticStatusPass)
}

// TestCheckerRunInvalidURLSkipsProbe validates failure reporting.
func TestCheckerRunInvalidURLSkipsProbe(t *testing.T) {
	cases := []string{"", "localhost:8000", "ftp://example.com", "http://"}
	for _, raw := range cases {
		probes := 0
		checker := NewCheckerForTests(func(ctx context.Context, baseURL string) error {
			probes++
			return nil
		}, nil)

		report := checker.Run(context.Background(), domain.Settings{BackendURL: raw})
		if !report.HasFailures {
			t.Fatalf("%q: expected failures", raw)
		}
		if probes != 0 {
			t.Fatalf("%q: probes = %d, want 0", raw, probes)
		}
		assertStatusByID(t, report, "backend_url", domain.DiagnosticStatusFail)
		assertStatusByID(t, report, "backend_health", domain.DiagnosticStatusSkip)
		assertStatusByID(t, report, "model", domain.DiagnosticStatusFail)
	}
}

// TestCheckerRunUnreachableBackend validates the health hint.
func TestCheckerRunUnreachableBackend(t *testing.T) {
	checker := NewCheckerForTests(func(ctx context.Context, baseURL string) error {
		return errors.New("connection refused")
	}, nil)

	report := checker.Run(context.Background(), domain.Settings{
		BackendURL: "https://transcribe.example.com",
		Model:      "small",
	})

	item := assertStatusByID(t, report, "backend_health", domain.DiagnosticStatusFail)
	if item.Hint == "" {
		t.Fatal("expected hint for unreachable backend")
	}
}

// TestCheckerRunAgainstFakeService validates the default prober over HTTP.
func TestCheckerRunAgainstFakeService(t *testing.T) {
	server := backendtest.NewServer()
	defer server.Close()

	checker := NewChecker()
	report := checker.Run(context.Background(), domain.Settings{BackendURL: server.URL, Model: "base"})
	assertStatusByID(t, report, "backend_health", domain.DiagnosticStatusPass)

	server.SetHealthStatus(http.StatusServiceUnavailable)
	report = checker.Run(context.Background(), domain.Settings{BackendURL: server.URL, Model: "base"})
	assertStatusByID(t, report, "backend_health", domain.DiagnosticStatusFail)
	if server.Hits("/health") != 2 {
		t.Fatalf("health hits = %d, want 2", server.Hits("/health"))
	}
}

func assertStatusByID(t *testing.T, report domain.DiagnosticReport, id string, want domain.DiagnosticStatus) domain.DiagnosticItem {
	t.Helper()
	for _, item := range report.Items {
		if item.ID == id {
			if item.Status != want {
				t.Fatalf("status for %s = %s, want %s", id, item.Status, want)
			}
			return item
		}
	}
	t.Fatalf("diagnostic item %s not found", id)
	return domain.DiagnosticItem{}
}
