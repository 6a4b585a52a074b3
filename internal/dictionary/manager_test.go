package dictionary

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"transcriber-desk/internal/backendtest"
	"transcriber-desk/internal/domain"
	"transcriber-desk/internal/render"
	"transcriber-desk/internal/transcribe"
)

// fakeClient allows injecting custom dictionary behavior per test.
type fakeClient struct {
	mu          sync.Mutex
	loadCalls   int
	addCalls    int
	corrections func() (map[string]string, error)
	add         func(wrong, correct string) error
}

// Corrections counts the call and delegates to the injected function.
func (f *fakeClient) Corrections(ctx context.Context) (map[string]string, error) {
	f.mu.Lock()
	f.loadCalls++
	f.mu.Unlock()
	if f.corrections == nil {
		return map[string]string{}, nil
	}
	return f.corrections()
}

// AddCorrection counts the call and delegates to the injected function.
func (f *fakeClient) AddCorrection(ctx context.Context, wrong, correct string) error {
	f.mu.Lock()
	f.addCalls++
	f.mu.Unlock()
	if f.add == nil {
		return nil
	}
	return f.add(wrong, correct)
}

type notice struct {
	kind    domain.NoticeKind
	message string
}

// recordingNotifier keeps every notice for assertions.
type recordingNotifier struct {
	mu      sync.Mutex
	notices []notice
}

// Notify records one notice.
func (n *recordingNotifier) Notify(kind domain.NoticeKind, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice{kind: kind, message: message})
}

func (n *recordingNotifier) all() []notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notice(nil), n.notices...)
}

// TestLoadReplacesTableWholesale checks rows come only from the latest load.
func TestLoadReplacesTableWholesale(t *testing.T) {
	responses := []map[string]string{
		{"eu vai": "eu vou", "recieve": "receive"},
		{"teh": "the"},
	}
	client := &fakeClient{}
	client.corrections = func() (map[string]string, error) {
		next := responses[client.loadCalls-1]
		return next, nil
	}
	m := NewManager(client, &recordingNotifier{}, nil, nil)

	if view := m.View(); view.Visible {
		t.Fatalf("section visible before first load: %+v", view)
	}
	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	view := m.View()
	if !view.Visible || view.Total != 2 {
		t.Fatalf("view = %+v", view)
	}
	if view.Rows[0] != (render.CorrectionRow{Wrong: "eu vai", Correct: "eu vou"}) {
		t.Fatalf("first row = %+v, want sorted by wrong", view.Rows[0])
	}

	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	entries := m.Entries()
	if len(entries) != 1 || entries[0] != (domain.CorrectionEntry{Wrong: "teh", Correct: "the"}) {
		t.Fatalf("entries = %+v", entries)
	}
}

// TestLoadFailureKeepsPreviousTable checks best-effort reads.
func TestLoadFailureKeepsPreviousTable(t *testing.T) {
	fail := false
	client := &fakeClient{corrections: func() (map[string]string, error) {
		if fail {
			return nil, errors.New("connection refused")
		}
		return map[string]string{"teh": "the"}, nil
	}}
	notifier := &recordingNotifier{}
	m := NewManager(client, notifier, nil, nil)

	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	fail = true
	if err := m.Load(context.Background()); err == nil {
		t.Fatal("expected load error")
	}

	view := m.View()
	if !view.Visible || view.Total != 1 || view.Rows[0].Wrong != "teh" {
		t.Fatalf("view = %+v", view)
	}
	if len(notifier.all()) != 0 {
		t.Fatalf("load failure must not notify: %+v", notifier.all())
	}
}

// TestAddRejectsBlankFields checks the local guard.
func TestAddRejectsBlankFields(t *testing.T) {
	cases := []struct{ wrong, correct string }{
		{"", "the"},
		{"teh", ""},
		{"   ", "the"},
		{"teh", "\t\n"},
	}
	for _, tc := range cases {
		client := &fakeClient{}
		notifier := &recordingNotifier{}
		m := NewManager(client, notifier, nil, nil)

		if err := m.Add(context.Background(), tc.wrong, tc.correct); !errors.Is(err, ErrBlankCorrection) {
			t.Fatalf("Add(%q, %q) error = %v, want %v", tc.wrong, tc.correct, err, ErrBlankCorrection)
		}
		if client.addCalls != 0 || client.loadCalls != 0 {
			t.Fatalf("unexpected requests: add=%d load=%d", client.addCalls, client.loadCalls)
		}
		notices := notifier.all()
		if len(notices) != 1 || notices[0].kind != domain.NoticeValidation {
			t.Fatalf("notices = %+v", notices)
		}
		if draft := m.View().Draft; draft.Wrong != tc.wrong || draft.Correct != tc.correct {
			t.Fatalf("draft = %+v, want inputs kept", draft)
		}
	}
}

// TestAddShowsServerDetailVerbatim checks application errors keep the draft.
func TestAddShowsServerDetailVerbatim(t *testing.T) {
	client := &fakeClient{add: func(wrong, correct string) error {
		return &transcribe.APIError{Endpoint: transcribe.PathAddCorrection, StatusCode: http.StatusBadRequest, Detail: "Correção já existe"}
	}}
	notifier := &recordingNotifier{}
	m := NewManager(client, notifier, nil, nil)

	err := m.Add(context.Background(), "teh", "the")
	var apiErr *transcribe.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Add() error = %v, want APIError", err)
	}

	notices := notifier.all()
	if len(notices) != 1 || notices[0].kind != domain.NoticeError {
		t.Fatalf("notices = %+v", notices)
	}
	if want := "Erro ao adicionar correção: Correção já existe"; notices[0].message != want {
		t.Fatalf("message = %q, want %q", notices[0].message, want)
	}
	if draft := m.View().Draft; draft != (render.Draft{Wrong: "teh", Correct: "the"}) {
		t.Fatalf("draft = %+v", draft)
	}
	if client.loadCalls != 0 {
		t.Fatalf("load calls = %d, want 0", client.loadCalls)
	}
}

// TestAddTransportFailure checks the bare failure message.
func TestAddTransportFailure(t *testing.T) {
	client := &fakeClient{add: func(wrong, correct string) error {
		return errors.New("dial tcp: connection refused")
	}}
	notifier := &recordingNotifier{}
	m := NewManager(client, notifier, nil, nil)

	if err := m.Add(context.Background(), "teh", "the"); err == nil {
		t.Fatal("expected error")
	}
	if notices := notifier.all(); len(notices) != 1 || notices[0].message != AddFailedMessage {
		t.Fatalf("notices = %+v", notices)
	}
}

// TestPrefillDoesNotSubmit checks suggestions only fill the form.
func TestPrefillDoesNotSubmit(t *testing.T) {
	client := &fakeClient{}
	var views []render.DictionaryView
	m := NewManager(client, &recordingNotifier{}, func(v render.DictionaryView) {
		views = append(views, v)
	}, nil)

	m.Prefill(domain.SubstitutionSuggestion{Original: "eu vai", Suggestion: "eu vou"})

	if draft := m.View().Draft; draft != (render.Draft{Wrong: "eu vai", Correct: "eu vou"}) {
		t.Fatalf("draft = %+v", draft)
	}
	if client.addCalls != 0 {
		t.Fatalf("add calls = %d, want 0", client.addCalls)
	}
	if len(views) != 1 {
		t.Fatalf("views = %d, want 1", len(views))
	}
}

// TestAddThenReloadAgainstBackend checks the full add flow over HTTP.
func TestAddThenReloadAgainstBackend(t *testing.T) {
	server := backendtest.NewServer()
	defer server.Close()

	client := transcribe.NewClient(server.URL, 5*time.Second)
	notifier := &recordingNotifier{}
	m := NewManager(client, notifier, nil, nil)

	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if view := m.View(); !view.Visible || view.Total != 0 {
		t.Fatalf("initial view = %+v", view)
	}

	if err := m.Add(context.Background(), "recieve", "receive"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	view := m.View()
	if view.Total != 1 || view.Rows[0] != (render.CorrectionRow{Wrong: "recieve", Correct: "receive"}) {
		t.Fatalf("view = %+v", view)
	}
	if view.Draft != (render.Draft{}) {
		t.Fatalf("draft = %+v, want cleared", view.Draft)
	}
	if got := server.Hits(transcribe.PathCorrectionStats); got != 2 {
		t.Fatalf("correction-stats hits = %d, want 2", got)
	}
	if notices := notifier.all(); len(notices) != 1 || notices[0].message != AddedMessage {
		t.Fatalf("notices = %+v", notices)
	}
}

// TestAddBackendRejection checks the server detail reaches the notice.
func TestAddBackendRejection(t *testing.T) {
	server := backendtest.NewServer()
	defer server.Close()
	server.SetAddCorrectionError(http.StatusBadRequest, "Texto incorreto vazio")

	notifier := &recordingNotifier{}
	m := NewManager(transcribe.NewClient(server.URL, 5*time.Second), notifier, nil, nil)

	if err := m.Add(context.Background(), "teh", "the"); err == nil {
		t.Fatal("expected error")
	}
	if notices := notifier.all(); len(notices) != 1 || notices[0].message != "Erro ao adicionar correção: Texto incorreto vazio" {
		t.Fatalf("notices = %+v", notices)
	}
	if got := server.Hits(transcribe.PathCorrectionStats); got != 0 {
		t.Fatalf("correction-stats hits = %d, want 0", got)
	}
}

// TestPrefillDuringLoadPushIsLastView checks pushed views stay ordered.
func TestPrefillDuringLoadPushIsLastView(t *testing.T) {
	client := &fakeClient{corrections: func() (map[string]string, error) {
		return map[string]string{"teh": "the"}, nil
	}}

	var (
		mu      sync.Mutex
		views   []render.DictionaryView
		once    sync.Once
		entered = make(chan struct{})
		release = make(chan struct{})
	)
	m := NewManager(client, &recordingNotifier{}, func(v render.DictionaryView) {
		mu.Lock()
		views = append(views, v)
		mu.Unlock()
		if v.Visible {
			once.Do(func() {
				close(entered)
				<-release
			})
		}
	}, nil)

	loadDone := make(chan struct{})
	go func() {
		_ = m.Load(context.Background())
		close(loadDone)
	}()
	<-entered

	prefillDone := make(chan struct{})
	go func() {
		m.Prefill(domain.SubstitutionSuggestion{Original: "eu vai", Suggestion: "eu vou"})
		close(prefillDone)
	}()
	deadline := time.Now().Add(2 * time.Second)
	for m.View().Draft.Wrong != "eu vai" {
		if time.Now().After(deadline) {
			t.Fatal("prefill did not update the draft")
		}
		time.Sleep(10 * time.Millisecond)
	}

	close(release)
	<-loadDone
	<-prefillDone

	mu.Lock()
	last := views[len(views)-1]
	mu.Unlock()
	if last.Draft != (render.Draft{Wrong: "eu vai", Correct: "eu vou"}) || last.Total != 1 {
		t.Fatalf("last pushed view = %+v", last)
	}
}
