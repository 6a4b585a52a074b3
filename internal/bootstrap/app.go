package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"golang.org/x/sync/errgroup"

	"transcriber-desk/internal/config"
	"transcriber-desk/internal/diagnostics"
	"transcriber-desk/internal/dictionary"
	"transcriber-desk/internal/domain"
	"transcriber-desk/internal/jobs"
	"transcriber-desk/internal/render"
	"transcriber-desk/internal/workflow"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// Runtime event names pushed to the webview.
const (
	EventNotify     = "notify"
	EventWorkflow   = "workflow:view"
	EventDictionary = "dictionary:view"
	EventSystemInfo = "system:info"
)

const (
	copiedMessage     = "Texto copiado para a área de transferência!"
	copyFailedMessage = "Não foi possível copiar o texto. Por favor, tente selecionar e copiar manualmente."
)

var errNothingToCopy = errors.New("no transcription to copy")

var audioDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Audio files",
		Pattern:     "*.mp3;*.wav;*.m4a",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

// App wires configuration, the workflow and dictionary components, and UI
// runtime callbacks.
type App struct {
	Store      config.Store
	Workflow   *workflow.Controller
	Dictionary *dictionary.Manager

	backend    *backendRef
	newBackend func(domain.Settings) Backend
	checker    *diagnostics.Checker
	events     *jobs.EventBus
	assets     fs.FS
	logger     *slog.Logger
	emit       func(ctx context.Context, name string, data ...interface{})
	clipboard  func(ctx context.Context, text string) error
	detectType func(path string) (string, error)

	mu          sync.Mutex
	settings    domain.Settings
	diagnostics domain.DiagnosticReport
	systemInfo  *domain.SystemInfo
	models      []domain.ModelOption
	runtimeCtx  context.Context
	workCtx     context.Context
	cancelWork  context.CancelFunc
}

// notifier publishes user notices to history and the webview.
type notifier struct {
	app *App
}

// Notify records the notice and pushes it to the UI.
func (n notifier) Notify(kind domain.NoticeKind, message string) {
	event := n.app.events.Notify(kind, message)
	n.app.push(EventNotify, event)
}

// New builds the application with persisted settings.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	path, err := config.DefaultPath()
	if err != nil {
		return nil, fmt.Errorf("resolve user home: %w", err)
	}

	store := config.NewJSONStore(path)
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	settings = config.Normalize(config.ApplyEnv(settings, nil))

	app := newApp(store, settings, newHTTPBackend, diagnostics.NewChecker(), slog.Default())
	app.assets = assets
	return app, nil
}

// newApp assembles the components around backend factory newBackend.
func newApp(store config.Store, settings domain.Settings, newBackend func(domain.Settings) Backend, checker *diagnostics.Checker, logger *slog.Logger) *App {
	a := &App{
		Store:      store,
		backend:    &backendRef{current: newBackend(settings)},
		newBackend: newBackend,
		checker:    checker,
		events:     jobs.NewEventBus(1000),
		logger:     logger,
		emit:       wailsruntime.EventsEmit,
		clipboard:  wailsruntime.ClipboardSetText,
		detectType: detectMediaType,
		settings:   settings,
	}

	n := notifier{app: a}
	a.Workflow = workflow.New(a.backend, n,
		workflow.WithLanguage(settings.Language),
		workflow.WithLogger(logger),
		workflow.WithOnChange(func(view render.WorkflowView) {
			a.push(EventWorkflow, view)
		}),
	)
	a.Dictionary = dictionary.NewManager(a.backend, n, func(view render.DictionaryView) {
		a.push(EventDictionary, view)
	}, logger)
	return a
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "Transcritor de Áudio",
		Width:       1080,
		Height:      820,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown:  a.Shutdown,
		Bind:        []interface{}{a},
	})
}

// Startup stores the Wails runtime context and loads backend state.
func (a *App) Startup(ctx context.Context) {
	workCtx, cancel := context.WithCancel(context.Background())

	a.mu.Lock()
	a.runtimeCtx = ctx
	a.workCtx = workCtx
	a.cancelWork = cancel
	a.mu.Unlock()

	go func() {
		if err := a.loadBackendState(workCtx); err != nil {
			a.logger.Warn("startup load incomplete", "err", err)
		}
	}()
}

// Shutdown rejects new uploads, cancels outstanding requests and waits for
// the upload goroutine.
func (a *App) Shutdown(ctx context.Context) {
	a.mu.Lock()
	cancel := a.cancelWork
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	a.Workflow.Close()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = nil
}

// loadBackendState fetches system info, corrections, models and
// diagnostics concurrently. Each load is best-effort.
func (a *App) loadBackendState(ctx context.Context) error {
	var g errgroup.Group

	g.Go(func() error {
		_, err := a.refreshSystemInfo(ctx)
		return err
	})
	g.Go(func() error {
		return a.Dictionary.Load(ctx)
	})
	g.Go(func() error {
		a.RefreshModels(ctx)
		return nil
	})
	g.Go(func() error {
		a.runDiagnostics(ctx)
		return nil
	})

	return g.Wait()
}

// PickAudioFile opens a native file dialog and selects the chosen audio file.
func (a *App) PickAudioFile() (render.WorkflowView, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return render.WorkflowView{}, err
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Selecione um arquivo de áudio",
		Filters: audioDialogFilter,
	})
	if err != nil {
		return render.WorkflowView{}, err
	}
	if strings.TrimSpace(path) == "" {
		return a.Workflow.View(), nil
	}

	return a.SelectFile(path)
}

// SelectFile makes path the candidate audio file. An empty path clears it.
func (a *App) SelectFile(path string) (render.WorkflowView, error) {
	target := strings.TrimSpace(path)
	if target == "" {
		a.Workflow.SelectFile(domain.AudioFile{})
		return a.Workflow.View(), nil
	}

	info, err := os.Stat(target)
	if err != nil {
		return render.WorkflowView{}, fmt.Errorf("resolve audio file: %w", err)
	}
	if info.IsDir() {
		return render.WorkflowView{}, fmt.Errorf("audio path is a directory: %s", target)
	}

	mediaType, err := a.detectType(target)
	if err != nil {
		a.logger.Warn("detect media type failed", "path", target, "err", err)
	}

	a.Workflow.SelectFile(domain.AudioFile{
		Name:      filepath.Base(target),
		Path:      target,
		MediaType: mediaType,
	})
	return a.Workflow.View(), nil
}

// Submit uploads the selected file with model, or the configured default
// model when model is empty.
func (a *App) Submit(model string) (domain.Job, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		a.mu.Lock()
		model = a.settings.Model
		a.mu.Unlock()
	}
	return a.Workflow.Submit(a.workContext(), model)
}

// NewTranscription returns the workflow to its initial state.
func (a *App) NewTranscription() render.WorkflowView {
	a.Workflow.Reset()
	return a.Workflow.View()
}

// CurrentJob returns current job metadata and phase.
func (a *App) CurrentJob() domain.Job {
	return a.Workflow.Current()
}

// GetWorkflowView returns the current upload panel view.
func (a *App) GetWorkflowView() render.WorkflowView {
	return a.Workflow.View()
}

// CopyTranscription copies the corrected text, or the original when the
// corrected text is empty, to the clipboard.
func (a *App) CopyTranscription() error {
	result, ok := a.Workflow.Result()
	if !ok {
		return errNothingToCopy
	}
	text := result.CorrectedText
	if strings.TrimSpace(text) == "" {
		text = result.OriginalText
	}

	n := notifier{app: a}
	ctx, err := a.runtimeContext()
	if err == nil {
		err = a.clipboard(ctx, text)
	}
	if err != nil {
		a.logger.Error("copy transcription failed", "err", err)
		n.Notify(domain.NoticeError, copyFailedMessage)
		return err
	}

	n.Notify(domain.NoticeSuccess, copiedMessage)
	return nil
}

// LoadCorrections reloads the dictionary. Failures keep the previous table.
func (a *App) LoadCorrections() render.DictionaryView {
	_ = a.Dictionary.Load(a.workContext())
	return a.Dictionary.View()
}

// AddCorrection submits one wrong to correct entry.
func (a *App) AddCorrection(wrong, correct string) (render.DictionaryView, error) {
	err := a.Dictionary.Add(a.workContext(), wrong, correct)
	return a.Dictionary.View(), err
}

// PrefillCorrection copies the suggestion at index of the current result
// into the correction form.
func (a *App) PrefillCorrection(index int) (render.DictionaryView, error) {
	result, ok := a.Workflow.Result()
	if !ok {
		return render.DictionaryView{}, fmt.Errorf("no transcription result")
	}
	if index < 0 || index >= len(result.Suggestions) {
		return render.DictionaryView{}, fmt.Errorf("suggestion index %d out of range", index)
	}

	a.Dictionary.Prefill(result.Suggestions[index])
	return a.Dictionary.View(), nil
}

// GetDictionaryView returns the current corrections section view.
func (a *App) GetDictionaryView() render.DictionaryView {
	return a.Dictionary.View()
}

// GetSystemInfo returns the cached system panel view.
func (a *App) GetSystemInfo() render.SystemInfoView {
	a.mu.Lock()
	defer a.mu.Unlock()
	return render.SystemInfo(a.systemInfo)
}

// refreshSystemInfo fetches the backend snapshot. A failure keeps the
// previous panel.
func (a *App) refreshSystemInfo(ctx context.Context) (render.SystemInfoView, error) {
	info, err := a.backend.SystemInfo(ctx)
	if err != nil {
		a.logger.Error("load system info failed", "err", err)
		return a.GetSystemInfo(), fmt.Errorf("system info: %w", err)
	}

	a.mu.Lock()
	a.systemInfo = &info
	a.mu.Unlock()

	view := render.SystemInfo(&info)
	a.push(EventSystemInfo, view)
	return view, nil
}

// Events returns all notices with sequence greater than sinceSeq.
func (a *App) Events(sinceSeq int64) []jobs.Event {
	return a.events.Since(sinceSeq)
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return settings, nil
}

// SaveSettings normalizes and persists settings, points the client at the
// new backend, and refreshes diagnostics.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := config.Normalize(settings)
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.mu.Lock()
	previous := a.settings
	a.settings = normalized
	a.mu.Unlock()

	if previous.BackendURL != normalized.BackendURL || previous.RequestTimeoutSeconds != normalized.RequestTimeoutSeconds {
		a.backend.set(a.newBackend(normalized))
		a.logger.Info("backend changed", "url", normalized.BackendURL)
	}
	a.Workflow.SetLanguage(normalized.Language)
	a.runDiagnostics(a.workContext())

	return normalized, nil
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.diagnostics
}

// RefreshDiagnostics reruns the backend checks with the current settings.
func (a *App) RefreshDiagnostics() domain.DiagnosticReport {
	return a.runDiagnostics(a.workContext())
}

func (a *App) runDiagnostics(ctx context.Context) domain.DiagnosticReport {
	a.mu.Lock()
	settings := a.settings
	a.mu.Unlock()

	report := a.checker.Run(ctx, settings)
	if report.HasFailures {
		a.logger.Warn("diagnostics reported failures", "backend_url", settings.BackendURL)
	}

	a.mu.Lock()
	a.diagnostics = report
	a.mu.Unlock()
	return report
}

// push emits a runtime event when the UI is attached.
func (a *App) push(name string, data interface{}) {
	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		a.emit(ctx, name, data)
	}
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

// workContext returns the request context, cancelled on shutdown.
func (a *App) workContext() context.Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.workCtx == nil {
		return context.Background()
	}
	return a.workCtx
}

// detectMediaType sniffs the file content for the upload Content-Type.
func detectMediaType(path string) (string, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return "", err
	}
	return mtype.String(), nil
}
