// Package dictionary keeps the local view of the backend correction
// dictionary in sync and submits new wrong to correct entries.
package dictionary

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"transcriber-desk/internal/domain"
	"transcriber-desk/internal/render"
	"transcriber-desk/internal/transcribe"
)

// User-facing messages.
const (
	AddedMessage       = "Correção adicionada com sucesso!"
	AddFailedMessage   = "Erro ao adicionar correção"
	BlankFieldsMessage = "Por favor, preencha o texto incorreto e o texto correto."
)

// ErrBlankCorrection is returned when either field is empty after trimming.
var ErrBlankCorrection = errors.New("correction fields must not be blank")

// Client is the subset of the transcription service used by the manager.
type Client interface {
	Corrections(ctx context.Context) (map[string]string, error)
	AddCorrection(ctx context.Context, wrong, correct string) error
}

// Notifier surfaces user-facing messages.
type Notifier interface {
	Notify(kind domain.NoticeKind, message string)
}

// Manager owns the rendered dictionary table and the add form draft.
type Manager struct {
	client   Client
	notifier Notifier
	onChange func(render.DictionaryView)
	logger   *slog.Logger

	mu          sync.Mutex
	corrections map[string]string
	loaded      bool
	draft       render.Draft

	// emitMu serializes building and pushing views.
	emitMu sync.Mutex
}

// NewManager creates a manager with an empty, hidden table. onChange may be nil.
func NewManager(client Client, notifier Notifier, onChange func(render.DictionaryView), logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		client:      client,
		notifier:    notifier,
		onChange:    onChange,
		logger:      logger,
		corrections: map[string]string{},
	}
}

// Load fetches the full dictionary and replaces the table. Failures are
// logged and leave the previous table in place.
func (m *Manager) Load(ctx context.Context) error {
	corrections, err := m.client.Corrections(ctx)
	if err != nil {
		m.logger.Error("load corrections failed", "err", err)
		return err
	}

	m.mu.Lock()
	m.corrections = corrections
	m.loaded = true
	m.mu.Unlock()

	m.logger.Debug("corrections loaded", "total", len(corrections))
	m.emit()
	return nil
}

// Add submits one entry. Blank fields are rejected locally. The draft keeps
// the typed values until the backend accepts them.
func (m *Manager) Add(ctx context.Context, wrong, correct string) error {
	m.mu.Lock()
	m.draft = render.Draft{Wrong: wrong, Correct: correct}
	m.mu.Unlock()

	if strings.TrimSpace(wrong) == "" || strings.TrimSpace(correct) == "" {
		m.notify(domain.NoticeValidation, BlankFieldsMessage)
		m.emit()
		return ErrBlankCorrection
	}

	if err := m.client.AddCorrection(ctx, wrong, correct); err != nil {
		m.logger.Error("add correction failed", "wrong", wrong, "err", err)
		m.notify(domain.NoticeError, addFailure(err))
		m.emit()
		return err
	}

	m.mu.Lock()
	m.draft = render.Draft{}
	m.mu.Unlock()

	m.logger.Info("correction added", "wrong", wrong, "correct", correct)
	m.notify(domain.NoticeSuccess, AddedMessage)
	m.emit()

	if err := m.Load(ctx); err != nil {
		m.logger.Warn("reload after add failed", "err", err)
	}
	return nil
}

// Prefill copies a suggestion into the draft form without submitting it.
func (m *Manager) Prefill(suggestion domain.SubstitutionSuggestion) {
	m.mu.Lock()
	m.draft = render.Draft{Wrong: suggestion.Original, Correct: suggestion.Suggestion}
	m.mu.Unlock()

	m.emit()
}

// View renders the table and draft.
func (m *Manager) View() render.DictionaryView {
	m.mu.Lock()
	defer m.mu.Unlock()
	return render.Dictionary(m.corrections, m.loaded, m.draft)
}

// Entries returns the table rows as correction entries.
func (m *Manager) Entries() []domain.CorrectionEntry {
	rows := m.View().Rows
	entries := make([]domain.CorrectionEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, domain.CorrectionEntry{Wrong: row.Wrong, Correct: row.Correct})
	}
	return entries
}

// addFailure builds the notice for a rejected add. Server details are shown
// verbatim; transport failures get the bare message.
func addFailure(err error) string {
	var apiErr *transcribe.APIError
	if errors.As(err, &apiErr) {
		return AddFailedMessage + ": " + apiErr.Detail
	}
	return AddFailedMessage
}

func (m *Manager) notify(kind domain.NoticeKind, message string) {
	if m.notifier != nil {
		m.notifier.Notify(kind, message)
	}
}

func (m *Manager) emit() {
	m.emitMu.Lock()
	defer m.emitMu.Unlock()
	if m.onChange != nil {
		m.onChange(m.View())
	}
}
