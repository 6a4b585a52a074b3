// Package render turns workflow, dictionary and system state into view
// models for the webview. Every function is pure: the same state always
// yields the same view, and nothing here touches the network or the UI.
package render

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/samber/lo"

	"transcriber-desk/internal/domain"
)

// User-facing labels and messages.
const (
	DefaultActionLabel   = "Transcrever Áudio"
	ProcessingMessage    = "Processando transcrição..."
	CompletedMessage     = "Transcrição concluída!"
	MissingFileMessage   = "Por favor, selecione um arquivo de áudio."
	InvalidFormatMessage = "Formato de arquivo inválido. Use MP3, WAV ou M4A."
	UploadFailedMessage  = "Erro ao processar o arquivo. Por favor, tente novamente."
	SuggestionsHeading   = "Sugestões de Correção:"
)

// Progress is the single progress bar state.
type Progress struct {
	Percent int    `json:"percent"`
	Message string `json:"message"`
}

// WorkflowState is the controller state handed to Workflow.
type WorkflowState struct {
	Phase    domain.Phase
	File     *domain.AudioFile
	Progress Progress
	Result   *domain.TranscriptionResult
}

// WorkflowView is what the upload panel displays.
type WorkflowView struct {
	Phase          domain.Phase `json:"phase"`
	ActionLabel    string       `json:"actionLabel"`
	FileName       string       `json:"fileName,omitempty"`
	ShowForm       bool         `json:"showForm"`
	ShowProgress   bool         `json:"showProgress"`
	ShowResult     bool         `json:"showResult"`
	Progress       Progress     `json:"progress"`
	OriginalText   string       `json:"originalText,omitempty"`
	CorrectedText  string       `json:"correctedText,omitempty"`
	ProcessingTime string       `json:"processingTime,omitempty"`

	SuggestionsHeading string   `json:"suggestionsHeading,omitempty"`
	Suggestions        []string `json:"suggestions,omitempty"`
}

// Workflow renders the upload panel for state.
func Workflow(state WorkflowState) WorkflowView {
	view := WorkflowView{
		Phase:       state.Phase,
		ActionLabel: ActionLabel(state.File),
	}
	if state.File != nil {
		view.FileName = state.File.Name
	}

	switch state.Phase {
	case domain.PhaseSubmitting:
		view.ShowProgress = true
		view.Progress = state.Progress
	case domain.PhaseSucceeded:
		view.ShowProgress = true
		view.Progress = state.Progress
		if state.Result != nil {
			view.ShowResult = true
			view.OriginalText = state.Result.OriginalText
			view.CorrectedText = state.Result.CorrectedText
			view.ProcessingTime = ProcessingTime(state.Result.ProcessingTimeSeconds)
			view.Suggestions = Suggestions(state.Result.Suggestions)
			if len(view.Suggestions) > 0 {
				view.SuggestionsHeading = SuggestionsHeading
			}
		}
	default:
		view.ShowForm = true
	}
	return view
}

// ActionLabel is the submit button caption for the chosen file.
func ActionLabel(file *domain.AudioFile) string {
	if file == nil || file.Name == "" {
		return DefaultActionLabel
	}
	return fmt.Sprintf("Transcrever \"%s\"", file.Name)
}

// ProcessingTime formats seconds the way the backend reported them.
func ProcessingTime(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', -1, 64) + " segundos"
}

// SuggestionAnnotation is the informational line for one suggestion.
func SuggestionAnnotation(s domain.SubstitutionSuggestion) string {
	return fmt.Sprintf("Sugestão: Substituir \"%s\" por \"%s\"", s.Original, s.Suggestion)
}

// Suggestions renders annotations in received order. Nil when empty.
func Suggestions(suggestions []domain.SubstitutionSuggestion) []string {
	if len(suggestions) == 0 {
		return nil
	}
	return lo.Map(suggestions, func(s domain.SubstitutionSuggestion, _ int) string {
		return SuggestionAnnotation(s)
	})
}

// CorrectionRow is one dictionary table row.
type CorrectionRow struct {
	Wrong   string `json:"wrong"`
	Correct string `json:"correct"`
}

// Draft holds the add-correction form inputs.
type Draft struct {
	Wrong   string `json:"wrong"`
	Correct string `json:"correct"`
}

// DictionaryView is what the corrections section displays.
type DictionaryView struct {
	Visible bool            `json:"visible"`
	Total   int             `json:"total"`
	Rows    []CorrectionRow `json:"rows"`
	Draft   Draft           `json:"draft"`
}

// Dictionary renders the corrections table sorted by wrong text. The
// section stays hidden until the first successful load.
func Dictionary(corrections map[string]string, loaded bool, draft Draft) DictionaryView {
	keys := lo.Keys(corrections)
	slices.Sort(keys)

	rows := make([]CorrectionRow, 0, len(keys))
	for _, wrong := range keys {
		rows = append(rows, CorrectionRow{Wrong: wrong, Correct: corrections[wrong]})
	}
	return DictionaryView{
		Visible: loaded,
		Total:   len(rows),
		Rows:    rows,
		Draft:   draft,
	}
}

// InfoItem is one labelled line of the system panel.
type InfoItem struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// SystemInfoView is what the system panel displays.
type SystemInfoView struct {
	Loaded bool       `json:"loaded"`
	Items  []InfoItem `json:"items"`
}

// SystemInfo renders the backend snapshot. A nil info renders a blank panel.
func SystemInfo(info *domain.SystemInfo) SystemInfoView {
	if info == nil {
		return SystemInfoView{}
	}

	gpu := "Não"
	if info.CUDAAvailable {
		gpu = "Sim"
	}
	items := []InfoItem{
		{Label: "Dispositivo", Value: info.Device},
		{Label: "Modelo", Value: info.ModelName},
		{Label: "GPU Disponível", Value: gpu},
	}
	if info.CUDAAvailable {
		items = append(items, InfoItem{Label: "GPU", Value: info.CUDADeviceName})
	}
	return SystemInfoView{Loaded: true, Items: items}
}
