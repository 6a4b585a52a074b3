package domain

// Phase tracks the lifecycle of the single upload workflow.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSubmitting Phase = "submitting"
	PhaseSucceeded  Phase = "succeeded"
	PhaseFailed     Phase = "failed"
)

// Settings contains user-selectable runtime configuration.
type Settings struct {
	BackendURL            string `json:"backendUrl"`
	Model                 string `json:"model"`
	Language              string `json:"language"`
	RequestTimeoutSeconds int    `json:"requestTimeoutSeconds"`
}

// AudioFile is the candidate file picked by the user.
type AudioFile struct {
	Name      string `json:"name"`
	Path      string `json:"path,omitempty"`
	MediaType string `json:"mediaType,omitempty"`
	Content   []byte `json:"-"`
}

// Job stores the identity and lifecycle of one upload.
type Job struct {
	ID         string    `json:"id"`
	Phase      Phase     `json:"phase"`
	File       AudioFile `json:"file"`
	Model      string    `json:"model"`
	Generation uint64    `json:"generation"`
}

// TranscriptionResult is the payload returned by a successful upload.
type TranscriptionResult struct {
	OriginalText          string                   `json:"originalText"`
	CorrectedText         string                   `json:"correctedText"`
	ProcessingTimeSeconds float64                  `json:"processingTimeSeconds"`
	Suggestions           []SubstitutionSuggestion `json:"suggestions"`
}

// SubstitutionSuggestion is a backend-proposed replacement.
type SubstitutionSuggestion struct {
	Original   string `json:"original"`
	Suggestion string `json:"suggestion"`
}

// CorrectionEntry is one wrong->correct dictionary row.
type CorrectionEntry struct {
	Wrong   string `json:"wrong"`
	Correct string `json:"correct"`
}

// SystemInfo describes the backend transcription host.
type SystemInfo struct {
	Device         string `json:"device"`
	ModelName      string `json:"modelName"`
	CUDAAvailable  bool   `json:"cudaAvailable"`
	CUDADeviceName string `json:"cudaDeviceName,omitempty"`
}

// NoticeKind classifies user-facing notifications.
type NoticeKind string

const (
	NoticeInfo       NoticeKind = "info"
	NoticeSuccess    NoticeKind = "success"
	NoticeValidation NoticeKind = "validation"
	NoticeError      NoticeKind = "error"
)
