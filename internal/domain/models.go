package domain

// ModelOption describes one transcription model the backend can load.
type ModelOption struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	SizeLabel   string `json:"sizeLabel,omitempty"`
	Description string `json:"description,omitempty"`
}
