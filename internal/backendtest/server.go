// Package backendtest provides an in-process fake of the transcription
// service for client and application tests.
package backendtest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
)

// Upload records one multipart submission received on /upload.
type Upload struct {
	FileName    string
	ContentType string
	Model       string
	Language    string
	Size        int
}

// Server is a fake transcription service backed by httptest.
type Server struct {
	*httptest.Server

	mu           sync.Mutex
	hits         map[string]int
	uploads      []Upload
	uploadStatus int
	uploadBody   string
	uploadGate   <-chan struct{}
	systemStatus int
	systemBody   string
	statsStatus  int
	corrections  map[string]string
	addStatus    int
	addDetail    string
	models       []string
	healthStatus int
}

// NewServer starts a fake service with a happy-path configuration.
func NewServer() *Server {
	s := &Server{
		hits:         map[string]int{},
		uploadStatus: http.StatusOK,
		uploadBody:   `{"original_text":"ola mundo","corrected_text":"olá mundo","processing_time":1.23,"suggestions":[]}`,
		systemStatus: http.StatusOK,
		systemBody:   `{"device":"cpu","model":"base","cuda_available":false}`,
		statsStatus:  http.StatusOK,
		corrections:  map[string]string{},
		addStatus:    http.StatusOK,
		models:       []string{"tiny", "base", "small", "medium", "large"},
		healthStatus: http.StatusOK,
	}

	r := chi.NewRouter()
	r.Post("/upload", s.handleUpload)
	r.Get("/system-info", s.handleSystemInfo)
	r.Get("/correction-stats", s.handleCorrectionStats)
	r.Post("/add-correction", s.handleAddCorrection)
	r.Get("/models", s.handleModels)
	r.Get("/health", s.handleHealth)

	s.Server = httptest.NewServer(r)
	return s
}

// SetUploadResponse configures the status and raw body returned by /upload.
func (s *Server) SetUploadResponse(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploadStatus = status
	s.uploadBody = body
}

// SetUploadGate blocks /upload responses until gate is closed.
func (s *Server) SetUploadGate(gate <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploadGate = gate
}

// SetSystemInfoResponse configures the status and raw body of /system-info.
func (s *Server) SetSystemInfoResponse(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.systemStatus = status
	s.systemBody = body
}

// SetCorrectionStatsStatus makes /correction-stats fail with status when not 200.
func (s *Server) SetCorrectionStatsStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statsStatus = status
}

// SetCorrections replaces the stored dictionary.
func (s *Server) SetCorrections(corrections map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.corrections = copyMap(corrections)
}

// SetAddCorrectionError makes /add-correction fail with status and detail.
func (s *Server) SetAddCorrectionError(status int, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addStatus = status
	s.addDetail = detail
}

// SetModels replaces the list served by /models.
func (s *Server) SetModels(models []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models = append([]string(nil), models...)
}

// SetHealthStatus configures the /health status code.
func (s *Server) SetHealthStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthStatus = status
}

// Hits returns how many requests reached path.
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// Uploads returns the recorded /upload submissions.
func (s *Server) Uploads() []Upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Upload(nil), s.uploads...)
}

// Corrections returns a copy of the stored dictionary.
func (s *Server) Corrections() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyMap(s.corrections)
}

func (s *Server) hit(path string) {
	s.mu.Lock()
	s.hits[path]++
	s.mu.Unlock()
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	s.hit("/upload")

	upload := Upload{Model: r.FormValue("model"), Language: r.FormValue("language")}
	if file, header, err := r.FormFile("file"); err == nil {
		data, _ := io.ReadAll(file)
		_ = file.Close()
		upload.FileName = header.Filename
		upload.ContentType = header.Header.Get("Content-Type")
		upload.Size = len(data)
	} else {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "file is required"})
		return
	}

	s.mu.Lock()
	s.uploads = append(s.uploads, upload)
	gate := s.uploadGate
	status, body := s.uploadStatus, s.uploadBody
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func (s *Server) handleSystemInfo(w http.ResponseWriter, r *http.Request) {
	s.hit("/system-info")
	s.mu.Lock()
	status, body := s.systemStatus, s.systemBody
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func (s *Server) handleCorrectionStats(w http.ResponseWriter, r *http.Request) {
	s.hit("/correction-stats")
	s.mu.Lock()
	status := s.statsStatus
	corrections := copyMap(s.corrections)
	s.mu.Unlock()

	if status != http.StatusOK {
		writeJSON(w, status, map[string]string{"detail": "stats unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_corrections": len(corrections),
		"corrections":       corrections,
	})
}

func (s *Server) handleAddCorrection(w http.ResponseWriter, r *http.Request) {
	s.hit("/add-correction")
	wrong := strings.TrimSpace(r.FormValue("wrong"))
	correct := strings.TrimSpace(r.FormValue("correct"))

	s.mu.Lock()
	status, detail := s.addStatus, s.addDetail
	if status == http.StatusOK {
		s.corrections[strings.ToLower(wrong)] = correct
	}
	s.mu.Unlock()

	if status != http.StatusOK {
		writeJSON(w, status, map[string]string{"detail": detail})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Correção adicionada"})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	s.hit("/models")
	s.mu.Lock()
	models := append([]string(nil), s.models...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string][]string{"models": models})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.hit("/health")
	s.mu.Lock()
	status := s.healthStatus
	s.mu.Unlock()
	writeJSON(w, status, map[string]string{"status": "healthy"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
