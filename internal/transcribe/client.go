package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"strings"
	"time"

	"github.com/samber/lo"

	"transcriber-desk/internal/domain"
)

// Endpoint paths exposed by the transcription service.
const (
	PathUpload          = "/upload"
	PathSystemInfo      = "/system-info"
	PathCorrectionStats = "/correction-stats"
	PathAddCorrection   = "/add-correction"
	PathModels          = "/models"
	PathHealth          = "/health"
)

// maxErrorBody caps how much of a failed response body is kept for errors.
const maxErrorBody = 64 << 10

// ErrMalformedResponse is returned when a 2xx body lacks required fields.
var ErrMalformedResponse = errors.New("malformed response")

// Request contains the file and model selection for one upload.
type Request struct {
	File     domain.AudioFile
	Model    string
	Language string
}

// APIError is a non-2xx response from the transcription service.
type APIError struct {
	Endpoint   string `json:"endpoint"`
	StatusCode int    `json:"statusCode"`
	Detail     string `json:"detail"`
}

// Error formats service failures for logs.
func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Detail == "" {
		return fmt.Sprintf("%s: status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Endpoint, e.StatusCode, e.Detail)
}

// doer abstracts the HTTP transport for testability.
type doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the remote transcription service.
type Client struct {
	baseURL    string
	httpClient doer
}

// NewClient constructs a client for baseURL with the given request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// NewClientForTests constructs a client with an injectable transport.
func NewClientForTests(baseURL string, httpClient doer) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

type suggestionPayload struct {
	Original   string `json:"original"`
	Suggestion string `json:"suggestion"`
}

type uploadResponse struct {
	OriginalText   *string             `json:"original_text"`
	CorrectedText  *string             `json:"corrected_text"`
	ProcessingTime *float64            `json:"processing_time"`
	Suggestions    []suggestionPayload `json:"suggestions"`
}

type systemInfoResponse struct {
	Device         *string `json:"device"`
	Model          string  `json:"model"`
	CUDAAvailable  bool    `json:"cuda_available"`
	CUDADeviceName *string `json:"cuda_device_name"`
}

type correctionStatsResponse struct {
	TotalCorrections int               `json:"total_corrections"`
	Corrections      map[string]string `json:"corrections"`
}

type modelsResponse struct {
	Models []string `json:"models"`
}

type errorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

// Transcribe uploads the file with the selected model and decodes the result.
func (c *Client) Transcribe(ctx context.Context, req Request) (domain.TranscriptionResult, error) {
	body, contentType, err := buildUploadForm(req)
	if err != nil {
		return domain.TranscriptionResult{}, err
	}

	var payload uploadResponse
	if err := c.send(ctx, http.MethodPost, PathUpload, body, contentType, &payload); err != nil {
		return domain.TranscriptionResult{}, err
	}
	if payload.OriginalText == nil || payload.CorrectedText == nil || payload.ProcessingTime == nil {
		return domain.TranscriptionResult{}, fmt.Errorf("%s: %w: missing transcription fields", PathUpload, ErrMalformedResponse)
	}

	return domain.TranscriptionResult{
		OriginalText:          *payload.OriginalText,
		CorrectedText:         *payload.CorrectedText,
		ProcessingTimeSeconds: *payload.ProcessingTime,
		Suggestions: lo.Map(payload.Suggestions, func(s suggestionPayload, _ int) domain.SubstitutionSuggestion {
			return domain.SubstitutionSuggestion{Original: s.Original, Suggestion: s.Suggestion}
		}),
	}, nil
}

// SystemInfo fetches the backend device snapshot.
func (c *Client) SystemInfo(ctx context.Context) (domain.SystemInfo, error) {
	var payload systemInfoResponse
	if err := c.send(ctx, http.MethodGet, PathSystemInfo, nil, "", &payload); err != nil {
		return domain.SystemInfo{}, err
	}
	if payload.Device == nil {
		return domain.SystemInfo{}, fmt.Errorf("%s: %w: missing device", PathSystemInfo, ErrMalformedResponse)
	}

	info := domain.SystemInfo{
		Device:        *payload.Device,
		ModelName:     payload.Model,
		CUDAAvailable: payload.CUDAAvailable,
	}
	if payload.CUDAAvailable && payload.CUDADeviceName != nil {
		info.CUDADeviceName = *payload.CUDADeviceName
	}
	return info, nil
}

// Corrections fetches the full wrong->correct mapping.
func (c *Client) Corrections(ctx context.Context) (map[string]string, error) {
	var payload correctionStatsResponse
	if err := c.send(ctx, http.MethodGet, PathCorrectionStats, nil, "", &payload); err != nil {
		return nil, err
	}
	if payload.Corrections == nil {
		return nil, fmt.Errorf("%s: %w: missing corrections", PathCorrectionStats, ErrMalformedResponse)
	}
	return payload.Corrections, nil
}

// AddCorrection submits one wrong->correct entry.
func (c *Client) AddCorrection(ctx context.Context, wrong, correct string) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("wrong", wrong); err != nil {
		return fmt.Errorf("write wrong field: %w", err)
	}
	if err := writer.WriteField("correct", correct); err != nil {
		return fmt.Errorf("write correct field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close form: %w", err)
	}

	return c.send(ctx, http.MethodPost, PathAddCorrection, &buf, writer.FormDataContentType(), nil)
}

// Models lists the model identifiers the backend accepts.
func (c *Client) Models(ctx context.Context) ([]string, error) {
	var payload modelsResponse
	if err := c.send(ctx, http.MethodGet, PathModels, nil, "", &payload); err != nil {
		return nil, err
	}
	return payload.Models, nil
}

// Health probes the service liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.send(ctx, http.MethodGet, PathHealth, nil, "", nil)
}

// send performs one request and decodes a 2xx JSON body into out when set.
func (c *Client) send(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request %s: %w", path, err)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s request: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{
			Endpoint:   path,
			StatusCode: resp.StatusCode,
			Detail:     errorDetail(raw),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: %w: %v", path, ErrMalformedResponse, err)
	}
	return nil
}

// errorDetail extracts the "detail" field from an error body, falling back
// to the trimmed raw body.
func errorDetail(raw []byte) string {
	var payload errorResponse
	if err := json.Unmarshal(raw, &payload); err == nil && len(payload.Detail) > 0 {
		var detail string
		if err := json.Unmarshal(payload.Detail, &detail); err == nil {
			return detail
		}
		return string(payload.Detail)
	}
	return strings.TrimSpace(string(raw))
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// buildUploadForm encodes the file and model fields as multipart form data.
func buildUploadForm(req Request) (*bytes.Buffer, string, error) {
	src, err := openAudio(req.File)
	if err != nil {
		return nil, "", fmt.Errorf("open audio: %w", err)
	}
	defer src.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	mediaType := req.File.MediaType
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(req.File.Name)))
	header.Set("Content-Type", mediaType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, src); err != nil {
		return nil, "", fmt.Errorf("copy audio data: %w", err)
	}

	if err := writer.WriteField("model", req.Model); err != nil {
		return nil, "", fmt.Errorf("write model field: %w", err)
	}
	if req.Language != "" {
		if err := writer.WriteField("language", req.Language); err != nil {
			return nil, "", fmt.Errorf("write language field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}

// openAudio returns the in-memory payload when present, else opens the path.
func openAudio(file domain.AudioFile) (io.ReadCloser, error) {
	if file.Content != nil {
		return io.NopCloser(bytes.NewReader(file.Content)), nil
	}
	if strings.TrimSpace(file.Path) == "" {
		return nil, fmt.Errorf("audio file %q has no path or content", file.Name)
	}
	return os.Open(file.Path)
}
