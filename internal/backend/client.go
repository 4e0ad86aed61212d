package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/siae-sistema/cardlink/internal/models"
	"github.com/siae-sistema/cardlink/internal/storage"
)

// Client talks to the attendance dashboard's REST backend.
type Client struct {
	BaseURL    string
	Token      string
	httpClient *http.Client
}

// APIError is a non-2xx response. Detail carries the backend's message.
type APIError struct {
	Status int
	Detail string
	kind   error
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend returned status %d", e.Status)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Status, e.Detail)
}

// Unwrap exposes the storage sentinel matching the response, if any.
func (e *APIError) Unwrap() error {
	return e.kind
}

type linkRequest struct {
	UID       string `json:"nfc_uid"`
	StudentID string `json:"matricula_estudiante"`
}

type accessRequest struct {
	UID string `json:"nfc_uid"`
}

type accessResponse struct {
	ID        uint   `json:"id"`
	Timestamp string `json:"timestamp"`
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// LinkCard binds uid to the student on the backend.
func (c *Client) LinkCard(ctx context.Context, studentID, uid string) error {
	err := c.post(ctx, "/api/nfc", linkRequest{UID: uid, StudentID: studentID}, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusNotFound:
			apiErr.kind = storage.ErrStudentNotFound
		case http.StatusBadRequest, http.StatusConflict:
			apiErr.kind = linkConflict(apiErr.Detail)
		}
	}
	return err
}

// RegisterAccess records a card tap on the backend.
func (c *Client) RegisterAccess(ctx context.Context, uid string) (models.Access, error) {
	var resp accessResponse
	err := c.post(ctx, "/api/asistencia/registrar-nfc", accessRequest{UID: uid}, &resp)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			switch apiErr.Status {
			case http.StatusNotFound:
				apiErr.kind = storage.ErrCardNotFound
			case http.StatusConflict:
				apiErr.kind = storage.ErrDuplicateAccess
			}
		}
		return models.Access{}, err
	}

	at := parseTimestamp(resp.Timestamp)
	return models.Access{
		ID:         resp.ID,
		CardUID:    uid,
		Day:        at.Format("2006-01-02"),
		RecordedAt: at,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call backend %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{Status: resp.StatusCode, Detail: detail(data)}
		slog.Debug("Backend rejected request", "path", path, "status", resp.StatusCode, "detail", apiErr.Detail)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode backend response: %w", err)
	}
	return nil
}

// detail extracts {"detail": "..."} from an error body, falling back to the
// raw text.
func detail(data []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &body); err == nil && len(body.Detail) > 0 {
		var s string
		if err := json.Unmarshal(body.Detail, &s); err == nil {
			return s
		}
		return string(body.Detail)
	}
	return strings.TrimSpace(string(data))
}

// linkConflict tells the two link rejections apart by the backend's message.
func linkConflict(detail string) error {
	if strings.Contains(strings.ToLower(detail), "estudiante") {
		return storage.ErrStudentHasCard
	}
	return storage.ErrCardTaken
}

func parseTimestamp(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05.999999999", s, time.Local); err == nil {
		return t
	}
	return time.Now()
}
