// Package workflow talks to the external workflow engine that renders patient
// dashboards and delivers reminders.
package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	patientDashboardPath = "/patient-dashboard"
	manualReminderPath   = "/send-manual-reminder"

	defaultTimeout = 30 * time.Second
	maxErrorBody   = 1024
)

// ErrUpstream is returned when the engine is unreachable or answers with a non-2xx status.
var ErrUpstream = errors.New("workflow engine request failed")

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.httpClient = c }
}

// Client posts JSON payloads to the engine's webhook endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client for baseURL. A zero timeout uses the default.
func NewClient(baseURL string, timeout time.Duration, opts ...ClientOption) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ManualReminder is the payload of a manually triggered reminder.
type ManualReminder struct {
	PatientID    uint   `json:"patient_id"`
	ReminderType string `json:"reminder_type"`
	TriggeredBy  uint   `json:"triggered_by"`
}

// PatientDashboard returns the HTML dashboard the engine renders for a patient.
func (c *Client) PatientDashboard(ctx context.Context, patientID uint) ([]byte, error) {
	payload := map[string]uint{"patient_id": patientID}
	return c.post(ctx, patientDashboardPath, payload)
}

// SendManualReminder asks the engine to deliver a reminder right away.
func (c *Client) SendManualReminder(ctx context.Context, reminder ManualReminder) error {
	_, err := c.post(ctx, manualReminderPath, reminder)
	return err
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: POST %s: %v", ErrUpstream, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: POST %s: status %d: %s", ErrUpstream, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s response: %v", ErrUpstream, path, err)
	}
	return out, nil
}
