package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"psvs-console-be/internal/dataservice"
	"psvs-console-be/pkg/timeline"
)

// Client reads conversation data from the upstream data service over HTTP.
type Client struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

var _ timeline.DataService = &Client{}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Client: &http.Client{
			Timeout: timeout,
		},
	}
}

// StatusError is returned for any non-2xx answer.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("data service %s %s: status %d, body: %s", e.Method, e.Path, e.Status, e.Body)
}

func (c *Client) ListSessions(ctx context.Context, clientID string) ([]timeline.Session, error) {
	body, err := c.do(ctx, http.MethodGet, "/clients/"+url.PathEscape(clientID)+"/sessions", nil, nil)
	if err != nil {
		return nil, err
	}
	sessions, err := dataservice.DecodeSessions(body)
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		if sessions[i].ClientID == "" {
			sessions[i].ClientID = clientID
		}
	}
	return sessions, nil
}

func (c *Client) ListMessages(ctx context.Context, sessionID string) ([]timeline.Message, error) {
	body, err := c.do(ctx, http.MethodGet, "/sessions/"+url.PathEscape(sessionID)+"/messages", nil, nil)
	if err != nil {
		return nil, err
	}
	return dataservice.DecodeMessages(body)
}

func (c *Client) ListSubSessions(ctx context.Context, sessionID string) ([]timeline.SubSession, error) {
	body, err := c.do(ctx, http.MethodGet, "/sessions/"+url.PathEscape(sessionID)+"/mini-sessions", nil, nil)
	if err != nil {
		return nil, err
	}
	return dataservice.DecodeSubSessions(body)
}

func (c *Client) GetPosition(ctx context.Context, clientID string, trajectoryLimit int) (*timeline.Position, error) {
	query := url.Values{}
	if trajectoryLimit > 0 {
		query.Set("trajectory", strconv.Itoa(trajectoryLimit))
	}
	body, err := c.do(ctx, http.MethodGet, "/clients/"+url.PathEscape(clientID)+"/psvs/position", query, nil)
	if err != nil {
		return nil, err
	}
	return dataservice.DecodePosition(body)
}

type feedbackRequest struct {
	MessageID      *string `json:"message_id,omitempty"`
	PractitionerID string  `json:"practitioner_id"`
	Rating         int     `json:"rating"`
	Comment        string  `json:"comment"`
	CreatedAt      string  `json:"created_at"`
}

func (c *Client) SubmitFeedback(ctx context.Context, feedback timeline.Feedback) error {
	payload, err := json.Marshal(feedbackRequest{
		MessageID:      feedback.MessageID,
		PractitionerID: feedback.PractitionerID,
		Rating:         feedback.Rating,
		Comment:        feedback.Comment,
		CreatedAt:      feedback.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal feedback: %w", err)
	}
	_, err = c.do(ctx, http.MethodPost, "/sessions/"+url.PathEscape(feedback.SessionID)+"/supervision-feedback", nil, payload)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload []byte) ([]byte, error) {
	target := c.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("data service request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Method: method, Path: path, Status: resp.StatusCode, Body: string(bodyBytes)}
	}
	return bodyBytes, nil
}
