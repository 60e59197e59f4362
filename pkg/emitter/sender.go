package emitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/okian/taskpulse/internal/adapters/mq/queue"
)

const (
	eventsPath      = "/analytics/events"
	maxErrorBodyLen = 512
)

// HTTPSender posts emissions to the ingestion endpoint.
type HTTPSender struct {
	client *http.Client
	url    string
}

// NewHTTPSender returns a sender posting to baseURL + /analytics/events.
func NewHTTPSender(client *http.Client, baseURL string) *HTTPSender {
	return &HTTPSender{
		client: client,
		url:    strings.TrimRight(baseURL, "/") + eventsPath,
	}
}

// Send implements worker.Sender. Any status other than 201 is an error.
func (s *HTTPSender) Send(ctx context.Context, it queue.Item) error {
	body, err := json.Marshal(it)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", s.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		return fmt.Errorf("post %s: unexpected status %d: %s", s.url, resp.StatusCode, bytes.TrimSpace(msg))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
