package cloudevent

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Sender delivers CloudEvents over HTTP. A Sender with a signing key adds an
// HMAC-SHA256 signature header over the request body of every event it sends.
type Sender struct {
	client     *http.Client
	signingKey string
}

// NewSender creates a Sender. An empty signingKey disables signing.
func NewSender(timeout time.Duration, signingKey string) *Sender {
	return &Sender{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		signingKey: signingKey,
	}
}

// Send posts an event to url in binary-compatible structured mode: the JSON
// envelope in the body, the context attributes mirrored as Ce-* headers.
func (s *Sender) Send(ctx context.Context, url string, event *CloudEvent) error {
	req, err := s.newRequest(ctx, url, event)
	if err != nil {
		return err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{StatusCode: resp.StatusCode}
	}
	return nil
}

func (s *Sender) newRequest(ctx context.Context, url string, event *CloudEvent) (*http.Request, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/cloudevents+json")
	for name, value := range map[string]string{
		"Ce-Specversion": event.SpecVersion,
		"Ce-Type":        event.Type,
		"Ce-Source":      event.Source,
		"Ce-Subject":     event.Subject,
		"Ce-Id":          event.ID,
		"Ce-Time":        event.Time.Format(time.RFC3339),
	} {
		req.Header.Set(name, value)
	}

	if s.signingKey != "" {
		req.Header.Set("X-Signature-256", signPayload(body, s.signingKey))
	}
	return req, nil
}

func signPayload(payload []byte, key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// HTTPError is a non-2xx response to a delivery attempt.
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// IsClientError reports whether err is a 4xx response. Client errors will
// not succeed on retry.
func IsClientError(err error) bool {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode >= 400 && he.StatusCode < 500
	}
	return false
}
