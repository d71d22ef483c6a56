// Package registry uploads release artifacts to the channel registry.
package registry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"releaser/internal/apperrors"
	"releaser/internal/artifact"
	"releaser/internal/channel"
	"releaser/internal/config"
	"releaser/internal/observability"
	"releaser/internal/pipeline"
)

// Config holds registry client configuration.
type Config struct {
	BaseURL       string
	UploadTimeout time.Duration
}

// LoadConfigFromEnv loads registry configuration from environment variables.
func LoadConfigFromEnv() Config {
	return Config{
		BaseURL:       config.GetEnv("REGISTRY_URL", ""),
		UploadTimeout: config.GetDurationEnv("UPLOAD_TIMEOUT", 5*time.Minute),
	}
}

// Client publishes artifacts to the registry over HTTP.
//
// Every publish is a single force upload: the registry overwrites any
// prior publication for the same channel and artifact identity instead
// of rejecting it, which is what makes pipeline reruns safe. The
// X-Artifact-Digest header carries the identity the registry keys on.
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *observability.Metrics
}

// NewClient creates a registry client. metrics may be nil.
func NewClient(cfg Config, metrics *observability.Metrics) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, apperrors.Validation("REGISTRY_URL", "registry URL is required")
	}
	timeout := cfg.UploadTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: metrics,
	}, nil
}

// Publish force-uploads the artifact to the channel. Exactly one HTTP
// request per call; failures are classified into a reason but never
// retried here.
func (c *Client) Publish(ctx context.Context, a artifact.Artifact, ch channel.Channel, creds pipeline.Credentials) error {
	file, err := os.Open(a.Path)
	if err != nil {
		return apperrors.Internal("open artifact", err)
	}
	defer file.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.uploadURL(ch, filepath.Base(a.Path)), file)
	if err != nil {
		return apperrors.Internal("create upload request", err)
	}
	req.ContentLength = a.Size
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Authorization", "Bearer "+creds.Token)
	req.Header.Set("X-Artifact-Digest", a.Digest.String())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordPublish(ctx, string(ch), false, apperrors.ReasonNetwork, time.Since(start).Seconds())
		return apperrors.PublishFailed(string(ch), apperrors.ReasonNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.metrics.RecordPublish(ctx, string(ch), true, "", time.Since(start).Seconds())
		slog.Debug("Uploaded artifact", "channel", ch, "bytes", a.Size, "digest", a.Digest)
		return nil
	}

	respBody, _ := io.ReadAll(resp.Body)
	reason := classify(resp.StatusCode)
	c.metrics.RecordPublish(ctx, string(ch), false, reason, time.Since(start).Seconds())
	cause := &statusError{statusCode: resp.StatusCode, message: string(respBody)}
	return apperrors.PublishFailed(string(ch), reason, cause)
}

func (c *Client) uploadURL(ch channel.Channel, filename string) string {
	return fmt.Sprintf("%s/channels/%s/artifacts/%s?force=true",
		c.baseURL, url.PathEscape(string(ch)), url.PathEscape(filename))
}

// classify maps an upload rejection status to a publish failure reason.
func classify(statusCode int) string {
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperrors.ReasonAuth
	case http.StatusTooManyRequests, http.StatusInsufficientStorage:
		return apperrors.ReasonQuota
	default:
		return apperrors.ReasonUnknown
	}
}

type statusError struct {
	statusCode int
	message    string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("upload rejected with status %d: %s", e.statusCode, e.message)
}

// Verify Client implements pipeline.Publisher
var _ pipeline.Publisher = (*Client)(nil)
