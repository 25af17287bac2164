package event

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/TomKentIntera/project-voxel-sub001/internal/aws"
)

// Doer sends one HTTP request. Satisfied by httpclient.Client and by its
// circuit-breaker wrapper.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

const (
	snsAPIVersion   = "2010-03-31"
	formContentType = "application/x-www-form-urlencoded; charset=utf-8"
)

// PublisherConfig configures the SNS publisher.
type PublisherConfig struct {
	Region      string
	Credentials aws.Credentials

	// Endpoint overrides the SNS endpoint, for localstack-style testing.
	// Empty selects the regional AWS endpoint.
	Endpoint string

	// Topics maps event type to topic ARN. An event type with no mapping is
	// published nowhere; Publish logs and succeeds so environments can
	// disable the bus without breaking the operations that emit events.
	Topics map[string]string
}

// Publisher sends event envelopes to SNS. Publishing is at-most-once: a
// single signed POST, no internal retry.
type Publisher struct {
	cfg    PublisherConfig
	client Doer
	logger *slog.Logger
}

// NewPublisher creates a publisher.
func NewPublisher(cfg PublisherConfig, client Doer, logger *slog.Logger) *Publisher {
	if strings.TrimSpace(cfg.Region) == "" {
		cfg.Region = "us-east-1"
	}
	return &Publisher{cfg: cfg, client: client, logger: logger}
}

// PublishServerOrdered publishes a server order envelope. A missing topic
// mapping is a logged no-op; any non-2xx response is a hard failure carrying
// the status code and response body.
func (p *Publisher) PublishServerOrdered(ctx context.Context, envelope *ServerOrdered) error {
	topicARN := strings.TrimSpace(p.cfg.Topics[EventTypeServerOrdered])
	if topicARN == "" {
		p.logger.WarnContext(ctx, "skipping event publish, no topic configured",
			slog.String("event_type", EventTypeServerOrdered),
		)
		return nil
	}

	message, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	body := aws.EncodeForm(map[string]string{
		"Action":   "Publish",
		"Version":  snsAPIVersion,
		"TopicArn": topicARN,
		"Message":  string(message),
	})

	start := time.Now()
	status, respBody, err := p.signedPost(ctx, "sns", p.endpoint(), body)
	PublishDuration.WithLabelValues(EventTypeServerOrdered).Observe(time.Since(start).Seconds())
	if err != nil {
		PublishErrors.WithLabelValues(EventTypeServerOrdered).Inc()
		return err
	}
	if status < 200 || status >= 300 {
		PublishErrors.WithLabelValues(EventTypeServerOrdered).Inc()
		return fmt.Errorf("publish event: HTTP %d: %s", status, strings.TrimSpace(respBody))
	}

	EventsPublished.WithLabelValues(EventTypeServerOrdered).Inc()
	p.logger.InfoContext(ctx, "event published",
		slog.String("event_type", EventTypeServerOrdered),
		slog.String("event_id", envelope.EventID),
	)
	return nil
}

func (p *Publisher) endpoint() string {
	if endpoint := strings.TrimSpace(p.cfg.Endpoint); endpoint != "" {
		return strings.TrimRight(endpoint, "/") + "/"
	}
	return fmt.Sprintf("https://sns.%s.amazonaws.com/", p.cfg.Region)
}

// signedPost signs and sends one form-encoded POST. Used for SNS here and
// shared with the SQS consumer.
func (p *Publisher) signedPost(ctx context.Context, service, url, body string) (int, string, error) {
	return signedFormPost(ctx, p.client, signedPostRequest{
		Service:     service,
		Region:      p.cfg.Region,
		Credentials: p.cfg.Credentials,
		URL:         url,
		Body:        body,
	})
}

type signedPostRequest struct {
	Service     string
	Region      string
	Credentials aws.Credentials
	URL         string
	Body        string
}

func signedFormPost(ctx context.Context, client Doer, req signedPostRequest) (int, string, error) {
	headers, err := aws.SignRequest(aws.SigningRequest{
		Service:     req.Service,
		Region:      req.Region,
		Credentials: req.Credentials,
		Method:      http.MethodPost,
		URL:         req.URL,
		Headers:     map[string]string{"Content-Type": formContentType},
		Payload:     []byte(req.Body),
	})
	if err != nil {
		return 0, "", fmt.Errorf("sign request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, strings.NewReader(req.Body))
	if err != nil {
		return 0, "", fmt.Errorf("create request: %w", err)
	}
	for name, value := range headers {
		httpReq.Header.Set(name, value)
	}
	// net/http transmits URL.Host and ignores a Host header entry. The
	// signature covers the canonical host (default ports stripped), so the
	// wire value must match it exactly.
	if host, ok := headers["Host"]; ok {
		httpReq.Host = host
	}

	resp, err := client.Do(ctx, httpReq)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, "", fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, string(respBody), nil
}
