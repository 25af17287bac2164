package event

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/TomKentIntera/project-voxel-sub001/internal/aws"
)

const sqsAPIVersion = "2012-11-05"

// Queue limits imposed by SQS; requested values are clamped to them.
const (
	maxReceiveBatch = 10
	maxWaitSeconds  = 20
)

// Handler applies the domain effect of a server order envelope. It must be
// idempotent: the queue delivers at least once and batches can overlap
// across consumer instances.
type Handler func(ctx context.Context, envelope *ServerOrdered) error

// ConsumerConfig configures the SQS consumer.
type ConsumerConfig struct {
	Region      string
	Credentials aws.Credentials

	// QueueURL is the full SQS queue URL. Empty disables consumption:
	// ConsumeBatch becomes a logged no-op.
	QueueURL string
}

// Consumer long-polls an SQS queue for server order events and applies them
// through a Handler. Delete-after-process gives at-least-once delivery; the
// handler's idempotency check absorbs the duplicates.
type Consumer struct {
	cfg     ConsumerConfig
	client  Doer
	handler Handler
	logger  *slog.Logger
	queue   string
}

// NewConsumer creates a consumer.
func NewConsumer(cfg ConsumerConfig, client Doer, handler Handler, logger *slog.Logger) *Consumer {
	if strings.TrimSpace(cfg.Region) == "" {
		cfg.Region = "us-east-1"
	}
	cfg.QueueURL = strings.TrimSpace(cfg.QueueURL)
	return &Consumer{
		cfg:     cfg,
		client:  client,
		handler: handler,
		logger:  logger,
		queue:   queueLabel(cfg.QueueURL),
	}
}

type queueMessage struct {
	MessageID     string `xml:"MessageId"`
	ReceiptHandle string `xml:"ReceiptHandle"`
	Body          string `xml:"Body"`
}

type receiveMessageResponse struct {
	XMLName xml.Name `xml:"ReceiveMessageResponse"`
	Result  struct {
		Messages []queueMessage `xml:"Message"`
	} `xml:"ReceiveMessageResult"`
}

// ConsumeBatch receives up to maxMessages messages (long-polling up to
// waitTimeSeconds) and processes each one. It returns the number of
// messages processed and deleted.
//
// Per message: a parse or validation failure deletes the message (a poison
// message must not block the queue); a handler failure leaves it in the
// queue for redelivery.
func (c *Consumer) ConsumeBatch(ctx context.Context, maxMessages, waitTimeSeconds int) (int, error) {
	if c.cfg.QueueURL == "" {
		c.logger.WarnContext(ctx, "skipping consume, no queue configured")
		return 0, nil
	}

	messages, err := c.receiveMessages(ctx, clamp(maxMessages, 1, maxReceiveBatch), clamp(waitTimeSeconds, 0, maxWaitSeconds))
	if err != nil {
		return 0, err
	}
	MessagesReceived.WithLabelValues(c.queue).Add(float64(len(messages)))

	processed := 0
	for _, msg := range messages {
		if strings.TrimSpace(msg.ReceiptHandle) == "" {
			continue
		}

		envelope, parseErr := extractServerOrdered(msg.Body)
		if parseErr != nil {
			c.logger.WarnContext(ctx, "dropping malformed message",
				slog.String("message_id", msg.MessageID),
				slog.String("error", parseErr.Error()),
			)
			MessagesDropped.WithLabelValues(c.queue).Inc()
			if err := c.deleteMessage(ctx, msg.ReceiptHandle); err != nil {
				c.logger.ErrorContext(ctx, "failed to delete malformed message",
					slog.String("message_id", msg.MessageID),
					slog.String("error", err.Error()),
				)
			}
			continue
		}

		start := time.Now()
		handleErr := c.handler(ctx, envelope)
		ProcessingDuration.WithLabelValues(c.queue).Observe(time.Since(start).Seconds())
		if handleErr != nil {
			// Leave the message in the queue; the visibility timeout will
			// redeliver it.
			c.logger.ErrorContext(ctx, "failed to process message",
				slog.String("message_id", msg.MessageID),
				slog.String("event_id", envelope.EventID),
				slog.String("error", handleErr.Error()),
			)
			MessagesFailed.WithLabelValues(c.queue).Inc()
			continue
		}

		if err := c.deleteMessage(ctx, msg.ReceiptHandle); err != nil {
			c.logger.ErrorContext(ctx, "failed to delete processed message",
				slog.String("message_id", msg.MessageID),
				slog.String("error", err.Error()),
			)
			continue
		}

		MessagesProcessed.WithLabelValues(c.queue).Inc()
		processed++
	}

	return processed, nil
}

func (c *Consumer) receiveMessages(ctx context.Context, maxMessages, waitTimeSeconds int) ([]queueMessage, error) {
	status, body, err := c.signedPost(ctx, aws.EncodeForm(map[string]string{
		"Action":                 "ReceiveMessage",
		"Version":                sqsAPIVersion,
		"MaxNumberOfMessages":    strconv.Itoa(maxMessages),
		"WaitTimeSeconds":        strconv.Itoa(waitTimeSeconds),
		"MessageAttributeName.1": "All",
		"AttributeName.1":        "All",
	}))
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("sqs ReceiveMessage: HTTP %d: %s", status, strings.TrimSpace(body))
	}

	var parsed receiveMessageResponse
	if err := xml.Unmarshal([]byte(body), &parsed); err != nil {
		// An unparseable success response yields no work, not an error.
		return nil, nil
	}
	return parsed.Result.Messages, nil
}

func (c *Consumer) deleteMessage(ctx context.Context, receiptHandle string) error {
	status, body, err := c.signedPost(ctx, aws.EncodeForm(map[string]string{
		"Action":        "DeleteMessage",
		"Version":       sqsAPIVersion,
		"ReceiptHandle": receiptHandle,
	}))
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("sqs DeleteMessage: HTTP %d: %s", status, strings.TrimSpace(body))
	}
	return nil
}

func (c *Consumer) signedPost(ctx context.Context, body string) (int, string, error) {
	return signedFormPost(ctx, c.client, signedPostRequest{
		Service:     "sqs",
		Region:      c.cfg.Region,
		Credentials: c.cfg.Credentials,
		URL:         c.cfg.QueueURL,
		Body:        body,
	})
}

// snsNotification is the wrapper SNS puts around messages when raw message
// delivery is disabled on the subscription.
type snsNotification struct {
	Type    string `json:"Type"`
	Message string `json:"Message"`
}

// extractServerOrdered decodes a queue message body into an envelope,
// unwrapping an SNS notification layer when present.
func extractServerOrdered(body string) (*ServerOrdered, error) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return nil, fmt.Errorf("decode message body: %w", err)
	}

	if _, hasType := payload["Type"]; hasType {
		if _, hasMessage := payload["Message"].(string); hasMessage {
			var wrapper snsNotification
			if err := json.Unmarshal([]byte(body), &wrapper); err != nil {
				return nil, fmt.Errorf("decode sns wrapper: %w", err)
			}
			payload = nil
			if err := json.Unmarshal([]byte(wrapper.Message), &payload); err != nil {
				return nil, fmt.Errorf("decode wrapped message: %w", err)
			}
		}
	}

	return ServerOrderedFromMap(payload)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// queueLabel extracts a short queue name for metric labels.
func queueLabel(queueURL string) string {
	if queueURL == "" {
		return "unconfigured"
	}
	if idx := strings.LastIndex(queueURL, "/"); idx >= 0 && idx < len(queueURL)-1 {
		return queueURL[idx+1:]
	}
	return queueURL
}
