// Package event implements the platform's event bus: the versioned event
// envelopes, the SNS publisher, and the SQS consumer that drives server
// provisioning.
package event

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// EventTypeServerOrdered identifies a paid server order. The version suffix
// is part of the wire contract; bump it only with a new envelope shape.
const EventTypeServerOrdered = "server.ordered.v1"

var integerPattern = regexp.MustCompile(`^-?\d+$`)

// ServerOrdered announces that a server order has been paid and the server
// should be provisioned. Envelopes are immutable after construction:
// serialized once on publish, deserialized once on consume.
type ServerOrdered struct {
	EventID    string
	OccurredAt string
	ServerID   int64
	ServerUUID string
	UserID     int64
	Plan       string
	Config     map[string]any

	// Optional. Empty string means absent; absent fields serialize as null.
	StripeSubscriptionID string
	CorrelationID        string
}

// NewServerOrdered builds a validated envelope. Required string fields must
// be non-empty after trimming.
func NewServerOrdered(
	eventID, occurredAt string,
	serverID int64, serverUUID string,
	userID int64, plan string,
	config map[string]any,
) (*ServerOrdered, error) {
	e := &ServerOrdered{
		EventID:    strings.TrimSpace(eventID),
		OccurredAt: strings.TrimSpace(occurredAt),
		ServerID:   serverID,
		ServerUUID: strings.TrimSpace(serverUUID),
		UserID:     userID,
		Plan:       strings.TrimSpace(plan),
		Config:     config,
	}

	for field, value := range map[string]string{
		"event_id":    e.EventID,
		"occurred_at": e.OccurredAt,
		"server_uuid": e.ServerUUID,
		"plan":        e.Plan,
	} {
		if value == "" {
			return nil, fmt.Errorf("event field %q cannot be empty", field)
		}
	}

	return e, nil
}

// ToMap serializes the envelope to its wire shape. Optional fields are
// emitted as null when absent so the published JSON always carries the full
// key set.
func (e *ServerOrdered) ToMap() map[string]any {
	m := map[string]any{
		"event_id":               e.EventID,
		"event_type":             EventTypeServerOrdered,
		"occurred_at":            e.OccurredAt,
		"server_id":              e.ServerID,
		"server_uuid":            e.ServerUUID,
		"user_id":                e.UserID,
		"plan":                   e.Plan,
		"config":                 e.Config,
		"stripe_subscription_id": nil,
		"correlation_id":         nil,
	}
	if e.StripeSubscriptionID != "" {
		m["stripe_subscription_id"] = e.StripeSubscriptionID
	}
	if e.CorrelationID != "" {
		m["correlation_id"] = e.CorrelationID
	}
	return m
}

// MarshalJSON serializes the wire shape directly.
func (e *ServerOrdered) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.ToMap())
}

// ServerOrderedFromMap parses and validates a wire payload. A missing
// event_type is tolerated (early publishers omitted it); a present but
// mismatched one is rejected.
func ServerOrderedFromMap(payload map[string]any) (*ServerOrdered, error) {
	if raw, ok := payload["event_type"]; ok {
		eventType, isString := raw.(string)
		if !isString || eventType != EventTypeServerOrdered {
			return nil, fmt.Errorf("unexpected event type %v, expected %s", raw, EventTypeServerOrdered)
		}
	}

	eventID, err := requiredString(payload, "event_id")
	if err != nil {
		return nil, err
	}
	occurredAt, err := requiredString(payload, "occurred_at")
	if err != nil {
		return nil, err
	}
	serverID, err := requiredInt(payload, "server_id")
	if err != nil {
		return nil, err
	}
	serverUUID, err := requiredString(payload, "server_uuid")
	if err != nil {
		return nil, err
	}
	userID, err := requiredInt(payload, "user_id")
	if err != nil {
		return nil, err
	}
	plan, err := requiredString(payload, "plan")
	if err != nil {
		return nil, err
	}
	config, ok := payload["config"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("event field %q must be an object", "config")
	}

	stripeSubscriptionID, err := optionalString(payload, "stripe_subscription_id")
	if err != nil {
		return nil, err
	}
	correlationID, err := optionalString(payload, "correlation_id")
	if err != nil {
		return nil, err
	}

	return &ServerOrdered{
		EventID:              eventID,
		OccurredAt:           occurredAt,
		ServerID:             serverID,
		ServerUUID:           serverUUID,
		UserID:               userID,
		Plan:                 plan,
		Config:               config,
		StripeSubscriptionID: stripeSubscriptionID,
		CorrelationID:        correlationID,
	}, nil
}

func requiredString(payload map[string]any, field string) (string, error) {
	value, ok := payload[field].(string)
	if !ok {
		return "", fmt.Errorf("event field %q must be a non-empty string", field)
	}
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("event field %q must be a non-empty string", field)
	}
	return trimmed, nil
}

// optionalString treats null, missing, and blank values as absent.
func optionalString(payload map[string]any, field string) (string, error) {
	value, ok := payload[field]
	if !ok || value == nil {
		return "", nil
	}
	str, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("event field %q must be a string when provided", field)
	}
	return strings.TrimSpace(str), nil
}

// requiredInt accepts JSON numbers and decimal strings. Legacy publishers
// serialized ids as strings. JSON decodes numbers as float64; a fractional
// value or one beyond int64 range is rejected, not truncated.
func requiredInt(payload map[string]any, field string) (int64, error) {
	switch v := payload[field].(type) {
	case float64:
		if v != math.Trunc(v) || v >= float64(1<<63) || v < -float64(1<<63) {
			return 0, fmt.Errorf("event field %q must be an integer", field)
		}
		return int64(v), nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("event field %q must be an integer", field)
		}
		return n, nil
	case string:
		if !integerPattern.MatchString(v) {
			return 0, fmt.Errorf("event field %q must be an integer", field)
		}
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("event field %q must be an integer", field)
	}
}
