// Package auth implements the platform's token scheme: a compact signed
// token format (HMAC-SHA256 only) plus the access/refresh token lifecycle
// with database-backed refresh revocation.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

const signingAlgorithm = "HS256"

// masterKeyPrefix marks an application master key whose remainder is
// base64-encoded rather than raw bytes.
const masterKeyPrefix = "base64:"

// testingSecret is the fixed signing secret used only when the codec is
// explicitly built for the testing environment.
const testingSecret = "testing-jwt-secret"

// ErrInvalidToken is returned by Decode for any structurally or
// cryptographically invalid token. Callers must not distinguish failure
// causes to clients.
var ErrInvalidToken = errors.New("invalid token")

// ErrNoSigningSecret is returned by NewCodec when no usable signing secret
// can be resolved. This is a configuration error and should abort startup.
var ErrNoSigningSecret = errors.New("jwt signing secret is not configured")

// CodecConfig controls signing secret resolution. Resolution order: Secret
// if non-empty, else AppKey (base64-decoded when prefixed with "base64:",
// raw bytes otherwise), else a fixed constant when Testing is set. Anything
// else is a configuration error.
type CodecConfig struct {
	// Secret is the explicitly configured signing secret.
	Secret string

	// AppKey is the application master key used as a fallback secret.
	AppKey string

	// Testing permits the fixed test-only secret as a last resort. Never
	// set outside the test environment.
	Testing bool
}

// Codec encodes and decodes compact three-segment signed tokens
// (header.payload.signature, each segment base64url without padding).
type Codec struct {
	secret []byte
}

// NewCodec resolves the signing secret once and returns a codec that uses
// it for both encoding and decoding.
func NewCodec(cfg CodecConfig) (*Codec, error) {
	secret, err := resolveSecret(cfg)
	if err != nil {
		return nil, err
	}
	return &Codec{secret: secret}, nil
}

func resolveSecret(cfg CodecConfig) ([]byte, error) {
	if cfg.Secret != "" {
		return []byte(cfg.Secret), nil
	}

	if cfg.AppKey != "" {
		if rest, ok := strings.CutPrefix(cfg.AppKey, masterKeyPrefix); ok {
			if decoded, err := base64.StdEncoding.DecodeString(rest); err == nil {
				return decoded, nil
			}
		}
		return []byte(cfg.AppKey), nil
	}

	if cfg.Testing {
		return []byte(testingSecret), nil
	}

	return nil, ErrNoSigningSecret
}

type tokenHeader struct {
	Typ string `json:"typ"`
	Alg string `json:"alg"`
}

// Encode serializes the claims into a signed compact token.
func (c *Codec) Encode(claims map[string]any) (string, error) {
	headerJSON, err := json.Marshal(tokenHeader{Typ: "JWT", Alg: signingAlgorithm})
	if err != nil {
		return "", err
	}

	payloadJSON, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}

	headerSegment := base64.RawURLEncoding.EncodeToString(headerJSON)
	payloadSegment := base64.RawURLEncoding.EncodeToString(payloadJSON)
	signatureSegment := c.signSegments(headerSegment, payloadSegment)

	return headerSegment + "." + payloadSegment + "." + signatureSegment, nil
}

// Decode verifies a compact token and returns its claims. It fails with
// ErrInvalidToken when the token is malformed, carries a wrong algorithm,
// has a bad signature, or is expired (exp <= now counts as expired).
func (c *Codec) Decode(token string) (map[string]any, error) {
	segments := strings.Split(token, ".")
	if len(segments) != 3 {
		return nil, ErrInvalidToken
	}

	headerSegment, payloadSegment, signatureSegment := segments[0], segments[1], segments[2]

	// Verify the signature before looking at any content. The comparison is
	// constant-time over the encoded segment.
	expected := c.signSegments(headerSegment, payloadSegment)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(signatureSegment)) != 1 {
		return nil, ErrInvalidToken
	}

	headerJSON, err := base64.RawURLEncoding.DecodeString(headerSegment)
	if err != nil {
		return nil, ErrInvalidToken
	}
	payloadJSON, err := base64.RawURLEncoding.DecodeString(payloadSegment)
	if err != nil {
		return nil, ErrInvalidToken
	}

	var header map[string]any
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, ErrInvalidToken
	}
	var payload map[string]any
	if err := json.Unmarshal(payloadJSON, &payload); err != nil {
		return nil, ErrInvalidToken
	}

	if alg, _ := header["alg"].(string); alg != signingAlgorithm {
		return nil, ErrInvalidToken
	}

	exp, ok := numericClaim(payload, "exp")
	if !ok || exp <= time.Now().Unix() {
		return nil, ErrInvalidToken
	}

	return payload, nil
}

func (c *Codec) signSegments(headerSegment, payloadSegment string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(headerSegment + "." + payloadSegment))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// numericClaim reads an integer claim, accepting JSON numbers and decimal
// strings (legacy issuers emitted string timestamps).
func numericClaim(claims map[string]any, name string) (int64, bool) {
	value, ok := claims[name]
	if !ok {
		return 0, false
	}

	switch v := value.(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return n, true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
