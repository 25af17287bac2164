// Package aws implements the subset of AWS Signature Version 4 needed to
// talk to SNS and SQS over plain HTTP, without pulling in the AWS SDK.
package aws

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

const (
	algorithm         = "AWS4-HMAC-SHA256"
	terminationString = "aws4_request"
	amzDateFormat     = "20060102T150405Z"
	dateStampFormat   = "20060102"
)

// Credentials holds a static AWS credential set. SessionToken is optional
// and only present for temporary credentials.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// SigningRequest describes an outbound HTTP request to be signed.
type SigningRequest struct {
	Service     string
	Region      string
	Credentials Credentials
	Method      string
	URL         string
	Headers     map[string]string
	Query       map[string]string
	Payload     []byte

	// Time is the signing timestamp. The zero value means "now". Fixing it
	// makes the signature fully deterministic.
	Time time.Time
}

// SignRequest computes the SigV4 signature for the request and returns the
// header set to send: Authorization, x-amz-date, x-amz-content-sha256, Host,
// x-amz-security-token when a session token is present, and the caller's
// original headers layered on top.
//
// The function is pure: identical inputs (including Time) produce an
// identical header map.
func SignRequest(req SigningRequest) (map[string]string, error) {
	if err := requireFields(map[string]string{
		"service":         req.Service,
		"region":          req.Region,
		"accessKeyId":     req.Credentials.AccessKeyID,
		"secretAccessKey": req.Credentials.SecretAccessKey,
		"method":          req.Method,
		"uri":             req.URL,
	}); err != nil {
		return nil, err
	}

	ts := req.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	ts = ts.UTC()

	amzDate := ts.Format(amzDateFormat)
	dateStamp := ts.Format(dateStampFormat)

	parsed, err := url.Parse(req.URL)
	if err != nil || parsed.Hostname() == "" {
		return nil, fmt.Errorf("invalid URI %q for signature v4", req.URL)
	}

	scheme := parsed.Scheme
	if scheme == "" {
		scheme = "https"
	}

	hostHeader := hostHeaderValue(parsed.Hostname(), parsed.Port(), scheme)
	canonicalURI := canonicalURI(parsed.Path)
	canonicalQuery := canonicalQueryString(req.Query)

	payloadHash := hex.EncodeToString(sha256Sum(req.Payload))

	headersToSign := make(map[string]string, len(req.Headers)+4)
	for name, value := range req.Headers {
		headersToSign[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(value)
	}
	headersToSign["host"] = hostHeader
	headersToSign["x-amz-date"] = amzDate
	headersToSign["x-amz-content-sha256"] = payloadHash
	if token := strings.TrimSpace(req.Credentials.SessionToken); token != "" {
		headersToSign["x-amz-security-token"] = token
	}

	names := make([]string, 0, len(headersToSign))
	for name := range headersToSign {
		names = append(names, name)
	}
	sort.Strings(names)

	var canonicalHeaders strings.Builder
	for _, name := range names {
		canonicalHeaders.WriteString(name)
		canonicalHeaders.WriteByte(':')
		canonicalHeaders.WriteString(normalizeHeaderValue(headersToSign[name]))
		canonicalHeaders.WriteByte('\n')
	}
	signedHeaders := strings.Join(names, ";")

	canonicalRequest := strings.ToUpper(req.Method) + "\n" +
		canonicalURI + "\n" +
		canonicalQuery + "\n" +
		canonicalHeaders.String() + "\n" +
		signedHeaders + "\n" +
		payloadHash

	credentialScope := dateStamp + "/" + req.Region + "/" + req.Service + "/" + terminationString
	stringToSign := algorithm + "\n" +
		amzDate + "\n" +
		credentialScope + "\n" +
		hex.EncodeToString(sha256Sum([]byte(canonicalRequest)))

	signingKey := deriveSigningKey(req.Credentials.SecretAccessKey, dateStamp, req.Region, req.Service)
	signature := hex.EncodeToString(hmacSHA256(signingKey, []byte(stringToSign)))

	authorization := algorithm +
		" Credential=" + req.Credentials.AccessKeyID + "/" + credentialScope +
		", SignedHeaders=" + signedHeaders +
		", Signature=" + signature

	result := map[string]string{
		"Authorization":        authorization,
		"x-amz-date":           amzDate,
		"x-amz-content-sha256": payloadHash,
		"Host":                 hostHeader,
	}
	if token, ok := headersToSign["x-amz-security-token"]; ok {
		result["x-amz-security-token"] = token
	}

	// Caller headers win on collision so Content-Type and friends survive
	// exactly as supplied.
	for name, value := range req.Headers {
		result[name] = value
	}

	return result, nil
}

func requireFields(fields map[string]string) error {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if strings.TrimSpace(fields[name]) == "" {
			return fmt.Errorf("signature v4 field %q cannot be empty", name)
		}
	}
	return nil
}

// canonicalURI percent-encodes each path segment, preserving the "/"
// separators. An empty path canonicalizes to "/".
func canonicalURI(path string) string {
	if path == "" {
		return "/"
	}

	segments := strings.Split(path, "/")
	for i, segment := range segments {
		segments[i] = uriEscape(segment)
	}

	uri := strings.Join(segments, "/")
	if !strings.HasPrefix(uri, "/") {
		uri = "/" + uri
	}
	return uri
}

// canonicalQueryString sorts parameters by key and percent-encodes both keys
// and values. Returns "" when there are no parameters.
func canonicalQueryString(query map[string]string) string {
	if len(query) == 0 {
		return ""
	}

	keys := make([]string, 0, len(query))
	for key := range query {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, uriEscape(key)+"="+uriEscape(query[key]))
	}
	return strings.Join(parts, "&")
}

// normalizeHeaderValue trims the value and collapses internal whitespace
// runs to single spaces, as required for the canonical header block.
func normalizeHeaderValue(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

// hostHeaderValue omits default ports (443 for https, 80 for http) and
// appends non-default ones as host:port.
func hostHeaderValue(host, port, scheme string) string {
	if port == "" {
		return host
	}
	if (scheme == "https" && port == "443") || (scheme == "http" && port == "80") {
		return host
	}
	return host + ":" + port
}

// deriveSigningKey computes the SigV4 key chain:
// HMAC(HMAC(HMAC(HMAC("AWS4"+secret, date), region), service), "aws4_request").
func deriveSigningKey(secretAccessKey, dateStamp, region, service string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secretAccessKey), []byte(dateStamp))
	kRegion := hmacSHA256(kDate, []byte(region))
	kService := hmacSHA256(kRegion, []byte(service))
	return hmacSHA256(kService, []byte(terminationString))
}

func hmacSHA256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

func sha256Sum(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// uriEscape implements RFC 3986 percent-encoding: unreserved characters are
// left as-is, everything else becomes %XX with uppercase hex digits.
func uriEscape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteString(fmt.Sprintf("%02X", c))
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	return (c >= 'A' && c <= 'Z') ||
		(c >= 'a' && c <= 'z') ||
		(c >= '0' && c <= '9') ||
		c == '-' || c == '_' || c == '.' || c == '~'
}
