package aws

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedTime(t *testing.T) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, "2026-02-18T09:30:00Z")
	require.NoError(t, err)
	return ts
}

func sampleRequest(t *testing.T) SigningRequest {
	t.Helper()
	return SigningRequest{
		Service: "sns",
		Region:  "us-east-1",
		Credentials: Credentials{
			AccessKeyID:     "AKIDEXAMPLE",
			SecretAccessKey: "wJalrXUtnFEMI/K7MDENG+bPxRfiCYEXAMPLEKEY",
		},
		Method: "POST",
		URL:    "https://sns.us-east-1.amazonaws.com/",
		Headers: map[string]string{
			"Content-Type": "application/x-www-form-urlencoded; charset=utf-8",
		},
		Query:   map[string]string{},
		Payload: []byte("Action=Publish&Version=2010-03-31"),
		Time:    fixedTime(t),
	}
}

func TestSignRequest_Deterministic(t *testing.T) {
	first, err := SignRequest(sampleRequest(t))
	require.NoError(t, err)

	second, err := SignRequest(sampleRequest(t))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, first["Authorization"], second["Authorization"])
}

func TestSignRequest_HeaderShape(t *testing.T) {
	headers, err := SignRequest(sampleRequest(t))
	require.NoError(t, err)

	auth := headers["Authorization"]
	assert.True(t, strings.HasPrefix(auth, "AWS4-HMAC-SHA256 Credential=AKIDEXAMPLE/20260218/us-east-1/sns/aws4_request, "), auth)
	assert.Contains(t, auth, "SignedHeaders=content-type;host;x-amz-content-sha256;x-amz-date, ")
	assert.Regexp(t, `Signature=[0-9a-f]{64}$`, auth)

	assert.Equal(t, "20260218T093000Z", headers["x-amz-date"])
	assert.Equal(t, "sns.us-east-1.amazonaws.com", headers["Host"])
	assert.Len(t, headers["x-amz-content-sha256"], 64)
	// Caller headers survive verbatim.
	assert.Equal(t, "application/x-www-form-urlencoded; charset=utf-8", headers["Content-Type"])
	assert.NotContains(t, headers, "x-amz-security-token")
}

func TestSignRequest_SensitiveToEveryInput(t *testing.T) {
	base, err := SignRequest(sampleRequest(t))
	require.NoError(t, err)

	mutations := map[string]func(*SigningRequest){
		"payload":    func(r *SigningRequest) { r.Payload = []byte("Action=Publish&Version=2010-03-32") },
		"region":     func(r *SigningRequest) { r.Region = "eu-west-1" },
		"service":    func(r *SigningRequest) { r.Service = "sqs" },
		"secret key": func(r *SigningRequest) { r.Credentials.SecretAccessKey = "other-secret" },
		"query":      func(r *SigningRequest) { r.Query = map[string]string{"Action": "Publish"} },
		"time":       func(r *SigningRequest) { r.Time = r.Time.Add(time.Second) },
		"path":       func(r *SigningRequest) { r.URL = "https://sns.us-east-1.amazonaws.com/other" },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			req := sampleRequest(t)
			mutate(&req)
			headers, err := SignRequest(req)
			require.NoError(t, err)
			assert.NotEqual(t, base["Authorization"], headers["Authorization"])
		})
	}
}

func TestSignRequest_SessionToken(t *testing.T) {
	req := sampleRequest(t)
	req.Credentials.SessionToken = "  FwoGZXIvYXdzEBYaD  "

	headers, err := SignRequest(req)
	require.NoError(t, err)

	assert.Equal(t, "FwoGZXIvYXdzEBYaD", headers["x-amz-security-token"])
	assert.Contains(t, headers["Authorization"], "x-amz-security-token")
}

func TestSignRequest_HostPortHandling(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"default https port omitted", "https://queue.example.com:443/accounts/1", "queue.example.com"},
		{"default http port omitted", "http://queue.example.com:80/accounts/1", "queue.example.com"},
		{"non-default port kept", "https://queue.example.com:8443/accounts/1", "queue.example.com:8443"},
		{"no port", "https://queue.example.com/accounts/1", "queue.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := sampleRequest(t)
			req.URL = tt.url
			headers, err := SignRequest(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, headers["Host"])
		})
	}
}

func TestSignRequest_EmptyFieldsRejected(t *testing.T) {
	for _, field := range []string{"service", "region", "access key", "secret key", "method", "uri"} {
		t.Run(field, func(t *testing.T) {
			req := sampleRequest(t)
			switch field {
			case "service":
				req.Service = " "
			case "region":
				req.Region = ""
			case "access key":
				req.Credentials.AccessKeyID = ""
			case "secret key":
				req.Credentials.SecretAccessKey = "   "
			case "method":
				req.Method = ""
			case "uri":
				req.URL = ""
			}
			_, err := SignRequest(req)
			assert.Error(t, err)
		})
	}
}

func TestSignRequest_InvalidURI(t *testing.T) {
	req := sampleRequest(t)
	req.URL = "not a url"
	_, err := SignRequest(req)
	assert.Error(t, err)
}

func TestCanonicalQueryString(t *testing.T) {
	got := canonicalQueryString(map[string]string{
		"Version": "2012-11-05",
		"Action":  "ReceiveMessage",
		"Name":    "a b/c",
	})
	assert.Equal(t, "Action=ReceiveMessage&Name=a%20b%2Fc&Version=2012-11-05", got)

	assert.Equal(t, "", canonicalQueryString(nil))
}

func TestCanonicalURI(t *testing.T) {
	assert.Equal(t, "/", canonicalURI(""))
	assert.Equal(t, "/123456789012/voxel-server-orders", canonicalURI("/123456789012/voxel-server-orders"))
	assert.Equal(t, "/a%20b/c%2Ad", canonicalURI("/a b/c*d"))
}

func TestNormalizeHeaderValue(t *testing.T) {
	assert.Equal(t, "a b c", normalizeHeaderValue("  a \t b \n c  "))
}

func TestUriEscape(t *testing.T) {
	assert.Equal(t, "AZaz09-_.~", uriEscape("AZaz09-_.~"))
	assert.Equal(t, "a%20b%2Fc%3D", uriEscape("a b/c="))
}
