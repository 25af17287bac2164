package aws

import (
	"sort"
	"strings"
)

// EncodeForm serializes parameters as an application/x-www-form-urlencoded
// body using strict RFC 3986 percent-encoding. The SNS and SQS query APIs
// reject bodies where spaces are encoded as "+", which rules out the
// encoding produced by net/url's Values.Encode.
//
// Keys are sorted for deterministic output.
func EncodeForm(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(uriEscape(k))
		b.WriteByte('=')
		b.WriteString(uriEscape(params[k]))
	}
	return b.String()
}
