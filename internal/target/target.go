// Package target implements the Target Source: parsing HTTP-text and JSON
// target records into Target values, eager/lazy delivery, round-robin
// cycling, and per-dispatch template expansion. Grounded on the teacher's
// internal/runner/templating.go for the expansion engine and generalized
// from its fixed {{userID}}/{{uuid}} substitutions to arbitrary records.
package target

import (
	"fmt"
	"net/http"
	"net/textproto"
	"strings"
)

// Header is one (possibly duplicated) request header. Order is preserved
// on the wire.
type Header struct {
	Name  string
	Value string
}

// Target is an immutable request template: method, absolute URL, ordered
// headers, and an optional body. A single Target may be dispatched many
// times; cloning for template expansion happens in Expand, never here.
type Target struct {
	Method  string
	URL     string
	Headers []Header
	Body    []byte

	// BodyTemplate, when non-empty, is expanded fresh on every dispatch
	// via Expand instead of using the static Body. URLTemplate behaves the
	// same way for the URL. Both are populated only when the source text
	// actually contained `{{`.
	URLTemplate  string
	BodyTemplate string
}

// BodyLen reports the number of bytes sent as the request body, for
// bytes_out accounting. Transport.Send calls it on the target returned by
// template expansion, so a templated body is counted as rendered.
func (t *Target) BodyLen() int { return len(t.Body) }

// Validate checks the invariants from §3: method is a valid HTTP token,
// URL has an http/https scheme, header names are non-empty.
func (t *Target) Validate() error {
	if !isValidToken(t.Method) {
		return fmt.Errorf("target: %q is not a valid HTTP method token", t.Method)
	}
	if !strings.HasPrefix(t.URL, "http://") && !strings.HasPrefix(t.URL, "https://") {
		return fmt.Errorf("target: URL %q must have scheme http or https", t.URL)
	}
	for _, h := range t.Headers {
		if h.Name == "" {
			return fmt.Errorf("target: empty header name")
		}
	}
	return nil
}

// CanonicalHeaderName exposes textproto's canonicalization so lookups are
// case-insensitive while the header as stored preserves the original case
// for the wire.
func CanonicalHeaderName(name string) string { return textproto.CanonicalMIMEHeaderKey(name) }

func isValidToken(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isTokenChar(s[i]) {
			return false
		}
	}
	return true
}

// isTokenChar matches the RFC 7230 "token" character class used for HTTP
// method names.
func isTokenChar(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	}
	switch c {
	case '!', '#', '$', '%', '&', '\'', '*', '+', '-', '.', '^', '_', '`', '|', '~':
		return true
	}
	return false
}

// ToHTTPHeader converts Headers into an http.Header, preserving duplicates.
func (t *Target) ToHTTPHeader() http.Header {
	h := make(http.Header, len(t.Headers))
	for _, hdr := range t.Headers {
		h.Add(hdr.Name, hdr.Value)
	}
	return h
}
